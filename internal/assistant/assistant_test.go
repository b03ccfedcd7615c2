package assistant

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoequity/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 300, OutputTokens: 40},
	}
}

func ptr(v float64) *float64 { return &v }

func TestNew_Defaults(t *testing.T) {
	a := New(nil, Config{})
	assert.False(t, a.Available())
	assert.Equal(t, DefaultModel, a.Model())
	assert.Equal(t, int64(DefaultMaxTokens), a.cfg.MaxTokens)
	assert.Equal(t, DefaultTemperature, a.cfg.Temperature)

	var nilAssistant *Assistant
	assert.False(t, nilAssistant.Available())
}

func TestChat_Unavailable(t *testing.T) {
	_, err := New(nil, Config{}).Chat(context.Background(), ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChat_EmptyMessage(t *testing.T) {
	client := new(mockClient)
	_, err := New(client, Config{}).Chat(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)

	_, err = New(nil, Config{}).Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrEmptyMessage, "an empty message is rejected before availability")
}

func TestChat_SendsContextAndHistory(t *testing.T) {
	client := new(mockClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		if req.Model != "claude-haiku-4-5-20251001" || req.MaxTokens != 256 {
			return false
		}
		if len(req.System) != 2 || req.System[0].CacheControl == nil {
			return false
		}
		if len(req.Messages) != 3 || req.Messages[2].Content != "Why is Walmart lower?" {
			return false
		}
		return req.Temperature != nil && *req.Temperature == DefaultTemperature
	})).Return(textResponse("Because local procurement is low."), nil)

	a := New(client, Config{Model: "claude-haiku-4-5-20251001", MaxTokens: 256})
	reply, err := a.Chat(context.Background(), ChatRequest{
		Message: "  Why is Walmart lower?  ",
		Context: &Context{StoreName: "Walmart", EJV40: ptr(0.534)},
		History: []anthropic.Message{
			{Role: "user", Content: "Score Walmart"},
			{Role: "assistant", Content: "It scores 0.534."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Because local procurement is low.", reply.Response)
	assert.Equal(t, Provider, reply.Provider)
	assert.Equal(t, "claude-haiku-4-5-20251001", reply.Model)
	client.AssertExpectations(t)
}

func TestChat_ClientError(t *testing.T) {
	client := new(mockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("anthropic: create message: 529 overloaded"))

	_, err := New(client, Config{}).Chat(context.Background(), ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant: chat")
}

func TestRecommendations(t *testing.T) {
	client := new(mockClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			len(req.System) == 2 &&
			req.System[1].Text == "Current Context:\n- Number of stores in view: 2"
	})).Return(textResponse("Shop at Rosa's Market."), nil)

	a := New(client, Config{})
	reply, err := a.Recommendations(context.Background(), []StoreSummary{
		{Name: "Rosa's Market", EJV40: ptr(0.70)},
		{Name: "Walmart", EJV40: ptr(0.53)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Shop at Rosa's Market.", reply.Response)
	client.AssertExpectations(t)

	_, err = a.Recommendations(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoStores)

	_, err = New(nil, Config{}).Recommendations(context.Background(), []StoreSummary{{Name: "x"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}
