// Package assistant answers questions about EJV results using Claude. The
// score context supplied by the caller is embedded in the system prompt.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/pkg/anthropic"
)

// Provider is reported in replies so clients can label the answer.
const Provider = "claude"

// Defaults applied when Config leaves a field zero.
const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

var (
	// ErrUnavailable is returned when no API key is configured.
	ErrUnavailable = eris.New("assistant: no AI provider configured")
	// ErrEmptyMessage is returned for a chat request without a message.
	ErrEmptyMessage = eris.New("assistant: message is required")
	// ErrNoStores is returned for a recommendation request without stores.
	ErrNoStores = eris.New("assistant: no store data provided")
)

// Config controls the model call.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Assistant wraps an Anthropic client. A nil client makes every call fail
// with ErrUnavailable.
type Assistant struct {
	client anthropic.Client
	cfg    Config
}

// New creates an Assistant.
func New(client anthropic.Client, cfg Config) *Assistant {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Assistant{client: client, cfg: cfg}
}

// Available reports whether a client is configured.
func (a *Assistant) Available() bool {
	return a != nil && a.client != nil
}

// Model returns the configured model ID.
func (a *Assistant) Model() string {
	return a.cfg.Model
}

// StoreSummary is one store as the map view shows it.
type StoreSummary struct {
	Name             string   `json:"name"`
	EJV40            *float64 `json:"ejv40,omitempty"`
	EJV41            *float64 `json:"ejv41,omitempty"`
	LocalCirculation *float64 `json:"localCirculation,omitempty"`
	WealthRetention  *float64 `json:"wealthRetention,omitempty"`
}

// Context is the application state the user is looking at.
type Context struct {
	StoreName string         `json:"storeName,omitempty"`
	EJV40     *float64       `json:"ejv40,omitempty"`
	EJV41     *float64       `json:"ejv41,omitempty"`
	Location  string         `json:"location,omitempty"`
	Stores    []StoreSummary `json:"stores,omitempty"`
}

// ChatRequest is one user turn with optional prior conversation.
type ChatRequest struct {
	Message string              `json:"message"`
	Context *Context            `json:"context,omitempty"`
	History []anthropic.Message `json:"-"`
}

// Reply is the assistant's answer.
type Reply struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Chat answers a question in the light of the supplied context.
func (a *Assistant) Chat(ctx context.Context, req ChatRequest) (*Reply, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}
	if !a.Available() {
		return nil, ErrUnavailable
	}

	messages := make([]anthropic.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: msg})

	return a.complete(ctx, "chat", req.Context, messages)
}

// Recommendations asks for a short comparison of the given stores.
func (a *Assistant) Recommendations(ctx context.Context, stores []StoreSummary) (*Reply, error) {
	if !a.Available() {
		return nil, ErrUnavailable
	}
	if len(stores) == 0 {
		return nil, ErrNoStores
	}

	prompt := fmt.Sprintf(`Analyze these %d stores and provide recommendations:
%s
Provide:
1. Best store for economic justice (highest EJV)
2. Store with most local impact
3. A brief explanation of the key differences

Keep response concise (3-4 sentences).`, len(stores), SummarizeStores(stores))

	return a.complete(ctx, "recommendations", &Context{Stores: stores}, []anthropic.Message{
		{Role: anthropic.RoleUser, Content: prompt},
	})
}

func (a *Assistant) complete(ctx context.Context, route string, c *Context, messages []anthropic.Message) (*Reply, error) {
	temp := a.cfg.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.CachedSystemBlocks(basePrompt, ContextPrompt(c)),
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "assistant: %s", route)
	}
	resp.Usage.LogCost(a.cfg.Model, route)

	text := resp.Text()
	if text == "" {
		zap.L().Warn("assistant: empty response",
			zap.String("route", route),
			zap.String("stop_reason", resp.StopReason),
		)
	}
	return &Reply{Response: text, Provider: Provider, Model: a.cfg.Model}, nil
}
