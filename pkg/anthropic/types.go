package anthropic

import "strings"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageRequest is a single Messages API call.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	System    []SystemBlock
	Messages  []Message
	// Temperature is left to the API default when nil.
	Temperature *float64
}

// SystemBlock is one part of the system prompt.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a block for prompt caching. TTL is "5m" or "1h".
type CacheControl struct {
	TTL string
}

// Message is one conversation turn. Roles other than RoleAssistant are sent
// as RoleUser.
type Message struct {
	Role    string
	Content string
}

// MessageResponse is the model's reply.
type MessageResponse struct {
	ID         string
	Model      string
	StopReason string
	Content    []ContentBlock
	Usage      TokenUsage
}

// ContentBlock is one block of a reply. Only text blocks carry Text.
type ContentBlock struct {
	Type string
	Text string
}

// Text joins the non-empty text blocks with newlines.
func (r *MessageResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type != "text" || c.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
