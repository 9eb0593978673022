package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of an assembled completion context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest carries the full context for a single completion call. System
// entries stay inline in Messages; each provider lifts them as it needs.
type LLMRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is a provider adapter. Errors are classified into ErrTransport,
// ErrUpstream or ErrMalformedResponse.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// userFirst turns assistant entries that precede the first user entry into
// system entries. Bedrock and Gemini reject a conversation that opens with
// the model speaking, and every session opens with the greeting.
func userFirst(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	seenUser := false
	for _, msg := range msgs {
		switch {
		case msg.Role == ChatRoleUser:
			seenUser = true
		case msg.Role == ChatRoleAssistant && !seenUser:
			msg = ChatMessage{
				Role:    ChatRoleSystem,
				Content: "You already said this to the patient:\n" + msg.Content,
			}
		}
		out = append(out, msg)
	}
	return out
}
