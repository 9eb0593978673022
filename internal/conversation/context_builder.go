package conversation

import "fmt"

// ContextBuilder assembles the messages sent for one assistant turn.
type ContextBuilder struct {
	Instructions string
}

// NewContextBuilder renders the instructions once.
func NewContextBuilder(cfg PromptConfig) ContextBuilder {
	return ContextBuilder{Instructions: Instructions(cfg)}
}

// Build returns instructions, then the identity block when p is set, then
// history in submission order, then input. Nothing is deduplicated.
func (b ContextBuilder) Build(p *Participant, history []Turn, input string) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+3)
	out = append(out, ChatMessage{Role: ChatRoleSystem, Content: b.Instructions})
	if block := identityBlock(p); block != "" {
		out = append(out, ChatMessage{Role: ChatRoleSystem, Content: block})
	}
	for _, turn := range history {
		role := ChatRoleUser
		if turn.Role == RoleAssistant {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: turn.Content})
	}
	return append(out, ChatMessage{Role: ChatRoleUser, Content: input})
}

func identityBlock(p *Participant) string {
	if p == nil {
		return ""
	}
	if p.Name == "" {
		return "The patient in this conversation was identified by the portal."
	}
	return fmt.Sprintf("The patient in this conversation was identified by the portal as %s. Address them by name when appropriate.", p.Name)
}
