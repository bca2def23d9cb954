package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler,
// the conversation controller and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsConversational reports whether the role may appear in a client transcript.
func (m ChatMessage) IsConversational() bool {
	return m.Role == RoleUser || m.Role == RoleAssistant
}
