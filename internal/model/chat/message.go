package chat

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages live only as long as
// the owning session and are never persisted.
type Message struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	IsStreaming bool   `json:"isStreaming,omitempty"`
}

// TurnPayload is the wire shape a completion endpoint accepts.
type TurnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToPayload strips session-local fields for transport.
func ToPayload(messages []Message) []TurnPayload {
	out := make([]TurnPayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, TurnPayload{Role: string(m.Role), Content: m.Content})
	}
	return out
}
