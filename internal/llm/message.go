package llm

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-attributed utterance sent to a completion service.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered message sequence submitted in one request.
// Order is significant. The completion services interpret a leading system
// message as behavioral framing for everything that follows it.
type Conversation []Message

// NewConversation builds the request payload for a single question:
// an optional system instruction at position 0 followed by the user
// question. An empty instruction yields a single-message conversation.
func NewConversation(question, systemInstruction string) Conversation {
	conv := make(Conversation, 0, 2)
	if systemInstruction != "" {
		conv = append(conv, Message{Role: RoleSystem, Content: systemInstruction})
	}
	conv = append(conv, Message{Role: RoleUser, Content: question})
	return conv
}

// Validate checks the shape constraints on an outbound conversation:
// non-empty, known roles, non-blank content, at most one system message
// and only at position 0, and a user message in final position.
func (c Conversation) Validate() error {
	if len(c) == 0 {
		return NewInvalidRequestError("Conversation.Validate", ErrEmptyConversation)
	}
	for i, msg := range c {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return NewInvalidRequestError("Conversation.Validate", &UnknownRoleError{Role: msg.Role})
		}
		if strings.TrimSpace(msg.Content) == "" {
			return NewInvalidRequestError("Conversation.Validate", ErrEmptyMessage)
		}
		if msg.Role == RoleSystem && i != 0 {
			return NewInvalidRequestError("Conversation.Validate", ErrMisplacedSystem)
		}
	}
	if c[len(c)-1].Role != RoleUser {
		return NewInvalidRequestError("Conversation.Validate", ErrNoUserMessage)
	}
	return nil
}

// SystemInstruction returns the leading system message content, if any.
func (c Conversation) SystemInstruction() (string, bool) {
	if len(c) > 0 && c[0].Role == RoleSystem {
		return c[0].Content, true
	}
	return "", false
}

// WithoutSystem returns the conversation minus a leading system message.
// Some services carry the instruction out of band instead of in the
// message list.
func (c Conversation) WithoutSystem() Conversation {
	if len(c) > 0 && c[0].Role == RoleSystem {
		return c[1:]
	}
	return c
}
