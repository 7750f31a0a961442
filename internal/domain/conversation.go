package domain

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is one message of the conversation sent upstream.
type Turn struct {
	Role    Role
	Content string
}

// Conversation is ephemeral and never persisted.
type Conversation []Turn

// Completion is the provider's answer to a conversation.
type Completion struct {
	Text  string
	Units int64
	Model string
}
