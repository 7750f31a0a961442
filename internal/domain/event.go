package domain

// InboundEvent is one user message delivered by the messaging transport.
type InboundEvent struct {
	SenderID          Identity
	SenderDisplayName string
	SenderHandle      string

	Text string
	// Command is set (without the leading slash) when Text is a bot command.
	Command     string
	CommandArgs string

	// IsReplyToBot is true when the message replies to one this service sent.
	IsReplyToBot     bool
	PriorMessageText string
	// IsReplyToOther is true when the message replies to somebody else's message.
	IsReplyToOther bool

	ChatID        int64
	ChatIsPrivate bool
	ChatTitle     string
}
