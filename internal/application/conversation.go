package application

import "github.com/bnema/gptmeter/internal/domain"

const DefaultDirective = "You are a helpful assistant."

// BuildConversation assembles the turns sent upstream. prior is the text of
// this bot's earlier answer the user replied to, or empty.
func BuildConversation(current, prior, directive string) domain.Conversation {
	conversation := domain.Conversation{
		{Role: domain.RoleSystem, Content: directive},
	}

	if prior != "" {
		conversation = append(conversation, domain.Turn{Role: domain.RoleAssistant, Content: prior})
	}

	return append(conversation, domain.Turn{Role: domain.RoleUser, Content: current})
}

func ResolveDirective(account domain.AccountRecord, fallback string) string {
	if account.HasDirective() {
		return account.SystemDirective
	}
	if fallback == "" {
		return DefaultDirective
	}
	return fallback
}
