package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/logger"
)

const (
	textBotStarted = "Bot started"
	textBotStopped = "Bot stopped"
	textNewUser    = "New user: %s"

	textAlreadyRegistered = "Ready to work 💪"
	textNotRegistered     = "You are not registered. Send /start"
	textBalance           = "Your balance: %d units"
	textStats             = "Requests: %d\nUnits consumed: %d\nLast request: %s"
	textNever             = "never"

	textDirectiveSet     = "Directive set: %s"
	textCurrentDirective = "Current directive: %s\n\n"
	textDirectiveReset   = "The system directive was reset to the default"
	textDirectiveDefault = "You already use the default directive!"

	textStopping      = "Stopping the bot..."
	textAdminOnlyStop = "Only the admin can stop the bot"
	textAdminOnly     = "Only the admin can use this command"
	textCreditUsage   = "Usage: /credit <id> <units>"
	textCreditUnknown = "Account %s not found"
	textCredited      = "Balance of %s is now %d units"

	textQuotaExhausted = "You have run out of units. Top up your balance"
	textRateLimited    = "The request limit was exceeded. Please try again later"
	textTimeout        = "The provider took too long to answer. Please try again later"
	textUpstreamFailed = "The provider could not answer. Please try again later"
	textInternalError  = "Something went wrong while processing your request"
	textAdminFailure   = "Request from %s in chat %d failed: %v"
)

const textWelcome = "%s, welcome aboard 🤝\n\n" +
	"%d units have been credited to your balance 🤑\n\n" +
	"Useful commands:\n" +
	"/help - list of commands\n" +
	"/balance - unit balance\n" +
	"/stats - request statistics\n" +
	"/prompt - set a system directive\n"

const textHelp = "Available commands:\n\n" +
	"/start - register\n" +
	"/help - list of commands (you are here)\n\n" +
	"/balance - unit balance\n" +
	"/stats - request statistics\n\n" +
	"/prompt - set your own system directive\n" +
	"/reset_prompt - restore the default directive\n"

const textDirectiveHelp = "A system directive is an instruction sent along with every request " +
	"to give the answers a particular behaviour and style.\n\n" +
	"To set one, send /prompt followed by the text in a single message, for example:\n\n" +
	"/prompt You are YodaGPT, a model that answers every request in the style of Yoda from Star Wars"

func (b *Bot) handleStart(ctx context.Context, event domain.InboundEvent) error {
	account, created, err := b.ensure(ctx, event)
	if err != nil {
		return err
	}

	if !created {
		return b.reply(ctx, event, textAlreadyRegistered)
	}

	return b.reply(ctx, event, fmt.Sprintf(textWelcome, displayNameOr(event), account.Balance))
}

func (b *Bot) handleHelp(ctx context.Context, event domain.InboundEvent) error {
	return b.reply(ctx, event, textHelp)
}

func (b *Bot) handleBalance(ctx context.Context, event domain.InboundEvent) error {
	account, ok, err := b.registered(ctx, event)
	if !ok || err != nil {
		return err
	}

	return b.reply(ctx, event, fmt.Sprintf(textBalance, account.Balance))
}

func (b *Bot) handleStats(ctx context.Context, event domain.InboundEvent) error {
	account, ok, err := b.registered(ctx, event)
	if !ok || err != nil {
		return err
	}

	last := textNever
	if !account.LastActivity.IsZero() {
		last = account.LastActivity.Format(domain.TimestampLayout)
	}

	return b.reply(ctx, event, fmt.Sprintf(textStats, account.RequestCount, account.UnitsConsumed, last))
}

func (b *Bot) handlePrompt(ctx context.Context, event domain.InboundEvent) error {
	account, ok, err := b.registered(ctx, event)
	if !ok || err != nil {
		return err
	}

	directive := strings.TrimSpace(event.CommandArgs)
	if directive == "" {
		answer := textDirectiveHelp
		if account.HasDirective() {
			answer = fmt.Sprintf(textCurrentDirective, account.SystemDirective) + answer
		}
		return b.reply(ctx, event, answer)
	}

	if _, err := b.registry.SetDirective(ctx, event.SenderID, directive); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("directive set")

	return b.reply(ctx, event, fmt.Sprintf(textDirectiveSet, directive))
}

func (b *Bot) handleResetPrompt(ctx context.Context, event domain.InboundEvent) error {
	account, ok, err := b.registered(ctx, event)
	if !ok || err != nil {
		return err
	}

	if !account.HasDirective() {
		return b.reply(ctx, event, textDirectiveDefault)
	}

	if _, err := b.registry.SetDirective(ctx, event.SenderID, ""); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("directive reset")

	return b.reply(ctx, event, textDirectiveReset)
}

func (b *Bot) handleStop(ctx context.Context, event domain.InboundEvent) error {
	if !b.registry.IsPrivileged(event.SenderID) {
		return b.reply(ctx, event, textAdminOnlyStop)
	}

	if err := b.reply(ctx, event, textStopping); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("stop requested by admin")
	b.stop()

	return nil
}

func (b *Bot) handleCredit(ctx context.Context, event domain.InboundEvent) error {
	if !b.registry.IsPrivileged(event.SenderID) {
		return b.reply(ctx, event, textAdminOnly)
	}

	id, delta, ok := parseCreditArgs(event.CommandArgs)
	if !ok {
		return b.reply(ctx, event, textCreditUsage)
	}

	account, err := b.registry.Credit(ctx, id, delta)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return b.reply(ctx, event, fmt.Sprintf(textCreditUnknown, id))
	}
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("balance adjusted")

	return b.reply(ctx, event, fmt.Sprintf(textCredited, id, account.Balance))
}

// registered fetches the sender's account. When the sender is unknown it asks
// them to register and reports ok=false; reads never create accounts.
func (b *Bot) registered(ctx context.Context, event domain.InboundEvent) (domain.AccountRecord, bool, error) {
	account, err := b.registry.Get(event.SenderID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.AccountRecord{}, false, b.reply(ctx, event, textNotRegistered)
	}
	if err != nil {
		return domain.AccountRecord{}, false, err
	}

	return account, true, nil
}

func parseCreditArgs(raw string) (domain.Identity, int64, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, 0, false
	}

	id, err := domain.ParseIdentity(fields[0])
	if err != nil {
		return 0, 0, false
	}

	delta, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || delta == 0 {
		return 0, 0, false
	}

	return id, delta, true
}

func displayNameOr(event domain.InboundEvent) string {
	if event.SenderDisplayName != "" {
		return event.SenderDisplayName
	}
	return event.SenderID.String()
}
