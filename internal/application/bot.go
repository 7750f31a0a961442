package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/logger"
	"github.com/bnema/gptmeter/internal/metrics"
	"github.com/bnema/gptmeter/internal/ports"
)

// Event kinds recorded in metrics.EventsTotal.
const (
	eventCommand = "command"
	eventMessage = "message"
	eventIgnored = "ignored"
	eventDenied  = "denied"
	eventFailed  = "failed"
)

type commandHandler func(ctx context.Context, event domain.InboundEvent) error

// Bot routes inbound transport events through the metering pipeline: ensure
// the account, gate on quota, dispatch upstream, account usage, reply.
type Bot struct {
	registry   *Registry
	quota      *QuotaEnforcer
	dispatcher *Dispatcher
	accountant *UsageAccountant
	messenger  ports.Messenger
	logger     *zap.Logger
	directive  string
	stop       func()
	commands   map[string]commandHandler
}

type BotOption func(*Bot)

func WithBotLogger(l *zap.Logger) BotOption {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithDefaultDirective(directive string) BotOption {
	return func(b *Bot) {
		if directive != "" {
			b.directive = directive
		}
	}
}

// WithStopFunc sets what the admin /stop command triggers.
func WithStopFunc(stop func()) BotOption {
	return func(b *Bot) {
		b.stop = stop
	}
}

func NewBot(
	registry *Registry,
	quota *QuotaEnforcer,
	dispatcher *Dispatcher,
	accountant *UsageAccountant,
	messenger ports.Messenger,
	opts ...BotOption,
) *Bot {
	b := &Bot{
		registry:   registry,
		quota:      quota,
		dispatcher: dispatcher,
		accountant: accountant,
		messenger:  messenger,
		logger:     zap.NewNop(),
		directive:  DefaultDirective,
		stop:       func() {},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.commands = map[string]commandHandler{
		"start":        b.handleStart,
		"help":         b.handleHelp,
		"balance":      b.handleBalance,
		"stats":        b.handleStats,
		"prompt":       b.handlePrompt,
		"reset_prompt": b.handleResetPrompt,
		"stop":         b.handleStop,
		"credit":       b.handleCredit,
	}

	return b
}

// HandleEvent processes one event. Failures never escape: the sender gets one
// message and the admin gets a diagnostic.
func (b *Bot) HandleEvent(ctx context.Context, event domain.InboundEvent) {
	log := b.logger.With(
		zap.String("event_id", uuid.NewString()),
		zap.Int64("sender", int64(event.SenderID)),
		zap.Int64("chat", event.ChatID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	var err error
	if handler, ok := b.commands[event.Command]; ok && event.Command != "" {
		metrics.EventsTotal.WithLabelValues(eventCommand).Inc()
		log.Debug("command", zap.String("command", event.Command))
		err = handler(ctx, event)
	} else {
		err = b.handleMessage(ctx, event)
	}

	if err != nil {
		b.fail(ctx, event, err)
	}
}

func (b *Bot) NotifyStarted(ctx context.Context) error {
	return b.messenger.NotifyAdmin(ctx, textBotStarted)
}

func (b *Bot) NotifyStopped(ctx context.Context) error {
	return b.messenger.NotifyAdmin(ctx, textBotStopped)
}

func (b *Bot) handleMessage(ctx context.Context, event domain.InboundEvent) error {
	log := logger.FromContext(ctx)

	if event.IsReplyToOther {
		metrics.EventsTotal.WithLabelValues(eventIgnored).Inc()
		log.Debug("reply to another user, skipping")
		return nil
	}
	if strings.TrimSpace(event.Text) == "" {
		metrics.EventsTotal.WithLabelValues(eventIgnored).Inc()
		log.Debug("event without text, skipping")
		return nil
	}

	account, _, err := b.ensure(ctx, event)
	if err != nil {
		return err
	}

	decision, err := b.quota.Authorize(event.SenderID)
	if err != nil {
		return fmt.Errorf("authorize request: %w", err)
	}
	if !decision.Allowed {
		metrics.EventsTotal.WithLabelValues(eventDenied).Inc()
		log.Info("request denied", zap.String("reason", decision.Reason), zap.Int64("balance", account.Balance))
		return b.reply(ctx, event, textQuotaExhausted)
	}

	metrics.EventsTotal.WithLabelValues(eventMessage).Inc()

	prior := ""
	if event.IsReplyToBot {
		prior = event.PriorMessageText
	}
	conversation := BuildConversation(event.Text, prior, ResolveDirective(account, b.directive))

	completion, err := b.dispatcher.Dispatch(ctx, conversation)
	if err != nil {
		return err
	}

	report, err := b.accountant.Account(ctx, event.SenderID, completion)
	if err != nil {
		return err
	}

	if err := b.reply(ctx, event, completion.Text+usageFooter(report)); err != nil {
		return err
	}

	adminLog := b.adminUsageLog(event, report)
	log.Info("request served",
		zap.Int64("units", report.Units),
		zap.Float64("cost_cents", report.Cost),
		zap.Int64("balance", report.Account.Balance),
		zap.Int64("session_requests", report.SessionRequests),
		zap.Int64("session_units", report.SessionUnits),
	)

	if event.ChatID != int64(b.registry.Privileged()) {
		if err := b.messenger.NotifyAdmin(ctx, adminLog); err != nil {
			log.Warn("notify admin about usage", zap.Error(err))
		}
	}

	return nil
}

// ensure registers the sender on first contact and tells the admin about it.
func (b *Bot) ensure(ctx context.Context, event domain.InboundEvent) (domain.AccountRecord, bool, error) {
	account, created, err := b.registry.Ensure(ctx, event.SenderID, event.SenderDisplayName, event.SenderHandle)
	if err != nil {
		return domain.AccountRecord{}, false, err
	}

	if created {
		metrics.AccountsRegisteredTotal.Inc()
		logger.FromContext(ctx).Info("new account", zap.String("user", senderLabel(event)))
		if err := b.messenger.NotifyAdmin(ctx, fmt.Sprintf(textNewUser, senderLabel(event))); err != nil {
			logger.FromContext(ctx).Warn("notify admin about new account", zap.Error(err))
		}
	}

	return account, created, nil
}

func (b *Bot) reply(ctx context.Context, event domain.InboundEvent, text string) error {
	if err := b.messenger.SendToChat(ctx, event.ChatID, text); err != nil {
		return fmt.Errorf("send reply to chat %d: %w", event.ChatID, err)
	}
	return nil
}

func (b *Bot) fail(ctx context.Context, event domain.InboundEvent, err error) {
	log := logger.FromContext(ctx)
	metrics.EventsTotal.WithLabelValues(eventFailed).Inc()
	log.Error("event failed", zap.Error(err))

	if sendErr := b.messenger.SendToChat(ctx, event.ChatID, userFacingError(err)); sendErr != nil {
		log.Warn("send failure notice", zap.Error(sendErr))
	}

	diagnostic := fmt.Sprintf(textAdminFailure, senderLabel(event), event.ChatID, err)
	if notifyErr := b.messenger.NotifyAdmin(ctx, diagnostic); notifyErr != nil {
		log.Warn("notify admin about failure", zap.Error(notifyErr))
	}
}

func userFacingError(err error) string {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		switch dispatchErr.Kind {
		case DispatchRateLimited:
			return textRateLimited
		case DispatchTimeout:
			return textTimeout
		default:
			return textUpstreamFailed
		}
	}

	return textInternalError
}

func usageFooter(report domain.UsageReport) string {
	return fmt.Sprintf("\n\n\nUnits: %d for %s", report.Units, domain.FormatCents(report.Cost))
}

func (b *Bot) adminUsageLog(event domain.InboundEvent, report domain.UsageReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request %d: %d for %s\n", report.SessionRequests, report.Units, domain.FormatCents(report.Cost))
	fmt.Fprintf(&sb, "Session: %d for %s\n", report.SessionUnits, domain.FormatCents(report.SessionCost))
	fmt.Fprintf(&sb, "User: %s\n", senderLabel(event))
	fmt.Fprintf(&sb, "Chat: %s %d\n", chatLabel(event), event.ChatID)
	fmt.Fprintf(&sb, "Total: %d requests, %d units for %s",
		report.Aggregate.TotalRequests,
		report.Aggregate.TotalUnits,
		domain.FormatCents(b.accountant.Cost(report.Aggregate.TotalUnits)),
	)
	return sb.String()
}

func senderLabel(event domain.InboundEvent) string {
	parts := make([]string, 0, 3)
	if event.SenderDisplayName != "" {
		parts = append(parts, event.SenderDisplayName)
	}
	if event.SenderHandle != "" {
		parts = append(parts, "@"+event.SenderHandle)
	}
	parts = append(parts, event.SenderID.String())
	return strings.Join(parts, " ")
}

func chatLabel(event domain.InboundEvent) string {
	if event.ChatTitle != "" {
		return event.ChatTitle
	}
	if event.ChatIsPrivate {
		return "private"
	}
	return "group"
}
