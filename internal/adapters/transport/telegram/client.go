package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

// MaxMessageLength is the Telegram limit for one text message, in characters.
const MaxMessageLength = 4096

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 60

// API is the subset of the Bot API client this package uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler receives every inbound message converted to a domain event.
type Handler func(ctx context.Context, event domain.InboundEvent)

// Client delivers replies and receives updates over the Telegram Bot API.
type Client struct {
	api         API
	botID       int64
	username    string
	admin       domain.Identity
	pollTimeout int
}

var _ ports.Messenger = (*Client)(nil)

type Option func(*Client)

func WithPollTimeout(seconds int) Option {
	return func(c *Client) {
		if seconds > 0 {
			c.pollTimeout = seconds
		}
	}
}

// Dial authenticates the token against the Bot API and returns a ready client.
func Dial(token string, admin domain.Identity, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	client := NewClient(api, api.Self.ID, admin, opts...)
	client.username = api.Self.UserName
	return client, nil
}

func NewClient(api API, botID int64, admin domain.Identity, opts ...Option) *Client {
	c := &Client{
		api:         api,
		botID:       botID,
		admin:       admin,
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username is the bot's own handle, known once Dial has authenticated.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) SendToChat(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send message to chat %d: %w", chatID, err)
		}
	}
	return nil
}

func (c *Client) NotifyAdmin(ctx context.Context, text string) error {
	return c.SendToChat(ctx, int64(c.admin), text)
}

// Run long-polls for updates and hands each message to handler until ctx is
// canceled. Messages are handled one at a time, in arrival order.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout

	updates := c.api.GetUpdatesChan(cfg)
	defer c.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			event, ok := toEvent(update.Message, c.botID)
			if !ok {
				continue
			}
			handler(ctx, event)
		}
	}
}

// toEvent converts a text message; anything else (edits, stickers, service
// messages) is reported as not ok.
func toEvent(msg *tgbotapi.Message, botID int64) (domain.InboundEvent, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return domain.InboundEvent{}, false
	}

	event := domain.InboundEvent{
		SenderID:          domain.Identity(msg.From.ID),
		SenderDisplayName: displayName(msg.From),
		SenderHandle:      msg.From.UserName,
		Text:              msg.Text,
		ChatID:            msg.Chat.ID,
		ChatIsPrivate:     msg.Chat.IsPrivate(),
		ChatTitle:         msg.Chat.Title,
	}

	if msg.IsCommand() {
		event.Command = strings.ToLower(msg.Command())
		event.CommandArgs = strings.TrimSpace(msg.CommandArguments())
	}

	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		if reply.From.ID == botID {
			event.IsReplyToBot = true
			event.PriorMessageText = reply.Text
		} else {
			event.IsReplyToOther = true
		}
	}

	return event, true
}

func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.UserName
	}
	return name
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
