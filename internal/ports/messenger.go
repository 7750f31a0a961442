package ports

import "context"

type Messenger interface {
	SendToChat(ctx context.Context, chatID int64, text string) error
	NotifyAdmin(ctx context.Context, text string) error
}
