package port

import "context"

// MessageSender delivers chat notifications to a user
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}
