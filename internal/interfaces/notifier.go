package interfaces

import "context"

type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}
