package services

import (
	"context"

	"skillswap_server/models"
)

// MessageNotifier pushes appended messages to live clients. Delivery is best effort: the message
// is already durable when Notify is called, so failures are only logged.
type MessageNotifier interface {
	NotifyMessage(ctx context.Context, msg models.Message) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyMessage(context.Context, models.Message) error { return nil }
