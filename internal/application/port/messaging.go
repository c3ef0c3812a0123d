package port

import (
	"context"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// Message is a notification addressed to one user
type Message struct {
	RequestID string
	Subject   string
	Body      string
}

// MessageSender delivers notifications to users
type MessageSender interface {
	Send(ctx context.Context, recipient *entity.User, msg Message) error
}

// NotificationRepository is the outbox of sent and failed notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error

	// ListByUser returns the user's notifications, newest first
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error)
}
