package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrNoAddress is returned when the recipient has no usable email address
var ErrNoAddress = errors.New("recipient has no email address")

// Sender implements port.MessageSender by composing an email per notification
// and recording it in the outbox, where a relay picks it up.
type Sender struct {
	outbox port.NotificationRepository
	from   string
	logger *zap.Logger
}

// NewSender creates a new email sender
func NewSender(outbox port.NotificationRepository, from string, logger *zap.Logger) *Sender {
	return &Sender{
		outbox: outbox,
		from:   from,
		logger: logger,
	}
}

// Send records the message for recipient; a missing address is recorded as a failed notification
func (s *Sender) Send(ctx context.Context, recipient *entity.User, msg port.Message) error {
	n := &entity.Notification{
		UserID:    recipient.ID,
		RequestID: msg.RequestID,
		Subject:   msg.Subject,
		Body:      s.buildBody(recipient, msg),
		Status:    entity.NotificationStatusSent,
	}

	addr, err := mail.ParseAddress(recipient.Email)
	if err != nil {
		n.Status = entity.NotificationStatusFailed
		n.ErrorMessage = ErrNoAddress.Error()
		if cerr := s.outbox.Create(ctx, n); cerr != nil {
			s.logger.Error("Failed to record failed notification", zap.Error(cerr))
		}
		s.logger.Warn("Cannot email user",
			zap.Int64("user_id", recipient.ID),
			zap.String("email", recipient.Email))
		return fmt.Errorf("%w: user %d", ErrNoAddress, recipient.ID)
	}
	n.Recipient = (&mail.Address{Name: recipient.Name, Address: addr.Address}).String()

	if err := s.outbox.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	s.logger.Info("Email queued",
		zap.Int64("notification_id", n.ID),
		zap.String("from", s.from),
		zap.String("to", addr.Address),
		zap.String("request_id", msg.RequestID),
		zap.String("subject", msg.Subject))

	return nil
}

// buildBody builds the email body content
func (s *Sender) buildBody(recipient *entity.User, msg port.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(recipient.Name))
	b.WriteString(msg.Body)
	b.WriteString("\n\n")
	if msg.RequestID != "" {
		fmt.Fprintf(&b, "Request: %s\n", msg.RequestID)
	}
	b.WriteString("This message was sent by the disbursement workflow.\n")
	return b.String()
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}
