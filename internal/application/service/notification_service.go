package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/disbursement/internal/application/dispatcher"
	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/event"
)

// NotificationService tells approvers about work in their inbox and applicants about outcomes
type NotificationService interface {
	// Register subscribes the service to the workflow events it reacts to
	Register(d dispatcher.Dispatcher)

	NotifyApprovers(ctx context.Context, evt *event.Event) error
	NotifyApplicant(ctx context.Context, evt *event.Event) error

	// ListNotifications returns the user's most recent notifications
	ListNotifications(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error)
}

type notificationServiceImpl struct {
	requestRepo      port.RequestRepository
	userRepo         port.UserRepository
	notificationRepo port.NotificationRepository
	sender           port.MessageSender
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	requestRepo port.RequestRepository,
	userRepo port.UserRepository,
	notificationRepo port.NotificationRepository,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		requestRepo:      requestRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		sender:           sender,
		logger:           logger,
	}
}

// Register subscribes the service to the workflow events it reacts to
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeRequestSubmitted, "notify-approvers", s.NotifyApprovers)
	d.SubscribeNamed(event.TypeStatusChanged, "notify-approvers", s.NotifyApprovers)

	for _, t := range []event.Type{
		event.TypeRequestApproved,
		event.TypeRequestRejected,
		event.TypePaymentReleased,
		event.TypeAdvanceLiquidated,
	} {
		d.SubscribeNamed(t, "notify-applicant", s.NotifyApplicant)
	}
}

// NotifyApprovers messages every user holding a role the request now waits on
func (s *notificationServiceImpl) NotifyApprovers(ctx context.Context, evt *event.Event) error {
	roles := evt.GetPayloadStrings(event.KeyNextActionBy)
	if len(roles) == 0 {
		return nil
	}

	req, err := s.requestRepo.GetByID(ctx, evt.RequestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}

	msg := port.Message{
		RequestID: req.ID,
		Subject:   fmt.Sprintf("%s %s awaits your action", typeLabel(req.RequestType), req.ID),
		Body: fmt.Sprintf("%s submitted %s %s %s for %s. Status: %s.",
			req.EmployeeName, typeLabel(req.RequestType), req.Currency, req.Amount.StringFixed(2), req.Category, eventStatus(evt, req)),
	}

	var errs []error
	sent := 0
	for _, role := range roles {
		users, err := s.userRepo.ListByRole(ctx, entity.Role(role))
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s users: %w", role, err))
			continue
		}
		for _, u := range users {
			// Employees are only told about their own requests
			if u.Role == entity.RoleEmployee && u.ID != req.EmployeeID {
				continue
			}
			if err := s.sender.Send(ctx, u, msg); err != nil {
				errs = append(errs, fmt.Errorf("send to user %d: %w", u.ID, err))
				continue
			}
			sent++
		}
	}

	s.logger.Info("Approvers notified", "request_id", req.ID, "roles", strings.Join(roles, ","), "sent", sent)
	return errors.Join(errs...)
}

// NotifyApplicant tells the submitter about approvals, rejections, payments and liquidations
func (s *notificationServiceImpl) NotifyApplicant(ctx context.Context, evt *event.Event) error {
	requestID := evt.RequestID
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}

	applicant, err := s.userRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("get applicant: %w", err)
	}

	msg := port.Message{
		RequestID: req.ID,
		Subject:   fmt.Sprintf("%s %s: %s", typeLabel(req.RequestType), req.ID, outcome(evt.Type)),
		Body:      applicantBody(req, eventStatus(evt, req)),
	}

	if err := s.sender.Send(ctx, applicant, msg); err != nil {
		s.logger.Error("Failed to notify applicant", "error", err, "request_id", req.ID, "user_id", applicant.ID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Applicant notified", "request_id", req.ID, "user_id", applicant.ID, "event_type", evt.Type)
	return nil
}

// ListNotifications returns the user's most recent notifications
func (s *notificationServiceImpl) ListNotifications(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}

	notifications, err := s.notificationRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// eventStatus is the status the event moved the request to. The stored request may
// already be further along by the time the handler runs.
func eventStatus(evt *event.Event, req *entity.Request) entity.RequestStatus {
	if status := evt.GetPayloadString(event.KeyToStatus); status != "" {
		return entity.RequestStatus(status)
	}
	return req.Status
}

func applicantBody(req *entity.Request, status entity.RequestStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your %s %s of %s %s is now %s.",
		strings.ToLower(typeLabel(req.RequestType)), req.ID, req.Currency, req.Amount.StringFixed(2), status)

	if req.RemainingAmount != nil && req.RemainingAmount.IsNegative() {
		fmt.Fprintf(&b, " You are owed %s %s.", req.Currency, req.RemainingAmount.Neg().StringFixed(2))
	} else if req.RemainingAmount != nil && req.RemainingAmount.IsPositive() {
		fmt.Fprintf(&b, " Please return %s %s.", req.Currency, req.RemainingAmount.StringFixed(2))
	}
	return b.String()
}

func outcome(t event.Type) string {
	switch t {
	case event.TypeRequestApproved:
		return "approved"
	case event.TypeRequestRejected:
		return "rejected"
	case event.TypePaymentReleased:
		return "payment released"
	case event.TypeAdvanceLiquidated:
		return "liquidated"
	default:
		return string(t)
	}
}

func typeLabel(t entity.RequestType) string {
	switch t {
	case entity.RequestTypeReimbursement:
		return "Reimbursement"
	case entity.RequestTypeCashAdvance:
		return "Cash advance"
	case entity.RequestTypeLiquidation:
		return "Liquidation"
	default:
		return string(t)
	}
}
