package service

import (
	"context"
	"fmt"

	"github.com/garyjia/disbursement/internal/application/dispatcher"
	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/application/workflow"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/event"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	// DefaultPageLimit is used when a listing does not ask for a page size
	DefaultPageLimit = 20

	// MaxPageLimit caps the page size of a listing
	MaxPageLimit = 100
)

// StatusStat is the number and total amount of requests in one status
type StatusStat struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DashboardStats summarizes a user's own requests
type DashboardStats struct {
	TotalRequests   int                                 `json:"totalRequests"`
	PendingRequests int                                 `json:"pendingRequests"`
	ApprovedAmount  decimal.Decimal                     `json:"approvedAmount"`
	PaidAmount      decimal.Decimal                     `json:"paidAmount"`
	StatusBreakdown map[entity.RequestStatus]StatusStat `json:"statusBreakdown"`
}

// RequestDetail is a request with its timeline, oldest event first
type RequestDetail struct {
	Request  *entity.Request         `json:"request"`
	Timeline []*entity.TimelineEvent `json:"timeline"`
}

// RequestPage is one page of a filtered listing
type RequestPage struct {
	Requests   []*entity.Request `json:"requests"`
	TotalCount int               `json:"totalCount"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// QueryService answers read-side questions about requests on behalf of a user
type QueryService interface {
	Inbox(ctx context.Context, userID int64) ([]*entity.Request, error)
	RequestsFor(ctx context.Context, userID int64) ([]*entity.Request, error)
	DashboardStats(ctx context.Context, userID int64) (*DashboardStats, error)
	ListRequests(ctx context.Context, userID int64, filter entity.RequestFilter, page port.Page) (*RequestPage, error)
	GetRequest(ctx context.Context, userID int64, requestID string) (*RequestDetail, error)

	// DeleteRequest removes a request and its timeline. Only the CEO may delete.
	DeleteRequest(ctx context.Context, userID int64, requestID string) error
}

type queryServiceImpl struct {
	engine       workflow.Engine
	requestRepo  port.RequestRepository
	timelineRepo port.TimelineRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	engine workflow.Engine,
	requestRepo port.RequestRepository,
	timelineRepo port.TimelineRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	dispatcher dispatcher.Dispatcher,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		engine:       engine,
		requestRepo:  requestRepo,
		timelineRepo: timelineRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// Inbox returns the open requests waiting on the user's role
func (s *queryServiceImpl) Inbox(ctx context.Context, userID int64) ([]*entity.Request, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.engine.GetInbox(ctx, user.Role)
}

// RequestsFor returns the requests visible to the user
func (s *queryServiceImpl) RequestsFor(ctx context.Context, userID int64) ([]*entity.Request, error) {
	return s.engine.GetRequestsFor(ctx, userID)
}

// DashboardStats counts and sums the user's own requests by status
func (s *queryServiceImpl) DashboardStats(ctx context.Context, userID int64) (*DashboardStats, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	requests, _, err := s.requestRepo.List(ctx, entity.RequestFilter{EmployeeID: userID}, port.Page{})
	if err != nil {
		s.logger.Error("Failed to load dashboard requests", "error", err, "user_id", userID)
		return nil, fmt.Errorf("list requests: %w", err)
	}

	stats := &DashboardStats{
		ApprovedAmount:  decimal.Zero,
		PaidAmount:      decimal.Zero,
		StatusBreakdown: make(map[entity.RequestStatus]StatusStat),
	}

	for _, req := range requests {
		stats.TotalRequests++
		if !req.Status.IsTerminal() {
			stats.PendingRequests++
		}

		switch req.Status {
		case entity.StatusApproved:
			stats.ApprovedAmount = stats.ApprovedAmount.Add(req.Amount)
		case entity.StatusPaid:
			stats.PaidAmount = stats.PaidAmount.Add(req.Amount)
		}

		stat := stats.StatusBreakdown[req.Status]
		stat.Count++
		stat.Amount = stat.Amount.Add(req.Amount)
		stats.StatusBreakdown[req.Status] = stat
	}

	return stats, nil
}

// ListRequests returns one page of a filtered listing. Employees only ever see their own requests.
func (s *queryServiceImpl) ListRequests(ctx context.Context, userID int64, filter entity.RequestFilter, page port.Page) (*RequestPage, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if !user.Role.IsPrivileged() {
		filter.EmployeeID = user.ID
	}

	page = normalizePage(page)

	requests, total, err := s.requestRepo.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("Failed to list requests", "error", err, "user_id", userID)
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if requests == nil {
		requests = []*entity.Request{}
	}

	return &RequestPage{
		Requests:   requests,
		TotalCount: total,
		Page:       page.Page,
		Limit:      page.Limit,
	}, nil
}

// GetRequest returns a request and its timeline if the user may see it
func (s *queryServiceImpl) GetRequest(ctx context.Context, userID int64, requestID string) (*RequestDetail, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsPrivileged() && req.EmployeeID != user.ID {
		return nil, fmt.Errorf("%w: request %s belongs to another employee", domainwf.ErrUnauthorized, requestID)
	}

	timeline, err := s.timelineRepo.ListByRequestID(ctx, requestID)
	if err != nil {
		s.logger.Error("Failed to load timeline", "error", err, "request_id", requestID)
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	if timeline == nil {
		timeline = []*entity.TimelineEvent{}
	}

	return &RequestDetail{Request: req, Timeline: timeline}, nil
}

// DeleteRequest removes a request outside the workflow; the timeline goes with it
func (s *queryServiceImpl) DeleteRequest(ctx context.Context, userID int64, requestID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role != entity.RoleCEO {
		return fmt.Errorf("%w: only the CEO may delete requests", domainwf.ErrUnauthorized)
	}

	var deleted *entity.Request
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.requestRepo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if err := s.requestRepo.Delete(txCtx, requestID); err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		deleted = req
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete request", "error", err, "request_id", requestID)
		return err
	}

	s.logger.Info("Request deleted", "request_id", requestID, "deleted_by", userID, "status", deleted.Status)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeRequestDeleted, requestID, map[string]interface{}{
			event.KeyActorID:     userID,
			event.KeyActorRole:   string(user.Role),
			event.KeyFromStatus:  string(deleted.Status),
			event.KeyRequestType: string(deleted.RequestType),
			event.KeyAmount:      deleted.Amount.String(),
		}, event.CorrelationIDFrom(ctx)))
	}

	return nil
}

func validateFilter(filter entity.RequestFilter) error {
	verr := &domainwf.ValidationError{}
	if filter.Status != "" && !filter.Status.IsValid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.RequestType != "" && !filter.RequestType.IsValid() {
		verr.Add("requestType", fmt.Sprintf("unknown request type %q", filter.RequestType))
	}
	if filter.ActionBy != "" && !filter.ActionBy.IsValid() {
		verr.Add("actionBy", fmt.Sprintf("unknown role %q", filter.ActionBy))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func normalizePage(page port.Page) port.Page {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = DefaultPageLimit
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	return page
}
