package port

import (
	"context"
	"errors"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// ErrStaleRequest is returned by RequestRepository.Update when the stored
// version no longer matches the version the caller loaded
var ErrStaleRequest = errors.New("request was modified concurrently")

// ErrDuplicateEmail is returned by UserRepository writes that would give two users one email
var ErrDuplicateEmail = errors.New("email already in use")

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// RequestRepository defines persistence operations for disbursement requests
type RequestRepository interface {
	// NextID reserves the next sequential request id, e.g. REQ001
	NextID(ctx context.Context) (string, error)

	// Create stores a new request at version 1
	Create(ctx context.Context, req *entity.Request) error

	// GetByID returns workflow.ErrNotFound when the id is unknown
	GetByID(ctx context.Context, id string) (*entity.Request, error)

	// Update writes req if the stored version equals req.Version, then bumps req.Version.
	// It returns ErrStaleRequest otherwise.
	Update(ctx context.Context, req *entity.Request) error

	// List returns requests matching filter, newest first, and the total match count
	List(ctx context.Context, filter entity.RequestFilter, page Page) ([]*entity.Request, int, error)

	// Delete removes a request and its timeline
	Delete(ctx context.Context, id string) error
}

// TimelineRepository is the append-only audit log
type TimelineRepository interface {
	Append(ctx context.Context, evt *entity.TimelineEvent) error

	// ListByRequestID returns the request's events oldest first
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.TimelineEvent, error)
}

// UserRepository is the user directory
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)

	// Create assigns user.ID and the timestamps
	Create(ctx context.Context, user *entity.User) error

	// Update overwrites name, email, role and department and refreshes UpdatedAt
	Update(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
