package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/workflow"
)

// Outbox is an in-process notification log
type Outbox struct {
	mu            sync.RWMutex
	notifications []*entity.Notification
	users         func(id int64) bool
}

// Outbox returns a notification log that only accepts users known to the store
func (s *Store) Outbox() *Outbox {
	return &Outbox{users: func(id int64) bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.users[id]
		return ok
	}}
}

// Create appends a notification and assigns its id
func (o *Outbox) Create(ctx context.Context, n *entity.Notification) error {
	if o.users != nil && !o.users(n.UserID) {
		return fmt.Errorf("%w: user %d", workflow.ErrNotFound, n.UserID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.ID = int64(len(o.notifications) + 1)
	c := *n
	o.notifications = append(o.notifications, &c)
	return nil
}

// ListByUser returns the user's notifications, newest first
func (o *Outbox) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := []*entity.Notification{}
	for i := len(o.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if n := o.notifications[i]; n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}
