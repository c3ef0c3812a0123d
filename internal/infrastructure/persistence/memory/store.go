// Package memory is an in-process implementation of the persistence ports,
// used for tests and for running the service without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/workflow"
)

type contextKey string

const txKey contextKey = "memory-tx"

// journal records how to undo the writes made inside one transaction
type journal struct {
	undo []func()
}

// Store keeps requests, timelines and users in maps guarded by one mutex.
// Values are cloned on the way in and out.
type Store struct {
	mu       sync.RWMutex
	idPrefix string
	seq      int
	requests map[string]*entity.Request
	order    map[string]int
	timeline map[string][]*entity.TimelineEvent
	users    map[int64]*entity.User
	inserted int
}

// NewStore creates an empty store seeded with users
func NewStore(idPrefix string, users ...*entity.User) *Store {
	s := &Store{
		idPrefix: idPrefix,
		requests: make(map[string]*entity.Request),
		order:    make(map[string]int),
		timeline: make(map[string][]*entity.TimelineEvent),
		users:    make(map[int64]*entity.User),
	}
	for _, u := range users {
		c := *u
		s.users[u.ID] = &c
	}
	return s
}

// WithTransaction runs fn and reverts every write it made if it returns an error
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	txCtx := context.WithValue(ctx, txKey, j)

	defer func() {
		if p := recover(); p != nil {
			s.rollback(j)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		s.rollback(j)
		return err
	}
	return nil
}

func (s *Store) rollback(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// record must be called with s.mu held
func (s *Store) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// NextID reserves the next request id. Ids are not reused after a rollback.
func (s *Store) NextID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s%03d", s.idPrefix, s.seq), nil
}

// Create stores a new request at version 1
func (s *Store) Create(ctx context.Context, req *entity.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}

	req.Version = 1
	s.requests[req.ID] = req.Clone()
	s.inserted++
	s.order[req.ID] = s.inserted

	id := req.ID
	s.record(ctx, func() {
		delete(s.requests, id)
		delete(s.order, id)
	})
	return nil
}

// GetByID returns a copy of the stored request
func (s *Store) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	return req.Clone(), nil
}

// Update replaces the stored request when versions match, then bumps req.Version
func (s *Store) Update(ctx context.Context, req *entity.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok || current.Version != req.Version {
		return fmt.Errorf("%w: %s at version %d", port.ErrStaleRequest, req.ID, req.Version)
	}

	req.Version++
	s.requests[req.ID] = req.Clone()

	s.record(ctx, func() {
		s.requests[current.ID] = current
	})
	return nil
}

// List returns matching requests newest first
func (s *Store) List(ctx context.Context, filter entity.RequestFilter, page port.Page) ([]*entity.Request, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*entity.Request
	for _, req := range s.requests {
		if filter.Matches(req) {
			matched = append(matched, req)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.order[a.ID] > s.order[b.ID]
	})

	total := len(matched)
	if page.Limit > 0 {
		start := page.Offset()
		if start > total {
			start = total
		}
		end := start + page.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}

	out := make([]*entity.Request, len(matched))
	for i, req := range matched {
		out[i] = req.Clone()
	}
	return out, total, nil
}

// Delete removes a request and its timeline
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	events := s.timeline[id]
	pos := s.order[id]

	delete(s.requests, id)
	delete(s.order, id)
	delete(s.timeline, id)

	s.record(ctx, func() {
		s.requests[id] = req
		s.order[id] = pos
		s.timeline[id] = events
	})
	return nil
}

// Append adds an event to the end of a request's timeline
func (s *Store) Append(ctx context.Context, evt *entity.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[evt.RequestID]; !ok {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, evt.RequestID)
	}

	c := *evt
	s.timeline[evt.RequestID] = append(s.timeline[evt.RequestID], &c)

	requestID := evt.RequestID
	s.record(ctx, func() {
		events := s.timeline[requestID]
		if len(events) > 0 {
			s.timeline[requestID] = events[:len(events)-1]
		}
	})
	return nil
}

// ListByRequestID returns the request's events oldest first
func (s *Store) ListByRequestID(ctx context.Context, requestID string) ([]*entity.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.timeline[requestID]
	out := make([]*entity.TimelineEvent, len(events))
	for i, evt := range events {
		c := *evt
		out[i] = &c
	}
	return out, nil
}

// Users returns the user directory view of the store
func (s *Store) Users() port.UserRepository {
	return userDirectory{s}
}

// Timeline returns the timeline view of the store
func (s *Store) Timeline() port.TimelineRepository {
	return s
}

type userDirectory struct {
	s *Store
}

func (d userDirectory) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	u, ok := d.s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", workflow.ErrNotFound, id)
	}
	c := *u
	return &c, nil
}

func (d userDirectory) List(ctx context.Context) ([]*entity.User, error) {
	return d.filter(func(*entity.User) bool { return true }), nil
}

func (d userDirectory) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return d.filter(func(u *entity.User) bool { return u.Role == role }), nil
}

func (d userDirectory) Create(ctx context.Context, user *entity.User) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if d.emailTaken(user.Email, 0) {
		return fmt.Errorf("%w: %s", port.ErrDuplicateEmail, user.Email)
	}

	var maxID int64
	for id := range d.s.users {
		if id > maxID {
			maxID = id
		}
	}

	now := time.Now().UTC()
	user.ID = maxID + 1
	user.CreatedAt = now
	user.UpdatedAt = now

	c := *user
	d.s.users[user.ID] = &c
	return nil
}

func (d userDirectory) Update(ctx context.Context, user *entity.User) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	current, ok := d.s.users[user.ID]
	if !ok {
		return fmt.Errorf("%w: user %d", workflow.ErrNotFound, user.ID)
	}
	if d.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("%w: %s", port.ErrDuplicateEmail, user.Email)
	}

	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()

	c := *user
	d.s.users[user.ID] = &c
	return nil
}

// emailTaken reports whether another user than except already has email. Callers hold the lock.
func (d userDirectory) emailTaken(email string, except int64) bool {
	for id, u := range d.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (d userDirectory) filter(keep func(*entity.User) bool) []*entity.User {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	out := []*entity.User{}
	for _, u := range d.s.users {
		if keep(u) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	_ port.RequestRepository  = (*Store)(nil)
	_ port.TimelineRepository = (*Store)(nil)
	_ port.TransactionManager = (*Store)(nil)
	_ port.UserRepository     = userDirectory{}
)
