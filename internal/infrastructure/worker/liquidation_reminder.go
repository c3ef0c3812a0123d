package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
)

const (
	DefaultReminderInterval  = time.Hour
	DefaultReminderBatchSize = 50

	// an advance is reminded about at most once per period
	reminderPeriod = 24 * time.Hour
)

// LiquidationReminder periodically emails employees whose released cash advances
// are past their expected liquidation date.
type LiquidationReminder struct {
	requests port.RequestRepository
	users    port.UserRepository
	sender   port.MessageSender
	logger   *zap.Logger

	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu       sync.Mutex
	reminded map[string]time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// ReminderOption configures a LiquidationReminder
type ReminderOption func(*LiquidationReminder)

// WithInterval sets how often the reminder scans
func WithInterval(d time.Duration) ReminderOption {
	return func(r *LiquidationReminder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets the page size used when scanning
func WithBatchSize(n int) ReminderOption {
	return func(r *LiquidationReminder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ReminderOption {
	return func(r *LiquidationReminder) {
		r.now = now
	}
}

// NewLiquidationReminder creates a new reminder worker
func NewLiquidationReminder(
	requests port.RequestRepository,
	users port.UserRepository,
	sender port.MessageSender,
	logger *zap.Logger,
	opts ...ReminderOption,
) *LiquidationReminder {
	r := &LiquidationReminder{
		requests:  requests,
		users:     users,
		sender:    sender,
		logger:    logger,
		interval:  DefaultReminderInterval,
		batchSize: DefaultReminderBatchSize,
		now:       time.Now,
		reminded:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the worker name for identification
func (r *LiquidationReminder) Name() string {
	return "LiquidationReminder"
}

// Start scans once immediately and then on every interval until Stop or ctx is done
func (r *LiquidationReminder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return fmt.Errorf("liquidation reminder is already running")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	r.logger.Info("LiquidationReminder started",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize))

	go r.loop(ctx, r.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight scan to finish
func (r *LiquidationReminder) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done

	r.logger.Info("LiquidationReminder stopped")
	return nil
}

func (r *LiquidationReminder) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Liquidation reminder scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce scans every advance awaiting liquidation and reminds the overdue ones.
// It returns the number of reminders sent.
func (r *LiquidationReminder) RunOnce(ctx context.Context) (int, error) {
	filter := entity.RequestFilter{
		RequestType: entity.RequestTypeCashAdvance,
		Status:      entity.StatusPendingLiquidation,
	}
	now := r.now()

	var sent int
	var errs []error
	open := make(map[string]struct{})
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		advances, total, err := r.requests.List(ctx, filter, port.Page{Page: page, Limit: r.batchSize})
		if err != nil {
			return sent, fmt.Errorf("list advances: %w", err)
		}

		for _, advance := range advances {
			open[advance.ID] = struct{}{}
			if !r.due(advance, now) {
				continue
			}
			if err := r.remind(ctx, advance, now); err != nil {
				r.logger.Error("Failed to send liquidation reminder",
					zap.String("request_id", advance.ID),
					zap.Error(err))
				errs = append(errs, err)
				continue
			}
			sent++
		}

		if len(advances) == 0 || page*r.batchSize >= total {
			break
		}
	}

	r.forgetClosed(open)

	if sent > 0 {
		r.logger.Info("Liquidation reminders sent", zap.Int("count", sent))
	}
	return sent, errors.Join(errs...)
}

// forgetClosed drops reminder times of advances that no longer await liquidation
func (r *LiquidationReminder) forgetClosed(open map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.reminded {
		if _, ok := open[id]; !ok {
			delete(r.reminded, id)
		}
	}
}

func (r *LiquidationReminder) due(advance *entity.Request, now time.Time) bool {
	if advance.ExpectedLiquidationDate == nil || !now.After(*advance.ExpectedLiquidationDate) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.reminded[advance.ID]
	return !ok || now.Sub(last) >= reminderPeriod
}

func (r *LiquidationReminder) remind(ctx context.Context, advance *entity.Request, now time.Time) error {
	employee, err := r.users.GetByID(ctx, advance.EmployeeID)
	if err != nil {
		return fmt.Errorf("load employee %d: %w", advance.EmployeeID, err)
	}

	days := int(now.Sub(*advance.ExpectedLiquidationDate).Hours() / 24)
	msg := port.Message{
		RequestID: advance.ID,
		Subject:   fmt.Sprintf("Liquidation overdue: %s", advance.ID),
		Body: fmt.Sprintf("Your cash advance of %s %s was due for liquidation on %s (%d days ago). Please submit a liquidation.",
			advance.Currency, advance.Amount.StringFixed(2),
			advance.ExpectedLiquidationDate.Format("2006-01-02"), days),
	}
	if err := r.sender.Send(ctx, employee, msg); err != nil {
		return err
	}

	r.mu.Lock()
	r.reminded[advance.ID] = now
	r.mu.Unlock()
	return nil
}
