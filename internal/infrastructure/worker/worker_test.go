package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/infrastructure/persistence/memory"
)

type sentMessage struct {
	userID int64
	msg    port.Message
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockSender) Send(ctx context.Context, recipient *entity.User, msg port.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{userID: recipient.ID, msg: msg})
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var today = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func advance(id string, employeeID int64, status entity.RequestStatus, due *time.Time) *entity.Request {
	return &entity.Request{
		ID:                      id,
		RequestType:             entity.RequestTypeCashAdvance,
		EmployeeID:              employeeID,
		Amount:                  decimal.NewFromInt(5000),
		Currency:                "PHP",
		Category:                entity.CategoryTravel,
		Status:                  status,
		NextActionBy:            []entity.Role{entity.RoleEmployee},
		ExpectedLiquidationDate: due,
		CreatedAt:               today.AddDate(0, -1, 0),
		UpdatedAt:               today.AddDate(0, -1, 0),
	}
}

func daysAgo(n int) *time.Time {
	t := today.AddDate(0, 0, -n)
	return &t
}

func seedAdvances(t *testing.T, reqs ...*entity.Request) *memory.Store {
	t.Helper()

	store := memory.NewStore("REQ", memory.SeedUsers()...)
	for _, req := range reqs {
		require.NoError(t, store.Create(context.Background(), req))
	}
	return store
}

func TestLiquidationReminder_RunOnce(t *testing.T) {
	store := seedAdvances(t,
		advance("REQ001", 1, entity.StatusPendingLiquidation, daysAgo(3)),
		advance("REQ002", 5, entity.StatusPendingLiquidation, daysAgo(-2)),
		advance("REQ003", 5, entity.StatusLiquidated, daysAgo(10)),
		advance("REQ004", 5, entity.StatusPendingLiquidation, nil),
		advance("REQ005", 5, entity.StatusPendingLiquidation, daysAgo(1)),
	)
	sender := &mockSender{}
	clock := today
	reminder := NewLiquidationReminder(store, store.Users(), sender, zap.NewNop(),
		WithBatchSize(2),
		WithClock(func() time.Time { return clock }),
	)

	sent, err := reminder.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, sender.sent, 2)
	byRequest := map[string]sentMessage{}
	for _, s := range sender.sent {
		byRequest[s.msg.RequestID] = s
	}
	assert.Equal(t, int64(1), byRequest["REQ001"].userID)
	assert.Equal(t, "Liquidation overdue: REQ001", byRequest["REQ001"].msg.Subject)
	assert.Contains(t, byRequest["REQ001"].msg.Body, "PHP 5000.00")
	assert.Contains(t, byRequest["REQ001"].msg.Body, "2026-04-07 (3 days ago)")
	assert.Equal(t, int64(5), byRequest["REQ005"].userID)

	// the same day does not repeat a reminder
	clock = today.Add(6 * time.Hour)
	sent, err = reminder.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	clock = today.Add(25 * time.Hour)
	sent, err = reminder.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestLiquidationReminder_ForgetsLiquidatedAdvances(t *testing.T) {
	store := seedAdvances(t,
		advance("REQ001", 1, entity.StatusPendingLiquidation, daysAgo(3)),
		advance("REQ002", 5, entity.StatusPendingLiquidation, daysAgo(2)),
	)
	sender := &mockSender{}
	reminder := NewLiquidationReminder(store, store.Users(), sender, zap.NewNop(),
		WithClock(func() time.Time { return today }))

	sent, err := reminder.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	ctx := context.Background()
	settled, err := store.GetByID(ctx, "REQ001")
	require.NoError(t, err)
	settled.Status = entity.StatusLiquidated
	settled.NextActionBy = nil
	require.NoError(t, store.Update(ctx, settled))

	sent, err = reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	reminder.mu.Lock()
	defer reminder.mu.Unlock()
	assert.Len(t, reminder.reminded, 1)
	assert.Contains(t, reminder.reminded, "REQ002")
}

func TestLiquidationReminder_SendFailureIsRetried(t *testing.T) {
	store := seedAdvances(t, advance("REQ001", 1, entity.StatusPendingLiquidation, daysAgo(3)))
	sender := &mockSender{err: errors.New("smtp down")}
	reminder := NewLiquidationReminder(store, store.Users(), sender, zap.NewNop(),
		WithClock(func() time.Time { return today }))

	sent, err := reminder.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)

	sender.err = nil
	sent, err = reminder.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestLiquidationReminder_StartStop(t *testing.T) {
	store := seedAdvances(t, advance("REQ001", 1, entity.StatusPendingLiquidation, daysAgo(3)))
	sender := &mockSender{}
	reminder := NewLiquidationReminder(store, store.Users(), sender, zap.NewNop(),
		WithInterval(time.Hour),
		WithClock(func() time.Time { return today }))

	require.NoError(t, reminder.Start(context.Background()))
	assert.Error(t, reminder.Start(context.Background()))

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, reminder.Stop())
	require.NoError(t, reminder.Stop())
}

type stubWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *stubWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *stubWorker) Stop() error {
	*w.log = append(*w.log, "stop "+w.name)
	return nil
}

func (w *stubWorker) Name() string { return w.name }

func TestManager_StartsAndStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", log: &log})
	m.Register(&stubWorker{name: "broken", startErr: errors.New("no"), log: &log})
	m.Register(&stubWorker{name: "b", log: &log})
	assert.Equal(t, 3, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	require.NoError(t, m.StopAll())

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}
