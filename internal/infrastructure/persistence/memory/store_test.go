package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(id string, createdAt time.Time) *entity.Request {
	return &entity.Request{
		ID:           id,
		RequestType:  entity.RequestTypeReimbursement,
		EmployeeID:   1,
		Amount:       decimal.NewFromInt(100),
		Status:       entity.StatusPendingValidation,
		NextActionBy: []entity.Role{entity.RoleManager},
		CreatedAt:    createdAt,
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore("REQ")
	ctx := context.Background()
	req := request("REQ001", time.Now())
	require.NoError(t, s.Create(ctx, req))

	req.NextActionBy[0] = entity.RoleCEO

	got, err := s.GetByID(ctx, "REQ001")
	require.NoError(t, err)
	assert.Equal(t, []entity.Role{entity.RoleManager}, got.NextActionBy)

	got.Status = entity.StatusPaid
	again, _ := s.GetByID(ctx, "REQ001")
	assert.Equal(t, entity.StatusPendingValidation, again.Status)
}

func TestStore_UpdateIsVersionGuarded(t *testing.T) {
	s := NewStore("REQ")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, request("REQ001", time.Now())))

	a, _ := s.GetByID(ctx, "REQ001")
	b, _ := s.GetByID(ctx, "REQ001")

	a.Status = entity.StatusPendingFinance
	require.NoError(t, s.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = entity.StatusRejected
	assert.ErrorIs(t, s.Update(ctx, b), port.ErrStaleRequest)
}

func TestStore_TransactionRollback(t *testing.T) {
	s := NewStore("REQ")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, request("REQ001", time.Now())))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		req, err := s.GetByID(ctx, "REQ001")
		if err != nil {
			return err
		}
		req.Status = entity.StatusPendingFinance
		if err := s.Update(ctx, req); err != nil {
			return err
		}
		if err := s.Append(ctx, &entity.TimelineEvent{ID: "e1", RequestID: "REQ001"}); err != nil {
			return err
		}
		if err := s.Create(ctx, request("REQ002", time.Now())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetByID(ctx, "REQ001")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingValidation, got.Status)
	assert.Equal(t, int64(1), got.Version)

	events, _ := s.ListByRequestID(ctx, "REQ001")
	assert.Empty(t, events)

	_, err = s.GetByID(ctx, "REQ002")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestStore_ListOrdersAndPages(t *testing.T) {
	s := NewStore("REQ")
	ctx := context.Background()
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, request("REQ001", same)))
	require.NoError(t, s.Create(ctx, request("REQ002", same)))
	require.NoError(t, s.Create(ctx, request("REQ003", same.Add(-time.Hour))))

	all, total, err := s.List(ctx, entity.RequestFilter{}, port.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"REQ002", "REQ001", "REQ003"}, []string{all[0].ID, all[1].ID, all[2].ID})

	paged, total, err := s.List(ctx, entity.RequestFilter{}, port.Page{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, paged)
}

func TestStore_DeleteRemovesTimeline(t *testing.T) {
	s := NewStore("REQ")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, request("REQ001", time.Now())))
	require.NoError(t, s.Append(ctx, &entity.TimelineEvent{ID: "e1", RequestID: "REQ001"}))

	require.NoError(t, s.Delete(ctx, "REQ001"))

	events, _ := s.ListByRequestID(ctx, "REQ001")
	assert.Empty(t, events)
	assert.ErrorIs(t, s.Append(ctx, &entity.TimelineEvent{ID: "e2", RequestID: "REQ001"}), workflow.ErrNotFound)
}

func TestStore_Users(t *testing.T) {
	s := NewStore("REQ", SeedUsers()...)
	ctx := context.Background()

	u, err := s.Users().GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleFinance, u.Role)

	employees, err := s.Users().ListByRole(ctx, entity.RoleEmployee)
	require.NoError(t, err)
	assert.Len(t, employees, 2)
	assert.Equal(t, "Ella Santos", employees[0].Name)

	_, err = s.Users().GetByID(ctx, 99)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestStore_NextID(t *testing.T) {
	s := NewStore("ADV")
	first, _ := s.NextID(context.Background())
	second, _ := s.NextID(context.Background())
	assert.Equal(t, "ADV001", first)
	assert.Equal(t, "ADV002", second)
}

func TestOutbox(t *testing.T) {
	s := NewStore("REQ", SeedUsers()...)
	outbox := s.Outbox()
	ctx := context.Background()

	for _, subject := range []string{"a", "b", "c"} {
		require.NoError(t, outbox.Create(ctx, &entity.Notification{UserID: 1, Subject: subject, Status: entity.NotificationStatusSent}))
	}
	require.NoError(t, outbox.Create(ctx, &entity.Notification{UserID: 2, Subject: "other", Status: entity.NotificationStatusSent}))

	latest, err := outbox.ListByUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "c", latest[0].Subject)
	assert.Equal(t, "b", latest[1].Subject)

	err = outbox.Create(ctx, &entity.Notification{UserID: 42})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestStore_UserWrites(t *testing.T) {
	s := NewStore("REQ", SeedUsers()...)
	users := s.Users()
	ctx := context.Background()

	user := &entity.User{Name: "Paolo Tan", Email: "paolo.tan@example.com", Role: entity.RoleManager}
	require.NoError(t, users.Create(ctx, user))
	assert.Equal(t, int64(6), user.ID)

	assert.ErrorIs(t, users.Create(ctx, &entity.User{Name: "Copy", Email: "paolo.tan@example.com"}), port.ErrDuplicateEmail)

	user.Department = "Engineering"
	require.NoError(t, users.Update(ctx, user))
	stored, err := users.GetByID(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", stored.Department)

	user.Email = "ella.santos@example.com"
	assert.ErrorIs(t, users.Update(ctx, user), port.ErrDuplicateEmail)
	assert.ErrorIs(t, users.Update(ctx, &entity.User{ID: 99}), workflow.ErrNotFound)
}
