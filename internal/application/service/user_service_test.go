package service

import (
	"context"
	"testing"

	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/garyjia/disbursement/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService(t *testing.T) {
	store := memory.NewStore("REQ", memory.SeedUsers()...)
	svc := NewUserService(store.Users())
	ctx := context.Background()

	user, err := svc.GetUser(ctx, carlosID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleCEO, user.Role)

	_, err = svc.GetUser(ctx, 99)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	all, err := svc.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	employees, err := svc.ListUsers(ctx, entity.RoleEmployee)
	require.NoError(t, err)
	assert.Len(t, employees, 2)

	_, err = svc.ListUsers(ctx, "Intern")
	assert.ErrorIs(t, err, domainwf.ErrValidation)
}

func TestUserService_CreateUser(t *testing.T) {
	store := memory.NewStore("REQ", memory.SeedUsers()...)
	svc := NewUserService(store.Users())
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, carlosID, UserInput{
		Name:       "  Paolo Tan ",
		Email:      "Paolo.Tan@Example.com",
		Role:       entity.RoleManager,
		Department: "Engineering",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), user.ID)
	assert.Equal(t, "Paolo Tan", user.Name)
	assert.Equal(t, "paolo.tan@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())

	managers, err := svc.ListUsers(ctx, entity.RoleManager)
	require.NoError(t, err)
	assert.Len(t, managers, 2)

	_, err = svc.CreateUser(ctx, carlosID, UserInput{Name: "Copy", Email: "paolo.tan@example.com", Role: entity.RoleEmployee})
	var verr *domainwf.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)

	_, err = svc.CreateUser(ctx, carlosID, UserInput{Email: "not-an-email", Role: "Intern"})
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{"name": true, "email": true, "role": true}, fields)

	_, err = svc.CreateUser(ctx, fionaID, UserInput{Name: "X", Email: "x@example.com", Role: entity.RoleEmployee})
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)

	_, err = svc.CreateUser(ctx, 99, UserInput{Name: "X", Email: "x@example.com", Role: entity.RoleEmployee})
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)
}

func TestUserService_UpdateUser(t *testing.T) {
	store := memory.NewStore("REQ", memory.SeedUsers()...)
	svc := NewUserService(store.Users())
	ctx := context.Background()

	dept := "Marketing"
	role := entity.RoleManager
	user, err := svc.UpdateUser(ctx, carlosID, ninaID, UserUpdate{Department: &dept, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Nina Valdez", user.Name)
	assert.Equal(t, "Marketing", user.Department)
	assert.Equal(t, entity.RoleManager, user.Role)

	stored, err := svc.GetUser(ctx, ninaID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleManager, stored.Role)

	empty := " "
	_, err = svc.UpdateUser(ctx, carlosID, ninaID, UserUpdate{Name: &empty})
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	taken := "ella.santos@example.com"
	_, err = svc.UpdateUser(ctx, carlosID, ninaID, UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	_, err = svc.UpdateUser(ctx, carlosID, 99, UserUpdate{Department: &dept})
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	_, err = svc.UpdateUser(ctx, ellaID, ninaID, UserUpdate{Department: &dept})
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)
}
