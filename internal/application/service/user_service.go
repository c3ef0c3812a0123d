package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/application/workflow"
	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
)

// UserInput is a new directory entry
type UserInput struct {
	Name       string      `json:"name" validate:"required,max=100"`
	Email      string      `json:"email" validate:"required,email,max=200"`
	Role       entity.Role `json:"role" validate:"required,oneof=Employee Manager Finance CEO"`
	Department string      `json:"department" validate:"max=100"`
}

// UserUpdate changes the fields that are set
type UserUpdate struct {
	Name       *string      `json:"name" validate:"omitnil,min=1,max=100"`
	Email      *string      `json:"email" validate:"omitnil,email,max=200"`
	Role       *entity.Role `json:"role" validate:"omitnil,oneof=Employee Manager Finance CEO"`
	Department *string      `json:"department" validate:"omitempty,max=100"`
}

// UserService exposes the user directory
type UserService interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	ListUsers(ctx context.Context, role entity.Role) ([]*entity.User, error)

	// CreateUser and UpdateUser are restricted to the CEO
	CreateUser(ctx context.Context, actorID int64, in UserInput) (*entity.User, error)
	UpdateUser(ctx context.Context, actorID, id int64, in UserUpdate) (*entity.User, error)
}

type userServiceImpl struct {
	userRepo port.UserRepository
	validate *validator.Validate
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		validate: workflow.NewValidator(),
	}
}

// GetUser returns one user
func (s *userServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers returns every user, or only those holding role when it is set
func (s *userServiceImpl) ListUsers(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	var (
		users []*entity.User
		err   error
	)
	if role == "" {
		users, err = s.userRepo.List(ctx)
	} else {
		if !role.IsValid() {
			return nil, domainwf.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
		}
		users, err = s.userRepo.ListByRole(ctx, role)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

// CreateUser adds a user to the directory
func (s *userServiceImpl) CreateUser(ctx context.Context, actorID int64, in UserInput) (*entity.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.check(in); err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:       in.Name,
		Email:      in.Email,
		Role:       in.Role,
		Department: in.Department,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, duplicateEmail(err)
	}
	return user, nil
}

// UpdateUser applies the set fields of in to user id
func (s *userServiceImpl) UpdateUser(ctx context.Context, actorID, id int64, in UserUpdate) (*entity.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := s.check(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Department != nil {
		user.Department = *in.Department
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, duplicateEmail(err)
	}
	return user, nil
}

func (s *userServiceImpl) requireAdmin(ctx context.Context, actorID int64) error {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if errors.Is(err, domainwf.ErrNotFound) {
		return fmt.Errorf("%w: unknown user %d", domainwf.ErrUnauthorized, actorID)
	}
	if err != nil {
		return err
	}
	if actor.Role != entity.RoleCEO {
		return fmt.Errorf("%w: only the CEO may manage users", domainwf.ErrUnauthorized)
	}
	return nil
}

func (s *userServiceImpl) check(in interface{}) error {
	verr := &domainwf.ValidationError{}
	if err := workflow.CollectFieldErrors(verr, s.validate.Struct(in)); err != nil {
		return err
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func duplicateEmail(err error) error {
	if errors.Is(err, port.ErrDuplicateEmail) {
		return domainwf.NewValidationError("email", "is already in use")
	}
	return err
}
