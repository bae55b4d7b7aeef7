package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/samandartukhtayev/user-registry/logger"
	"github.com/samandartukhtayev/user-registry/models"
)

// UserStore is the persistence contract the service depends on.
// *repository.UserRepository implements it.
type UserStore interface {
	Create(ctx context.Context, fields models.UserFields) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id int64, fields models.UserFields) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserPayload is the decoded request body. Pointer fields tell an absent key
// apart from an empty string.
type UserPayload struct {
	ID        *int64  `json:"id"`
	Matricula *string `json:"matricula"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
}

// UserService implements the user resource on top of a UserStore. It keeps
// no state between calls; every operation goes to the store.
type UserService struct {
	store UserStore
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// Create stores a new user from a payload carrying all four fields.
// Empty strings are accepted.
func (s *UserService) Create(ctx context.Context, p UserPayload) (*models.User, error) {
	fields, err := p.fields()
	if err != nil {
		return nil, s.fail(ctx, OpCreate, 0, err)
	}

	user, err := s.store.Create(ctx, fields)
	if err != nil {
		return nil, s.fail(ctx, OpCreate, 0, err)
	}

	logger.From(ctx).Debug("user created", logger.Op(string(OpCreate)), logger.UserID(user.ID))
	return user, nil
}

// List returns every stored user.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpList, 0, err)
	}
	if users == nil {
		users = make([]*models.User, 0)
	}
	return users, nil
}

// Update replaces all four fields of the user identified by the payload id.
func (s *UserService) Update(ctx context.Context, p UserPayload) (*models.User, error) {
	if p.ID == nil {
		return nil, s.fail(ctx, OpUpdate, 0, fmt.Errorf("%w: id is required", models.ErrValidation))
	}

	fields, err := p.fields()
	if err != nil {
		return nil, s.fail(ctx, OpUpdate, *p.ID, err)
	}

	user, err := s.store.Update(ctx, *p.ID, fields)
	if err != nil {
		return nil, s.fail(ctx, OpUpdate, *p.ID, err)
	}

	logger.From(ctx).Debug("user updated", logger.Op(string(OpUpdate)), logger.UserID(user.ID))
	return user, nil
}

// Delete removes the user identified by the payload id.
func (s *UserService) Delete(ctx context.Context, p UserPayload) error {
	if p.ID == nil {
		return s.fail(ctx, OpDelete, 0, fmt.Errorf("%w: id is required", models.ErrValidation))
	}

	if err := s.store.Delete(ctx, *p.ID); err != nil {
		return s.fail(ctx, OpDelete, *p.ID, err)
	}

	logger.From(ctx).Debug("user deleted", logger.Op(string(OpDelete)), logger.UserID(*p.ID))
	return nil
}

// fail logs the real cause and collapses it into the generic error of op.
func (s *UserService) fail(ctx context.Context, op Op, id int64, err error) *Error {
	e := NewError(op, err)

	log := logger.From(ctx).With(logger.Op(string(op)))
	if id != 0 {
		log = log.With(logger.UserID(id))
	}
	if e.Kind() == models.ErrValidation {
		log.Warn("rejected user payload", logger.Err(err))
	} else {
		log.Error("user store operation failed", logger.Err(err))
	}

	return e
}

func (p UserPayload) fields() (models.UserFields, error) {
	var missing []string
	if p.Matricula == nil {
		missing = append(missing, "matricula")
	}
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.Email == nil {
		missing = append(missing, "email")
	}
	if p.Role == nil {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return models.UserFields{}, fmt.Errorf("%w: missing %s", models.ErrValidation, strings.Join(missing, ", "))
	}

	return models.UserFields{
		Matricula: *p.Matricula,
		Name:      *p.Name,
		Email:     *p.Email,
		Role:      *p.Role,
	}, nil
}
