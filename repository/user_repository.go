package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samandartukhtayev/user-registry/database"
	"github.com/samandartukhtayev/user-registry/models"
)

const userColumns = `id, matricula, name, email, role`

// UserRepository handles all user-related database operations.
// Every method is a single statement, so each call is atomic on its own.
type UserRepository struct {
	db *database.Manager
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Manager) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create inserts a new user and returns it with the id assigned by the store
func (r *UserRepository) Create(ctx context.Context, fields models.UserFields) (*models.User, error) {
	query := r.db.Dialect().Rebind(`
		INSERT INTO users (matricula, name, email, role)
		VALUES (?, ?, ?, ?)
		RETURNING ` + userColumns)

	user, err := scanUser(r.db.Writer().QueryRowContext(ctx, query,
		fields.Matricula, fields.Name, fields.Email, fields.Role))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", classify(err))
	}

	return user, nil
}

// List returns every user in id order; an empty table yields an empty slice.
// With replica reads enabled it may lag behind the primary.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.db.Reader().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", classify(err))
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", classify(err))
	}

	return users, nil
}

// GetByID reads one user from the primary
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.Dialect().Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user, err := scanUser(r.db.Writer().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, classify(err))
	}

	return user, nil
}

// Update replaces all four mutable fields of the user with the given id
// in one statement and returns the stored row
func (r *UserRepository) Update(ctx context.Context, id int64, fields models.UserFields) (*models.User, error) {
	query := r.db.Dialect().Rebind(`
		UPDATE users
		SET matricula = ?, name = ?, email = ?, role = ?
		WHERE id = ?
		RETURNING ` + userColumns)

	user, err := scanUser(r.db.Writer().QueryRowContext(ctx, query,
		fields.Matricula, fields.Name, fields.Email, fields.Role, id))
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, classify(err))
	}

	return user, nil
}

// Delete removes the user with the given id
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Dialect().Rebind(`DELETE FROM users WHERE id = ?`)

	result, err := r.db.Writer().ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %d: rows affected: %w", id, classify(err))
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete user %d: %w", id, models.ErrNotFound)
	}

	return nil
}

// Count returns the number of stored users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Writer().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", classify(err))
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Matricula, &user.Name, &user.Email, &user.Role); err != nil {
		return nil, err
	}
	return user, nil
}

// classify maps a driver error onto the store error taxonomy while keeping
// the original error in the chain
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrNotFound
	case isConstraintViolation(err):
		return fmt.Errorf("%w: %w", models.ErrConstraintViolation, err)
	default:
		return fmt.Errorf("%w: %w", models.ErrUnavailable, err)
	}
}
