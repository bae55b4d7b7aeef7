package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samandartukhtayev/user-registry/config"
	"github.com/samandartukhtayev/user-registry/database"
	"github.com/samandartukhtayev/user-registry/models"
)

// setupTestRepository opens and migrates the store described by cfg, starting from an empty users table
func setupTestRepository(t *testing.T, cfg config.StorageConfig) (*UserRepository, *database.Manager) {
	t.Helper()

	ctx := context.Background()
	m, err := database.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Migrate(ctx))

	if m.Dialect() == database.DialectPostgres {
		_, err := m.Writer().ExecContext(ctx, `TRUNCATE users RESTART IDENTITY`)
		require.NoError(t, err)
	}

	return NewUserRepository(m), m
}

// storageBackends always includes SQLite in a temp dir. The Postgres drivers
// join when USER_REGISTRY_TEST_POSTGRES_DSN is set.
func storageBackends(t *testing.T) map[string]config.StorageConfig {
	t.Helper()

	backends := map[string]config.StorageConfig{
		"sqlite": {
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		},
	}
	if dsn := os.Getenv("USER_REGISTRY_TEST_POSTGRES_DSN"); dsn != "" {
		backends["pgx"] = config.StorageConfig{
			Driver:  config.DriverPgx,
			Primary: config.DatabaseConfig{DSN: dsn},
		}
		backends["postgres"] = config.StorageConfig{
			Driver:  config.DriverPostgres,
			Primary: config.DatabaseConfig{DSN: dsn},
		}
	}
	return backends
}

// forEachBackend runs fn once per configured store. Postgres variants share
// one database, so they run sequentially.
func forEachBackend(t *testing.T, fn func(t *testing.T, repo *UserRepository, m *database.Manager)) {
	for name, cfg := range storageBackends(t) {
		t.Run(name, func(t *testing.T) {
			repo, m := setupTestRepository(t, cfg)
			fn(t, repo, m)
		})
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		fields := models.UserFields{
			Matricula: "123",
			Name:      "Ana",
			Email:     "ana@x.com",
			Role:      "admin",
		}

		user, err := repo.Create(ctx, fields)
		require.NoError(t, err)
		assert.NotZero(t, user.ID, "User ID should be set after creation")
		assert.Equal(t, fields, user.Fields())

		retrieved, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user, retrieved)
	})
}

func TestUserRepository_CreateAcceptsEmptyStrings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		user, err := repo.Create(context.Background(), models.UserFields{})
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, models.UserFields{}, user.Fields())
	})
}

func TestUserRepository_DuplicateMatriculaAllowed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()
		fields := models.UserFields{Matricula: "dup", Name: "One", Email: "one@x.com", Role: "r"}

		first, err := repo.Create(ctx, fields)
		require.NoError(t, err)
		second, err := repo.Create(ctx, fields)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestUserRepository_List(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		empty, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, empty, "empty store should return an empty slice, not nil")
		assert.Empty(t, empty)

		var created []*models.User
		for i := 1; i <= 3; i++ {
			user, err := repo.Create(ctx, models.UserFields{
				Matricula: fmt.Sprintf("m%d", i),
				Name:      fmt.Sprintf("User %d", i),
				Email:     fmt.Sprintf("user%d@example.com", i),
				Role:      "member",
			})
			require.NoError(t, err)
			created = append(created, user)
		}

		allUsers, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, created, allUsers, "list should return rows in insertion order")
	})
}

func TestUserRepository_Update(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		user, err := repo.Create(ctx, models.UserFields{
			Matricula: "old-m", Name: "Old Name", Email: "old@example.com", Role: "old-role",
		})
		require.NoError(t, err)

		want := models.UserFields{Matricula: "A", Name: "B", Email: "C", Role: "D"}
		updated, err := repo.Update(ctx, user.ID, want)
		require.NoError(t, err)
		assert.Equal(t, user.ID, updated.ID, "id must never change")
		assert.Equal(t, want, updated.Fields())

		retrieved, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, retrieved.Fields(), "all four fields should be replaced")
	})
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		_, err := repo.Update(context.Background(), 99999, models.UserFields{Name: "x"})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		user, err := repo.Create(ctx, models.UserFields{Matricula: "del", Name: "Delete Me", Email: "delete@example.com", Role: "r"})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, user.ID))

		_, err = repo.GetByID(ctx, user.ID)
		assert.ErrorIs(t, err, models.ErrNotFound, "User should not be found after deletion")

		err = repo.Delete(ctx, user.ID)
		assert.ErrorIs(t, err, models.ErrNotFound, "second delete should fail")

		allUsers, err := repo.List(ctx)
		require.NoError(t, err)
		for _, u := range allUsers {
			assert.NotEqual(t, user.ID, u.ID)
		}
	})
}

func TestUserRepository_IDsAreNotReused(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()
		fields := models.UserFields{Matricula: "m", Name: "n", Email: "e", Role: "r"}

		first, err := repo.Create(ctx, fields)
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, first.ID))

		second, err := repo.Create(ctx, fields)
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
	})
}

func TestUserRepository_Count(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := repo.Create(ctx, models.UserFields{Matricula: fmt.Sprintf("c%d", i)})
			require.NoError(t, err)
		}

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestUserRepository_ConcurrentCreates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *UserRepository, _ *database.Manager) {
		ctx := context.Background()

		const n = 10
		var wg sync.WaitGroup
		ids := make(chan int64, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user, err := repo.Create(ctx, models.UserFields{Matricula: fmt.Sprintf("c%d", i)})
				if assert.NoError(t, err) {
					ids <- user.ID
				}
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			assert.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})
}

func TestUserRepository_UnavailableStore(t *testing.T) {
	cfg := config.StorageConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}
	repo, m := setupTestRepository(t, cfg)
	require.NoError(t, m.Close())

	ctx := context.Background()

	_, err := repo.Create(ctx, models.UserFields{})
	assert.ErrorIs(t, err, models.ErrUnavailable)

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, models.ErrUnavailable)

	_, err = repo.Update(ctx, 1, models.UserFields{})
	assert.ErrorIs(t, err, models.ErrUnavailable)

	err = repo.Delete(ctx, 1)
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestClassify_ConstraintViolation(t *testing.T) {
	cfg := config.StorageConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}
	_, m := setupTestRepository(t, cfg)

	_, err := m.Writer().ExecContext(context.Background(),
		`INSERT INTO users (matricula, name, email, role) VALUES (NULL, 'n', 'e', 'r')`)
	require.Error(t, err)

	classified := classify(err)
	assert.ErrorIs(t, classified, models.ErrConstraintViolation)
	assert.False(t, errors.Is(classified, models.ErrUnavailable))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(errors.New("connection refused")), models.ErrUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), models.ErrUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), context.DeadlineExceeded, "original error stays in the chain")
}
