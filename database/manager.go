package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/samandartukhtayev/user-registry/config"
)

// Manager owns every connection handle of the user store: one primary for
// writes and optional replicas for reads. It is opened once at process start
// and closed on shutdown.
type Manager struct {
	driver           string
	dialect          Dialect
	primary          *sql.DB
	replicas         []*sql.DB
	readFromReplicas bool
	mu               sync.RWMutex
	closed           bool
}

// Open connects to the primary (and replicas, for the Postgres drivers) and
// pings each of them
func Open(ctx context.Context, cfg config.StorageConfig) (*Manager, error) {
	m := &Manager{
		driver:           cfg.Driver,
		readFromReplicas: cfg.ReadFromReplicas,
		replicas:         make([]*sql.DB, 0, len(cfg.Replicas)),
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		m.dialect = DialectSQLite

		db, err := openSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		m.primary = db
		return m, nil

	case config.DriverPgx, config.DriverPostgres:
		m.dialect = DialectPostgres

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	// Connect to primary
	primaryDB, err := openPostgres(ctx, cfg.Driver, cfg.Primary, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	m.primary = primaryDB

	// Connect to replicas
	for i, replicaCfg := range cfg.Replicas {
		replicaDB, err := openPostgres(ctx, cfg.Driver, replicaCfg, cfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("replica %d: %w", i, err)
		}
		m.replicas = append(m.replicas, replicaDB)
	}

	return m, nil
}

func openPostgres(ctx context.Context, driver string, dbCfg config.DatabaseConfig, pool config.StorageConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dbCfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openSQLite opens the database file with WAL and foreign keys enabled on
// every connection. SQLite allows a single writer, so the pool holds one connection.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Driver returns the database/sql driver name in use
func (m *Manager) Driver() string {
	return m.driver
}

// Dialect returns the SQL dialect of the store
func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Writer returns the primary database.
// All write operations, and reads that must see them, use this.
func (m *Manager) Writer() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.primary
}

// Reader returns the handle for bulk reads. With replica reads disabled, or no
// replicas configured, it returns the primary.
func (m *Manager) Reader() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.readFromReplicas || len(m.replicas) == 0 {
		return m.primary
	}

	// Randomly select a replica for load balancing
	return m.replicas[rand.Intn(len(m.replicas))]
}

// Replicas returns a copy of the replica handles
func (m *Manager) Replicas() []*sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	replicasCopy := make([]*sql.DB, len(m.replicas))
	copy(replicasCopy, m.replicas)
	return replicasCopy
}

// Ping checks the primary and every replica
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("database manager is closed")
	}
	if err := m.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("ping primary: %w", err)
	}
	for i, replica := range m.replicas {
		if err := replica.PingContext(ctx); err != nil {
			return fmt.Errorf("ping replica %d: %w", i, err)
		}
	}
	return nil
}

// Close closes all database connections. Calling it twice is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error

	if m.primary != nil {
		if err := m.primary.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close primary: %w", err))
		}
	}

	for i, replica := range m.replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close replica %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
