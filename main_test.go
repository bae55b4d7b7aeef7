package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samandartukhtayev/user-registry/config"
	"github.com/samandartukhtayev/user-registry/database"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("USER_REGISTRY_TEST_ENV_FILE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("USER_REGISTRY_TEST_ENV_FILE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("USER_REGISTRY_TEST_ENV_FILE"))
}

func TestLoadEnvFile_ExistingVariablesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("USER_REGISTRY_TEST_ENV_KEEP=from-file\n"), 0o600))
	t.Setenv("USER_REGISTRY_TEST_ENV_KEEP", "from-env")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("USER_REGISTRY_TEST_ENV_KEEP"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, loadEnvFile(""))
}

func TestNewMetricsRegistry(t *testing.T) {
	ctx := context.Background()
	store, err := database.Open(ctx, config.StorageConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	reg, httpMetrics, err := newMetricsRegistry(store)
	require.NoError(t, err)
	require.NotNil(t, httpMetrics)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_sql_open_connections"], "pool stats of the primary are exported")
	assert.True(t, names["go_goroutines"])
}
