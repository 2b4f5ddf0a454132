package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, "pdftoppm", cfg.Tools.Pdftoppm)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.GreaterOrEqual(t, cfg.Engine.Concurrency, 1)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  concurrency: 3
store:
  driver: Postgres
  dsn: postgres://localhost/docbatch
  dial_timeout: 10s
log:
  level: DEBUG
  format: json
`), 0o644))
	t.Setenv("DOCBATCH_SERVER_GRPC_ADDR", "127.0.0.1:9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Engine.Concurrency)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/docbatch", cfg.Store.DSN)
	assert.Equal(t, 10*time.Second, cfg.Store.DialTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GRPCAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestConfigValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Engine.Concurrency = 0
	cfg.Store.Driver = "mysql"

	err = cfg.Validate()
	require.Error(t, err)
	ves, ok := AsValidationErrors(err)
	require.True(t, ok)
	fields := []string{}
	for _, ve := range ves {
		fields = append(fields, ve.Field)
	}
	assert.ElementsMatch(t, []string{"Engine.Concurrency", "Store.Driver"}, fields)
}
