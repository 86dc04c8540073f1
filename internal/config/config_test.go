package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".projectlog/events.db", cfg.DBPath)
	assert.True(t, cfg.ChainingEnabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PROJECTLOG_ENVIRONMENT", "production")
	t.Setenv("PROJECTLOG_LOG_LEVEL", "debug")
	t.Setenv("PROJECTLOG_DB_PATH", "/var/lib/projectlog/log.db")
	t.Setenv("PROJECTLOG_CHAINING_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/projectlog/log.db", cfg.DBPath)
	assert.False(t, cfg.ChainingEnabled)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidBool(t *testing.T) {
	t.Setenv("PROJECTLOG_CHAINING_ENABLED", "maybe")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FileOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projectlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: ${DATA_DIR}/goals.db\nchaining_enabled: false\n"), 0o600))

	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("PROJECTLOG_LOG_LEVEL", "warn")
	t.Setenv("PROJECTLOG_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/data/goals.db", cfg.DBPath)
	assert.False(t, cfg.ChainingEnabled)
	// Keys missing from the file keep their env value.
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("PROJECTLOG_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestOverlay_BadYAML(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Overlay([]byte("db_path: [unterminated")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{DBPath: "x.db", LogLevel: "info"}, false},
		{"uppercase level", Config{DBPath: "x.db", LogLevel: "DEBUG"}, false},
		{"empty path", Config{DBPath: " ", LogLevel: "info"}, true},
		{"bad level", Config{DBPath: "x.db", LogLevel: "loud"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, perrors.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PL_A", "alpha")
	assert.Equal(t, "alpha-alpha-", expandEnvVars("${PL_A}-$PL_A-${PL_MISSING}"))
}
