package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv(SettingsEnvVar, "")

	settings, err := LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, 4, settings.ForkJoin.Parallelism)
	require.Equal(t, 5*time.Minute, settings.ForkJoin.Timeout)
	require.Equal(t, "memory", settings.Store.Driver)
	require.Equal(t, "info", settings.Logging.Level)
}

func TestLoadSettingsMergesFileOverDefaults(t *testing.T) {
	path := writeTempFile(t, "settings.yaml", `forkJoin:
  parallelism: 16
logging:
  level: debug
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, 16, settings.ForkJoin.Parallelism)
	require.Equal(t, 5*time.Minute, settings.ForkJoin.Timeout)
	require.Equal(t, "debug", settings.Logging.Level)
	require.Equal(t, "memory", settings.Store.Driver)
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	path := writeTempFile(t, "settings.yaml", "forkJoin:\n  timeout: 30s\n")
	t.Setenv("DETECTFLOW_FORKJOIN_PARALLELISM", "2")
	t.Setenv("DETECTFLOW_STORE_DRIVER", "sqlite3")
	t.Setenv("DETECTFLOW_STORE_DSN", "file:items.db")

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, 2, settings.ForkJoin.Parallelism)
	require.Equal(t, 30*time.Second, settings.ForkJoin.Timeout)
	require.Equal(t, "sqlite3", settings.Store.Driver)
	require.Equal(t, "file:items.db", settings.Store.DSN)
}

func TestLoadSettingsValidation(t *testing.T) {
	t.Setenv("DETECTFLOW_STORE_DRIVER", "postgres")

	_, err := LoadSettings("")
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Field, "driver")
}

func TestLoadSettingsRejectsBadEnv(t *testing.T) {
	t.Setenv("DETECTFLOW_FORKJOIN_TIMEOUT", "forever")

	_, err := LoadSettings("")
	require.Error(t, err)
}
