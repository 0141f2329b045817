package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// SettingsEnvVar names the environment variable consulted when no settings
// path is given.
const SettingsEnvVar = "DETECTFLOW_CONFIG"

// Settings configures the process-wide collaborators.
type Settings struct {
	ForkJoin ForkJoinSettings `yaml:"forkJoin"`
	Logging  LoggingSettings  `yaml:"logging"`
	Store    StoreSettings    `yaml:"store"`
	Metrics  MetricsSettings  `yaml:"metrics"`
}

// ForkJoinSettings sizes the shared worker pool and bounds each fan-out.
type ForkJoinSettings struct {
	Parallelism int           `yaml:"parallelism" validate:"min=1,max=1024"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LoggingSettings controls structured logging.
type LoggingSettings struct {
	Level         string `yaml:"level" validate:"oneof=trace debug info warn error"`
	HumanReadable bool   `yaml:"humanReadable"`
}

// StoreSettings selects the enumeration item store.
type StoreSettings struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite3"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver sqlite3"`
}

// MetricsSettings controls the optional prometheus endpoint.
type MetricsSettings struct {
	Address string `yaml:"address"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		ForkJoin: ForkJoinSettings{
			Parallelism: 4,
			Timeout:     5 * time.Minute,
		},
		Logging: LoggingSettings{Level: "info"},
		Store:   StoreSettings{Driver: "memory"},
	}
}

// LoadSettings reads settings from path (or $DETECTFLOW_CONFIG), merges them
// over the defaults, applies DETECTFLOW_* environment overrides and
// validates the result. An empty path with no env var yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = os.Getenv(SettingsEnvVar)
	}

	settings := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, detecterrors.NewParseError(path, 0, fmt.Errorf("settings file not found: %w", err))
			}
			return nil, detecterrors.NewParseError(path, 0, err)
		}

		var fromFile Settings
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, detecterrors.NewParseError(path, extractLine(err), err)
		}

		if err := mergo.Merge(&settings, fromFile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge settings: %w", err)
		}
	}

	if err := applyEnvOverrides(&settings); err != nil {
		return nil, err
	}

	if err := ValidateStruct(settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

func applyEnvOverrides(s *Settings) error {
	if v := os.Getenv("DETECTFLOW_FORKJOIN_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return detecterrors.NewValidationError("DETECTFLOW_FORKJOIN_PARALLELISM", "must be an integer", err)
		}
		s.ForkJoin.Parallelism = n
	}
	if v := os.Getenv("DETECTFLOW_FORKJOIN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return detecterrors.NewValidationError("DETECTFLOW_FORKJOIN_TIMEOUT", "must be a duration", err)
		}
		s.ForkJoin.Timeout = d
	}
	if v := os.Getenv("DETECTFLOW_LOG_LEVEL"); v != "" {
		s.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DETECTFLOW_LOG_HUMAN"); v != "" {
		s.Logging.HumanReadable = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DETECTFLOW_STORE_DRIVER"); v != "" {
		s.Store.Driver = v
	}
	if v := os.Getenv("DETECTFLOW_STORE_DSN"); v != "" {
		s.Store.DSN = v
	}
	if v := os.Getenv("DETECTFLOW_METRICS_ADDRESS"); v != "" {
		s.Metrics.Address = v
	}
	return nil
}
