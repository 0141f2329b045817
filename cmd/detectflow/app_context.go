package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexisbeaulieu97/detectflow/internal/components"
	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/engine"
	"github.com/alexisbeaulieu97/detectflow/internal/enumeration"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/metrics"
	"github.com/alexisbeaulieu97/detectflow/internal/operators"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// AppContext bundles long-lived services created at startup.
type AppContext struct {
	Settings *config.Settings
	Logger   *logger.Logger
	Store    enumeration.Store
	App      *pipeline.ApplicationContext
	Executor *engine.Executor
	Metrics  *prometheus.Registry
}

func newAppContext(ctx context.Context, flags *rootFlags, logOut io.Writer) (*AppContext, error) {
	settings, err := config.LoadSettings(flags.settingsPath)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(settings, flags, logOut)
	if err != nil {
		return nil, err
	}

	store, err := enumeration.Open(ctx, settings.Store)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, err
	}

	return &AppContext{
		Settings: settings,
		Logger:   log,
		Store:    store,
		App:      pipeline.NewApplicationContext(settings.ForkJoin, components.NewBuiltins(), store, log),
		Executor: engine.NewExecutor(operators.NewRegistry(), log),
		Metrics:  registry,
	}, nil
}

func newLogger(settings *config.Settings, flags *rootFlags, out io.Writer) (*logger.Logger, error) {
	level := settings.Logging.Level
	if flags.verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, HumanReadable: settings.Logging.HumanReadable, Writer: out})
}

// Close releases the enumeration item store.
func (a *AppContext) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
