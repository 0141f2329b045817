// Package pipeline holds the run-scoped and process-scoped state shared by
// every operator, and the contracts of the pluggable components operators
// delegate to.
package pipeline

import (
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/workerpool"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// Context is the run-scoped state of one top-level invocation. It is shared
// read-only by every nested executor pass, including fork-join branches.
type Context struct {
	Usage           model.Usage
	AlertID         *int64
	EnumerationItem *model.EnumerationItem
	Namespace       string
	Interval        model.DetectionInterval
	RunID           string
	App             *ApplicationContext
}

// Validate checks the fields every operator relies on.
func (c *Context) Validate() error {
	if c == nil {
		return detecterrors.NewValidationError("context", "pipeline context is nil", nil)
	}
	if !c.Usage.Valid() {
		return detecterrors.NewValidationError("context.usage", fmt.Sprintf("unsupported usage %q", c.Usage), nil)
	}
	if c.App == nil {
		return detecterrors.NewValidationError("context.app", "application context is required", nil)
	}
	return nil
}

// WithEnumerationItem returns a copy of the context scoped to one item.
func (c *Context) WithEnumerationItem(item *model.EnumerationItem) *Context {
	scoped := *c
	scoped.EnumerationItem = item
	return &scoped
}

// Logger returns the application logger with run fields attached.
func (c *Context) Logger() *logger.Logger {
	if c == nil || c.App == nil {
		return nil
	}
	fields := map[string]any{"usage": c.Usage.String()}
	if c.RunID != "" {
		fields["run_id"] = c.RunID
	}
	if c.AlertID != nil {
		fields["alert_id"] = *c.AlertID
	}
	log := c.App.Logger.WithFields(fields)
	if c.EnumerationItem != nil {
		log = log.ForItem(c.EnumerationItem.String())
	}
	return log
}

// Now returns the application clock reading.
func (c *Context) Now() time.Time {
	if c == nil || c.App == nil || c.App.Clock == nil {
		return time.Now()
	}
	return c.App.Clock()
}

// ApplicationContext carries the process-wide collaborators. It is built
// once at startup and injected into every run.
type ApplicationContext struct {
	Components       *Components
	EnumerationItems EnumerationItemManager
	Pool             *workerpool.Pool
	ForkJoin         config.ForkJoinSettings
	Logger           *logger.Logger
	Clock            func() time.Time
}

// NewApplicationContext wires the collaborators, sizing the worker pool
// from the fork-join settings.
func NewApplicationContext(settings config.ForkJoinSettings, components *Components, items EnumerationItemManager, log *logger.Logger) *ApplicationContext {
	if components == nil {
		components = NewComponents()
	}
	return &ApplicationContext{
		Components:       components,
		EnumerationItems: items,
		Pool:             workerpool.New(settings.Parallelism),
		ForkJoin:         settings,
		Logger:           log,
		Clock:            time.Now,
	}
}
