package components

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const LogTriggerType = "log"

// LogTrigger writes every row it receives to the structured log and a
// summary line on Close.
type LogTrigger struct {
	log     *logger.Logger
	message string

	mu    sync.Mutex
	count int
}

// NewLogTrigger builds a LogTrigger. Params: message.
func NewLogTrigger(spec pipeline.ComponentSpec) (pipeline.EventTrigger, error) {
	log := spec.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &LogTrigger{
		log:     log.WithFields(map[string]any{"trigger": LogTriggerType, "node": spec.Node}),
		message: spec.Params.StringOr("message", "event triggered"),
	}, nil
}

func (t *LogTrigger) Trigger(_ context.Context, row map[string]any) error {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()

	fields := make(map[string]any, len(row))
	for _, key := range model.SortedKeys(row) {
		fields["row."+key] = row[key]
	}
	t.log.WithFields(fields).Info(t.message)
	return nil
}

func (t *LogTrigger) Close(context.Context) error {
	t.log.With("rows", t.Count()).Debug("trigger closed")
	return nil
}

// Count returns the number of rows triggered so far.
func (t *LogTrigger) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
