package enumeration

import (
	"context"
	"fmt"
	"io"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// Store is an enumeration item manager that can also list and be closed.
type Store interface {
	pipeline.EnumerationItemManager
	io.Closer
	List(ctx context.Context, alertID *int64) ([]*model.EnumerationItem, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)

// Open builds the store named by the settings.
func Open(ctx context.Context, settings config.StoreSettings) (Store, error) {
	switch settings.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite3":
		return OpenSQLStore(ctx, settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported enumeration store driver %q", settings.Driver)
	}
}
