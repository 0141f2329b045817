package enumeration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

func alert(id int64) *int64 {
	return &id
}

func memoryDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlStore, err := OpenSQLStore(context.Background(), memoryDSN())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestFindExistingOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		ctx := context.Background()
		items := []*model.EnumerationItem{
			{Params: map[string]any{"country": "fr", "threshold": 10}, AlertID: alert(1)},
			{Params: map[string]any{"country": "us", "threshold": 20}, AlertID: alert(1)},
		}

		var first, second []int64
		for _, item := range items {
			stored, err := store.FindExistingOrCreate(ctx, item, nil)
			require.NoError(t, err, name)
			require.NotZero(t, stored.ID, name)
			first = append(first, stored.ID)
		}
		for _, item := range items {
			stored, err := store.FindExistingOrCreate(ctx, item, nil)
			require.NoError(t, err, name)
			second = append(second, stored.ID)
		}
		require.Equal(t, first, second, name)
		require.NotEqual(t, first[0], first[1], name)

		listed, err := store.List(ctx, alert(1))
		require.NoError(t, err, name)
		require.Len(t, listed, 2, name)
		require.Equal(t, "country=fr,threshold=10", listed[0].Name, name)
	}
}

func TestIdentityIsScopedToAlert(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		ctx := context.Background()
		params := map[string]any{"country": "fr"}

		a, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{Params: params, AlertID: alert(1)}, nil)
		require.NoError(t, err, name)
		b, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{Params: params, AlertID: alert(2)}, nil)
		require.NoError(t, err, name)
		c, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{Params: params}, nil)
		require.NoError(t, err, name)

		require.NotEqual(t, a.ID, b.ID, name)
		require.NotEqual(t, a.ID, c.ID, name)
		require.Nil(t, c.AlertID, name)
	}
}

func TestIDKeysMatchAndRefreshParams(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		ctx := context.Background()
		idKeys := []string{"country"}

		original, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{
			Params:  map[string]any{"country": "fr", "threshold": 10},
			AlertID: alert(1),
		}, idKeys)
		require.NoError(t, err, name)

		updated, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{
			Name:    "france",
			Params:  map[string]any{"country": "fr", "threshold": 15},
			AlertID: alert(1),
		}, idKeys)
		require.NoError(t, err, name)
		require.Equal(t, original.ID, updated.ID, name)
		require.Equal(t, "france", updated.Name, name)

		listed, err := store.List(ctx, alert(1))
		require.NoError(t, err, name)
		require.Len(t, listed, 1, name)
		require.Equal(t, "france", listed[0].Name, name)
		threshold, ok := model.ToInt64(listed[0].Params["threshold"])
		require.True(t, ok, name)
		require.Equal(t, int64(15), threshold, name)

		withoutKeys, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{
			Name:    "france",
			Params:  map[string]any{"country": "fr", "threshold": 99},
			AlertID: alert(1),
		}, nil)
		require.NoError(t, err, name)
		require.NotEqual(t, original.ID, withoutKeys.ID, name)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	stored, err := store.FindExistingOrCreate(context.Background(), &model.EnumerationItem{Params: map[string]any{"k": "v"}}, nil)
	require.NoError(t, err)
	stored.Params["k"] = "changed"

	again, err := store.FindExistingOrCreate(context.Background(), &model.EnumerationItem{Params: map[string]any{"k": "v"}}, nil)
	require.NoError(t, err)
	require.Equal(t, stored.ID, again.ID)
	require.Equal(t, "v", again.Params["k"])
}

func TestSQLStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "items.db")

	store, err := OpenSQLStore(ctx, dsn)
	require.NoError(t, err)
	created, err := store.FindExistingOrCreate(ctx, &model.EnumerationItem{Params: map[string]any{"country": "fr"}, AlertID: alert(5)}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLStore(ctx, dsn)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindExistingOrCreate(ctx, &model.EnumerationItem{Params: map[string]any{"country": "fr"}, AlertID: alert(5)}, nil)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := Open(ctx, config.StoreSettings{Driver: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, config.StoreSettings{Driver: "sqlite3", DSN: memoryDSN()})
	require.NoError(t, err)
	require.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StoreSettings{Driver: "mongo"})
	require.Error(t, err)
}
