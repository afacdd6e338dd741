package cache

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/heywhy/bucket/internal/infrastructure/sqlite"
	"github.com/heywhy/bucket/internal/storage"
)

func newCache(t *testing.T, backend storage.Backend, namespace string) *Cache {
	t.Helper()
	c, err := New(backend, WithNamespace(namespace))
	require.NoError(t, err)
	return c
}

func TestCache_StoreRetrieve(t *testing.T) {
	c := newCache(t, storage.NewMemory(), "loader")

	require.NoError(t, c.Store("app/App.yaml", "components: []"))
	require.NoError(t, c.Store("meta", map[string]int{"n": 1}))

	record, err := c.Retrieve("app/App.yaml")
	require.NoError(t, err)
	require.Equal(t, "app/App.yaml", record.Key)
	require.Equal(t, "components: []", record.String())

	record, err = c.Retrieve("meta")
	require.NoError(t, err)
	var meta map[string]int
	require.NoError(t, record.Decode(&meta))
	require.Equal(t, map[string]int{"n": 1}, meta)

	missing, err := c.Retrieve("nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCache_PersistedLayout(t *testing.T) {
	backend := storage.NewMemory()
	c := newCache(t, backend, "7")
	require.NoError(t, c.Store("k", "v"))

	raw, ok, err := backend.GetItem(LogKey)
	require.NoError(t, err)
	require.True(t, ok)

	var doc map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.JSONEq(t, `{"key":"k","value":"v"}`, doc["CacheLogger"]["7"]["k"])
}

func TestCache_DeleteConsumeClear(t *testing.T) {
	c := newCache(t, storage.NewMemory(), "ns")
	require.NoError(t, c.Store("a", 1))
	require.NoError(t, c.Store("b", 2))
	require.NoError(t, c.Store("c", 3))

	found, err := c.Delete("a")
	require.NoError(t, err)
	require.True(t, found)

	found, err = c.Delete("a")
	require.NoError(t, err)
	require.False(t, found)

	record, err := c.Consume("b")
	require.NoError(t, err)
	require.Equal(t, "2", record.String())

	record, err = c.Consume("b")
	require.NoError(t, err)
	require.Nil(t, record)

	n, err := c.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, c.Clear())
	all, err := c.GetAll()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCache_NamespacesIsolated(t *testing.T) {
	backend := storage.NewMemory()
	first := newCache(t, backend, "first")
	second := newCache(t, backend, "second")

	require.NoError(t, first.Store("k", "one"))
	require.NoError(t, second.Store("k", "two"))
	require.NoError(t, second.Clear())

	record, err := first.Retrieve("k")
	require.NoError(t, err)
	require.Equal(t, "one", record.String())

	names, err := Namespaces(backend)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, names)
}

func TestCache_CounterNamespaces(t *testing.T) {
	backend := storage.NewMemory()
	a, err := New(backend)
	require.NoError(t, err)
	b, err := New(backend)
	require.NoError(t, err)
	require.NotEqual(t, a.Namespace(), b.Namespace())
	require.Equal(t, "Cache::"+a.Namespace(), a.String())
}

func TestCache_BurstAll(t *testing.T) {
	backend := storage.NewMemory()
	c := newCache(t, backend, "ns")
	require.NoError(t, c.Store("k", "v"))

	require.NoError(t, BurstAll(backend))

	record, err := c.Retrieve("k")
	require.NoError(t, err)
	require.Nil(t, record)

	require.NoError(t, c.Store("k", "again"))
	keys, err := c.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"k"}, keys)
}

func TestCache_CorruptLog(t *testing.T) {
	backend := storage.NewMemory()
	require.NoError(t, backend.SetItem(LogKey, "{not json"))

	_, err := New(backend, WithNamespace("ns"))
	require.ErrorContains(t, err, "decoding CacheLogger")
}

func TestCache_SQLiteBackend(t *testing.T) {
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "bucket.db"))
	require.NoError(t, err)
	defer db.Close()

	c := newCache(t, db.Store(), "loader")
	require.NoError(t, c.Store("app/App.yaml", "source"))

	reopened := newCache(t, db.Store(), "loader")
	record, err := reopened.Retrieve("app/App.yaml")
	require.NoError(t, err)
	require.Equal(t, "source", record.String())
}

// Property: the cache behaves like a map from key to last stored value.
func TestCache_MatchesMapModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, err := New(storage.NewMemory(), WithNamespace("model"))
		if err != nil {
			t.Fatal(err)
		}
		model := map[string]string{}
		keys := []string{"a", "b", "c", "d"}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			key := rapid.SampledFrom(keys).Draw(t, "key")
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				value := rapid.String().Draw(t, "value")
				if err := c.Store(key, value); err != nil {
					t.Fatal(err)
				}
				model[key] = value
			case 1:
				found, err := c.Delete(key)
				if err != nil {
					t.Fatal(err)
				}
				_, want := model[key]
				if found != want {
					t.Fatalf("Delete(%q) = %v, want %v", key, found, want)
				}
				delete(model, key)
			case 2:
				record, err := c.Consume(key)
				if err != nil {
					t.Fatal(err)
				}
				want, ok := model[key]
				if ok != (record != nil) || (ok && record.String() != want) {
					t.Fatalf("Consume(%q) = %v, want %q", key, record, want)
				}
				delete(model, key)
			case 3:
				if err := c.Clear(); err != nil {
					t.Fatal(err)
				}
				model = map[string]string{}
			}

			n, err := c.Len()
			if err != nil {
				t.Fatal(err)
			}
			if n != len(model) {
				t.Fatalf("Len = %d, model has %d", n, len(model))
			}
		}
	})
}
