package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heywhy/bucket/internal/cache"
	"github.com/heywhy/bucket/internal/registry"
	"github.com/heywhy/bucket/internal/storage"
)

type evaluation struct {
	location string
	text     string
}

type fakeEvaluator struct {
	evaluated []evaluation
	err       error
}

func (e *fakeEvaluator) Evaluate(_ context.Context, location, text string) error {
	e.evaluated = append(e.evaluated, evaluation{location, text})
	return e.err
}

func (e *fakeEvaluator) Extensions() []string {
	return []string{".yaml", ".yml", ".hcl"}
}

type countingFetcher struct {
	sources map[string]string
	calls   map[string]int
}

func newCountingFetcher(sources map[string]string) *countingFetcher {
	return &countingFetcher{sources: sources, calls: map[string]int{}}
}

func (f *countingFetcher) Fetch(_ context.Context, location string) (string, error) {
	f.calls[location]++
	text, ok := f.sources[location]
	if !ok {
		return "", &FetchError{URL: location, Status: http.StatusNotFound, Reason: "Not Found"}
	}
	return text, nil
}

func newLoader(t *testing.T, opts Options, options ...Option) *Loader {
	t.Helper()
	l, err := New(opts, options...)
	require.NoError(t, err)
	return l
}

func TestResolve_BaseAndExtension(t *testing.T) {
	l := newLoader(t, Options{}, WithEvaluator(&fakeEvaluator{}))

	require.Equal(t, "app/App/Welcome.yaml", l.Resolve("App/Welcome"))
	require.Equal(t, "app/App/Welcome.yaml", l.Resolve(`App\Welcome`))
	require.Equal(t, "app/App/Welcome.hcl", l.Resolve("App/Welcome.hcl"))
	require.Equal(t, "app/App/v1.2.yaml", l.Resolve("App/v1.2"))
}

func TestResolve_FirstMatchingFilterWins(t *testing.T) {
	l := newLoader(t, Options{
		Base:      "https://cdn.example.com/components/",
		Extension: "yml",
		Filters: []Filter{
			{Prefix: "bucket/", Replacement: "vendor/bucket/"},
			{Prefix: "Bucket/Cache", Replacement: "never/"},
		},
	})

	require.Equal(t, "vendor/bucket/Cache.yml", l.Resolve("Bucket/Cache"))
	require.Equal(t, "https://cdn.example.com/components/App.yml", l.Resolve("App"))
}

func TestLoad_FiresEventsAndEvaluatesInOrder(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{
		"app/A.yaml": "a",
		"app/B.yaml": "b",
	})
	evaluator := &fakeEvaluator{}
	l := newLoader(t, Options{}, WithFetcher(fetcher), WithEvaluator(evaluator))

	var fired []string
	for _, name := range []string{"beforeload.A", "afterload.A", "beforeload.B", "afterload.B"} {
		l.Listen(name, func(args ...any) {
			require.Empty(t, evaluator.evaluated, "evaluation happens after every fetch")
			fired = append(fired, name)
		})
	}

	require.NoError(t, l.Load(context.Background(), "A", "B"))
	require.Equal(t, []string{"beforeload.A", "afterload.A", "beforeload.B", "afterload.B"}, fired)
	require.Equal(t, []evaluation{{"app/A.yaml", "a"}, {"app/B.yaml", "b"}}, evaluator.evaluated)
}

func TestLoad_FetchFailureAborts(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	evaluator := &fakeEvaluator{}
	l := newLoader(t, Options{}, WithFetcher(fetcher), WithEvaluator(evaluator))

	afterB := false
	l.Listen("afterload.Missing", func(args ...any) { afterB = true })

	err := l.Load(context.Background(), "A", "Missing", "Never")
	require.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "app/Missing.yaml", fetchErr.URL)
	require.Equal(t, http.StatusNotFound, fetchErr.Status)

	require.False(t, afterB)
	require.Empty(t, evaluator.evaluated)
	require.Zero(t, fetcher.calls["app/Never.yaml"])
}

func TestLoad_RejectsRelativeSegments(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	l := newLoader(t, Options{}, WithFetcher(fetcher))

	fired := false
	l.Listen("beforeload.A", func(args ...any) { fired = true })

	_, err := l.Fetch(context.Background(), "A", `App\..\..\etc\passwd`)
	require.ErrorIs(t, err, registry.ErrInvalidRegistration)
	require.False(t, fired)
	require.Empty(t, fetcher.calls)
}

func TestLoad_EvaluatorError(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	boom := errors.New("bad manifest")
	l := newLoader(t, Options{}, WithFetcher(fetcher), WithEvaluator(&fakeEvaluator{err: boom}))

	err := l.Load(context.Background(), "A")
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "app/A.yaml")
}

func TestLoad_FileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "App"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "App", "Main.yaml"), []byte("main"), 0o644))

	l := newLoader(t, Options{Base: dir})
	sources, err := l.Fetch(context.Background(), "App/Main")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "main", sources[0].Text)
	require.Equal(t, "App/Main", sources[0].ID)

	_, err = l.Fetch(context.Background(), "App/Nope")
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestLoad_HTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app/App.yaml" {
			_, _ = w.Write([]byte("components: []"))
			return
		}
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	l := newLoader(t, Options{Base: server.URL + "/app"})

	sources, err := l.Fetch(context.Background(), "App")
	require.NoError(t, err)
	require.Equal(t, "components: []", sources[0].Text)

	_, err = l.Fetch(context.Background(), "Secret")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusForbidden, fetchErr.Status)
	require.Equal(t, server.URL+"/app/Secret.yaml", fetchErr.URL)
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPFetcher().Fetch(ctx, server.URL)
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestRequire_ReturnsRawText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	evaluator := &fakeEvaluator{}
	l := newLoader(t, Options{}, WithEvaluator(evaluator))

	texts, err := l.Require(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{"raw"}, texts)
	require.Empty(t, evaluator.evaluated)
}

func TestRequire_RelativeToRemoteOrigin(t *testing.T) {
	l := newLoader(t, Options{Base: "https://example.com/static/app"})
	require.Equal(t, "https://example.com/docs/readme.md", l.locate("docs/readme.md"))
	require.Equal(t, "/abs/file", l.locate("/abs/file"))
}

func TestConfigure_InvalidExpiryKeepsOptions(t *testing.T) {
	l := newLoader(t, Options{Base: "first"})

	err := l.Configure(Options{Base: "second", Cache: CachePolicy{Automate: true, Expires: "1 fortnight"}})
	require.ErrorIs(t, err, ErrInvalidCacheExpiry)
	require.Equal(t, "first", l.Options().Base)

	err = l.Configure(Options{Filters: []Filter{{Prefix: ""}}})
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func newStore(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(storage.NewMemory(), cache.WithNamespace("loader"))
	require.NoError(t, err)
	return c
}

func TestCache_AutomatedCachingAvoidsRefetch(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	store := newStore(t)
	opts := Options{Cache: CachePolicy{Automate: true, Expires: "1 hour"}}

	l := newLoader(t, opts, WithFetcher(fetcher), WithCache(store))
	for i := 0; i < 3; i++ {
		_, err := l.Fetch(context.Background(), "A")
		require.NoError(t, err)
	}
	require.Equal(t, 1, fetcher.calls["app/A.yaml"])

	// A second loader over the same store reads the persisted copy.
	other := newLoader(t, opts, WithFetcher(fetcher), WithCache(store))
	sources, err := other.Fetch(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, "a", sources[0].Text)
	require.Equal(t, 1, fetcher.calls["app/A.yaml"])

	locations, err := l.CachedLocations()
	require.NoError(t, err)
	require.Equal(t, []string{"app/A.yaml"}, locations)
}

func TestCache_DisabledAlwaysFetches(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	l := newLoader(t, Options{}, WithFetcher(fetcher), WithCache(newStore(t)))

	for i := 0; i < 2; i++ {
		_, err := l.Fetch(context.Background(), "A")
		require.NoError(t, err)
	}
	require.Equal(t, 2, fetcher.calls["app/A.yaml"])
}

func TestCache_ExpiryPurges(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a"})
	store := newStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	opts := Options{Cache: CachePolicy{Automate: true, Expires: "1 day"}}

	l := newLoader(t, opts, WithFetcher(fetcher), WithCache(store), WithClock(clock))
	_, err := l.Fetch(context.Background(), "A")
	require.NoError(t, err)

	record, err := store.Retrieve(BookkeepingKey)
	require.NoError(t, err)
	var book bookkeeping
	require.NoError(t, record.Decode(&book))
	require.Equal(t, now.UnixMilli(), book.Updated)
	require.Equal(t, now.Add(Day).UnixMilli(), book.Expires)

	// Not expired yet.
	now = now.Add(23 * time.Hour)
	require.NoError(t, l.Update())
	cached, err := store.Retrieve("app/A.yaml")
	require.NoError(t, err)
	require.NotNil(t, cached)

	now = now.Add(time.Hour)
	require.NoError(t, l.Update())
	cached, err = store.Retrieve("app/A.yaml")
	require.NoError(t, err)
	require.Nil(t, cached)

	record, err = store.Retrieve(BookkeepingKey)
	require.NoError(t, err)
	require.NoError(t, record.Decode(&book))
	require.Equal(t, now.UnixMilli(), book.Updated)

	_, err = l.Fetch(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.calls["app/A.yaml"])
}

func TestCache_BurstAndInvalidate(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "a", "app/B.yaml": "b"})
	store := newStore(t)
	l := newLoader(t, Options{Cache: CachePolicy{Automate: true, Expires: "1 week"}},
		WithFetcher(fetcher), WithCache(store))

	_, err := l.Fetch(context.Background(), "A", "B")
	require.NoError(t, err)

	require.NoError(t, l.Invalidate("app/A.yaml"))
	_, err = l.Fetch(context.Background(), "A", "B")
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.calls["app/A.yaml"])
	require.Equal(t, 1, fetcher.calls["app/B.yaml"])

	require.NoError(t, l.BurstCache())
	n, err := store.Len()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDiff(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "one\ntwo\nthree\n"})
	store := newStore(t)
	l := newLoader(t, Options{Cache: CachePolicy{Automate: true, Expires: "1 day"}},
		WithFetcher(fetcher), WithCache(store))

	_, err := l.Fetch(context.Background(), "A")
	require.NoError(t, err)

	d, err := l.Diff(context.Background(), "A")
	require.NoError(t, err)
	require.True(t, d.Cached)
	require.False(t, d.Changed())

	fetcher.sources["app/A.yaml"] = "one\n2\nthree\n"
	d, err = l.Diff(context.Background(), "A")
	require.NoError(t, err)
	require.True(t, d.Changed())
	require.Equal(t, "--- cached app/A.yaml\n+++ fresh app/A.yaml\n one\n-two\n+2\n three\n", d.String())
}

func TestDiff_Uncached(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{"app/A.yaml": "x\n"})
	l := newLoader(t, Options{}, WithFetcher(fetcher))

	d, err := l.Diff(context.Background(), "A")
	require.NoError(t, err)
	require.False(t, d.Cached)
	require.True(t, d.Changed())
}
