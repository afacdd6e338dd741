package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher reads the source text stored at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, location string) (string, error) {
	return f(ctx, location)
}

// HTTPFetcher fetches sources with GET requests.
type HTTPFetcher struct {
	Client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher with a 30 second client timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch returns the response body. Any status other than 200 fails with a
// *FetchError carrying the status.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", &FetchError{URL: location, Reason: err.Error()}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: location, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: location, Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: location, Status: resp.StatusCode, Reason: err.Error()}
	}
	return string(body), nil
}

// FileFetcher reads sources from the local filesystem.
type FileFetcher struct{}

var _ Fetcher = FileFetcher{}

func (FileFetcher) Fetch(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(location) //nolint:gosec // G304: locations come from the configured base
	if err != nil {
		reason := err.Error()
		if errors.Is(err, os.ErrNotExist) {
			reason = "not found"
		}
		return "", &FetchError{URL: location, Reason: reason}
	}
	return string(data), nil
}

// isRemote reports whether location is an http(s) URL.
func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// schemeFetcher dispatches to remote or local by the location's scheme.
type schemeFetcher struct {
	remote Fetcher
	local  Fetcher
}

func (s schemeFetcher) Fetch(ctx context.Context, location string) (string, error) {
	if isRemote(location) {
		return s.remote.Fetch(ctx, location)
	}
	if s.local == nil {
		return "", fmt.Errorf("%w: %s: no local fetcher", ErrFetchFailed, location)
	}
	return s.local.Fetch(ctx, location)
}
