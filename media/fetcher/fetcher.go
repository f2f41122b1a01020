// Package fetcher copies render sources into local temporary files.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/settings"
)

// DefaultTimeout bounds connecting to and reading from a remote source.
const DefaultTimeout = 5 * time.Second

// Fetcher retrieves the source behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*Source, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, u *url.URL) (*Source, error)

func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) (*Source, error) {
	return f(ctx, u)
}

// Source is a fetched file on local disk, positioned at its start.
// Close removes the file.
type Source struct {
	*os.File
	Size int64
}

// Close closes and removes the underlying file. It is safe to call twice.
func (s *Source) Close() error {
	if s == nil || s.File == nil {
		return nil
	}
	name := s.Name()
	closeErr := s.File.Close()
	removeErr := os.Remove(name)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	if closeErr != nil && !stderrors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}

// copyToSource streams r into a new temp file. When limit is positive and
// r carries more than limit bytes, tooLarge builds the returned error.
func copyToSource(dir string, r io.Reader, limit int64, tooLarge func(n int64) error) (*Source, error) {
	f, err := os.CreateTemp(dir, "imagevise-source-*")
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeInternal, "failed to create temp file")
	}
	src := &Source{File: f}

	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, reader)
	if err != nil {
		src.Close()
		return nil, err
	}
	if limit > 0 && n > limit {
		src.Close()
		return nil, tooLarge(n)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		src.Close()
		return nil, err
	}
	src.Size = n
	return src, nil
}

// Options configure the default fetchers.
type Options struct {
	// TempDir holds downloaded sources. Empty means os.TempDir().
	TempDir string
	// Timeout applies to remote fetches. Zero means DefaultTimeout.
	Timeout time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Registry 协议 -> 拉取器注册表
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// NewDefaultRegistry registers the file, http and https fetchers.
func NewDefaultRegistry(s *settings.Settings, opts Options) *Registry {
	r := NewRegistry()
	r.Register("file", NewFileFetcher(s, opts))
	httpFetcher := NewHTTPFetcher(s, opts)
	r.Register("http", httpFetcher)
	r.Register("https", httpFetcher)
	return r
}

// Register 注册拉取器，同名协议会被覆盖
func (r *Registry) Register(scheme string, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[strings.ToLower(scheme)] = f
}

// For 获取协议对应的拉取器
func (r *Registry) For(scheme string) (Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fetchers[strings.ToLower(scheme)]
	if !ok {
		return nil, errors.NewInternal(fmt.Sprintf("No fetcher registered for %s", scheme))
	}
	return f, nil
}

// Schemes 列出所有已注册协议
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
