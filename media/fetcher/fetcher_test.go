package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/settings"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func readAll(t *testing.T, src *Source) string {
	t.Helper()
	data, err := io.ReadAll(src)
	require.NoError(t, err)
	return string(data)
}

func TestSourceCloseRemovesFile(t *testing.T) {
	src, err := copyToSource(t.TempDir(), strings.NewReader("pixels"), 0, nil)
	require.NoError(t, err)
	name := src.Name()
	assert.Equal(t, int64(6), src.Size)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry(t *testing.T) {
	reg := NewDefaultRegistry(settings.New(), Options{})
	assert.Equal(t, []string{"file", "http", "https"}, reg.Schemes())

	_, err := reg.For("HTTPS")
	assert.NoError(t, err)

	_, err = reg.For("gopher")
	require.Error(t, err)
	assert.Equal(t, "No fetcher registered for gopher", err.Error())
	_, hasStatus := errors.StatusOf(err)
	assert.False(t, hasStatus)

	reg.Register("mem", FetcherFunc(func(ctx context.Context, u *url.URL) (*Source, error) {
		return copyToSource("", strings.NewReader(u.Path), 0, nil)
	}))
	f, err := reg.For("mem")
	require.NoError(t, err)
	src, err := f.Fetch(context.Background(), mustURL(t, "mem:///abc"))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "/abc", readAll(t, src))
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "картинка с пробелом.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("not really a png"), 0o644))

	s := settings.New()
	fetcher := NewFileFetcher(s, Options{TempDir: t.TempDir()})
	u := mustURL(t, fileURL(imagePath))

	_, err := fetcher.Fetch(context.Background(), u)
	require.Error(t, err)
	assert.Equal(t, "filesystem access is disabled", err.Error())
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusForbidden, status)

	s.AllowFilesystemSource(filepath.Join(t.TempDir(), "*"))
	_, err = fetcher.Fetch(context.Background(), u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not on the path whitelist")
	assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))

	s.AllowFilesystemSource(filepath.Join(dir, "*"))
	src, err := fetcher.Fetch(context.Background(), u)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "not really a png", readAll(t, src))
}

func TestFileFetcherGlobCoversSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	imagePath := filepath.Join(dir, "sub", "a.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("nested"), 0o644))

	s := settings.New()
	s.AllowFilesystemSource(filepath.Join(dir, "*"))
	fetcher := NewFileFetcher(s, Options{TempDir: t.TempDir()})

	src, err := fetcher.Fetch(context.Background(), mustURL(t, fileURL(imagePath)))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "nested", readAll(t, src))
}

func TestFileFetcherSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.jpg")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{1}, 2048), 0o644))

	s := settings.New()
	s.AllowFilesystemSource(filepath.Join(dir, "*"))
	require.NoError(t, s.SetMaxSourceSize(1024))

	_, err := NewFileFetcher(s, Options{}).Fetch(context.Background(), mustURL(t, fileURL(path)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTooLarge))
	assert.Contains(t, err.Error(), "is too large to process (2048 bytes)")
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFileFetcherMissingFile(t *testing.T) {
	dir := t.TempDir()
	s := settings.New()
	s.AllowFilesystemSource(filepath.Join(dir, "*"))

	_, err := NewFileFetcher(s, Options{}).Fetch(context.Background(), mustURL(t, fileURL(filepath.Join(dir, "nope.png"))))
	require.Error(t, err)
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPathFromURL(t *testing.T) {
	path, err := PathFromURL(mustURL(t, "file:///tmp/a%20b/%D1%84.png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/tmp/a b/ф.png"), path)
}

// countingTransport records how many requests reach the network.
type countingTransport struct {
	calls int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.RoundTrip(req)
}

func newHTTPFixture(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *settings.Settings, *countingTransport, *HTTPFetcher) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s := settings.New()
	transport := &countingTransport{next: http.DefaultTransport}
	f := NewHTTPFetcher(s, Options{TempDir: t.TempDir(), Transport: transport})
	return server, s, transport, f
}

func TestHTTPFetcherHostCheckedBeforeConnecting(t *testing.T) {
	server, _, transport, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image"))
	})

	_, err := f.Fetch(context.Background(), mustURL(t, server.URL+"/a.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not permitted as source")
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&transport.calls))
}

func TestHTTPFetcherDownloads(t *testing.T) {
	server, s, transport, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	})
	s.AddAllowedHost("127.0.0.1")

	src, err := f.Fetch(context.Background(), mustURL(t, server.URL+"/a.jpg"))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "image bytes", readAll(t, src))
	assert.Equal(t, int64(11), src.Size)
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.calls))
}

func TestHTTPFetcherReplaysUpstreamStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError} {
		server, s, _, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		s.AddAllowedHost("127.0.0.1")

		u := server.URL + "/missing.jpg"
		_, err := f.Fetch(context.Background(), mustURL(t, u))
		require.Error(t, err)
		status, ok := errors.StatusOf(err)
		assert.True(t, ok)
		assert.Equal(t, code, status)
		assert.Contains(t, err.Error(), "Unfortunate upstream response")
		assert.Contains(t, err.Error(), u)
	}
}

func TestHTTPFetcherSizeLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 4096)

	t.Run("content length", func(t *testing.T) {
		server, s, _, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.Write(payload)
		})
		s.AddAllowedHost("127.0.0.1")
		require.NoError(t, s.SetMaxSourceSize(1024))

		_, err := f.Fetch(context.Background(), mustURL(t, server.URL+"/big.jpg"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTooLarge))
		status, _ := errors.StatusOf(err)
		assert.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("streamed", func(t *testing.T) {
		server, s, _, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for i := 0; i < 4; i++ {
				w.Write(payload[:1024])
				flusher.Flush()
			}
		})
		s.AddAllowedHost("127.0.0.1")
		require.NoError(t, s.SetMaxSourceSize(1024))

		_, err := f.Fetch(context.Background(), mustURL(t, server.URL+"/big.jpg"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTooLarge))
		status, _ := errors.StatusOf(err)
		assert.Equal(t, http.StatusBadGateway, status)
	})
}

func TestHTTPFetcherRedirectToForeignHost(t *testing.T) {
	server, s, _, f := newHTTPFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.invalid/x.jpg", http.StatusFound)
	})
	s.AddAllowedHost("127.0.0.1")

	_, err := f.Fetch(context.Background(), mustURL(t, server.URL+"/a.jpg"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
}

func TestHTTPFetcherNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u := server.URL + "/a.jpg"
	server.Close()

	s := settings.New()
	s.AddAllowedHost("127.0.0.1")

	_, err := NewHTTPFetcher(s, Options{}).Fetch(context.Background(), mustURL(t, u))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUpstream))
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusBadGateway, status)
}

type fakeBucket struct {
	objects   map[string][]byte
	metaCalls int
	getCalls  int
}

func (b *fakeBucket) GetObjectDetailedMeta(key string, _ ...oss.Option) (http.Header, error) {
	b.metaCalls++
	data, ok := b.objects[key]
	if !ok {
		return nil, oss.ServiceError{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	h := http.Header{}
	h.Set("Content-Length", strconv.Itoa(len(data)))
	return h, nil
}

func (b *fakeBucket) GetObject(key string, _ ...oss.Option) (io.ReadCloser, error) {
	b.getCalls++
	return io.NopCloser(bytes.NewReader(b.objects[key])), nil
}

func TestOSSFetcher(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{
		"photos/a.jpg": []byte("jpeg bytes"),
		"photos/b.jpg": bytes.Repeat([]byte{1}, 2048),
	}}
	s := settings.New()
	f := NewOSSFetcher(s, func(name string) (Bucket, error) {
		assert.Equal(t, "media", name)
		return bucket, nil
	}, Options{TempDir: t.TempDir()})

	_, err := f.Fetch(context.Background(), mustURL(t, "oss://media/photos/a.jpg"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
	assert.Equal(t, 0, bucket.metaCalls)

	s.AddAllowedHost("media")
	src, err := f.Fetch(context.Background(), mustURL(t, "oss://media/photos/a.jpg"))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "jpeg bytes", readAll(t, src))

	_, err = f.Fetch(context.Background(), mustURL(t, "oss://media/photos/missing.jpg"))
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, s.SetMaxSourceSize(1024))
	getsBefore := bucket.getCalls
	_, err = f.Fetch(context.Background(), mustURL(t, "oss://media/photos/b.jpg"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeTooLarge))
	assert.Equal(t, getsBefore, bucket.getCalls)

	_, err = f.Fetch(context.Background(), mustURL(t, "oss://media/"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeURL))
}
