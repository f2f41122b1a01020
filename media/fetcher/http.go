package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/settings"
)

// maxRedirects matches net/http's own default.
const maxRedirects = 10

// HTTPFetcher downloads sources from allow-listed hosts.
type HTTPFetcher struct {
	settings *settings.Settings
	client   *http.Client
	tempDir  string
}

func NewHTTPFetcher(s *settings.Settings, opts Options) *HTTPFetcher {
	timeout := opts.timeout()
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
		t.TLSHandshakeTimeout = timeout
		t.ResponseHeaderTimeout = timeout
		transport = t
	}

	f := &HTTPFetcher{settings: s, tempDir: opts.TempDir}
	f.client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return f.checkHost(req.URL)
		},
	}
	return f
}

func (f *HTTPFetcher) checkHost(u *url.URL) error {
	if !f.settings.HostAllowed(u.Hostname()) {
		return errors.NewAccess(fmt.Sprintf("%s is not permitted as source", u))
	}
	return nil
}

// Fetch checks the host before any connection is made.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) (*Source, error) {
	if err := f.checkHost(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.NewURL(err.Error()).WithInnerError(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.NewUpstreamFailure(err, u.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstream(resp.StatusCode, u.String())
	}

	limit := f.settings.MaxSourceSize()
	if resp.ContentLength > limit {
		return nil, errors.NewTooLarge(fmt.Sprintf("%s is too large to process (%d bytes)", u, resp.ContentLength), http.StatusBadGateway)
	}

	src, err := copyToSource(f.tempDir, resp.Body, limit, func(n int64) error {
		return errors.NewTooLarge(fmt.Sprintf("%s is too large to process (more than %d bytes)", u, limit), http.StatusBadGateway)
	})
	if err != nil {
		if errors.FromError(err).Type == errors.ErrorTypeUnknown {
			return nil, errors.NewUpstreamFailure(err, u.String())
		}
		return nil, err
	}
	return src, nil
}
