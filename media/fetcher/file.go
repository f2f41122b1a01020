package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/settings"
)

// FileFetcher copies files from the local filesystem. Only paths matching
// one of the allowed globs may be read.
type FileFetcher struct {
	settings *settings.Settings
	tempDir  string
}

func NewFileFetcher(s *settings.Settings, opts Options) *FileFetcher {
	return &FileFetcher{settings: s, tempDir: opts.TempDir}
}

func (f *FileFetcher) Fetch(_ context.Context, u *url.URL) (*Source, error) {
	path, err := PathFromURL(u)
	if err != nil {
		return nil, err
	}

	if len(f.settings.AllowedFilesystemSources()) == 0 {
		return nil, errors.NewAccess("filesystem access is disabled")
	}
	if !f.settings.PathAllowed(path) {
		return nil, errors.NewAccess(fmt.Sprintf("%s is not on the path whitelist", path))
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrorTypeUpstream, fmt.Sprintf("%s does not exist", path)).
				WithHTTPStatus(http.StatusNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.NewAccess(fmt.Sprintf("%s is a directory", path))
	}

	limit := f.settings.MaxSourceSize()
	if info.Size() > limit {
		return nil, errors.NewTooLarge(fmt.Sprintf("%s is too large to process (%d bytes)", path, info.Size()), http.StatusBadRequest)
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	return copyToSource(f.tempDir, in, limit, func(n int64) error {
		return errors.NewTooLarge(fmt.Sprintf("%s is too large to process (%d bytes)", path, n), http.StatusBadRequest)
	})
}

// PathFromURL percent-decodes each path component of a file:// URL
// (slashes stay literal) and makes the result absolute.
func PathFromURL(u *url.URL) (string, error) {
	components := strings.Split(u.EscapedPath(), "/")
	for i, c := range components {
		decoded, err := url.PathUnescape(c)
		if err != nil {
			return "", errors.NewURL(fmt.Sprintf("%s has a malformed path: %v", u, err))
		}
		components[i] = decoded
	}
	return filepath.Abs(filepath.FromSlash(strings.Join(components, "/")))
}
