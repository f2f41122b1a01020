// Package settings holds the mutable tables the render engine consults on
// every request: allowed hosts, filesystem globs, secret keys, the default
// cache lifetime and the source size ceiling.
package settings

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/leeforge/imagevise/errors"
)

const (
	// DefaultCacheLifetime is 30 days in seconds.
	DefaultCacheLifetime = 2592000
	// DefaultMaxSourceSize is 48 MiB.
	DefaultMaxSourceSize int64 = 48 * 1024 * 1024
)

// Settings is safe for concurrent use.
type Settings struct {
	mu            sync.RWMutex
	hosts         map[string]struct{}
	globs         map[string]*regexp.Regexp
	keys          []string
	cacheLifetime int
	maxSourceSize int64
}

func New() *Settings {
	return &Settings{
		hosts:         make(map[string]struct{}),
		globs:         make(map[string]*regexp.Regexp),
		cacheLifetime: DefaultCacheLifetime,
		maxSourceSize: DefaultMaxSourceSize,
	}
}

// Hosts

func (s *Settings) AddAllowedHost(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[host] = struct{}{}
}

func (s *Settings) ResetAllowedHosts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = make(map[string]struct{})
}

// ReplaceAllowedHosts swaps the whole host table at once.
func (s *Settings) ReplaceAllowedHosts(hosts []string) {
	next := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			next[h] = struct{}{}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = next
}

// AllowedHosts returns a sorted copy.
func (s *Settings) AllowedHosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.hosts)
}

func (s *Settings) HostAllowed(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hosts[strings.ToLower(host)]
	return ok
}

// Filesystem globs

func (s *Settings) AllowFilesystemSource(glob string) {
	if glob == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globs[glob] = compileGlob(glob)
}

func (s *Settings) DenyFilesystemSources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globs = make(map[string]*regexp.Regexp)
}

// ReplaceFilesystemSources swaps the whole glob table at once.
func (s *Settings) ReplaceFilesystemSources(globs []string) {
	next := make(map[string]*regexp.Regexp, len(globs))
	for _, g := range globs {
		if g != "" {
			next[g] = compileGlob(g)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globs = next
}

func (s *Settings) AllowedFilesystemSources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.globs)
}

// PathAllowed reports whether path matches one of the filesystem globs.
// Wildcards cross directory boundaries. Malformed globs never match.
func (s *Settings) PathAllowed(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, re := range s.globs {
		if re != nil && re.MatchString(path) {
			return true
		}
	}
	return false
}

// Secret keys

func (s *Settings) AddSecretKey(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k == key {
			return
		}
	}
	s.keys = append(s.keys, key)
}

func (s *Settings) ResetSecretKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
}

// ReplaceSecretKeys installs a new key set in one step, for key rotation.
func (s *Settings) ReplaceSecretKeys(keys []string) {
	next := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; k == "" || dup {
			continue
		}
		seen[k] = struct{}{}
		next = append(next, k)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = next
}

// SecretKeys returns a copy of the configured keys, or an internal error
// when there are none.
func (s *Settings) SecretKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.keys) == 0 {
		return nil, errors.NewInternal("No keys set, add a key using Settings.AddSecretKey")
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

// Cache lifetime

func (s *Settings) SetCacheLifetime(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("cache lifetime must be positive, got %d", seconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheLifetime = seconds
	return nil
}

func (s *Settings) CacheLifetime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheLifetime
}

func (s *Settings) ResetCacheLifetime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheLifetime = DefaultCacheLifetime
}

// Source size

func (s *Settings) SetMaxSourceSize(bytes int64) error {
	if bytes <= 0 {
		return fmt.Errorf("max source size must be positive, got %d", bytes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSourceSize = bytes
	return nil
}

func (s *Settings) MaxSourceSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSourceSize
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
