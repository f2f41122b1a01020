// Package server assembles the render engine, its routes and the
// listeners from an AppConfig.
package server

import (
	"context"
	"fmt"
	"net/http"
	goruntime "runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/concurrency"
	"github.com/leeforge/imagevise/config"
	"github.com/leeforge/imagevise/http/middleware"
	"github.com/leeforge/imagevise/http/responder"
	"github.com/leeforge/imagevise/logging"
	"github.com/leeforge/imagevise/media/fetcher"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/render"
	"github.com/leeforge/imagevise/media/settings"
	"github.com/leeforge/imagevise/metrics"
	"github.com/leeforge/imagevise/redis_client"
)

const healthCheckTimeout = 2 * time.Second

// Server owns the long-lived objects of one imagevise process.
type Server struct {
	cfg       *config.AppConfig
	settings  *settings.Settings
	operators *operator.Registry
	fetchers  *fetcher.Registry
	collector *metrics.Collector
	engine    *render.Engine
	router    chi.Router
	logger    logging.Logger

	fetchOpts fetcher.Options

	mu           sync.RWMutex
	keySync      *redis_client.KeySync
	healthChecks map[string]func(context.Context) error
}

type Option func(*Server)

// WithOperators replaces the built-in operator registry.
func WithOperators(reg *operator.Registry) Option {
	return func(s *Server) { s.operators = reg }
}

// WithTransport sets the HTTP transport used by the http and https fetchers.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) { s.fetchOpts.Transport = rt }
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(cfg *config.AppConfig, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		settings:     settings.New(),
		logger:       logging.Global(),
		healthChecks: make(map[string]func(context.Context) error),
		fetchOpts: fetcher.Options{
			TempDir: cfg.Render.TempDir,
			Timeout: cfg.Fetch.HTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.operators == nil {
		s.operators = operator.NewDefaultRegistry()
	}

	if err := cfg.Render.Apply(s.settings); err != nil {
		return nil, fmt.Errorf("render settings: %w", err)
	}
	sources, err := cfg.Render.Sources()
	if err != nil {
		return nil, err
	}
	outputs, err := cfg.Render.Outputs()
	if err != nil {
		return nil, err
	}
	mode, err := render.ParseTokenMode(cfg.Render.TokenMode)
	if err != nil {
		return nil, err
	}

	s.fetchers = fetcher.NewDefaultRegistry(s.settings, s.fetchOpts)
	if cfg.OSS.Enabled {
		buckets, err := fetcher.NewOSSBucketResolver(cfg.OSS.Endpoint, cfg.OSS.AccessKeyID, cfg.OSS.AccessKeySecret)
		if err != nil {
			return nil, err
		}
		s.fetchers.Register("oss", fetcher.NewOSSFetcher(s.settings, buckets, s.fetchOpts))
	}

	maxRenders := cfg.Server.MaxConcurrentRenders
	if maxRenders == 0 {
		maxRenders = goruntime.NumCPU()
	}

	limiter := concurrency.NewConcurrencyLimiter(maxRenders, cfg.Server.RenderWait)
	s.collector = metrics.NewCollector(cfg.Metrics.Namespace)
	s.collector.ObserveLimiter(limiter.Capacity(), limiter.InFlight)
	s.engine = render.New(render.Options{
		Settings:           s.settings,
		Operators:          s.operators,
		Fetchers:           s.fetchers,
		Instrumenter:       s.collector,
		Limiter:            limiter,
		Logger:             s.logger,
		TokenMode:          mode,
		FormatRejectStatus: cfg.Render.FormatRejectStatus,
		PermittedSources:   sources,
		PermittedOutputs:   outputs,
		TempDir:            cfg.Render.TempDir,
		RaiseErrors:        cfg.Render.RaiseErrors,
	})
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.TimingMiddleware())
	r.Use(logging.HTTPMiddleware(s.logger))
	r.Use(logging.RecoveryMiddleware(s.logger))
	r.Use(s.collector.Middleware)

	r.Get("/healthz", s.health)
	r.Handle("/*", s.engine)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) MetricsHandler() http.Handler {
	return s.collector.Handler()
}

func (s *Server) Settings() *settings.Settings {
	return s.settings
}

func (s *Server) Operators() *operator.Registry {
	return s.operators
}

// Fetchers lets callers register extra source schemes before Run.
func (s *Server) Fetchers() *fetcher.Registry {
	return s.fetchers
}

// AddHealthCheck registers a check run by /healthz. A failing check turns
// the response into a 503.
func (s *Server) AddHealthCheck(name string, check func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthChecks[name] = check
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	type namedCheck struct {
		name  string
		check func(context.Context) error
	}
	s.mu.RLock()
	checks := make([]namedCheck, 0, len(s.healthChecks))
	for name, check := range s.healthChecks {
		checks = append(checks, namedCheck{name, check})
	}
	s.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	failures := make(map[string]string)
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			failures[c.name] = err.Error()
		}
	}

	if len(failures) > 0 {
		responder.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"checks": failures,
		})
		return
	}
	responder.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Reload applies a new configuration to the live settings. Listener,
// limiter and fetcher options need a restart.
func (s *Server) Reload(ctx context.Context, cfg *config.AppConfig) error {
	if err := cfg.Render.Apply(s.settings); err != nil {
		return err
	}

	s.mu.RLock()
	ks := s.keySync
	s.mu.RUnlock()
	if ks != nil {
		if _, _, err := ks.Sync(ctx); err != nil {
			s.logger.Warn("server.reload_redis_sync_failed", zap.Error(err))
		}
	}
	s.logger.Info("server.reloaded",
		zap.Int("allowed_hosts", len(s.settings.AllowedHosts())),
		zap.Int("filesystem_sources", len(s.settings.AllowedFilesystemSources())),
		zap.Int("cache_lifetime", s.settings.CacheLifetime()))
	return nil
}

// connectRedis starts the key sync when redis is enabled. The returned
// client is nil otherwise.
func (s *Server) connectRedis() (*redis.Client, error) {
	if !s.cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := redis_client.NewRedis(s.cfg.Redis)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.keySync = redis_client.NewKeySync(client, s.settings, s.cfg.Redis)
	s.mu.Unlock()

	s.AddHealthCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return client, nil
}
