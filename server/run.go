package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run serves until ctx is done, then drains the listeners within the
// shutdown grace period. The first listener failure stops everything.
func (s *Server) Run(ctx context.Context) error {
	client, err := s.connectRedis()
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	servers := []*http.Server{{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}}
	if s.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.collector.Handler())
		servers = append(servers, &http.Server{
			Addr:        s.cfg.Metrics.Addr,
			Handler:     mux,
			ReadTimeout: s.cfg.Server.ReadTimeout,
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			s.logger.Info("server.listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	s.mu.RLock()
	ks := s.keySync
	s.mu.RUnlock()
	if ks != nil {
		g.Go(func() error {
			ks.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("server.shutting_down", zap.Duration("grace", s.cfg.Server.ShutdownGrace))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownGrace)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	s.logger.Info("server.stopped", zap.Error(err))
	return err
}
