package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/config"
	"github.com/aretw0/inquiry/internal/runtime"
	httpadapter "github.com/aretw0/inquiry/pkg/adapters/http"
	"github.com/aretw0/inquiry/pkg/observability"
	"github.com/aretw0/inquiry/pkg/pacing"
	"github.com/aretw0/inquiry/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Stack is the wired HTTP service.
type Stack struct {
	Services *Services
	Sessions *session.Manager
	Server   *httpadapter.Server
	Metrics  *observability.Metrics
}

// NewStack wires sessions, metrics and the API server on top of services.
func NewStack(cfg *config.Config, services *Services, logger *slog.Logger) *Stack {
	metrics := observability.NewMetrics()

	engineOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(metrics.Hooks(logger)),
		runtime.WithIntegrationRunner(services.Tools),
		runtime.WithMaxConditionHops(cfg.Traversal.MaxConditionHops),
	}
	if services.Narrator != nil {
		engineOpts = append(engineOpts, runtime.WithNarrator(services.Narrator))
	}

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithReasoning(services.Reasoning),
		session.WithPrediction(cfg.Sessions.Prediction),
		session.WithEngineOptions(engineOpts...),
		session.WithPacingOptions(
			pacing.WithDelayFunc(pacing.PerCharacter(cfg.Pacing.PerChar)),
			pacing.WithBounds(cfg.Pacing.Min, cfg.Pacing.Max),
			pacing.WithLogger(logger),
		),
		session.WithCompletionObserver(metrics.SessionCompleted),
		session.WithQueueDepthObserver(metrics.ObserveQueueDepth),
		session.WithSnapshotTTL(services.Backend, cfg.Sessions.TTL),
	}
	if services.Locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(services.Locker))
	}
	sessions := session.NewManager(services.Repo, services.Backend, sessionOpts...)

	serverOpts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithReasoning(services.Reasoning),
		httpadapter.WithAutosaveQuiet(cfg.Autosave.Quiet),
		httpadapter.WithVersion(inquiry.Version),
	}
	if cfg.Server.MetricsAddr == "" {
		serverOpts = append(serverOpts, httpadapter.WithMetricsHandler(metrics.Handler()))
	}

	return &Stack{
		Services: services,
		Sessions: sessions,
		Server:   httpadapter.NewServer(services.Repo, sessions, services.Backend, serverOpts...),
		Metrics:  metrics,
	}
}

// Close flushes editors and stops sessions.
func (s *Stack) Close(ctx context.Context) error {
	err := s.Server.Close(ctx)
	s.Sessions.Close()
	return err
}

// Serve runs the API server, and the metrics server when configured,
// until ctx is cancelled or one of them fails.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	services, err := NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	stack := NewStack(cfg, services, logger)

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           stack.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           stack.Metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			_ = stack.Close(ctx)
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		logger.Info("listening", "addr", ln.Addr().String())
		listeners = append(listeners, ln)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
				_ = srv.Close()
			}
		}
		errs = append(errs, stack.Close(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
