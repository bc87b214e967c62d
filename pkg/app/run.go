package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/quill/internal/cron"
	"github.com/flemzord/quill/internal/gateway"
	"github.com/flemzord/quill/internal/mcpserver"
	"github.com/flemzord/quill/internal/provider"
)

// Serve starts the HTTP gateway and the scheduled jobs, then blocks until
// ctx is done or SIGINT/SIGTERM arrives. Shutdown is bounded by the
// gateway's shutdown timeout.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx, nil)
}

// serve runs until ctx is done. ready, if set, receives the bound address
// once the gateway accepts connections.
func (a *App) serve(ctx context.Context, ready func(addr string)) error {

	gw, err := gateway.New(a.Config.Gateway, a.Service,
		gateway.WithLogger(a.Logger),
		gateway.WithAuditLogger(a.Audit),
		gateway.WithMetrics(a.Metrics),
	)
	if err != nil {
		return fmt.Errorf("app: gateway: %w", err)
	}

	scheduler, err := a.scheduler()
	if err != nil {
		return err
	}

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("app: starting gateway: %w", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		_ = gw.Stop(context.WithoutCancel(ctx))
		return fmt.Errorf("app: starting scheduler: %w", err)
	}
	a.Logger.Info("quill serving", "addr", gw.Addr())
	if ready != nil {
		ready(gw.Addr())
	}

	<-ctx.Done()
	a.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Gateway.ShutdownTimeout)
	defer cancel()

	_ = scheduler.Stop(shutdownCtx)
	if err := gw.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("app: stopping gateway: %w", err)
	}
	a.Logger.Info("shutdown complete")
	return nil
}

// ServeMCP exposes the service as an MCP tool server on stdin/stdout.
func (a *App) ServeMCP(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(a.Service, a.Version, a.Logger)
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}

func (a *App) scheduler() (*cron.Scheduler, error) {
	s := cron.NewScheduler(a.Logger)
	cfg := a.Config.Cron

	if cfg.HealthReport != "" {
		err := s.RegisterJob(&cron.HealthReportJob{
			Monitor:      a.Monitor,
			Sessions:     a.Store,
			Logger:       a.Logger,
			ScheduleExpr: cfg.HealthReport,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if hc, ok := a.Provider.(provider.HealthChecker); ok && cfg.ProviderProbe != "" {
		err := s.RegisterJob(&cron.ProviderProbeJob{
			Provider:     hc,
			Logger:       a.Logger,
			ScheduleExpr: cfg.ProviderProbe,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	return s, nil
}
