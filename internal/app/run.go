package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Run serves the ops endpoints, starts the promoter loop and resyncs schedules in the
// background (best effort) until ctx is cancelled or SIGINT/SIGTERM arrives.
// The listener is bound before the resync starts so health endpoints answer during it.
// It always closes the App.
func (a *App) Run(ctx context.Context) error {
	shutdownTimeout := a.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		_ = a.Close(context.Background())
		return err
	}

	var wg sync.WaitGroup
	wg.Go(func() { a.promoteLoop(ctx, a.cfg.Scheduler.PromoteInterval) })
	if a.cfg.Scheduler.ResyncOnStart {
		wg.Go(func() { a.resyncOnStart(ctx) })
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		cancel()
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	errs := []error{serveErr}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	wg.Wait()
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown completed with errors", slog.Any("error", err))
		return err
	}
	a.logger.Info("shutdown completed")
	return nil
}

// resyncOnStart logs a failed resync and lets the service keep running.
func (a *App) resyncOnStart(ctx context.Context) {
	start := time.Now()
	report, err := a.Resync(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		a.logger.WarnContext(ctx, "startup resync interrupted by shutdown", slog.Any("error", err))
		return
	case err != nil:
		a.logger.ErrorContext(ctx, "startup resync failed", slog.Any("error", err))
		return
	}
	a.logger.InfoContext(ctx, "startup resync completed",
		slog.Int("scheduled", len(report.Scheduled)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("took", time.Since(start)),
	)
}
