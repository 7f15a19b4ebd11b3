package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecgard/studyhub/internal/api"
	"github.com/alecgard/studyhub/internal/problem"
	"github.com/alecgard/studyhub/internal/ratelimit"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the StudyHub API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	var scheduler *problem.Scheduler
	if cfg.Problems.RefreshEnabled {
		scheduler = problem.NewScheduler(a.problems, cfg.Problems.RefreshInterval, a.logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
		a.logger.Info("problem refresh scheduled", "interval", cfg.Problems.RefreshInterval.String())
	}

	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)
	go pruneLimiter(ctx, limiter, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Accounts:       a.users,
		Groups:         a.groups,
		Timers:         a.ledger,
		Ranks:          a.ranks,
		Problems:       a.problems,
		Tokens:         a.tokens,
		AdminKey:       cfg.Auth.AdminKey,
		Limiter:        limiter,
		AuthRate:       cfg.RateLimit.Auth,
		Metrics:        a.metrics,
		DBPool:         a.pool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		a.logger.Info("shutting down")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		return err
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// pruneLimiter drops idle rate-limit buckets once per window.
func pruneLimiter(ctx context.Context, l *ratelimit.Limiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(window)
		}
	}
}
