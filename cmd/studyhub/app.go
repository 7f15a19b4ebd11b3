package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alecgard/studyhub/internal/auth"
	"github.com/alecgard/studyhub/internal/config"
	"github.com/alecgard/studyhub/internal/group"
	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/alecgard/studyhub/internal/logging"
	"github.com/alecgard/studyhub/internal/metrics"
	"github.com/alecgard/studyhub/internal/problem"
	"github.com/alecgard/studyhub/internal/rank"
	"github.com/alecgard/studyhub/internal/solvedac"
	"github.com/alecgard/studyhub/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
	pool    *pgxpool.Pool
	metrics *metrics.Metrics

	tokens   *auth.Issuer
	users    *user.Service
	groups   *group.Service
	ledger   *ledger.Service
	ranks    *rank.Service
	problems *problem.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, logFile := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logFile.Close()
		return nil, err
	}
	logger.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	})

	client := solvedac.NewClient(solvedac.Options{
		BaseURL:    cfg.SolvedAC.BaseURL,
		Timeout:    cfg.SolvedAC.Timeout,
		Attempts:   cfg.SolvedAC.Attempts,
		RetryDelay: cfg.SolvedAC.RetryDelay,
	}, logger)
	client.SetMetrics(m)

	tokens := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	users := user.NewService(user.NewStore(pool), client, tokens, cfg.Groups.DefaultGroup, logger)
	users.SetMetrics(m)

	groups := group.NewService(group.NewStore(pool), users, logger)

	timers := ledger.NewService(ledger.NewStore(pool))
	timers.SetMetrics(m)

	problems := problem.NewService(problem.NewStore(pool), client, cfg.Problems.SeedHandle, logger)
	problems.SetMetrics(m)

	return &app{
		cfg:      cfg,
		logger:   logger,
		logFile:  logFile,
		pool:     pool,
		metrics:  m,
		tokens:   tokens,
		users:    users,
		groups:   groups,
		ledger:   timers,
		ranks:    rank.NewService(groups, timers, users, cfg.Rank.MaxConcurrency),
		problems: problems,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
	a.logFile.Close()
}
