package api

import (
	"context"
	"io"
	"net/http"

	"github.com/alecgard/studyhub/internal/auth"
	"github.com/alecgard/studyhub/internal/group"
	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/alecgard/studyhub/internal/metrics"
	"github.com/alecgard/studyhub/internal/problem"
	"github.com/alecgard/studyhub/internal/rank"
	"github.com/alecgard/studyhub/internal/ratelimit"
	"github.com/alecgard/studyhub/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AccountService is the account surface used by the handlers.
type AccountService interface {
	CheckID(ctx context.Context, id string) (bool, error)
	CheckHandle(ctx context.Context, handle string) (bool, error)
	Signup(ctx context.Context, in user.SignupInput) (*user.Profile, error)
	Login(ctx context.Context, id, password string) (*user.LoginResult, error)
	Profile(ctx context.Context, id string) (*user.Profile, error)
	AddProblem(ctx context.Context, id, problem string) error
	RemoveProblem(ctx context.Context, id, problem string) error
}

// GroupService is the group surface used by the handlers.
type GroupService interface {
	Create(ctx context.Context, in group.CreateInput) (*group.Group, error)
	Join(ctx context.Context, userID, name, password string) (*group.Group, error)
	Leave(ctx context.Context, userID, name string) (*group.Group, error)
	Update(ctx context.Context, in group.UpdateInput) (*group.Group, error)
	Info(ctx context.Context, name string) (*group.Group, error)
	List(ctx context.Context) ([]string, error)
	MemberIDs(ctx context.Context, name string) ([]string, error)
	Members(ctx context.Context, name string) ([]user.Card, error)
	AddProblem(ctx context.Context, name, problem string) error
	RemoveProblem(ctx context.Context, name, problem string) error
}

// TimerService is the timer ledger surface used by the handlers.
type TimerService interface {
	Start(ctx context.Context, userID string, d ledger.Date) (int64, error)
	Stop(ctx context.Context, userID string, d ledger.Date) (int64, error)
	Get(ctx context.Context, userID string, d ledger.Date) (int64, error)
	Snapshot(ctx context.Context, userID string) (*ledger.Timer, error)
}

// RankService computes group leaderboards.
type RankService interface {
	RankDay(ctx context.Context, group string, d ledger.Date) ([]rank.Entry, error)
	RankMonth(ctx context.Context, group string, ym ledger.YearMonth) ([]rank.Entry, error)
	ExportMonth(ctx context.Context, w io.Writer, group string, ym ledger.YearMonth) error
}

// ProblemService serves recommendations from the problem cache.
type ProblemService interface {
	Recommend(ctx context.Context, tier int, tags []string) ([]problem.Problem, error)
	Refresh(ctx context.Context) (int, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Accounts AccountService
	Groups   GroupService
	Timers   TimerService
	Ranks    RankService
	Problems ProblemService

	Tokens   auth.TokenVerifier
	AdminKey string

	Limiter  *ratelimit.Limiter
	AuthRate int // per-IP limit on signup/login routes; 0 uses the limiter default

	Metrics        *metrics.Metrics
	DBPool         Pinger
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestIDMiddleware)
	r.Use(chimw.RealIP)
	r.Use(slogRequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	accounts := newAccountsHandler(deps.Accounts)
	groups := newGroupsHandler(deps.Groups)
	timers := newTimersHandler(deps.Timers, deps.Groups)
	ranks := newRankHandler(deps.Ranks)
	problems := newProblemsHandler(deps.Problems)

	r.Get("/health", healthHandler(deps.DBPool))

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/metrics/summary", deps.Metrics.Handler())
	}

	// Public account routes, rate limited per client IP.
	r.Group(func(pr chi.Router) {
		if deps.Limiter != nil {
			var onReject []func(string)
			if deps.Metrics != nil {
				onReject = append(onReject, deps.Metrics.IncRateLimitRejection)
			}
			pr.Use(ratelimit.Middleware(deps.Limiter, "auth", deps.AuthRate, onReject...))
		}

		pr.Post("/signup", accounts.Signup)
		pr.Post("/signup/check-id", accounts.CheckID)
		pr.Post("/signup/check-handle", accounts.CheckHandle)
		pr.Post("/login", accounts.Login)
	})

	// Bearer-authenticated routes.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.BearerMiddleware(deps.Tokens))

		pr.Post("/user/info", accounts.Info)
		pr.Post("/user/problem/insert", accounts.AddProblem)
		pr.Post("/user/problem/delete", accounts.RemoveProblem)
		pr.Delete("/user/problem/delete", accounts.RemoveProblem)

		pr.Route("/group", func(gr chi.Router) {
			gr.Post("/create", groups.Create)
			gr.Post("/join", groups.Join)
			gr.Post("/leave", groups.Leave)
			gr.Delete("/leave", groups.Leave)
			gr.Post("/update", groups.Update)
			gr.Post("/info", groups.Info)
			gr.Post("/member", groups.Members)
			gr.Get("/list", groups.List)
			gr.Post("/problem/insert", groups.AddProblem)
			gr.Post("/problem/delete", groups.RemoveProblem)
			gr.Delete("/problem/delete", groups.RemoveProblem)
		})

		pr.Post("/start", timers.Start)
		pr.Post("/stop", timers.Stop)
		pr.Post("/timer/group", timers.Group)
		pr.Get("/timer/duration/{user}/{date}", timers.Duration)

		pr.Post("/rank/individual_day", ranks.Day)
		pr.Post("/rank/individual_month", ranks.Month)
		pr.Get("/rank/export", ranks.Export)

		pr.Post("/recommend/list", problems.Recommend)
	})

	// Admin routes (require admin key).
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(auth.AdminKeyMiddleware(deps.AdminKey))
		ar.Post("/problems/refresh", problems.Refresh)
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "degraded",
					"database": "unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "connected",
		})
	}
}

// resolveCaller returns the user a request acts for. An empty id means the
// authenticated user; any other id must match it or the request is refused.
func resolveCaller(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	caller := auth.UserIDFromContext(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return "", false
	}
	if id != "" && id != caller {
		writeError(w, http.StatusForbidden, "forbidden", "cannot act on behalf of another user")
		return "", false
	}
	return caller, true
}
