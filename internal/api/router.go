package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oraclestake/arbiter/internal/api/handlers"
	mw "github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/cache"
	"github.com/oraclestake/arbiter/internal/config"
	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/service"
	"github.com/oraclestake/arbiter/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Sweeper      *service.SweeperService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(pool *pgxpool.Pool, redisClient *redis.Client, logger *zap.Logger) *App {
	db := store.NewDB(pool)

	// Stores
	accountStore := store.NewAccountStore(db)
	solverStore := store.NewSolverStore(db)
	intentStore := store.NewIntentStore(db)
	evaluationStore := store.NewEvaluationStore(db)
	challengeStore := store.NewChallengeStore(db)

	clock := domain.SystemClock{}
	minStake := config.MinStake()
	challengePeriod := config.ChallengePeriod()

	// Services
	reputationSvc := service.NewReputationService(solverStore, accountStore, clock, db, minStake, logger)
	intentSvc := service.NewIntentService(intentStore, evaluationStore, solverStore, accountStore, clock, db, minStake, logger)
	evaluationSvc := service.NewEvaluationService(intentStore, evaluationStore, solverStore, accountStore, reputationSvc, clock, db, minStake, challengePeriod, logger)
	disputeSvc := service.NewDisputeService(intentStore, evaluationStore, challengeStore, accountStore, reputationSvc, clock, db, challengePeriod, logger)
	sweeperSvc := service.NewSweeperService(intentStore, evaluationStore, challengeStore, accountStore, clock, db, logger)
	sweeperSvc.SetInterval(config.SweepInterval())
	if days := config.RetentionDays(); days > 0 {
		sweeperSvc.SetRetention(time.Duration(days) * 24 * time.Hour)
	}

	// Leaderboard cache is optional; without Redis the ranking query
	// hits PostgreSQL every time.
	if redisClient != nil {
		reputationSvc.SetCache(cache.NewLeaderboardCache(redisClient, logger))
		logger.Info("leaderboard cache enabled")
	}

	// Handlers
	accountHandler := handlers.NewAccountHandler(accountStore)
	solverHandler := handlers.NewSolverHandler(reputationSvc)
	intentHandler := handlers.NewIntentHandler(intentSvc)
	evaluationHandler := handlers.NewEvaluationHandler(evaluationSvc)
	challengeHandler := handlers.NewChallengeHandler(disputeSvc)
	adminHandler := handlers.NewAdminHandler(disputeSvc, reputationSvc, sweeperSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Sweeper:   sweeperSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(pool))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Account creation (no auth, bootstrap endpoint)
	r.Post("/v1/accounts", accountHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(accountStore))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/deposit", accountHandler.Deposit)
			r.Get("/me", accountHandler.Me)
		})

		r.Route("/solvers", func(r chi.Router) {
			r.Post("/", solverHandler.Register)
			r.Get("/top", solverHandler.Top)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", solverHandler.Get)
				r.Get("/metrics", solverHandler.Metrics)
			})
		})

		r.Route("/intents", func(r chi.Router) {
			r.Post("/", intentHandler.Create)
			r.Get("/", intentHandler.List)
			r.Get("/pending", intentHandler.ListPending)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", intentHandler.Get)
				r.Post("/accept", intentHandler.Accept)
				r.Post("/complete", intentHandler.Complete)
			})
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/", evaluationHandler.Submit)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", evaluationHandler.Get)
				r.Post("/finalize", evaluationHandler.Finalize)
			})
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Post("/", challengeHandler.Submit)
			r.Get("/{id}", challengeHandler.Get)
		})

		// Privileged operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireArbiter)
			r.Post("/settle", adminHandler.Settle)
			r.Post("/distribute", adminHandler.Distribute)
			r.Post("/sweep", adminHandler.Sweep)
			r.Post("/prune", adminHandler.Prune)
		})
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.AccountStore      = (*store.AccountStore)(nil)
	_ domain.SolverStore       = (*store.SolverStore)(nil)
	_ domain.IntentStore       = (*store.IntentStore)(nil)
	_ domain.EvaluationStore   = (*store.EvaluationStore)(nil)
	_ domain.ChallengeStore    = (*store.ChallengeStore)(nil)
	_ domain.TxRunner          = (*store.DB)(nil)
	_ domain.Clock             = domain.SystemClock{}
	_ service.LeaderboardCache = (*cache.LeaderboardCache)(nil)
)
