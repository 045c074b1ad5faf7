package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shivamshaw23/ridepool/config"
	"github.com/shivamshaw23/ridepool/internal/fixtures"
	"github.com/shivamshaw23/ridepool/internal/handler"
	"github.com/shivamshaw23/ridepool/internal/middleware"
	"github.com/shivamshaw23/ridepool/internal/repository"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/internal/service"
	"github.com/shivamshaw23/ridepool/pkg/cache"
	"github.com/shivamshaw23/ridepool/pkg/db"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Road network ────────────────────────────────────
	// A live routing service is the production RoadGraph provider; in
	// its absence this stands up a synthetic grid (see internal/fixtures)
	// wrapped with the shared Redis-backed shortest-path cache so every
	// cmd/server replica agrees on travel times for a given (u,v) pair.
	grid := fixtures.BuildGrid(fixtures.DefaultGridConfig())
	roadGraph := roadgraph.NewCachedGraph(grid.RoadGraph(), redisClient)
	log.Printf("✓ road network ready: %d nodes", len(grid.Nodes))

	// ── Initialize layers ───────────────────────────────
	solveRepo := repository.NewSolveRepository(pgPool)
	solverSvc := service.NewSolverService(roadGraph, solveRepo, cfg.Solver.Tunables())
	solveHandler := handler.NewSolveHandler(solverSvc, solveRepo)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)
	router.Use(middleware.Recoverer)

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/solve", solveHandler.Solve).Methods(http.MethodPost)
	api.HandleFunc("/solve/{id}", solveHandler.GetSolve).Methods(http.MethodGet)
	api.HandleFunc("/oracle/check", solveHandler.CheckFeasibility).Methods(http.MethodPost)

	// Wrap with CORS so Swagger UI (and other browser clients) can call the API.
	rootHandler := middleware.CORS(router)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      rootHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
