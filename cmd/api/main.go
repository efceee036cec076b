package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fleetpay/receivables/internal/config"
	"github.com/fleetpay/receivables/internal/events"
	kafkaevents "github.com/fleetpay/receivables/internal/events/kafka"
	"github.com/fleetpay/receivables/internal/handler"
	"github.com/fleetpay/receivables/internal/logging"
	"github.com/fleetpay/receivables/internal/middleware"
	"github.com/fleetpay/receivables/internal/repository"
	"github.com/fleetpay/receivables/internal/service/receivable"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("receivables-api", cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()
	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		slog.Info("event publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svc := receivable.NewService(
		repository.NewReceivableRepository(db),
		repository.NewHistoryRepository(db),
		publisher,
		db,
	)

	receivables := handler.NewReceivableHandler(svc)
	health := handler.NewHealthHandler(db)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/contas-a-receber", receivables.List)
	api.HandleFunc("POST /api/v1/contas-a-receber", receivables.Create)
	api.HandleFunc("GET /api/v1/contas-a-receber/estatisticas", receivables.Statistics)
	api.HandleFunc("GET /api/v1/contas-a-receber/vencidas", receivables.Overdue)
	api.HandleFunc("GET /api/v1/contas-a-receber/{id}", receivables.Get)
	api.HandleFunc("PUT /api/v1/contas-a-receber/{id}", receivables.Update)
	api.HandleFunc("DELETE /api/v1/contas-a-receber/{id}", receivables.Delete)
	api.HandleFunc("POST /api/v1/contas-a-receber/{id}/desconto", receivables.ApplyDesconto)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.Handle("/api/v1/", middleware.Auth(cfg.JWTSecret)(api))

	var root http.Handler = mux
	root = middleware.Logging(root)
	root = middleware.Tracing(root)
	root = middleware.Recovery(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		var db *sql.DB
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
