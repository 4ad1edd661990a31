// cmd/insights-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"commerce-insights/internal/api"
	"commerce-insights/internal/common/config"
	"commerce-insights/internal/common/database"
	"commerce-insights/internal/common/genai"
	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/common/observability"
	"commerce-insights/internal/insights/executor"
	"commerce-insights/internal/insights/pipeline"
	"commerce-insights/internal/insights/reports"
	"commerce-insights/internal/insights/schema"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting insights server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("listen", cfg.Server.ListenAddress),
	)

	obs := observability.New("insights-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Postgres initialization")
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis with retry ---
	var rd *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rd, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rd.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis init failed", zap.Error(err))
	}
	defer rd.Close()

	llm, err := genai.NewOpenAIClient(cfg.GenAI)
	if err != nil {
		zapLog.Fatal("genai client init failed", zap.Error(err))
	}

	schemaService := schema.NewService(
		pg.GetDB(),
		rd.GetClient(),
		log,
		time.Duration(cfg.Database.Redis.ContextTTL)*time.Second,
	)

	questionPipeline := pipeline.New(
		llm,
		schemaService,
		log,
		cfg.GenAI.MaxRetries,
		time.Duration(cfg.Pipeline.BackoffBase)*time.Millisecond,
		time.Duration(cfg.Pipeline.BackoffMax)*time.Millisecond,
	)

	queryExecutor := executor.New(pg.GetDB(), log, cfg.Pipeline.MaxRows)
	reportService := reports.NewService(queryExecutor, log)

	server := api.NewServer(
		questionPipeline,
		queryExecutor,
		reportService,
		obs,
		log,
		map[string]api.HealthChecker{
			"postgres": pg.Ping,
			"redis":    rd.Ping,
		},
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Millisecond
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
