package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mr1hm/go-emergency-dispatch/internal/alerts"
	"github.com/mr1hm/go-emergency-dispatch/internal/api"
	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/emergency"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/logging"
	"github.com/mr1hm/go-emergency-dispatch/internal/queue"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	closeLog := logging.Setup(cfg.Logging)
	defer closeLog()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port,
		"store", cfg.Store.Backend, "directory", cfg.Directory.Backend)

	db, err := repository.Open(cfg.Store)
	if err != nil {
		logging.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir, closeDir, err := directory.Open(ctx, cfg.Directory)
	if err != nil {
		logging.Fatalf("Failed to open recipient directory: %v", err)
	}
	defer closeDir()

	// Events go to SSE subscribers and, when enabled, to Kafka
	broadcaster := events.NewBroadcaster()
	var sinks []events.Sink
	var producer *queue.Producer
	if cfg.Events.KafkaEnabled {
		producer = queue.NewProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		sinks = append(sinks, producer)
		slog.Info("kafka publishing enabled", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
	}
	pipeline := events.NewPipeline(broadcaster, cfg.Events.Workers, cfg.Events.BufferSize, sinks...)
	pipeline.Start(ctx)

	alertStore := alerts.NewStore(db)
	campaigns := campaignlog.NewStore(db)
	dispatcher := dispatch.New(dir, campaigns, cfg.Dispatch, dispatch.WithPublisher(pipeline))
	triggers := emergency.New(alertStore, dispatcher,
		emergency.WithPublisher(pipeline),
		emergency.WithTicks(cfg.Countdown.Ticks, cfg.Countdown.Interval),
	)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))

	handler := api.NewHandler(api.Services{
		Alerts:      alertStore,
		Campaigns:   campaigns,
		Dispatcher:  dispatcher,
		Triggers:    triggers,
		Directory:   dir,
		Broadcaster: broadcaster,
		Publisher:   pipeline,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	triggers.Shutdown()
	broadcaster.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	pipeline.Stop()
	cancel()
	if producer != nil {
		if err := producer.Close(); err != nil {
			slog.Error("kafka producer close error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
