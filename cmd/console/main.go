package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
	"github.com/stayops/console/internal/api"
	"github.com/stayops/console/internal/config"
	"github.com/stayops/console/internal/console"
	"github.com/stayops/console/internal/logging"
	"github.com/stayops/console/internal/metrics"
	"github.com/stayops/console/internal/notify"
	"github.com/stayops/console/internal/poller"
	"github.com/stayops/console/internal/realtime"
	"github.com/stayops/console/internal/server"
	"github.com/stayops/console/internal/session"
)

var (
	Version   = "1.0.0"
	GitCommit = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "config/config.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		log.Printf("StayOps Staff Console %s (%s)", Version, GitCommit)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting StayOps Staff Console",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.String("transport", cfg.Realtime.Transport))

	if info, err := session.InspectToken(cfg.Platform.Token); err == nil {
		logger.Info("Operator token loaded", zap.String("subject", info.Subject))
		if info.ExpiringSoon(time.Hour) {
			logger.Warn("Operator token expires soon", zap.Time("expires_at", info.ExpiresAt))
		}
	}

	collector := metrics.NewCollector()
	client := api.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token, cfg.Platform.HTTPTimeout(), logger)
	store := alerts.NewStore(logger)

	dispatcher := notify.NewDispatcher(logger)
	dispatcher.AddSink(notify.LogSink{Logger: logger})
	toasts := notify.NewRingSink(cfg.Alerts.ToastHistory)
	dispatcher.AddSink(toasts)

	topics := make([]string, 0, len(alerts.EventNames()))
	for _, name := range alerts.EventNames() {
		topics = append(topics, string(name))
	}

	var transport realtime.Transport
	switch cfg.Realtime.Transport {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		defer redisClient.Close()
		transport = realtime.NewRedisTransport(redisClient, topics)
	default:
		transport = realtime.NewWebSocketTransport(cfg.Realtime.GatewayURL, cfg.Platform.Token, topics)
	}

	base, max := cfg.Realtime.Backoff()
	manager := realtime.NewManager(transport, realtime.Config{BackoffBase: base, BackoffMax: max}, logger)

	sessions := session.NewManager(client, logger)
	refresher := poller.New(logger, collector, cfg.Platform.HTTPTimeout())

	svc := console.New(client, store, dispatcher, manager, sessions, refresher, collector, logger,
		console.Options{PageLimit: cfg.Alerts.PageLimit})
	if err := svc.Start(); err != nil {
		logger.Fatal("Failed to start console service", zap.Error(err))
	}

	handler := server.NewHandler(svc, toasts, collector, logger, cfg.Alerts.PageLimit)
	srv := server.New(handler, cfg.Server.Port, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Environment, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete", zap.Error(err))
	}
	svc.Close()
}
