package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"traderesonance/server/config"
	"traderesonance/server/internal/api"
	"traderesonance/server/internal/database"
	"traderesonance/server/internal/queue"
	"traderesonance/server/internal/realtime"
	"traderesonance/server/internal/scheduler"
	"traderesonance/server/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set, admin endpoints are disabled")
	}
	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	db, err := database.NewDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Run database migrations
	logger.WithField("driver", cfg.Driver()).Info("Running database migrations...")
	if err := db.RunMigrations(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Live feed: entry events flow through the queue to websocket clients
	events := queue.NewEventQueue(cfg.LiveQueueSize, logger)
	hub := realtime.NewHub(cfg.CORSOrigins, logger)
	events.Subscribe(hub.Broadcast)
	events.Start()
	defer events.Close()

	sweep := scheduler.NewScheduler(db, events, cfg.DedupeInterval, logger)
	sweep.Start()
	defer sweep.Stop()

	handler := api.NewHandler(db, cfg, events, logger)
	sessions := session.NewManager(cfg.SecretKey, cfg.DefaultLang)
	router := api.NewRouter(handler, hub, sessions)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
