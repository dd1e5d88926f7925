package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/app"
	"credit-engine/internal/handler"
	"credit-engine/internal/middleware"
	"credit-engine/pkg/scheduler"
	"credit-engine/pkg/utils"
)

func main() {
	// Bootstrap logger until the configured one is ready
	boot := logrus.New()
	boot.SetFormatter(&logrus.JSONFormatter{})
	boot.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		boot.Warnf("Failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := configs.LoadConfig()
	if err != nil {
		boot.Fatalf("Failed to load configuration: %v", err)
	}

	a, err := app.New(context.Background(), cfg, os.Stdout)
	if err != nil {
		boot.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()
	log := a.Logger

	// Initialize handlers
	handlers := handler.NewHandler(handler.Dependencies{
		Services: a.Services,
		Logger:   log,
		Config:   cfg,
	})

	// Initialize router
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.DB.PingContext(r.Context()); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.RespondWithSuccess(w, http.StatusOK, "ok", nil)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.LogMiddleware(log))
	api.Use(middleware.RecoverMiddleware(log))
	handlers.RegisterRoutes(api)

	// Start the delinquency sweep
	if cfg.Scheduler.Enabled {
		sweeps := scheduler.NewScheduler(a.Services.Notification, cfg.Scheduler.ReminderThresholds, a.Now, log)
		if err := sweeps.Start(cfg.Scheduler.DelinquencyCron); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer sweeps.Stop()
	}

	// Configure and start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Second * 15,
		WriteTimeout: time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Infof("Starting server on port %d (%s)", cfg.Server.Port, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
		return
	}

	log.Info("Server gracefully stopped")
}
