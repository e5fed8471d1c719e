package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"casemail-go/internal/config"
	"casemail-go/internal/database"
	"casemail-go/internal/dispatch"
	"casemail-go/internal/handler"
	"casemail-go/internal/metrics"
	"casemail-go/internal/repository"
	"casemail-go/internal/server"
	"casemail-go/internal/sweeper"
	"casemail-go/internal/transport"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Casemail Dispatch Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	repo := repository.New(dbConn)

	var tp transport.EmailTransport
	if cfg.Gmail.Enabled {
		tp, err = transport.NewGmailTransport(&cfg.Gmail)
		if err != nil {
			return fmt.Errorf("failed to create Gmail transport: %w", err)
		}
		logrus.Info("Using the Gmail API transport")
	} else {
		tp = transport.NewSMTPTransport(&cfg.SMTP)
		logrus.Info("Using the SMTP transport")
	}

	dispatcher := dispatch.NewDispatcher(repo, tp, &cfg.Dispatch, m)
	sw := sweeper.New(&cfg.Retention, repo, m)

	h := handler.NewHandlers(dbConn, repo, dispatcher, sw)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sw.Start(); err != nil {
		return fmt.Errorf("failed to start retention sweeper: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sw.Stop(); err != nil {
		logrus.Errorf("Failed to stop retention sweeper: %v", err)
	}
	sw.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := tp.Close(); err != nil {
		logrus.Errorf("Failed to close transport: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
