package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PetAlertAPI/internal/handler"
	"PetAlertAPI/internal/server"
	"PetAlertAPI/internal/service"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled alert sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.cfg.Print()
	a.log.Info("Starting Pet Alert API Server %s", version)

	// 9. Scheduled Sweep
	var sweeper *service.SweepRunner
	if a.cfg.Alerting.SweepEnabled {
		sweeper = service.NewSweepRunner(a.scheduler, a.limiter, a.cfg.Alerting.SweepInterval, a.log)
		sweeper.Start()
	}

	// 10. Initialize Handlers
	alertHandler := handler.NewAlertHandler(a.alertService, a.log)
	ruleHandler := handler.NewRuleHandler(a.ruleService, a.log)
	notificationHandler := handler.NewNotificationHandler(a.ruleService, a.hub, a.log)
	healthHandler := handler.NewHealthHandler(a.db, a.natsConn, a.mqttClient, a.rdb, a.log)

	// 11. Start HTTP Server
	srv := server.New(a.cfg, a.log)
	srv.RegisterHandlers(alertHandler, ruleHandler, notificationHandler, healthHandler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	a.log.Info("API server ready on http://%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)

	// 12. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		a.log.Warn("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
			a.log.Error("%v", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server shutdown error: %v", err)
	}
	if sweeper != nil {
		sweeper.Shutdown()
	}
	stop()

	a.log.Info("Shutdown complete")
	return runErr
}
