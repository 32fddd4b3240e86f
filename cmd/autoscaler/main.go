package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/OldStager01/qps-autoscaler/api"
	"github.com/OldStager01/qps-autoscaler/api/handlers"
	"github.com/OldStager01/qps-autoscaler/internal/alert"
	cloudapi "github.com/OldStager01/qps-autoscaler/internal/cloud/api"
	"github.com/OldStager01/qps-autoscaler/internal/cloud/asg"
	"github.com/OldStager01/qps-autoscaler/internal/cloud/monitor"
	"github.com/OldStager01/qps-autoscaler/internal/controller"
	"github.com/OldStager01/qps-autoscaler/internal/engine"
	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/internal/metrics"
	"github.com/OldStager01/qps-autoscaler/internal/resilience"
	"github.com/OldStager01/qps-autoscaler/internal/store"
	"github.com/OldStager01/qps-autoscaler/pkg/config"
	"github.com/OldStager01/qps-autoscaler/pkg/database"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	once := flag.Bool("once", false, "run a single tick and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.WithField("mode", cfg.App.Mode).Infof("Starting %s", cfg.App.Name)

	db, err := database.New(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Name:            cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		MaxConnections:  cfg.Database.MaxConnections,
		SSLMode:         cfg.Database.SSLMode,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		PingTimeout:     cfg.Database.PingTimeout,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *migrate {
		if err := database.NewMigrator(db).Run(context.Background()); err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
		logger.Info("Migrations applied")
		return
	}

	pg := store.NewPostgresStore(db.DB)
	caller := cloudapi.NewClient(cloudapi.Config{
		Region:          cfg.Cloud.Region,
		AccessKeyID:     cfg.Cloud.AccessKeyID,
		SecretAccessKey: cfg.Cloud.SecretAccessKey,
		RequestTimeout:  cfg.Cloud.RequestTimeout,
		Endpoint:        cfg.Cloud.Endpoint,
	})
	asgClient := asg.New(caller)
	monitorClient := monitor.New(caller)
	circuit := resilience.NewPolicy(cfg.Circuit.ErrorThreshold, cfg.Circuit.OpenFor)
	eval := engine.New(pg, asgClient, monitorClient, circuit)

	ctrl := controller.New(pg, pg, eval, monitorClient, asgClient, cfg.Controller)
	ctrl.SetHealthChecker(db)
	if cfg.Prometheus.Enabled {
		ctrl.SetObserver(metrics.NewCollector())
	}
	notifier := alert.NewNotifier(cfg.Alert.WebhookURL, cfg.Alert.Timeout)

	if *once {
		runOnce(ctrl, notifier)
		return
	}

	events := handlers.NewEventHandler(ctrl, notifier)
	server := api.NewServer(cfg.API, cfg.App.Mode, events, db, cfg.Prometheus.Enabled)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		logger.Infof("Received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("Shutdown error: %v", err)
		}
	}
}

func runOnce(ctrl *controller.Controller, notifier *alert.Notifier) {
	summary, err := ctrl.RunTick(context.Background())
	if err != nil {
		logger.Fatalf("Tick failed: %v", err)
	}
	notifier.NotifyTick(context.Background(), summary)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to encode summary: %v", err)
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}
