package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iamcloud/looker-provisioner/internal/config"
	"github.com/iamcloud/looker-provisioner/internal/events"
	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/provision"
	"github.com/iamcloud/looker-provisioner/internal/server"
)

func main() {
	// Set up context-aware logging as default
	setupLogging()

	workerMode := flag.Bool("worker", false, "consume provisioning requests from the Pub/Sub pull subscription instead of serving HTTP")
	eventJSON := flag.String("event", "", "run one provisioning event from the given JSON payload and exit")
	decommission := flag.Bool("decommission", false, "treat -event as a decommission request")
	flag.Parse()

	var err error
	switch {
	case *eventJSON != "":
		err = runOnce(*eventJSON, *decommission)
	case *workerMode:
		err = runWorker()
	default:
		err = runServer()
	}
	if err != nil {
		slog.Error("Application error", "err", err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := getLogLevel()

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	// Wrap it with the context handler to include correlation IDs
	contextHandler := logging.NewContextHandler(textHandler)

	slog.SetDefault(slog.New(contextHandler))
}

func getLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runServer serves the push endpoint and the synchronous API.
func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reloader, err := config.NewReloader(cfg, config.NewVaultLoader())
	if err != nil {
		return err
	}

	srv, err := server.New(context.Background(), reloader)
	if err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(ctx)
	}
}

// runWorker consumes provisioning requests from the pull subscription.
func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, deps, err := server.BuildRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	worker, err := events.NewWorker(ctx, cfg.GCPProjectID, cfg.SubscriptionID, func(msgCtx context.Context, data []byte) error {
		result := runner.RunProvision(msgCtx, data)
		if result.Status != provision.StatusOK {
			return fmt.Errorf("run finished with status %s: %s", result.Status, result.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := worker.Close(); err != nil {
			slog.Error("Error closing worker", "err", err)
		}
	}()

	return worker.Run(ctx)
}

// runOnce executes a single event from the command line and prints the
// structured result to stdout.
func runOnce(payload string, decommission bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, deps, err := server.BuildRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	var result any
	if decommission {
		result = runner.RunDecommission(ctx, []byte(payload))
	} else {
		result = runner.RunProvision(ctx, []byte(payload))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
