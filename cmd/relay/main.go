package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/webchat/webchat/internal/app"
	"github.com/webchat/webchat/internal/config"
	"github.com/webchat/webchat/internal/supervisor"
	"github.com/webchat/webchat/pkg/logger"
)

// Runs only the relay unit (and the ops listener when METRICS_ADDR is set), for
// deployments that keep each unit in its own process.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	app.SetupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Run(ctx, app.Units(cfg, app.UnitRelay, app.UnitOps)...); err != nil {
		logger.Errorf("relay stopped with error: %v", err)
		os.Exit(1)
	}
}
