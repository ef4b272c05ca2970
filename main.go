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

// Runs the relay listener and the submission gateway (plus the ops listener
// when METRICS_ADDR is set) in one process until SIGINT/SIGTERM.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	app.SetupLogging(cfg.Log)
	logger.Infof("config loaded: http=%s relay=%s relay_target=%s mongo=%v metrics=%v",
		cfg.HTTPAddr(), cfg.RelayAddr(), cfg.RelaySendAddr(), cfg.MongoDB.URI != "", cfg.Metrics.Addr != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Run(ctx, app.Units(cfg)...); err != nil {
		logger.Errorf("shutdown with error: %v", err)
		os.Exit(1)
	}
	logger.Infof("all units stopped")
}
