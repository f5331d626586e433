package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/macrolens/nutriresolve/config"
	"github.com/macrolens/nutriresolve/internal/app"
	httpDelivery "github.com/macrolens/nutriresolve/internal/delivery/http"
	"github.com/macrolens/nutriresolve/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Log.WithFields(logrus.Fields{
		"version":     httpDelivery.Version,
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
	}).Info("Starting nutriresolve")

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Log.Fatalf("Failed to build resolver: %v", err)
	}

	if err := app.Serve(ctx, cfg, a); err != nil {
		logging.Log.Fatalf("Server error: %v", err)
	}
}
