package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/markalston/diego-auth/internal/app"
	"github.com/markalston/diego-auth/internal/config"
	"github.com/markalston/diego-auth/internal/observability/logger"
)

func main() {
	// .env es opcional; en prod las vars vienen del entorno real
	_ = godotenv.Load()

	cfgPath := flag.String("config", os.Getenv("DIEGO_AUTH_CONFIG"), "ruta al YAML de configuración (opcional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "diego-auth",
	})
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg)
	if err != nil {
		logger.L().Fatal("bootstrap failed", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.L().Fatal("server error", logger.Err(err))
	}
}
