package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/avolkov/identity-auth/internal/infra/app"
	"github.com/avolkov/identity-auth/internal/infra/config"
)

func main() {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("assemble service: %v", err)
	}

	if err := svc.Run(ctx); err != nil {
		log.Printf("service stopped: %v", err)
		os.Exit(1)
	}
}
