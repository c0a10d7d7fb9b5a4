package main

import (
	"context"
	"log"
	"os"

	"retail-pos/internal/adapters/cli"
	"retail-pos/internal/app"
	"retail-pos/internal/config"
	"retail-pos/internal/db"
	"retail-pos/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	// Service logs go to stderr so table output on stdout stays clean.
	logger := logging.New(cfg.Logger)
	logger.SetOutput(os.Stderr)

	svc := app.New(pool, cfg.Location, logger)
	cli.Run(ctx, svc, os.Args[1:])
}
