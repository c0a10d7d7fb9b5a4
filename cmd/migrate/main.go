// migrate applies the embedded SQL migrations in version order. Applied
// migrations are recorded with a checksum; an edited migration aborts the run.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"

	"retail-pos/internal/config"
	"retail-pos/internal/db"
	"retail-pos/internal/logging"
	"retail-pos/migrations"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.Logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool, log); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Info("migrations up to date")
}
