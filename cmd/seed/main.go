// seed creates the default administrator and a sample crate-tracked product.
// It is safe to run more than once: existing rows are left alone.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"

	"retail-pos/internal/config"
	"retail-pos/internal/core"
	"retail-pos/internal/db"
	"retail-pos/internal/logging"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
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

	users := core.NewUserService(pool, log)
	admin, err := users.CreateUser(ctx, core.CreateUserInput{
		Username: "admin",
		Password: "admin123",
		FullName: "System Administrator",
		Role:     core.RoleAdmin,
	})
	switch {
	case core.KindOf(err) == core.KindConflict:
		log.Info("admin user already exists")
	case err != nil:
		log.Fatalf("Failed to create admin user: %v", err)
	default:
		log.WithField("user_id", admin.ID).Warn("created admin user with default password admin123; change it")
	}

	products := core.NewProductService(pool, log)
	existing, err := products.ListProducts(ctx, core.ProductFilter{Search: "Diamond Ice Beer"})
	if err != nil {
		log.Fatalf("Failed to look up sample product: %v", err)
	}
	if len(existing) > 0 {
		log.Info("sample product already exists")
		return
	}

	minStock := 5
	p, err := products.CreateProduct(ctx, core.CreateProductInput{
		Name:             "Diamond Ice Beer",
		Category:         core.CategoryBeer,
		UnitType:         core.UnitCrate,
		Description:      "Sample crate-tracked product",
		CostPrice:        decimal.NewFromInt(600),
		SellingPrice:     decimal.NewFromInt(750),
		CurrentStock:     0,
		MinimumStock:     &minStock,
		HasCrateTracking: true,
	})
	if err != nil {
		log.Fatalf("Failed to create sample product: %v", err)
	}
	log.WithField("product_id", p.ID).Info("created sample product")
}
