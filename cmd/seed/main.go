package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/checkout-service/internal/catalog/domain"
	catalogpg "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/config"
	"github.com/dmehra2102/checkout-service/pkg/database"
	"github.com/dmehra2102/checkout-service/pkg/logging"
)

var demoItems = []catalog.Item{
	{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("999.99"), IsActive: true},
	{Name: "Mouse", Description: "Wireless mouse", Price: decimal.RequireFromString("19.99"), IsActive: true},
	{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("49.99"), IsActive: true},
	{Name: "Headphones", Description: "Noise cancelling headphones", Price: decimal.RequireFromString("79.99"), IsActive: true},
}

// seed applies the schema, upserts the demo catalog and optionally prints
// tokens for local testing.
func main() {
	tokens := flag.Bool("tokens", false, "print a customer and an admin token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pool, err := database.Connect(ctx, log, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	repo := catalogpg.NewRepository(log, pool)
	for _, it := range demoItems {
		id, err := repo.Upsert(ctx, it)
		if err != nil {
			log.Error("seed item failed", "name", it.Name, "err", err)
			os.Exit(1)
		}
		log.Info("item seeded", "id", id, "name", it.Name, "price", it.Price.StringFixed(2))
	}

	_, err = pool.Exec(ctx, `INSERT INTO users (id, name, email, role) VALUES
		(1, 'Admin', 'admin@example.com', 'admin'),
		(2, 'Demo Customer', 'customer@example.com', 'user')
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		log.Error("seed users failed", "err", err)
		os.Exit(1)
	}
	_, _ = pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT MAX(id) FROM users), 1))`)

	if *tokens {
		authn := auth.NewAuthenticator(log, cfg.JWTSecret)
		customer, _ := authn.Issue(2, "user", 24*time.Hour)
		admin, _ := authn.Issue(1, auth.RoleAdmin, 24*time.Hour)
		fmt.Println("customer:", customer)
		fmt.Println("admin:   ", admin)
	}
}
