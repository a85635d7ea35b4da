// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"provision/internal/core/id"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
	"provision/internal/infrastructure/storage/postgres"
	"provision/internal/infrastructure/storage/postgres/catalog_repo"
	"provision/internal/infrastructure/storage/postgres/period_repo"
	"provision/internal/infrastructure/storage/postgres/pricing_repo"
	"provision/pkg/config"
	"provision/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := seedAdminUser(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@provision.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	var existingID id.ID
	err := pool.QueryRow(ctx,
		`SELECT id FROM users WHERE LOWER(email) = LOWER($1)`,
		adminEmail,
	).Scan(&existingID)
	if err == nil {
		log.Infow("admin user already exists", "email", adminEmail, "user_id", existingID)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID := id.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name,
			role, is_active, version
		)
		VALUES ($1, $2, $3, 'System', 'Admin', 'admin', true, 1)
	`, userID, adminEmail, string(passwordHash))
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", userID)
	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	// 1. Locations
	locations := []struct {
		code  string
		name  string
		lType string
	}{
		{"LOC-000001", "Main Kitchen", "kitchen"},
		{"LOC-000002", "Dry Store", "store"},
		{"LOC-000003", "Central Store", "central"},
		{"LOC-000004", "Cold Warehouse", "warehouse"},
	}

	for _, l := range locations {
		_, err := pool.Exec(ctx, `
			INSERT INTO cat_locations (id, code, name, type, is_active, deletion_mark, version)
			VALUES ($1, $2, $3, $4, true, false, 1)
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, id.New(), l.code, l.name, l.lType)
		if err != nil {
			log.Warnw("failed to seed location", "name", l.name, "error", err)
		}
	}

	// 2. Suppliers
	suppliers := []struct {
		code  string
		name  string
		email string
	}{
		{"SUP-000001", "Fresh Produce Co", "orders@freshproduce.example"},
		{"SUP-000002", "Atlantic Seafood", "sales@atlanticseafood.example"},
		{"SUP-000003", "Provisions Wholesale", "supply@provwholesale.example"},
	}

	for _, s := range suppliers {
		_, err := pool.Exec(ctx, `
			INSERT INTO cat_suppliers (id, code, name, email, is_active, deletion_mark, version)
			VALUES ($1, $2, $3, $4, true, false, 1)
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, id.New(), s.code, s.name, s.email)
		if err != nil {
			log.Warnw("failed to seed supplier", "name", s.name, "error", err)
		}
	}

	// 3. Items with reference prices (snapshotted when a period opens)
	items := []struct {
		code     string
		name     string
		unit     string
		category string
		price    string
	}{
		{"ITM-000001", "Chicken Breast", "kg", "meat", "8.50"},
		{"ITM-000002", "Atlantic Salmon", "kg", "fish", "14.20"},
		{"ITM-000003", "Whole Milk", "ltr", "dairy", "1.15"},
		{"ITM-000004", "Eggs Large", "tray", "dairy", "4.80"},
		{"ITM-000005", "Basmati Rice", "kg", "dry goods", "2.30"},
		{"ITM-000006", "Olive Oil", "ltr", "dry goods", "6.75"},
		{"ITM-000007", "Tomatoes", "kg", "produce", "2.10"},
		{"ITM-000008", "Baked Beans", "case", "canned", "11.40"},
	}

	for _, i := range items {
		_, err := pool.Exec(ctx, `
			INSERT INTO cat_items (
				id, code, name, unit, category, reference_price,
				is_active, deletion_mark, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, true, false, 1)
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, id.New(), i.code, i.name, i.unit, i.category, i.price)
		if err != nil {
			log.Warnw("failed to seed item", "name", i.name, "error", err)
		}
	}

	// 4. Open the first period through the domain service so prices
	// get locked and per-location status rows get created.
	txManager := postgres.NewTxManager(pool)
	periodRepo := period_repo.NewPeriodRepo(txManager)
	locationRepo := catalog_repo.NewLocationRepo(txManager)
	itemRepo := catalog_repo.NewItemRepo(txManager)
	pricingSvc := pricing.NewService(pricing_repo.NewPriceRepo(txManager), itemRepo)
	periodSvc := period.NewService(periodRepo, locationRepo, pricingSvc, txManager)

	if _, err := periodRepo.CurrentOpen(ctx); err == nil {
		log.Info("open period already exists, skipping")
		return nil
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	name := start.Format("January 2006")

	p, err := periodSvc.Open(ctx, name, start, end)
	if err != nil {
		return fmt.Errorf("open period: %w", err)
	}

	log.Infow("period opened", "name", p.Name, "period_id", p.ID)
	return nil
}
