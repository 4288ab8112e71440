// Command seed-db provisions a demo data set: a handful of users, a small
// property catalog with variants, and a few discount campaigns. Safe to run
// repeatedly; every insert is an upsert keyed on a fixed id.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gkstays/booking/internal/repository"
)

const (
	upsertUserSQL = `INSERT INTO users (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, email = $3, phone = $4`

	upsertProductSQL = `INSERT INTO products
		(id, name, commission_percent, cancellation_policy, capacity, price_per_night, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = $2, commission_percent = $3,
		cancellation_policy = $4, capacity = $5, price_per_night = $6, currency = $7`

	upsertVariantSQL = `INSERT INTO product_variants
		(id, product_id, name, capacity, price_per_night, extra_bed, extra_bed_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = $3, capacity = $4,
		price_per_night = $5, extra_bed = $6, extra_bed_price = $7`

	upsertDiscountSQL = `INSERT INTO discounts
		(code, discount_type, value, description, min_order_value,
		 max_discount, has_max_discount, usage_limit, per_user_limit, has_per_user_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (code) DO UPDATE SET discount_type = $2, value = $3,
		description = $4, min_order_value = $5, max_discount = $6,
		has_max_discount = $7, usage_limit = $8, per_user_limit = $9,
		has_per_user_limit = $10, active = TRUE`
)

type seedUser struct {
	id, name, email, phone string
}

type seedProduct struct {
	id, name          string
	commissionPercent string
	policy            string
	capacity          int
	pricePerNight     string
	currency          string
}

type seedVariant struct {
	id, productID, name string
	capacity            int
	pricePerNight       string
	extraBed            bool
	extraBedPrice       string
}

type seedDiscount struct {
	code, kind, value, description string
	minOrderValue                  *string
	maxDiscount                    string
	hasMaxDiscount                 bool
	usageLimit                     int
	perUserLimit                   int
	hasPerUserLimit                bool
}

func strPtr(s string) *string { return &s }

var users = []seedUser{
	{"0b0e4f86-1a8c-4b63-9a57-0d77e1a10001", "Asha Nair", "asha@example.com", "+91-9800000001"},
	{"0b0e4f86-1a8c-4b63-9a57-0d77e1a10002", "Rahul Mehta", "rahul@example.com", "+91-9800000002"},
	{"0b0e4f86-1a8c-4b63-9a57-0d77e1a10003", "Front Desk", "frontdesk@gkstays.example", ""},
}

var products = []seedProduct{
	{"7f0a2d14-5bb3-4f02-8c1d-3f64c2b20001", "Hillside Villa", "10", "free until 48h before check-in", 2, "2000", "INR"},
	{"7f0a2d14-5bb3-4f02-8c1d-3f64c2b20002", "Lakefront Cottage", "12.5", "non-refundable", 4, "3500", "INR"},
	{"7f0a2d14-5bb3-4f02-8c1d-3f64c2b20003", "City Studio", "8", "free until 24h before check-in", 2, "1500", "INR"},
}

var variants = []seedVariant{
	{"9c1b3e25-6cc4-4a13-9d2e-4a75d3c30001", "7f0a2d14-5bb3-4f02-8c1d-3f64c2b20001", "Deluxe", 3, "3000", true, "500"},
	{"9c1b3e25-6cc4-4a13-9d2e-4a75d3c30002", "7f0a2d14-5bb3-4f02-8c1d-3f64c2b20002", "Premium Lake View", 4, "4200", true, "600"},
	{"9c1b3e25-6cc4-4a13-9d2e-4a75d3c30003", "7f0a2d14-5bb3-4f02-8c1d-3f64c2b20003", "Corner Suite", 2, "1800", false, "0"},
}

var discounts = []seedDiscount{
	{code: "WELCOME10", kind: "percentage", value: "10", description: "10% off your first stay",
		maxDiscount: "300", hasMaxDiscount: true, usageLimit: 1000},
	{code: "FESTIVE500", kind: "fixed", value: "500", description: "Flat 500 off",
		minOrderValue: strPtr("5000"), usageLimit: 200},
	{code: "LONGSTAY", kind: "percentage", value: "15", description: "15% off stays over 10000",
		minOrderValue: strPtr("10000"), maxDiscount: "2000", hasMaxDiscount: true,
		perUserLimit: 3, hasPerUserLimit: true},
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Users, catalog and discounts are independent; seed them concurrently.
	// Variants must follow their products, so both run in one goroutine.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seedUsers(ctx, pool) })
	g.Go(func() error { return seedCatalog(ctx, pool) })
	g.Go(func() error { return seedDiscounts(ctx, pool) })
	return g.Wait()
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL, u.id, u.name, u.email, u.phone); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.email)
		}
	}
	slog.Info("users seeded", slog.Int("count", len(users)))
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.id, p.name, p.commissionPercent, p.policy, p.capacity, p.pricePerNight, p.currency)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.name)
		}
	}
	for _, v := range variants {
		_, err := pool.Exec(ctx, upsertVariantSQL,
			v.id, v.productID, v.name, v.capacity, v.pricePerNight, v.extraBed, v.extraBedPrice)
		if err != nil {
			return errors.Wrapf(err, "upsert variant %s", v.name)
		}
	}
	slog.Info("catalog seeded",
		slog.Int("products", len(products)), slog.Int("variants", len(variants)))
	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	for _, d := range discounts {
		maxDiscount := d.maxDiscount
		if maxDiscount == "" {
			maxDiscount = "0"
		}
		_, err := pool.Exec(ctx, upsertDiscountSQL,
			d.code, d.kind, d.value, d.description, d.minOrderValue,
			maxDiscount, d.hasMaxDiscount, d.usageLimit, d.perUserLimit, d.hasPerUserLimit)
		if err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.code)
		}
	}
	slog.Info("discounts seeded", slog.Int("count", len(discounts)))
	return nil
}
