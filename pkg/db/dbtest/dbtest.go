// Package dbtest opens throwaway in-memory databases carrying the storefront schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema mirrors the goose migrations with sqlite column types.
var Schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		compare_at_price_cents INTEGER,
		sizes TEXT NOT NULL DEFAULT '{}',
		images TEXT NOT NULL DEFAULT '{}',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE shipping_methods (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		price_cents INTEGER NOT NULL,
		estimated_days_min INTEGER NOT NULL DEFAULT 1,
		estimated_days_max INTEGER NOT NULL DEFAULT 5,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE cart_lines (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		size TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		image_ref TEXT NOT NULL DEFAULT '',
		list TEXT NOT NULL DEFAULT 'cart',
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (user_id, product_id, size)
	)`,
	`CREATE TABLE cart_merges (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		merge_key TEXT NOT NULL,
		line_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		UNIQUE (user_id, merge_key)
	)`,
	`CREATE TABLE discount_codes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		usage_limit INTEGER,
		times_used INTEGER NOT NULL DEFAULT 0,
		min_purchase_cents INTEGER,
		max_discount_cents INTEGER,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		subtotal_cents INTEGER NOT NULL,
		shipping_cents INTEGER NOT NULL,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		total_cents INTEGER NOT NULL,
		payment_amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		discount_code_id TEXT,
		discount_code TEXT,
		shipping_method_id TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		billing_address TEXT NOT NULL,
		payment_intent_id TEXT,
		is_layby BOOLEAN NOT NULL DEFAULT 0,
		buyer_email TEXT NOT NULL,
		buyer_name TEXT NOT NULL,
		paid_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		size TEXT NOT NULL DEFAULT '',
		image_ref TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		price_at_time_cents INTEGER NOT NULL,
		line_total_cents INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE order_tracking_events (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		location TEXT,
		carrier TEXT,
		tracking_number TEXT,
		estimated_delivery DATETIME,
		latitude REAL,
		longitude REAL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_order_tracking_events_payment_confirmed
		ON order_tracking_events (order_id) WHERE status = 'payment_confirmed'`,
	`CREATE TABLE layby_plans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		order_id TEXT,
		frequency TEXT NOT NULL,
		total_cents INTEGER NOT NULL,
		deposit_cents INTEGER NOT NULL,
		remaining_cents INTEGER NOT NULL,
		installment_count INTEGER NOT NULL,
		installment_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE layby_payments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		amount_cents INTEGER NOT NULL,
		due_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		paid_at DATETIME,
		created_at DATETIME,
		UNIQUE (plan_id, sequence)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with every storefront table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
