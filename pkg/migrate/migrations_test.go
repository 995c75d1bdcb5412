package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContainsAll(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")
	assertContainsAll(t, content, []string{
		"CREATE TYPE order_status AS ENUM",
		"'payment_pending'",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"price_at_time_cents integer NOT NULL",
		"CREATE TABLE IF NOT EXISTS order_tracking_events",
		"ON order_tracking_events (order_id) WHERE status = 'payment_confirmed'",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestCartMigrationContainsUniqueKeys(t *testing.T) {
	content := readMigration(t, "*_create_cart_tables.sql")
	assertContainsAll(t, content, []string{
		"CREATE TABLE IF NOT EXISTS cart_lines",
		"ON cart_lines (user_id, product_id, size)",
		"CHECK (quantity >= 1)",
		"ON cart_merges (user_id, merge_key)",
	})
}

func TestDiscountAndLaybyMigrations(t *testing.T) {
	discounts := readMigration(t, "*_create_discount_codes_table.sql")
	assertContainsAll(t, discounts, []string{
		"CREATE TYPE discount_kind AS ENUM ('percentage', 'fixed', 'shipping')",
		"times_used integer NOT NULL DEFAULT 0",
		"CHECK (code = upper(code))",
	})

	layby := readMigration(t, "*_create_layby_tables.sql")
	assertContainsAll(t, layby, []string{
		"CREATE TYPE layby_frequency AS ENUM ('weekly', 'fortnightly', 'monthly')",
		"ON layby_plans (order_id) WHERE order_id IS NOT NULL",
		"ON layby_payments (plan_id, sequence)",
	})
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	embedded, err := fs.ReadDir(migrate.Embedded(), ".")
	if err != nil {
		t.Fatalf("read embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateFSRejectsBrokenMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"add_users.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260301090000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"unbalanced statements": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			if err := migrate.ValidateFS(fsys); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"add_users.sql":        {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260301090000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"20260301090100_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"notes.txt":            {Data: []byte("ignored")},
	}
	err := migrate.ValidateFS(fsys)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"add_users.sql", "down section precedes up"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "20260301090100_b.sql") {
		t.Fatalf("valid migration reported: %v", err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Gift Cards!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_gift_cards.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}

	second, err := migrate.CreateSQLMigration(dir, "add gift card balances")
	if err != nil {
		t.Fatalf("create second migration: %v", err)
	}
	if filepath.Base(second) <= filepath.Base(path) {
		t.Fatalf("expected %s to sort after %s", second, path)
	}

	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for empty sanitized name")
	}
}
