// Package storetest opens throwaway SQLite databases carrying the service schema.
package storetest

import (
	_ "embed"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open returns an in-memory database with the schema applied. A single
// connection keeps every query on the same memory database.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedCreator inserts creator row id owned by the account userID.
func SeedCreator(t testing.TB, db *sqlx.DB, id, userID int64, username, widgetToken string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO creators (id, user_id, username, display_name, widget_secret_token)
		VALUES (?, ?, ?, ?, ?)`, id, userID, username, username, widgetToken)
	if err != nil {
		t.Fatalf("seed creator: %v", err)
	}
}

// SeedTier inserts a subscription tier.
func SeedTier(t testing.TB, db *sqlx.DB, id, creatorID int64, name string, priceCents int64, active bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO subscription_tiers (id, creator_id, name, price_cents, benefits, external_price_ref, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, creatorID, name, priceCents, `["Shoutout","Pit lane badge"]`, "price_"+name, active)
	if err != nil {
		t.Fatalf("seed tier: %v", err)
	}
}

// SeedPackage inserts a sponsorship package.
func SeedPackage(t testing.TB, db *sqlx.DB, id, creatorID int64, name string, priceCents int64, active bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sponsorship_packages (id, creator_id, name, price_cents, active)
		VALUES (?, ?, ?, ?, ?)`, id, creatorID, name, priceCents, active)
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}
}
