// Package db is the C14 persistence component: database/sql against
// Postgres (lib/pq) in production, falling back to an embedded
// modernc.org/sqlite "lite mode" when DATABASE_URL is unset, the way
// core/cmd/helm/main.go picks a backing store from environment at startup.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect distinguishes the small set of SQL differences between the two
// backends this package supports: placeholder style, autoincrement syntax,
// the boolean false literal, how an inserted id is read back and row
// locking. Everything else is written to be valid in both.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// Open connects to databaseURL if set ("postgres://..."), otherwise opens
// an embedded SQLite database at liteModePath (":memory:" for tests).
func Open(ctx context.Context, databaseURL, liteModePath string) (*sql.DB, Dialect, error) {
	if databaseURL == "" {
		if liteModePath == "" {
			liteModePath = "ouroboros_lite.db"
		}
		database, err := sql.Open("sqlite", liteModePath)
		if err != nil {
			return nil, DialectSQLite, fmt.Errorf("opening lite-mode sqlite store: %w", err)
		}
		if err := database.PingContext(ctx); err != nil {
			return nil, DialectSQLite, fmt.Errorf("pinging lite-mode sqlite store: %w", err)
		}
		return database, DialectSQLite, nil
	}

	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, DialectPostgres, fmt.Errorf("opening postgres store: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		return nil, DialectPostgres, fmt.Errorf("pinging postgres store: %w", err)
	}
	return database, DialectPostgres, nil
}

// ph renders the n-th (1-based) bind placeholder for the dialect: "$n" for
// Postgres, "?" for SQLite.
func ph(d Dialect, n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
