// Package storage opens the local SQLite database, applies migrations, and
// wires up the repositories the rest of the application works through.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/aryklein/sheetsync/internal/migrations"
	"github.com/aryklein/sheetsync/internal/repositories/sheets"
	"github.com/aryklein/sheetsync/internal/repositories/syncmeta"

	_ "modernc.org/sqlite"
)

// Repositories bundles the database handle with the repositories bound to it.
type Repositories struct {
	DB       *sql.DB
	Sheets   sheets.Repository
	SyncMeta syncmeta.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// DSN decorates a database path with the pragmas the engine relies on:
// WAL with full synchronous so a reported write survives a crash, and a
// busy timeout so the app-facing calls and the sync cycle wait on each
// other instead of failing with SQLITE_BUSY.
func DSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(1)"
	if strings.Contains(path, "?") {
		return "file:" + path + "&" + pragmas
	}
	return "file:" + path + "?" + pragmas
}

// InitDatabase opens (creating if needed) the local database at path, runs
// migrations, and returns the wired repositories.
func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: app-facing calls and the sync cycle share one connection,
	// so their transactions serialize instead of interleaving.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		DB:       db,
		Sheets:   sheets.NewSQLiteRepository(db),
		SyncMeta: syncmeta.NewSQLiteRepository(db),
	}, nil
}
