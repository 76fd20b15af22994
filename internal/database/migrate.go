package database

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Migrate applies all pending embedded migrations for the connection's dialect
func (db *DB) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(db.Dialect.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	dir := path.Join("migrations", db.Dialect.MigrationsSubdir())
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
