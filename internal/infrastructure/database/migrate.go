package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/wb-go/wbf/zlog"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// RunMigrations applies goose migrations for the given driver. With an empty
// dir the embedded set for that driver is used.
func RunMigrations(db *sql.DB, driver, dir string) error {
	dialect, embeddedDir, err := dialectFor(driver)
	if err != nil {
		return err
	}

	if dir == "" {
		goose.SetBaseFS(embedMigrations)
		dir = embeddedDir
	} else {
		goose.SetBaseFS(nil)
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		zlog.Logger.Error().Err(err).Str("dir", dir).Msg("migrations failed")
		return fmt.Errorf("run migrations: %w", err)
	}

	zlog.Logger.Info().Str("dialect", dialect).Str("dir", dir).Msg("migrations applied")
	return nil
}

func dialectFor(driver string) (dialect, dir string, err error) {
	switch driver {
	case "postgres":
		return "postgres", "migrations/postgres", nil
	case "sqlite":
		return "sqlite3", "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}
