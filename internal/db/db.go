package db

import (
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go-align/internal/config"
	"go-align/internal/store"
)

var DB *gorm.DB

// Dialector picks the sqlite driver for "file:" / "sqlite:" DSNs and
// postgres for everything else.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn)
	default:
		return postgres.Open(dsn)
	}
}

func Init(cfg *config.Config) error {
	db, err := gorm.Open(Dialector(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return err
	}

	// Auto-migrate goal engine models
	if err := store.Migrate(db); err != nil {
		return err
	}

	DB = db
	log.Printf("Database connected and migrated")
	return nil
}
