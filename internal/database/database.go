package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/botfolio/botfolio-api/internal/database/migrations"
	"github.com/botfolio/botfolio-api/internal/types"
)

// NewDatabase opens the ledger store at the given path and brings its
// schema up to date. The handle is constructed once by the process
// entry point and injected into every service; nothing opens
// connections at import time.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := migrations.AddOrderLog(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddPriceHistory(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.AutoMigrate(
		&types.Account{},
		&types.Position{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
