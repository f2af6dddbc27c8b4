package migrations

import (
	"github.com/botfolio/botfolio-api/internal/types"
	"gorm.io/gorm"
)

// AddOrderLog creates the append-only order log and the indexes the
// read side replays against.
func AddOrderLog(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Order{}); err != nil {
		return err
	}

	// Raw SQL for index creation to control the exact shape.
	indexes := []string{
		// The read side always replays one account's history in
		// timestamp order.
		`CREATE INDEX IF NOT EXISTS idx_orders_account_timestamp
		 ON orders(account_id, timestamp)`,

		// Symbol filtering for per-instrument displays.
		`CREATE INDEX IF NOT EXISTS idx_orders_account_symbol
		 ON orders(account_id, symbol)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
