package migrations

import (
	"github.com/botfolio/botfolio-api/internal/types"
	"gorm.io/gorm"
)

// AddPriceHistory creates the close-price history table used for
// mark-to-market and strategy lookback windows.
func AddPriceHistory(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.PriceBar{}); err != nil {
		return err
	}

	// Latest-close lookups scan one symbol by descending date.
	return db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_price_bars_symbol_date_desc
		 ON price_bars(symbol, date DESC)`,
	).Error
}
