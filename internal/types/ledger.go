package types

import (
	"time"

	"gorm.io/gorm"
)

// Account is the per-bot brokerage account. Cash is mutated exclusively
// by the ledger mutation path, inside a transaction; it is never
// read-modify-written anywhere else.
type Account struct {
	gorm.Model     `json:"-"`
	AccountID      string  `gorm:"uniqueIndex" json:"account_id"`
	Cash           float64 `json:"cash"`
	InitialCredits float64 `json:"initial_credits"`
}

// Position is the per-symbol open-lot document for one account. Lots
// holds the serialized FIFO lot list (oldest acquisition first);
// Quantity and AvgPrice are derived from the lots on every write and
// carried only for query convenience.
type Position struct {
	gorm.Model `json:"-"`
	AccountID  string  `gorm:"index:idx_positions_account_symbol,unique" json:"account_id"`
	Symbol     string  `gorm:"index:idx_positions_account_symbol,unique" json:"symbol"`
	Quantity   float64 `json:"quantity"`
	AvgPrice   float64 `json:"avg_price"`
	Lots       string  `json:"-"` // JSON-encoded []accounting.Lot
}

// Order is one executed fill in the append-only order log. Rows are
// written once by the ledger mutation path and never updated or
// deleted.
type Order struct {
	gorm.Model `json:"-"`
	OrderID    string    `gorm:"uniqueIndex" json:"order_id"`
	AccountID  string    `gorm:"index" json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`       // buy or sell
	OrderType  string    `json:"order_type"` // market for bot fills
	Quantity   float64   `json:"quantity"`
	FillPrice  float64   `json:"fill_price"`
	Status     string    `json:"status"` // always filled
	Timestamp  time.Time `json:"timestamp"`
}

// PriceBar is one historical close for a symbol, most recent row wins
// for mark-to-market.
type PriceBar struct {
	gorm.Model `json:"-"`
	Symbol     string    `gorm:"index:idx_price_bars_symbol_date" json:"symbol"`
	Close      float64   `json:"close"`
	Date       time.Time `gorm:"index:idx_price_bars_symbol_date" json:"date"`
}
