package portfolio

import (
	"time"

	"github.com/botfolio/botfolio-api/internal/accounting"
)

// PositionView is one open position marked to market for display.
// MarkPrice is zero when no price is known; the position then
// contributes nothing to total value rather than failing the read.
type PositionView struct {
	Symbol      string           `json:"symbol"`
	Quantity    float64          `json:"quantity"`
	AvgPrice    float64          `json:"avg_price"`
	MarkPrice   float64          `json:"mark_price"`
	MarketValue float64          `json:"market_value"`
	Lots        []accounting.Lot `json:"lots"`
}

// Snapshot is the full display model for one account, recomputed from
// the order log and lot documents on every (uncached) read.
type Snapshot struct {
	AccountID        string                    `json:"account_id"`
	Status           accounting.ActivityStatus `json:"status"`
	Cash             float64                   `json:"cash"`
	InitialCredits   float64                   `json:"initial_credits"`
	TotalValue       float64                   `json:"total_value"`
	Stats            accounting.Stats          `json:"stats"`
	Positions        []PositionView            `json:"positions"`
	TruncatedSellQty float64                   `json:"truncated_sell_qty,omitempty"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}
