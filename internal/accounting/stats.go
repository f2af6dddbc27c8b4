package accounting

import "time"

// ActivityStatus is the presentation-facing trading status of an account.
type ActivityStatus string

const (
	StatusActive  ActivityStatus = "active"
	StatusPaused  ActivityStatus = "paused"
	StatusStopped ActivityStatus = "stopped"
)

// activityWindow is how recently an account must have traded to count
// as active.
const activityWindow = 3 * 24 * time.Hour

// Stats is the aggregate performance summary for one account.
//
// TradesCount counts orders, not closed round-trips. Wins, Losses and
// WinRate are computed only over closed round-trips; a round-trip whose
// P&L lands within DisplayEpsilon of zero counts toward ClosedTrades
// but toward neither wins nor losses.
type Stats struct {
	TotalPnL     float64 `json:"total_pnl"`
	ROI          float64 `json:"roi"`
	TradesCount  int     `json:"trades_count"`
	ClosedTrades int     `json:"closed_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
}

// AggregateStats computes the account-level performance summary from
// the configured starting balance, the current total value (cash plus
// mark-to-market of open positions), and the full normalized fill
// sequence. Degenerate inputs (zero initial credits, no closed trades)
// yield defined neutral values, never an error.
func AggregateStats(initialCredits, totalValue float64, fills []Fill) Stats {
	stats := Stats{
		TotalPnL:    Round6(totalValue - initialCredits),
		TradesCount: len(fills),
	}
	if initialCredits > DisplayEpsilon {
		stats.ROI = (totalValue - initialCredits) / initialCredits
	}

	// Replay through scratch per-symbol queues, collapsing each sell
	// order into one round-trip rather than one entry per lot split.
	queues := make(map[string][]Lot)
	for _, fill := range fills {
		if fill.Side == SideBuy {
			queues[fill.Symbol] = append(queues[fill.Symbol], Lot{
				Quantity: fill.Quantity,
				Price:    fill.FillPrice,
			})
			continue
		}

		queue := queues[fill.Symbol]
		remaining := fill.Quantity
		var pnl, matched float64
		for len(queue) > 0 && remaining > DisplayEpsilon {
			lot := &queue[0]
			consumed := lot.Quantity
			if consumed > remaining {
				consumed = remaining
			}
			pnl += (fill.FillPrice - lot.Price) * consumed
			matched += consumed
			remaining -= consumed
			lot.Quantity -= consumed
			if lot.Quantity <= DisplayEpsilon {
				queue = queue[1:]
			}
		}
		queues[fill.Symbol] = queue

		if matched <= DisplayEpsilon {
			continue
		}
		stats.ClosedTrades++
		switch {
		case pnl > DisplayEpsilon:
			stats.Wins++
		case pnl < -DisplayEpsilon:
			stats.Losses++
		}
	}

	if stats.ClosedTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.ClosedTrades)
	}
	return stats
}

// DeriveStatus classifies an account's trading activity: active when the
// most recent fill is inside the activity window, paused when there is
// history but it has gone stale, stopped when no fills exist. Fills are
// expected in ascending timestamp order.
func DeriveStatus(fills []Fill, now time.Time) ActivityStatus {
	if len(fills) == 0 {
		return StatusStopped
	}
	latest := fills[len(fills)-1].Timestamp
	if now.Sub(latest) <= activityWindow {
		return StatusActive
	}
	return StatusPaused
}
