package accounting

import (
	"sort"
	"time"
)

// ClosedTrade is one FIFO consumption event: a sell matched against one
// specific historical buy lot. A single sell order can generate several
// entries when it closes against lots bought at different prices.
type ClosedTrade struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	BuyPrice      float64   `json:"buy_price"`
	SellPrice     float64   `json:"sell_price"`
	BuyTimestamp  time.Time `json:"buy_timestamp"`
	SellTimestamp time.Time `json:"sell_timestamp"`
	PnL           float64   `json:"pnl"`
}

// ExtractClosedTrades replays the full normalized fill history through
// scratch per-symbol FIFO queues and returns every matched buy/sell
// consumption, newest sell first. It is a pure function of the history
// and is recomputed on every read.
func ExtractClosedTrades(fills []Fill) []ClosedTrade {
	entries, _ := ReplayClosedTrades(fills)
	return entries
}

// ReplayClosedTrades is ExtractClosedTrades plus the total sell quantity
// that found no historical buy to match against. A non-zero remainder
// means the order log and the live ledger have diverged (the write path
// rejects overselling outright); callers should surface it as a
// reconciliation warning rather than fail the read.
func ReplayClosedTrades(fills []Fill) ([]ClosedTrade, float64) {
	queues := make(map[string][]Lot)
	entries := make([]ClosedTrade, 0)
	var truncated float64

	for _, fill := range fills {
		if fill.Side == SideBuy {
			queues[fill.Symbol] = append(queues[fill.Symbol], Lot{
				Quantity:  fill.Quantity,
				Price:     fill.FillPrice,
				Timestamp: fill.Timestamp,
			})
			continue
		}

		queue := queues[fill.Symbol]
		remaining := fill.Quantity
		for len(queue) > 0 && remaining > DisplayEpsilon {
			lot := &queue[0]
			consumed := lot.Quantity
			if consumed > remaining {
				consumed = remaining
			}
			entries = append(entries, ClosedTrade{
				Symbol:        fill.Symbol,
				Quantity:      Round6(consumed),
				BuyPrice:      lot.Price,
				SellPrice:     fill.FillPrice,
				BuyTimestamp:  lot.Timestamp,
				SellTimestamp: fill.Timestamp,
				PnL:           Round6((fill.FillPrice - lot.Price) * consumed),
			})
			remaining -= consumed
			lot.Quantity -= consumed
			if lot.Quantity <= DisplayEpsilon {
				queue = queue[1:]
			}
		}
		if remaining > DisplayEpsilon {
			truncated += remaining
		}
		queues[fill.Symbol] = queue
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SellTimestamp.After(entries[j].SellTimestamp)
	})
	return entries, Round6(truncated)
}
