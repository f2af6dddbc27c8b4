// Package bots holds the trading strategies and the scheduler that runs
// them against the ledger. Strategies are simple policies over the
// engine's state: they decide when to trade, never how the ledger is
// mutated.
package bots

// Action is a strategy's decision for one scheduling tick.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// MarketContext is the state a strategy sees when deciding: the close
// history for its symbol (ascending, latest last), the account's cash,
// the quantity currently held, and the configured lot size.
type MarketContext struct {
	Closes  []float64
	Cash    float64
	QtyHeld float64
	LotSize float64
}

// LatestClose returns the most recent close, zero when no history
// exists.
func (c MarketContext) LatestClose() float64 {
	if len(c.Closes) == 0 {
		return 0
	}
	return c.Closes[len(c.Closes)-1]
}

// canAfford reports whether cash covers one more lot at the latest
// close.
func (c MarketContext) canAfford() bool {
	return c.Cash >= c.LatestClose()*c.LotSize
}

// holdsLot reports whether at least one lot is held.
func (c MarketContext) holdsLot() bool {
	return c.QtyHeld >= c.LotSize
}

// Strategy decides whether to trade on a scheduling tick.
type Strategy interface {
	Name() string
	Decide(ctx MarketContext) Action
}
