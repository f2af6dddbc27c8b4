package bots

import "math"

// meanReversionWindow is the rolling window the z-score is computed
// over.
const meanReversionWindow = 20

// MeanReversion buys when the latest close sits 1.5 standard deviations
// below the rolling mean and sells 1.5 above it. With fewer closes than
// the window, or a flat window, it holds.
type MeanReversion struct{}

func (MeanReversion) Name() string { return "mean-reversion" }

func (MeanReversion) Decide(ctx MarketContext) Action {
	if len(ctx.Closes) < meanReversionWindow {
		return ActionHold
	}
	closes := ctx.Closes[len(ctx.Closes)-meanReversionWindow:]

	var sum float64
	for _, price := range closes {
		sum += price
	}
	mean := sum / float64(len(closes))

	var variance float64
	for _, price := range closes {
		variance += (price - mean) * (price - mean)
	}
	variance /= float64(len(closes))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return ActionHold
	}

	latest := closes[len(closes)-1]
	zScore := (latest - mean) / stdDev

	if zScore <= -1.5 && ctx.canAfford() {
		return ActionBuy
	}
	if zScore >= 1.5 && ctx.holdsLot() {
		return ActionSell
	}
	return ActionHold
}
