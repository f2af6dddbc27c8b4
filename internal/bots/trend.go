package bots

// trendLookback is the close history required before the EMA stack is
// meaningful.
const trendLookback = 200

// TrendFollower buys when the EMA(20) > EMA(50) > EMA(200) stack is
// fully bullish and sells when it is fully bearish; anything mixed is a
// hold.
type TrendFollower struct{}

func (TrendFollower) Name() string { return "trend-follower" }

func (TrendFollower) Decide(ctx MarketContext) Action {
	if len(ctx.Closes) < trendLookback {
		return ActionHold
	}
	closes := ctx.Closes[len(ctx.Closes)-trendLookback:]

	ema20 := ema(closes, 20)
	ema50 := ema(closes, 50)
	ema200 := ema(closes, 200)

	if ema20 > ema50 && ema50 > ema200 && ctx.canAfford() {
		return ActionBuy
	}
	if ema20 < ema50 && ema50 < ema200 && ctx.holdsLot() {
		return ActionSell
	}
	return ActionHold
}

// ema is an exponential moving average seeded with the first value.
func ema(values []float64, span int) float64 {
	if len(values) == 0 {
		return 0
	}
	k := 2.0 / float64(span+1)
	value := values[0]
	for _, price := range values[1:] {
		value = price*k + value*(1-k)
	}
	return value
}
