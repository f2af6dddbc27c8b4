package bots

// Momentum buys when the latest close is slightly above the previous
// one and one more lot is affordable, sells when it drops slightly and
// enough is held. The bullish band is 0.1% of the previous close.
type Momentum struct{}

func (Momentum) Name() string { return "momentum" }

func (Momentum) Decide(ctx MarketContext) Action {
	if len(ctx.Closes) < 2 {
		return ActionHold
	}
	latest := ctx.Closes[len(ctx.Closes)-1]
	previous := ctx.Closes[len(ctx.Closes)-2]

	momentum := latest - previous
	bullishThreshold := 0.001 * previous

	if momentum > bullishThreshold && ctx.canAfford() {
		return ActionBuy
	}
	if momentum < -bullishThreshold && ctx.holdsLot() {
		return ActionSell
	}
	return ActionHold
}
