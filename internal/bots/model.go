package bots

import "math"

// ScoredStrategy runs a scoring function over the market context and
// trades on fixed thresholds: buy at or above the buy threshold, sell
// at or below the sell threshold. The affordability and holding gates
// still apply.
type ScoredStrategy struct {
	name          string
	score         func(MarketContext) float64
	buyThreshold  float64
	sellThreshold float64
}

// NewScoredStrategy wraps a scoring function with trade thresholds.
func NewScoredStrategy(name string, score func(MarketContext) float64, buyThreshold, sellThreshold float64) ScoredStrategy {
	return ScoredStrategy{
		name:          name,
		score:         score,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
	}
}

func (s ScoredStrategy) Name() string { return s.name }

func (s ScoredStrategy) Decide(ctx MarketContext) Action {
	score := s.score(ctx)
	if score >= s.buyThreshold && ctx.canAfford() {
		return ActionBuy
	}
	if score <= s.sellThreshold && ctx.holdsLot() {
		return ActionSell
	}
	return ActionHold
}

// NewMeanModel is a logistic decision layer over the mean-reversion
// z-score: the further below the rolling mean the latest close sits,
// the higher the probability it reverts upward. Thresholds 0.58 / 0.42.
func NewMeanModel() ScoredStrategy {
	return NewScoredStrategy("ml-mean", func(ctx MarketContext) float64 {
		if len(ctx.Closes) < meanReversionWindow {
			return 0.5
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
		stdDev := math.Sqrt(variance / float64(len(closes)))
		if stdDev == 0 {
			return 0.5
		}

		zScore := (closes[len(closes)-1] - mean) / stdDev
		return sigmoid(-zScore)
	}, 0.58, 0.42)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Asymmetric return thresholds for the trend regressor: positions exit
// on weaker evidence than they enter. Buy at +0.25%, sell at -0.1%.
const (
	trendBuyReturn  = 0.0025
	trendSellReturn = -0.001

	trendFeatureWindow = 50
	momentumBars       = 5
	rsiPeriod          = 14
	atrPeriod          = 14
)

// NewTrendModel scores a predicted next-bar return from the trend
// feature vector: EMA(20) and EMA(50) gaps, 5-bar momentum, RSI(14),
// and ATR(14). The blend is a fixed linear stand-in for an offline
// regressor, so decisions are a deterministic function of the close
// history.
func NewTrendModel() ScoredStrategy {
	return NewScoredStrategy("ml-trend", predictTrendReturn, trendBuyReturn, trendSellReturn)
}

func predictTrendReturn(ctx MarketContext) float64 {
	if len(ctx.Closes) < trendFeatureWindow+1 {
		return 0
	}
	closes := ctx.Closes[len(ctx.Closes)-trendFeatureWindow-1:]
	latest := closes[len(closes)-1]
	reference := closes[len(closes)-1-momentumBars]

	emaDiffShort := (latest - ema(closes, 20)) / latest
	emaDiffLong := (latest - ema(closes, 50)) / latest
	momentum := (latest - reference) / reference
	rsiSignal := (rsi(closes, rsiPeriod) - 50) / 50
	volatility := atr(closes, atrPeriod) / latest

	return 0.4*momentum + 0.25*emaDiffShort + 0.2*emaDiffLong + 0.15*rsiSignal*volatility
}

// rsi is the relative strength index over the trailing period.
func rsi(values []float64, period int) float64 {
	if len(values) <= period {
		return 50
	}
	var gains, losses float64
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// atr averages absolute close-to-close moves over the trailing period;
// the history carries closes only, so true range degrades to that.
func atr(values []float64, period int) float64 {
	if len(values) < 2 {
		return 0
	}
	start := len(values) - period
	if start < 1 {
		start = 1
	}
	var sum float64
	var n int
	for i := start; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
		n++
	}
	return sum / float64(n)
}
