package bots

import "testing"

func repeatCloses(value float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return closes
}

func TestMomentum(t *testing.T) {
	cases := []struct {
		name string
		ctx  MarketContext
		want Action
	}{
		{
			"rising price with cash buys",
			MarketContext{Closes: []float64{100, 100.2}, Cash: 10_000, LotSize: 1},
			ActionBuy,
		},
		{
			"rising price without cash holds",
			MarketContext{Closes: []float64{100, 100.2}, Cash: 50, LotSize: 1},
			ActionHold,
		},
		{
			"falling price with position sells",
			MarketContext{Closes: []float64{100, 99.7}, QtyHeld: 2, LotSize: 1},
			ActionSell,
		},
		{
			"falling price without position holds",
			MarketContext{Closes: []float64{100, 99.7}, QtyHeld: 0.5, LotSize: 1},
			ActionHold,
		},
		{
			"flat price holds",
			MarketContext{Closes: []float64{100, 100.05}, Cash: 10_000, QtyHeld: 2, LotSize: 1},
			ActionHold,
		},
		{
			"single close holds",
			MarketContext{Closes: []float64{100}, Cash: 10_000, LotSize: 1},
			ActionHold,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Momentum{}).Decide(tc.ctx); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestMeanReversion(t *testing.T) {
	dip := append(repeatCloses(100, 19), 90)
	spike := append(repeatCloses(100, 19), 110)

	cases := []struct {
		name string
		ctx  MarketContext
		want Action
	}{
		{
			"deep dip buys",
			MarketContext{Closes: dip, Cash: 10_000, LotSize: 1},
			ActionBuy,
		},
		{
			"spike with position sells",
			MarketContext{Closes: spike, QtyHeld: 2, LotSize: 1},
			ActionSell,
		},
		{
			"flat window holds",
			MarketContext{Closes: repeatCloses(100, 20), Cash: 10_000, QtyHeld: 2, LotSize: 1},
			ActionHold,
		},
		{
			"short history holds",
			MarketContext{Closes: repeatCloses(100, 10), Cash: 10_000, LotSize: 1},
			ActionHold,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (MeanReversion{}).Decide(tc.ctx); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTrendFollower(t *testing.T) {
	rising := make([]float64, trendLookback)
	falling := make([]float64, trendLookback)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 300 - float64(i)
	}

	cases := []struct {
		name string
		ctx  MarketContext
		want Action
	}{
		{
			"bullish stack buys",
			MarketContext{Closes: rising, Cash: 100_000, LotSize: 1},
			ActionBuy,
		},
		{
			"bearish stack with position sells",
			MarketContext{Closes: falling, QtyHeld: 2, LotSize: 1},
			ActionSell,
		},
		{
			"short history holds",
			MarketContext{Closes: rising[:100], Cash: 100_000, LotSize: 1},
			ActionHold,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (TrendFollower{}).Decide(tc.ctx); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestScoredStrategy_Thresholds(t *testing.T) {
	fixed := func(score float64) Strategy {
		return NewScoredStrategy("fixed", func(MarketContext) float64 { return score }, 0.58, 0.42)
	}
	ctx := MarketContext{Closes: []float64{100}, Cash: 10_000, QtyHeld: 2, LotSize: 1}

	if got := fixed(0.60).Decide(ctx); got != ActionBuy {
		t.Errorf("expected buy above threshold, got %s", got)
	}
	if got := fixed(0.40).Decide(ctx); got != ActionSell {
		t.Errorf("expected sell below threshold, got %s", got)
	}
	if got := fixed(0.50).Decide(ctx); got != ActionHold {
		t.Errorf("expected hold between thresholds, got %s", got)
	}
}

func rampCloses(start, factor float64, n int) []float64 {
	closes := make([]float64, n)
	price := start
	for i := range closes {
		closes[i] = price
		price *= factor
	}
	return closes
}

func TestTrendModel(t *testing.T) {
	window := trendFeatureWindow + 1
	cases := []struct {
		name string
		ctx  MarketContext
		want Action
	}{
		{
			"sustained rally buys",
			MarketContext{Closes: rampCloses(100, 1.01, window), Cash: 100_000, LotSize: 1},
			ActionBuy,
		},
		{
			"sustained decline with position sells",
			MarketContext{Closes: rampCloses(100, 0.99, window), QtyHeld: 2, LotSize: 1},
			ActionSell,
		},
		{
			"flat window holds",
			MarketContext{Closes: repeatCloses(100, window), Cash: 100_000, QtyHeld: 2, LotSize: 1},
			ActionHold,
		},
		{
			"drift below thresholds holds",
			MarketContext{Closes: rampCloses(100, 1.00001, window), Cash: 100_000, QtyHeld: 2, LotSize: 1},
			ActionHold,
		},
		{
			"short history holds",
			MarketContext{Closes: rampCloses(100, 1.01, 20), Cash: 100_000, QtyHeld: 2, LotSize: 1},
			ActionHold,
		},
		{
			"rally without cash holds",
			MarketContext{Closes: rampCloses(100, 1.01, window), Cash: 50, LotSize: 1},
			ActionHold,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewTrendModel().Decide(tc.ctx); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestMeanModel_BuysTheDip(t *testing.T) {
	dip := append(repeatCloses(100, 19), 90)
	ctx := MarketContext{Closes: dip, Cash: 10_000, LotSize: 1}
	if got := NewMeanModel().Decide(ctx); got != ActionBuy {
		t.Errorf("expected buy on deep dip, got %s", got)
	}

	flat := MarketContext{Closes: repeatCloses(100, 20), Cash: 10_000, QtyHeld: 2, LotSize: 1}
	if got := NewMeanModel().Decide(flat); got != ActionHold {
		t.Errorf("expected hold on flat window, got %s", got)
	}
}
