package accounting

import (
	"math"
	"strconv"
	"testing"
	"time"
)

func rawFill(id string, fields map[string]any) RawFill {
	return RawFill{ID: id, Fields: fields}
}

func TestNormalizeFills_WellFormed(t *testing.T) {
	raw := []RawFill{
		rawFill("ord-1", map[string]any{
			"symbol":     "AAPL",
			"side":       "buy",
			"quantity":   10.0,
			"fill_price": 100.5,
			"timestamp":  baseTime,
		}),
	}
	fills := normalizeFillsAt(raw, baseTime)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	got := fills[0]
	if got.Symbol != "AAPL" || got.Side != SideBuy || got.Quantity != 10 || got.FillPrice != 100.5 {
		t.Errorf("unexpected fill: %+v", got)
	}
}

func TestNormalizeFills_DropRules(t *testing.T) {
	cases := []struct {
		name   string
		record RawFill
	}{
		{"missing symbol and id", rawFill("", map[string]any{"side": "buy", "quantity": 1.0, "fill_price": 1.0})},
		{"bad side", rawFill("x", map[string]any{"symbol": "AAPL", "side": "short", "quantity": 1.0, "fill_price": 1.0})},
		{"missing quantity", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "fill_price": 1.0})},
		{"non-numeric quantity", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": "lots", "fill_price": 1.0})},
		{"nan price", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": 1.0, "fill_price": math.NaN()})},
		{"inf price", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": 1.0, "fill_price": math.Inf(1)})},
		{"zero quantity", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": 0.0, "fill_price": 1.0})},
		{"epsilon quantity", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": 1e-9, "fill_price": 1.0})},
		{"negative price", rawFill("x", map[string]any{"symbol": "AAPL", "side": "buy", "quantity": 1.0, "fill_price": -2.0})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if fills := normalizeFillsAt([]RawFill{tc.record}, baseTime); len(fills) != 0 {
				t.Errorf("expected record dropped, got %+v", fills)
			}
		})
	}
}

func TestNormalizeFills_SymbolFallsBackToID(t *testing.T) {
	raw := []RawFill{
		rawFill("TSLA", map[string]any{"side": "SELL", "quantity": 2.0, "fill_price": 250.0, "timestamp": baseTime}),
	}
	fills := normalizeFillsAt(raw, baseTime)
	if len(fills) != 1 || fills[0].Symbol != "TSLA" {
		t.Fatalf("expected symbol from record id, got %+v", fills)
	}
	if fills[0].Side != SideSell {
		t.Errorf("side should be case-insensitive, got %q", fills[0].Side)
	}
}

func TestNormalizeFills_TimestampShapes(t *testing.T) {
	millis := float64(baseTime.UnixMilli())
	raw := []RawFill{
		rawFill("a", map[string]any{"symbol": "A", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": millis}),
		rawFill("b", map[string]any{"symbol": "B", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": baseTime.Format(time.RFC3339Nano)}),
		rawFill("c", map[string]any{"symbol": "C", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": baseTime}),
		rawFill("d", map[string]any{"symbol": "D", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": strconv.FormatInt(baseTime.UnixMilli(), 10)}),
	}
	fills := normalizeFillsAt(raw, baseTime.Add(time.Hour))
	if len(fills) != 4 {
		t.Fatalf("expected 4 fills, got %d", len(fills))
	}
	for _, f := range fills {
		if !f.Timestamp.Equal(baseTime) {
			t.Errorf("symbol %s: expected %v, got %v", f.Symbol, baseTime, f.Timestamp)
		}
	}
}

func TestNormalizeFills_MissingTimestampFallsBackToNow(t *testing.T) {
	now := baseTime.Add(42 * time.Minute)
	raw := []RawFill{
		rawFill("a", map[string]any{"symbol": "A", "side": "buy", "quantity": 1.0, "fill_price": 1.0}),
	}
	fills := normalizeFillsAt(raw, now)
	if len(fills) != 1 || !fills[0].Timestamp.Equal(now) {
		t.Fatalf("expected fallback to now, got %+v", fills)
	}
}

func TestNormalizeFills_SortedAscendingStableTies(t *testing.T) {
	raw := []RawFill{
		rawFill("late", map[string]any{"symbol": "LATE", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": at(10)}),
		rawFill("tie-1", map[string]any{"symbol": "T1", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": at(5)}),
		rawFill("tie-2", map[string]any{"symbol": "T2", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": at(5)}),
		rawFill("early", map[string]any{"symbol": "EARLY", "side": "buy", "quantity": 1.0, "fill_price": 1.0, "timestamp": at(1)}),
	}
	fills := normalizeFillsAt(raw, baseTime)
	want := []string{"EARLY", "T1", "T2", "LATE"}
	for i, symbol := range want {
		if fills[i].Symbol != symbol {
			t.Fatalf("position %d: expected %s, got %s (all: %+v)", i, symbol, fills[i].Symbol, fills)
		}
	}
}

func TestNormalizeFills_NumericStrings(t *testing.T) {
	raw := []RawFill{
		rawFill("a", map[string]any{"symbol": "A", "side": "buy", "quantity": "2.5", "fill_price": "99.75", "timestamp": baseTime}),
	}
	fills := normalizeFillsAt(raw, baseTime)
	if len(fills) != 1 {
		t.Fatalf("expected numeric strings accepted, got %+v", fills)
	}
	if fills[0].Quantity != 2.5 || fills[0].FillPrice != 99.75 {
		t.Errorf("unexpected parse: %+v", fills[0])
	}
}
