package accounting

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is one executed trade, validated and canonicalized. Fills are
// append-only: once recorded they are never mutated or deleted.
type Fill struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	FillPrice float64   `json:"fill_price"`
	Timestamp time.Time `json:"timestamp"`
}

// RawFill is one order record as read back from the store, before any
// validation. Numeric fields may be missing, of the wrong type, or
// non-finite; timestamps may arrive as epoch milliseconds, RFC3339
// strings, or not at all. ID is the store-assigned record identifier,
// used as a symbol fallback and to preserve insertion order for
// equal timestamps.
type RawFill struct {
	ID     string
	Fields map[string]any
}

// NormalizeFills validates and canonicalizes raw order records into a
// sequence of well-formed fills, ascending by timestamp. Malformed
// records are dropped, never errored: the read side favors a complete
// run over failing on dirty historical data. Records without a usable
// timestamp fall back to the current time, which can misorder them
// relative to genuine history; the write path rejects such records
// instead (see ledger.Service.SubmitFill).
func NormalizeFills(raw []RawFill) []Fill {
	return normalizeFillsAt(raw, time.Now())
}

func normalizeFillsAt(raw []RawFill, now time.Time) []Fill {
	fills := make([]Fill, 0, len(raw))
	for _, r := range raw {
		fill, ok := normalizeOne(r, now)
		if !ok {
			continue
		}
		fills = append(fills, fill)
	}

	// Stable sort: ties on timestamp keep store insertion order.
	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Timestamp.Before(fills[j].Timestamp)
	})
	return fills
}

func normalizeOne(r RawFill, now time.Time) (Fill, bool) {
	symbol, _ := r.Fields["symbol"].(string)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(r.ID)
	}
	if symbol == "" {
		return Fill{}, false
	}

	side, ok := parseSide(r.Fields["side"])
	if !ok {
		return Fill{}, false
	}

	quantity, ok := coerceFloat(r.Fields["quantity"])
	if !ok || !isFinite(quantity) || quantity <= DisplayEpsilon {
		return Fill{}, false
	}

	price, ok := coerceFloat(r.Fields["fill_price"])
	if !ok || !isFinite(price) || price <= DisplayEpsilon {
		return Fill{}, false
	}

	ts, ok := coerceTimestamp(r.Fields["timestamp"])
	if !ok {
		ts = now
	}

	return Fill{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		FillPrice: price,
		Timestamp: ts,
	}, true
}

func parseSide(v any) (Side, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	}
	return "", false
}

// coerceFloat accepts the numeric shapes a document store hands back:
// native floats, integers, json.Number, or numeric strings.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// coerceTimestamp accepts a time.Time, epoch milliseconds (any numeric
// shape, including numeric strings), or an RFC3339 string.
func coerceTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err == nil {
			return parsed, true
		}
		// Non-RFC3339 strings get the same numeric coercion as
		// quantity and price.
	}
	if millis, ok := coerceFloat(v); ok && isFinite(millis) && millis > 0 {
		return time.UnixMilli(int64(millis)), true
	}
	return time.Time{}, false
}
