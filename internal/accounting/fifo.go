package accounting

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInsufficientPosition is returned when a sell would consume more
// quantity than is currently held. It is the only hard-failure path of
// the ledger engine; callers must reject the whole mutation.
var ErrInsufficientPosition = errors.New("sell quantity exceeds held position")

// Lot is a slice of an open position: a quantity acquired at a specific
// price and time, not yet fully sold. A symbol's position is its ordered
// lot list, oldest acquisition first.
type Lot struct {
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// ApplyFIFO produces the next lot-list state for a single fill. Buys
// append a new lot at the tail; sells consume from the head, oldest
// acquisition first. The input slice is never mutated.
//
// If a sell exhausts every lot and still has remaining quantity above
// LedgerEpsilon, ErrInsufficientPosition is returned and the caller
// must not apply any part of the mutation.
func ApplyFIFO(lots []Lot, side Side, quantity, price float64, ts time.Time) ([]Lot, error) {
	if !isFinite(quantity) || quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %v", quantity)
	}
	if !isFinite(price) || price <= 0 {
		return nil, fmt.Errorf("invalid price %v", price)
	}

	switch side {
	case SideBuy:
		next := make([]Lot, len(lots), len(lots)+1)
		copy(next, lots)
		next = append(next, Lot{Quantity: quantity, Price: price, Timestamp: ts})
		return normalizeLots(next), nil

	case SideSell:
		next := make([]Lot, 0, len(lots))
		remaining := quantity
		for _, lot := range lots {
			if remaining <= LedgerEpsilon {
				next = append(next, lot)
				continue
			}
			consumed := lot.Quantity
			if consumed > remaining {
				consumed = remaining
			}
			remaining -= consumed
			if left := lot.Quantity - consumed; left > LedgerEpsilon {
				next = append(next, Lot{Quantity: left, Price: lot.Price, Timestamp: lot.Timestamp})
			}
		}
		if remaining > LedgerEpsilon {
			return nil, ErrInsufficientPosition
		}
		return normalizeLots(next), nil
	}

	return nil, fmt.Errorf("unknown side %q", side)
}

// normalizeLots rounds monetary and quantity fields to 6 decimals,
// prunes near-zero lots, and re-sorts by acquisition time. The sort is
// defensive: the list should already be ordered.
func normalizeLots(lots []Lot) []Lot {
	out := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		qty := Round6(lot.Quantity)
		if qty <= LedgerEpsilon {
			continue
		}
		out = append(out, Lot{
			Quantity:  qty,
			Price:     Round6(lot.Price),
			Timestamp: lot.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LotTotals recomputes the derived position aggregate from the lot list.
// Average price is the quantity-weighted mean of lot prices, zero when
// nothing is held. The aggregate is never stored as independent mutable
// state that could drift from the lots.
func LotTotals(lots []Lot) (totalQuantity, avgPrice float64) {
	var weighted float64
	for _, lot := range lots {
		totalQuantity += lot.Quantity
		weighted += lot.Quantity * lot.Price
	}
	if totalQuantity <= DisplayEpsilon {
		return Round6(totalQuantity), 0
	}
	return Round6(totalQuantity), Round6(weighted / totalQuantity)
}
