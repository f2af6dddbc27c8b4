package accounting

import "math"

// Two epsilons are used by convention: the coarser one for display-side
// normalization and aggregate comparisons, the finer one inside the
// ledger mutation path's FIFO bookkeeping.
const (
	DisplayEpsilon = 1e-6
	LedgerEpsilon  = 1e-9
)

// Round6 rounds a monetary or quantity value to 6 decimal digits to
// suppress floating-point drift. Applying it twice yields the same value.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// isFinite reports whether v is a usable number (not NaN or ±Inf).
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
