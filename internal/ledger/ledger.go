package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/metrics"
	"github.com/botfolio/botfolio-api/internal/types"
)

// ErrInvalidFill marks a fill rejected by input validation before the
// store was touched.
var ErrInvalidFill = errors.New("invalid fill")

// ErrInsufficientPosition re-exports the engine's overselling error so
// callers can distinguish it from transient store failures.
var ErrInsufficientPosition = accounting.ErrInsufficientPosition

// FillRequest is one fill to commit against an account's ledger.
// Timestamp is required on the write path: accepting records without
// one would let a late submission reorder ahead of genuine history.
type FillRequest struct {
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Side      accounting.Side `json:"side"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service owns the ledger write path. It is the only component allowed
// to change cash balances and lot documents. A mutex serializes the
// read-compute-write cycle; sqlite's single writer plus the transaction
// keeps the three writes atomic.
type Service struct {
	db             *Database
	mu             sync.Mutex
	initialCredits float64
}

// NewService creates a ledger service. initialCredits seeds accounts
// created lazily on their first fill.
func NewService(gormDB *gorm.DB, initialCredits float64) *Service {
	return &Service{
		db:             NewDatabase(gormDB),
		initialCredits: initialCredits,
	}
}

// DB exposes the read-side queries for sibling services.
func (s *Service) DB() *Database {
	return s.db
}

// InitialCredits is the starting balance used for accounts the ledger
// has not seen yet.
func (s *Service) InitialCredits() float64 {
	return s.initialCredits
}

// SubmitFill atomically applies one fill: it updates the cash balance,
// rewrites the FIFO lot document for the traded symbol, and appends an
// order record — all three or none. Overselling fails the whole
// mutation with ErrInsufficientPosition and leaves the account
// untouched.
func (s *Service) SubmitFill(req FillRequest) (*types.Order, error) {
	if err := validateFill(req); err != nil {
		metrics.FillRejections.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.MutationDuration.Observe(time.Since(start).Seconds())
	}()

	// Single retry budget: one extra attempt on store failure, then
	// fail fast rather than hang.
	order, err := s.submitOnce(req)
	if err != nil && !errors.Is(err, ErrInsufficientPosition) {
		log.Warn().
			Err(err).
			Str("account_id", req.AccountID).
			Str("symbol", req.Symbol).
			Msg("ledger mutation failed, retrying once")
		order, err = s.submitOnce(req)
	}

	switch {
	case errors.Is(err, ErrInsufficientPosition):
		metrics.FillRejections.WithLabelValues("insufficient_position").Inc()
	case err != nil:
		metrics.FillRejections.WithLabelValues("store_error").Inc()
	default:
		metrics.FillsTotal.WithLabelValues(string(req.Side)).Inc()
	}
	return order, err
}

func (s *Service) submitOnce(req FillRequest) (*types.Order, error) {
	account, err := s.db.GetAccount(req.AccountID)
	if err != nil {
		return nil, err
	}

	position, err := s.db.GetPosition(req.AccountID, req.Symbol)
	if err != nil {
		return nil, err
	}
	lots, err := DecodeLots(position)
	if err != nil {
		return nil, err
	}

	nextLots, err := accounting.ApplyFIFO(lots, req.Side, req.Quantity, req.Price, req.Timestamp)
	if err != nil {
		return nil, err
	}

	// Lazy account creation happens only once the fill is known to be
	// applicable; a rejected fill on a never-seen account leaves no row
	// behind.
	if account == nil {
		account, err = s.db.createAccount(req.AccountID, s.initialCredits)
		if err != nil {
			return nil, err
		}
	}

	cashDelta := req.Quantity * req.Price
	if req.Side == accounting.SideBuy {
		cashDelta = -cashDelta
	}

	order := &types.Order{
		OrderID:   uuid.New().String(),
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Side:      string(req.Side),
		OrderType: "market",
		Quantity:  req.Quantity,
		FillPrice: req.Price,
		Status:    "filled",
		Timestamp: req.Timestamp,
	}

	if err := s.db.commitFill(account, req.Symbol, nextLots, cashDelta, order); err != nil {
		return nil, err
	}

	log.Debug().
		Str("account_id", req.AccountID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("quantity", req.Quantity).
		Float64("fill_price", req.Price).
		Float64("cash", account.Cash).
		Msg("fill committed")

	return order, nil
}

func validateFill(req FillRequest) error {
	if req.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidFill)
	}
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidFill)
	}
	if req.Side != accounting.SideBuy && req.Side != accounting.SideSell {
		return fmt.Errorf("%w: side must be buy or sell", ErrInvalidFill)
	}
	if math.IsNaN(req.Quantity) || math.IsInf(req.Quantity, 0) || req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be finite and positive", ErrInvalidFill)
	}
	if math.IsNaN(req.Price) || math.IsInf(req.Price, 0) || req.Price <= 0 {
		return fmt.Errorf("%w: price must be finite and positive", ErrInvalidFill)
	}
	if req.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidFill)
	}
	return nil
}
