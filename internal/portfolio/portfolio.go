// Package portfolio builds the read-side display model: it replays an
// account's order log through the accounting engine and marks open
// positions to market. Reads operate on an eventually-consistent
// snapshot of the history; results are cached for the dashboard's
// polling interval.
package portfolio

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/ledger"
	"github.com/botfolio/botfolio-api/internal/metrics"
	"github.com/botfolio/botfolio-api/internal/prices"
	"github.com/botfolio/botfolio-api/internal/types"
)

type Service struct {
	db             *ledger.Database
	prices         *prices.Service
	cache          *ristretto.Cache
	cacheTTL       time.Duration
	initialCredits float64
}

// NewService creates a portfolio read service. initialCredits is the
// fallback starting balance for accounts the ledger has not seen yet.
func NewService(db *ledger.Database, priceSvc *prices.Service, cacheTTL time.Duration, initialCredits float64) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		db:             db,
		prices:         priceSvc,
		cache:          cache,
		cacheTTL:       cacheTTL,
		initialCredits: initialCredits,
	}, nil
}

func snapshotKey(accountID string) string {
	return "portfolio:" + accountID
}

// GetSnapshot returns the cached display model for an account, building
// a fresh one when the cache has expired.
func (s *Service) GetSnapshot(accountID string) (*Snapshot, error) {
	if cached, ok := s.cache.Get(snapshotKey(accountID)); ok {
		if snapshot, ok := cached.(*Snapshot); ok {
			metrics.PortfolioCacheHits.Inc()
			return snapshot, nil
		}
	}

	snapshot, err := s.buildSnapshot(accountID)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithTTL(snapshotKey(accountID), snapshot, 1, s.cacheTTL)
	return snapshot, nil
}

// ClosedTrades replays the account's history into per-lot closed-trade
// entries, newest sell first.
func (s *Service) ClosedTrades(accountID string) ([]accounting.ClosedTrade, error) {
	fills, err := s.loadFills(accountID)
	if err != nil {
		return nil, err
	}
	entries, truncated := accounting.ReplayClosedTrades(fills)
	s.warnOnTruncation(accountID, truncated)
	return entries, nil
}

func (s *Service) buildSnapshot(accountID string) (*Snapshot, error) {
	account, err := s.db.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	cash, initialCredits := s.initialCredits, s.initialCredits
	if account != nil {
		cash, initialCredits = account.Cash, account.InitialCredits
	}

	fills, err := s.loadFills(accountID)
	if err != nil {
		return nil, err
	}

	positions, err := s.db.GetPositions(accountID)
	if err != nil {
		return nil, err
	}

	views := make([]PositionView, 0, len(positions))
	totalValue := cash
	for i := range positions {
		view, err := s.markPosition(&positions[i])
		if err != nil {
			return nil, err
		}
		totalValue += view.MarketValue
		views = append(views, view)
	}
	totalValue = accounting.Round6(totalValue)

	_, truncated := accounting.ReplayClosedTrades(fills)
	s.warnOnTruncation(accountID, truncated)

	return &Snapshot{
		AccountID:        accountID,
		Status:           accounting.DeriveStatus(fills, time.Now()),
		Cash:             cash,
		InitialCredits:   initialCredits,
		TotalValue:       totalValue,
		Stats:            accounting.AggregateStats(initialCredits, totalValue, fills),
		Positions:        views,
		TruncatedSellQty: truncated,
		GeneratedAt:      time.Now(),
	}, nil
}

// loadFills reads the order log back as untrusted records and runs the
// normalizer over them. The store is typed, but historical rows may
// predate validation; every read goes through the same parsing step.
func (s *Service) loadFills(accountID string) ([]accounting.Fill, error) {
	orders, err := s.db.GetOrders(accountID)
	if err != nil {
		return nil, err
	}
	raw := make([]accounting.RawFill, len(orders))
	for i, order := range orders {
		raw[i] = accounting.RawFill{
			ID: order.OrderID,
			Fields: map[string]any{
				"symbol":     order.Symbol,
				"side":       order.Side,
				"quantity":   order.Quantity,
				"fill_price": order.FillPrice,
				"timestamp":  order.Timestamp,
			},
		}
	}
	return accounting.NormalizeFills(raw), nil
}

func (s *Service) markPosition(position *types.Position) (PositionView, error) {
	lots, err := ledger.DecodeLots(position)
	if err != nil {
		return PositionView{}, err
	}
	quantity, avgPrice := accounting.LotTotals(lots)

	mark, ok, err := s.prices.LatestClose(position.Symbol)
	if err != nil {
		// Price lookup failure degrades to no mark, not a failed read.
		log.Warn().
			Err(err).
			Str("symbol", position.Symbol).
			Msg("price lookup failed, marking position at zero")
		mark, ok = 0, false
	}
	if !ok {
		mark = 0
	}

	return PositionView{
		Symbol:      position.Symbol,
		Quantity:    quantity,
		AvgPrice:    avgPrice,
		MarkPrice:   mark,
		MarketValue: accounting.Round6(quantity * mark),
		Lots:        lots,
	}, nil
}

func (s *Service) warnOnTruncation(accountID string, truncated float64) {
	if truncated > accounting.DisplayEpsilon {
		log.Warn().
			Str("account_id", accountID).
			Float64("truncated_sell_qty", truncated).
			Msg("order log sells exceed historical buys, ledger may have diverged")
	}
}
