package bots

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/ledger"
	"github.com/botfolio/botfolio-api/internal/metrics"
	"github.com/botfolio/botfolio-api/internal/prices"
)

// Bot binds a strategy to its account, symbol, and lot size.
type Bot struct {
	Name      string
	AccountID string
	Symbol    string
	LotSize   float64
	Strategy  Strategy
}

// Scheduler periodically runs every configured bot: it assembles the
// market context, asks the strategy for a decision, and submits the
// resulting fill through the ledger mutation path. A rejected or failed
// fill never stops the loop.
type Scheduler struct {
	ledger   *ledger.Service
	prices   *prices.Service
	bots     []Bot
	interval time.Duration
}

func NewScheduler(ledgerSvc *ledger.Service, priceSvc *prices.Service, bots []Bot, interval time.Duration) *Scheduler {
	return &Scheduler{
		ledger:   ledgerSvc,
		prices:   priceSvc,
		bots:     bots,
		interval: interval,
	}
}

// Start begins the scheduling loop and blocks until the context is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger := log.With().Str("component", "bot_scheduler").Logger()
	logger.Info().Int("bots", len(s.bots)).Dur("interval", s.interval).Msg("starting bot scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down bot scheduler")
			return
		case <-ticker.C:
			s.runAll()
		}
	}
}

func (s *Scheduler) runAll() {
	for _, bot := range s.bots {
		if err := s.runBot(bot); err != nil {
			log.Error().
				Err(err).
				Str("bot", bot.Name).
				Msg("bot run failed")
		}
	}
}

func (s *Scheduler) runBot(bot Bot) error {
	logger := log.With().Str("bot", bot.Name).Str("symbol", bot.Symbol).Logger()

	closes, err := s.prices.RecentCloses(bot.Symbol, trendLookback)
	if err != nil {
		return err
	}
	if len(closes) == 0 {
		logger.Debug().Msg("no price history yet, skipping tick")
		return nil
	}

	marketCtx, err := s.buildContext(bot, closes)
	if err != nil {
		return err
	}

	action := bot.Strategy.Decide(marketCtx)
	metrics.BotDecisions.WithLabelValues(bot.Name, string(action)).Inc()

	if action == ActionHold {
		logger.Debug().Msg("holding position")
		return nil
	}

	side := accounting.SideBuy
	if action == ActionSell {
		side = accounting.SideSell
	}

	_, err = s.ledger.SubmitFill(ledger.FillRequest{
		AccountID: bot.AccountID,
		Symbol:    bot.Symbol,
		Side:      side,
		Quantity:  bot.LotSize,
		Price:     marketCtx.LatestClose(),
		Timestamp: time.Now(),
	})
	if errors.Is(err, ledger.ErrInsufficientPosition) {
		// The strategy raced the ledger; the rejection left state
		// untouched, so just skip the tick.
		logger.Warn().Msg("sell rejected, position smaller than lot size")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info().
		Str("action", string(action)).
		Float64("quantity", bot.LotSize).
		Float64("price", marketCtx.LatestClose()).
		Msg("fill submitted")
	return nil
}

func (s *Scheduler) buildContext(bot Bot, closes []float64) (MarketContext, error) {
	cash := s.ledger.InitialCredits()
	if account, err := s.ledger.DB().GetAccount(bot.AccountID); err != nil {
		return MarketContext{}, err
	} else if account != nil {
		cash = account.Cash
	}

	var qtyHeld float64
	if position, err := s.ledger.DB().GetPosition(bot.AccountID, bot.Symbol); err != nil {
		return MarketContext{}, err
	} else if position != nil {
		qtyHeld = position.Quantity
	}

	return MarketContext{
		Closes:  closes,
		Cash:    cash,
		QtyHeld: qtyHeld,
		LotSize: bot.LotSize,
	}, nil
}
