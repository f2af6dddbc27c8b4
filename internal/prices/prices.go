// Package prices is the historical price lookup collaborator. Marks
// are best-effort: a symbol with no recorded close is "unavailable",
// not an error, and read-side consumers degrade to a zero
// mark-to-market contribution.
package prices

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/botfolio/botfolio-api/internal/types"
)

type Service struct {
	db *gorm.DB
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// LatestClose returns the most recent recorded close for a symbol.
// The second return is false when no price is known.
func (s *Service) LatestClose(symbol string) (float64, bool, error) {
	var bar types.PriceBar
	err := s.db.Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(1).
		First(&bar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return bar.Close, true, nil
}

// RecentCloses returns up to limit closes for a symbol, oldest first,
// for strategy lookback windows.
func (s *Service) RecentCloses(symbol string, limit int) ([]float64, error) {
	var bars []types.PriceBar
	if err := s.db.Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(limit).
		Find(&bars).Error; err != nil {
		return nil, err
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[len(bars)-1-i] = bar.Close
	}
	return closes, nil
}

// RecordClose appends one close observation for a symbol.
func (s *Service) RecordClose(symbol string, close float64, date time.Time) error {
	return s.db.Create(&types.PriceBar{Symbol: symbol, Close: close, Date: date}).Error
}
