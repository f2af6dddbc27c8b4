package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetAccount retrieves an account by its ID, nil when it does not exist.
func (d *Database) GetAccount(accountID string) (*types.Account, error) {
	var account types.Account
	if err := d.db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetOrders returns the full append-only order log for an account,
// ascending by fill timestamp with store insertion order breaking ties.
func (d *Database) GetOrders(accountID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("account_id = ?", accountID).
		Order("timestamp ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetPositions returns every open position document for an account.
func (d *Database) GetPositions(accountID string) ([]types.Position, error) {
	var positions []types.Position
	if err := d.db.Where("account_id = ? AND quantity > 0", accountID).
		Order("symbol ASC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// commitFill applies one fill to the account ledger as a single
// transaction: the new cash balance, the new lot document for the
// traded symbol, and the appended order record are written together or
// not at all.
func (d *Database) commitFill(account *types.Account, symbol string, lots []accounting.Lot, cashDelta float64, order *types.Order) error {
	encoded, err := json.Marshal(lots)
	if err != nil {
		return fmt.Errorf("failed to encode lot list: %w", err)
	}
	quantity, avgPrice := accounting.LotTotals(lots)

	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	account.Cash = accounting.Round6(account.Cash + cashDelta)
	if err := tx.Save(account).Error; err != nil {
		tx.Rollback()
		return err
	}

	var position types.Position
	err = tx.Where("account_id = ? AND symbol = ?", account.AccountID, symbol).First(&position).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		position = types.Position{AccountID: account.AccountID, Symbol: symbol}
	case err != nil:
		tx.Rollback()
		return err
	}
	position.Quantity = quantity
	position.AvgPrice = avgPrice
	position.Lots = string(encoded)
	if err := tx.Save(&position).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// DecodeLots unpacks a position's stored lot document. An empty or
// missing document is an empty list.
func DecodeLots(position *types.Position) ([]accounting.Lot, error) {
	if position == nil || position.Lots == "" {
		return nil, nil
	}
	var lots []accounting.Lot
	if err := json.Unmarshal([]byte(position.Lots), &lots); err != nil {
		return nil, fmt.Errorf("failed to decode lot list for %s: %w", position.Symbol, err)
	}
	return lots, nil
}

// GetPosition retrieves one symbol's position document, nil when the
// account has never held the symbol.
func (d *Database) GetPosition(accountID, symbol string) (*types.Position, error) {
	var position types.Position
	if err := d.db.Where("account_id = ? AND symbol = ?", accountID, symbol).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// createAccount inserts a fresh account seeded with its starting
// balance.
func (d *Database) createAccount(accountID string, initialCredits float64) (*types.Account, error) {
	account := &types.Account{
		AccountID:      accountID,
		Cash:           initialCredits,
		InitialCredits: initialCredits,
	}
	if err := d.db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}
