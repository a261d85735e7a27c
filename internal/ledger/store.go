// Package ledger is the durable account/trade store shared by the executor, the reserve manager
// and the settings path. Every account mutation goes through a single serialised transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptobot-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrAccountNotFound is returned when the account singleton has not been seeded.
var ErrAccountNotFound = errors.New("account status not found")

// Store owns the account singleton and the append-only trade ledger.
type Store struct {
	db  *gorm.DB
	mu  sync.Mutex // serialises read-modify-write of the account row
	now func() time.Time
}

// NewStore creates a ledger store on an already migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock replaces the clock used for trade timestamps and LastUpdated.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Tx is the view of the ledger handed to an account mutation.
// Reads through it observe the same transaction as the mutation.
type Tx struct {
	db *gorm.DB
}

// TradesSince returns trades executed at or after cutoff with an id greater than afterID, oldest first.
func (t *Tx) TradesSince(cutoff time.Time, afterID uint) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	err := t.db.Where("timestamp >= ? AND id > ?", cutoff.UnixMilli(), afterID).
		Order("id asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("could not load trades since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return trades, nil
}

// LatestTradeID returns the id of the most recent trade, or 0 for an empty ledger.
func (t *Tx) LatestTradeID() (uint, error) {
	var trade models.TradeRecord
	err := t.db.Order("id desc").Limit(1).Find(&trade).Error
	if err != nil {
		return 0, fmt.Errorf("could not load latest trade: %w", err)
	}
	return trade.ID, nil
}

// AppendTrade writes trade and applies apply to the account in one transaction.
// Either both the ledger row and the account update are committed, or neither is.
func (s *Store) AppendTrade(ctx context.Context, trade *models.TradeRecord, apply func(status *models.AccountStatus) error) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	if trade.ID != 0 {
		return fmt.Errorf("trade %d is already recorded", trade.ID)
	}

	return s.mutate(ctx, func(tx *gorm.DB, status *models.AccountStatus) error {
		if trade.Timestamp == 0 {
			trade.Timestamp = s.now().UnixMilli()
		}
		if trade.Status == "" {
			trade.Status = models.TradeStatusCompleted
		}
		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to save trade record: %w", err)
		}
		if apply == nil {
			return nil
		}
		return apply(status)
	})
}

// MutateAccount loads the account row, lets fn change it and saves it, all in one transaction.
// Returning an error from fn rolls the transaction back.
func (s *Store) MutateAccount(ctx context.Context, fn func(tx *Tx, status *models.AccountStatus) error) error {
	return s.mutate(ctx, func(db *gorm.DB, status *models.AccountStatus) error {
		return fn(&Tx{db: db}, status)
	})
}

func (s *Store) mutate(ctx context.Context, fn func(tx *gorm.DB, status *models.AccountStatus) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var status models.AccountStatus
		if err := tx.First(&status, models.AccountStatusID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("failed to load account status: %w", err)
		}

		if err := fn(tx, &status); err != nil {
			return err
		}

		status.LastUpdated = s.now().UTC()
		if err := tx.Save(&status).Error; err != nil {
			return fmt.Errorf("failed to save account status: %w", err)
		}
		return nil
	})
}

// GetAccount returns a snapshot of the account row.
func (s *Store) GetAccount(ctx context.Context) (*models.AccountStatus, error) {
	var status models.AccountStatus
	if err := s.db.WithContext(ctx).First(&status, models.AccountStatusID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account status: %w", err)
	}
	return &status, nil
}

// ListTrades returns up to limit trades, most recent first.
func (s *Store) ListTrades(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	q := s.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// TotalPositiveProfit sums the profit of every profitable trade.
func (s *Store) TotalPositiveProfit(ctx context.Context) (decimal.Decimal, error) {
	var trades []models.TradeRecord
	if err := s.db.WithContext(ctx).Select("profit").Find(&trades).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to load trade profits: %w", err)
	}
	total := decimal.Zero
	for _, trade := range trades {
		if trade.Profit.IsPositive() {
			total = total.Add(trade.Profit)
		}
	}
	return total, nil
}
