package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// TradeStatusCompleted is the only status a trade takes; fills are not partial.
const TradeStatusCompleted = "COMPLETED"

// TradeRecord represents an executed trade in the ledger.
// Rows are append-only: nothing updates or deletes them once written.
type TradeRecord struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp    int64           `gorm:"index;not null" json:"timestamp"` // unix milliseconds
	Pair         string          `gorm:"index;not null" json:"pair"`
	Side         string          `gorm:"not null" json:"side"` // "BUY" or "SELL"
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Price        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	Profit       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"profit"`
	Strategy     string          `json:"strategy"`
	AIConfidence float64         `json:"aiConfidence"`
	Status       string          `gorm:"not null;default:COMPLETED" json:"status"`
}

// TableName keeps the ledger table name stable.
func (TradeRecord) TableName() string {
	return "trades"
}

// ExecutedAt returns the trade timestamp as a time.Time.
func (t TradeRecord) ExecutedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}
