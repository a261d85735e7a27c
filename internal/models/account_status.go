package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatusID is the primary key of the singleton account row.
const AccountStatusID = 1

// AccountStatus represents the aggregate state of the trading account.
// There should only ever be one row in this table.
type AccountStatus struct {
	ID                uint            `gorm:"primaryKey" json:"-"`
	IsRunning         bool            `gorm:"not null;default:false" json:"isRunning"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance"`
	TotalProfit       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"totalProfit"`
	ActiveTrades      int             `gorm:"not null;default:0" json:"activeTrades"` // may go negative, see DESIGN.md
	SelectedStrategy  StrategyType    `gorm:"not null" json:"selectedStrategy"`
	ReservePercentage int             `gorm:"not null;default:10" json:"reservePercentage"`
	ReserveBalance    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"reserveBalance"`
	LastUpdated       time.Time       `json:"lastUpdated"`

	// LastAllocatedTradeID is the highest trade id whose profit has been offered to the reserve.
	LastAllocatedTradeID uint `gorm:"not null;default:0" json:"-"`
}

// TableName keeps the singleton table name stable.
func (AccountStatus) TableName() string {
	return "bot_status"
}

// NewAccountStatus returns the first-start defaults.
func NewAccountStatus(initialBalance decimal.Decimal, strategy StrategyType, reservePercentage int) AccountStatus {
	return AccountStatus{
		ID:                AccountStatusID,
		Balance:           initialBalance,
		TotalProfit:       decimal.Zero,
		SelectedStrategy:  strategy,
		ReservePercentage: reservePercentage,
		ReserveBalance:    decimal.Zero,
		LastUpdated:       time.Now().UTC(),
	}
}
