package ledger

import (
	"context"
	"fmt"
	"time"

	"cryptobot-go/internal/models"

	"github.com/shopspring/decimal"
)

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64           `json:"totalTrades"`
	ProfitableTrades int64           `json:"profitableTrades"`
	WinRate          float64         `json:"winRate"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
}

// Statistics compares a recent window with the whole ledger.
type Statistics struct {
	Since24h StatsDetail `json:"since24h"`
	AllTime  StatsDetail `json:"allTime"`
}

// Statistics calculates trading statistics for trades since the given time and for all time.
func (s *Store) Statistics(ctx context.Context, since time.Time) (Statistics, error) {
	var trades []models.TradeRecord
	if err := s.db.WithContext(ctx).Find(&trades).Error; err != nil {
		return Statistics{}, fmt.Errorf("failed to get trades for statistics: %w", err)
	}

	recent := StatsDetail{TotalProfit: decimal.Zero}
	allTime := StatsDetail{TotalProfit: decimal.Zero}
	cutoff := since.UnixMilli()

	for _, trade := range trades {
		allTime.add(trade)
		if trade.Timestamp >= cutoff {
			recent.add(trade)
		}
	}
	recent.finish()
	allTime.finish()

	return Statistics{Since24h: recent, AllTime: allTime}, nil
}

func (d *StatsDetail) add(trade models.TradeRecord) {
	d.TotalTrades++
	if trade.Profit.IsPositive() {
		d.ProfitableTrades++
	}
	d.TotalProfit = d.TotalProfit.Add(trade.Profit)
}

func (d *StatsDetail) finish() {
	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
}
