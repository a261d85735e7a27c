package trader

import (
	"context"
	"time"

	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTradeLimit = 50
	MaxTradeLimit     = 500
)

// Status is the externally visible snapshot of the engine and its account.
type Status struct {
	models.AccountStatus
	State     string `json:"state"`
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	Uptime    string `json:"uptime"`
}

// GetAccountStatus returns a snapshot of the account. The running flag reflects the engine
// rather than the stored row. Storage failures degrade to the first-start defaults.
func (e *Engine) GetAccountStatus(ctx context.Context) models.AccountStatus {
	status, err := e.store.GetAccount(ctx)
	if err != nil {
		e.logger.Error("Error getting bot status", zap.Error(err))
		kind, perr := models.ParseStrategyType(e.cfg.Trading.DefaultStrategy)
		if perr != nil {
			kind = models.StrategyTrendFollowing
		}
		fallback := models.NewAccountStatus(decimal.NewFromFloat(e.cfg.Trading.InitialBalance), kind, e.cfg.Reserve.Percentage)
		status = &fallback
	}
	status.IsRunning = e.State() == StateRunning
	return *status
}

// Status returns the account snapshot together with the engine identity and uptime.
func (e *Engine) Status(ctx context.Context) Status {
	return Status{
		AccountStatus: e.GetAccountStatus(ctx),
		State:         e.State().String(),
		UUID:          e.UUID,
		Name:          e.Name,
		StartTime:     e.StartTime.Format(time.RFC3339),
		Uptime:        e.now().Sub(e.StartTime).Round(time.Second).String(),
	}
}

// ListTrades returns up to limit trades, most recent first. A non-positive limit means
// DefaultTradeLimit and the limit is capped at MaxTradeLimit. Storage failures yield an empty list.
func (e *Engine) ListTrades(ctx context.Context, limit int) []models.TradeRecord {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	if limit > MaxTradeLimit {
		limit = MaxTradeLimit
	}
	trades, err := e.store.ListTrades(ctx, limit)
	if err != nil {
		e.logger.Error("Error getting trades", zap.Error(err))
		return []models.TradeRecord{}
	}
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	return trades
}

// Statistics reports trade statistics for the last 24 hours and for all time.
func (e *Engine) Statistics(ctx context.Context) (ledger.Statistics, error) {
	return e.store.Statistics(ctx, e.now().Add(-24*time.Hour))
}
