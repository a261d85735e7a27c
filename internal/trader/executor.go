package trader

import (
	"context"
	"errors"
	"fmt"

	"cryptobot-go/internal/config"
	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/metrics"
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Executor turns order intents into simulated fills recorded in the ledger.
// Amount, profit and confidence are drawn from the fill source, never from the strategy gates.
type Executor struct {
	store   *ledger.Store
	cfg     *config.Trading
	rng     random.Source
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewExecutor creates an executor writing to store.
func NewExecutor(store *ledger.Store, cfg *config.Trading, rng random.Source, logger *zap.Logger, m *metrics.Metrics) *Executor {
	return &Executor{store: store, cfg: cfg, rng: rng, logger: logger.Named("executor"), metrics: m}
}

// Execute fills intent and appends the trade. The trade row and the account update
// (totalProfit += profit, activeTrades +1 on BUY, -1 on SELL) commit together or not at all.
func (e *Executor) Execute(ctx context.Context, intent models.OrderIntent, strategy models.StrategyType) (*models.TradeRecord, error) {
	if intent.Side != models.SideBuy && intent.Side != models.SideSell {
		return nil, fmt.Errorf("invalid side %q for %s", intent.Side, intent.Pair)
	}
	if intent.Pair == "" {
		return nil, errors.New("intent has no pair")
	}
	price := decimal.NewFromFloat(intent.ReferencePrice).Round(8)
	if !price.IsPositive() {
		return nil, fmt.Errorf("invalid reference price %v for %s", intent.ReferencePrice, intent.Pair)
	}

	amount := decimal.NewFromFloat(random.Uniform(e.rng, e.cfg.MinFillAmount, e.cfg.MaxFillAmount)).Round(8)
	profit := decimal.NewFromFloat(random.Uniform(e.rng, e.cfg.MinProfit, e.cfg.MaxProfit)).Round(2)
	confidence := random.Uniform(e.rng, e.cfg.MinConfidence, e.cfg.MaxConfidence)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("simulated fill amount %s is not positive", amount)
	}

	trade := &models.TradeRecord{
		Pair:         intent.Pair,
		Side:         intent.Side,
		Amount:       amount,
		Price:        price,
		Profit:       profit,
		Strategy:     strategy.Slug(),
		AIConfidence: confidence,
		Status:       models.TradeStatusCompleted,
	}

	err := e.store.AppendTrade(ctx, trade, func(status *models.AccountStatus) error {
		status.TotalProfit = status.TotalProfit.Add(profit)
		if intent.Side == models.SideBuy {
			status.ActiveTrades++
		} else {
			status.ActiveTrades--
		}
		return nil
	})
	if err != nil {
		e.metrics.RecordTradeFailure()
		return nil, fmt.Errorf("failed to record %s %s: %w", intent.Side, intent.Pair, err)
	}

	e.metrics.RecordTrade(trade.Strategy, trade.Side)
	e.logger.Info("Executed order",
		zap.Uint("trade_id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("side", trade.Side),
		zap.String("amount", trade.Amount.String()),
		zap.String("price", trade.Price.String()),
		zap.String("profit", trade.Profit.String()),
		zap.String("strategy", trade.Strategy),
	)
	return trade, nil
}
