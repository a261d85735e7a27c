package trader

import (
	"fmt"

	"cryptobot-go/internal/config"
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"

	"go.uber.org/zap"
)

// StrategyContext provides a strategy with its thresholds and its randomness source.
type StrategyContext struct {
	Logger *zap.Logger
	Cfg    *config.Trading
	Rand   random.Source // admission gates and random sides only
}

// Strategy defines the interface for a trading strategy.
type Strategy interface {
	// Name returns the strategy this implementation evaluates.
	Name() models.StrategyType

	// Evaluate turns one market snapshot and one analysis into order intents.
	// It must not touch the ledger; its only side effect is drawing from the context's random source.
	Evaluate(snapshot models.MarketSnapshot, analysis models.AnalysisResult) ([]models.OrderIntent, error)
}

// NewStrategy builds the strategy of the given type.
func NewStrategy(kind models.StrategyType, ctx StrategyContext) (Strategy, error) {
	switch kind {
	case models.StrategyTrendFollowing:
		return &TrendFollowingStrategy{threshold: ctx.Cfg.TrendThreshold}, nil
	case models.StrategyGridTrading:
		return &GridTradingStrategy{gate: ctx.Cfg.GridGate, spacing: ctx.Cfg.GridSpacing, rng: ctx.Rand}, nil
	case models.StrategyDCA:
		return &DCAStrategy{gate: ctx.Cfg.DCAGate, rng: ctx.Rand}, nil
	case models.StrategyScalping:
		return &ScalpingStrategy{threshold: ctx.Cfg.VolatilityThreshold, gate: ctx.Cfg.ScalpingGate, rng: ctx.Rand}, nil
	case models.StrategyMeanReversion:
		return &MeanReversionStrategy{threshold: ctx.Cfg.DeviationThreshold}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// NewStrategySet builds every known strategy, keyed by type.
func NewStrategySet(ctx StrategyContext) map[models.StrategyType]Strategy {
	set := make(map[models.StrategyType]Strategy, len(models.StrategyTypes))
	for _, kind := range models.StrategyTypes {
		s, err := NewStrategy(kind, ctx)
		if err != nil {
			// unreachable: StrategyTypes only lists known kinds
			ctx.Logger.Error("Failed to build strategy", zap.String("strategy", string(kind)), zap.Error(err))
			continue
		}
		set[kind] = s
	}
	return set
}
