package trader

import (
	"cryptobot-go/internal/models"
)

// TrendFollowingStrategy trades every pair in the direction of a strong trend.
type TrendFollowingStrategy struct {
	threshold float64
}

func (s *TrendFollowingStrategy) Name() models.StrategyType {
	return models.StrategyTrendFollowing
}

func (s *TrendFollowingStrategy) Evaluate(snapshot models.MarketSnapshot, analysis models.AnalysisResult) ([]models.OrderIntent, error) {
	if analysis.TrendStrength <= s.threshold {
		return nil, nil
	}
	side := sideForDirection(analysis.Direction)
	if side == "" {
		return nil, nil
	}

	var intents []models.OrderIntent
	for _, pair := range snapshot.Pairs() {
		intents = append(intents, newIntent(pair, side, snapshot[pair].Price))
	}
	return intents, nil
}
