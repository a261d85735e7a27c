package trader

import (
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

// ScalpingStrategy takes quick trades on either side while the market is volatile.
type ScalpingStrategy struct {
	threshold float64
	gate      float64
	rng       random.Source
}

func (s *ScalpingStrategy) Name() models.StrategyType {
	return models.StrategyScalping
}

func (s *ScalpingStrategy) Evaluate(snapshot models.MarketSnapshot, analysis models.AnalysisResult) ([]models.OrderIntent, error) {
	if analysis.Volatility <= s.threshold {
		return nil, nil
	}

	var intents []models.OrderIntent
	for _, pair := range snapshot.Pairs() {
		if !random.Chance(s.rng, s.gate) {
			continue
		}
		intents = append(intents, newIntent(pair, randomSide(s.rng), snapshot[pair].Price))
	}
	return intents, nil
}
