package trader

import (
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

// DCAStrategy buys at the current price now and then, ignoring the analysis.
type DCAStrategy struct {
	gate float64
	rng  random.Source
}

func (s *DCAStrategy) Name() models.StrategyType {
	return models.StrategyDCA
}

func (s *DCAStrategy) Evaluate(snapshot models.MarketSnapshot, _ models.AnalysisResult) ([]models.OrderIntent, error) {
	var intents []models.OrderIntent
	for _, pair := range snapshot.Pairs() {
		if random.Chance(s.rng, s.gate) {
			intents = append(intents, newIntent(pair, models.SideBuy, snapshot[pair].Price))
		}
	}
	return intents, nil
}
