package trader

import (
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

// GridTradingStrategy places a buy below or a sell above the current price, one grid step away.
type GridTradingStrategy struct {
	gate    float64
	spacing float64 // fraction of the price, e.g. 0.02
	rng     random.Source
}

func (s *GridTradingStrategy) Name() models.StrategyType {
	return models.StrategyGridTrading
}

func (s *GridTradingStrategy) Evaluate(snapshot models.MarketSnapshot, _ models.AnalysisResult) ([]models.OrderIntent, error) {
	var intents []models.OrderIntent
	for _, pair := range snapshot.Pairs() {
		if !random.Chance(s.rng, s.gate) {
			continue
		}
		price := snapshot[pair].Price
		step := price * s.spacing
		if randomSide(s.rng) == models.SideBuy {
			intents = append(intents, newIntent(pair, models.SideBuy, price-step))
		} else {
			intents = append(intents, newIntent(pair, models.SideSell, price+step))
		}
	}
	return intents, nil
}
