package trader

import (
	"cryptobot-go/internal/models"
)

// MeanReversionStrategy bets on a return to the mean once price has strayed far from it.
type MeanReversionStrategy struct {
	threshold float64
}

func (s *MeanReversionStrategy) Name() models.StrategyType {
	return models.StrategyMeanReversion
}

func (s *MeanReversionStrategy) Evaluate(snapshot models.MarketSnapshot, analysis models.AnalysisResult) ([]models.OrderIntent, error) {
	if analysis.DeviationFromMean <= s.threshold {
		return nil, nil
	}

	var side string
	switch analysis.PricePosition {
	case models.PositionOversold:
		side = models.SideBuy
	case models.PositionOverbought:
		side = models.SideSell
	default:
		return nil, nil
	}

	var intents []models.OrderIntent
	for _, pair := range snapshot.Pairs() {
		intents = append(intents, newIntent(pair, side, snapshot[pair].Price))
	}
	return intents, nil
}
