package trader

import (
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

func newIntent(pair, side string, price float64) models.OrderIntent {
	return models.OrderIntent{Pair: pair, Side: side, ReferencePrice: price}
}

// sideForDirection maps a trend direction to the side that follows it, or "" for no trade.
func sideForDirection(direction string) string {
	switch direction {
	case models.DirectionBullish:
		return models.SideBuy
	case models.DirectionBearish:
		return models.SideSell
	default:
		return ""
	}
}

func randomSide(rng random.Source) string {
	return random.Pick(rng, models.SideBuy, models.SideSell)
}
