package market

import (
	"context"
	"time"

	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

var basePrices = map[string]float64{
	"BTC/USDT": 42150.00,
	"ETH/USDT": 2580.50,
	"ADA/USDT": 0.4520,
	"SOL/USDT": 98.50,
	"DOT/USDT": 7.25,
}

// SimulatedFeed produces prices within ±5% of a fixed base, for paper trading without network access.
type SimulatedFeed struct {
	pairs []string
	rng   random.Source
	now   func() time.Time
}

// NewSimulatedFeed creates a simulated feed for pairs.
func NewSimulatedFeed(pairs []string, rng random.Source) *SimulatedFeed {
	return &SimulatedFeed{pairs: pairs, rng: rng, now: time.Now}
}

// Snapshot implements Provider.
func (f *SimulatedFeed) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := make(models.MarketSnapshot, len(f.pairs))
	for _, pair := range f.pairs {
		base, ok := basePrices[pair]
		if !ok {
			base = 100.0
		}
		change := random.Uniform(f.rng, -0.05, 0.05)
		price := base * (1 + change)

		snapshot[pair] = models.Ticker{
			Price:     price,
			Change24h: change * 100,
			Volume24h: random.Uniform(f.rng, 1_000_000, 10_000_000),
			High24h:   price * 1.05,
			Low24h:    price * 0.95,
			Timestamp: f.now().UTC(),
		}
	}
	return snapshot, nil
}
