package analysis

import (
	"context"

	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"
)

// Simulated draws analysis scores at random, for paper trading without an API key.
type Simulated struct {
	rng random.Source
}

// NewSimulated creates a simulated analyzer.
func NewSimulated(rng random.Source) *Simulated {
	return &Simulated{rng: rng}
}

// Analyze implements Analyzer.
func (s *Simulated) Analyze(ctx context.Context, _ models.MarketSnapshot) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, err
	}
	return models.AnalysisResult{
		TrendStrength:     random.Uniform(s.rng, 0.3, 0.9),
		Direction:         random.Pick(s.rng, models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral),
		Volatility:        random.Uniform(s.rng, 0.2, 0.8),
		Confidence:        random.Uniform(s.rng, 0.6, 0.95),
		DeviationFromMean: random.Uniform(s.rng, 0.1, 0.9),
		PricePosition:     random.Pick(s.rng, models.PositionOversold, models.PositionOverbought, models.PositionNeutral),
		SentimentScore:    random.Uniform(s.rng, -1, 1),
	}, nil
}
