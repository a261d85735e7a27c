// Package analysis produces the advisory market analysis evaluated by the trading strategies.
package analysis

import (
	"context"
	"math"
	"time"

	"cryptobot-go/internal/models"

	"go.uber.org/zap"
)

// Analyzer scores a market snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, snapshot models.MarketSnapshot) (models.AnalysisResult, error)
}

// Guarded wraps an analyzer with a timeout and substitutes the neutral analysis on failure.
// Results are sanitised so strategies only ever see in-range scores and known labels.
type Guarded struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGuarded creates a failure-tolerant analyzer.
func NewGuarded(analyzer Analyzer, timeout time.Duration, logger *zap.Logger) *Guarded {
	return &Guarded{analyzer: analyzer, timeout: timeout, logger: logger.Named("analysis")}
}

// Analyze implements Analyzer. It never returns an error.
func (g *Guarded) Analyze(ctx context.Context, snapshot models.MarketSnapshot) (models.AnalysisResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.analyzer.Analyze(ctx, snapshot)
	if err != nil {
		g.logger.Warn("Analysis unavailable, using neutral defaults", zap.Error(err))
		return models.NeutralAnalysis(), nil
	}

	result = Sanitize(result)
	g.logger.Info("Analysis completed",
		zap.String("direction", result.Direction),
		zap.Float64("trend_strength", result.TrendStrength),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

// Sanitize clamps scores to their ranges and maps unknown labels to neutral.
func Sanitize(r models.AnalysisResult) models.AnalysisResult {
	r.TrendStrength = clamp(r.TrendStrength, 0, 1)
	r.Volatility = clamp(r.Volatility, 0, 1)
	r.DeviationFromMean = clamp(r.DeviationFromMean, 0, 1)
	r.Confidence = clamp(r.Confidence, 0, 1)
	r.SentimentScore = clamp(r.SentimentScore, -1, 1)

	switch r.Direction {
	case models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral:
	default:
		r.Direction = models.DirectionNeutral
	}
	switch r.PricePosition {
	case models.PositionOversold, models.PositionOverbought, models.PositionNeutral:
	default:
		r.PricePosition = models.PositionNeutral
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
