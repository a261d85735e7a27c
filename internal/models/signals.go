package models

import (
	"sort"
	"time"
)

// Ticker is the market state of one instrument.
type Ticker struct {
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"` // percent
	Volume24h float64   `json:"volume24h"`
	High24h   float64   `json:"high24h"`
	Low24h    float64   `json:"low24h"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketSnapshot maps an instrument such as "BTC/USDT" to its ticker.
type MarketSnapshot map[string]Ticker

// Pairs returns the instruments in a stable order so that seeded strategies are reproducible.
func (s MarketSnapshot) Pairs() []string {
	pairs := make([]string, 0, len(s))
	for pair := range s {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

// Trend directions reported by the analysis provider.
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
	DirectionNeutral = "neutral"
)

// Price positions reported by the analysis provider.
const (
	PositionOversold   = "oversold"
	PositionOverbought = "overbought"
	PositionNeutral    = "neutral"
)

// AnalysisResult is the advisory signal evaluated by every strategy.
type AnalysisResult struct {
	TrendStrength     float64 `json:"trend_strength"`      // [0,1]
	Direction         string  `json:"direction"`           // bullish, bearish, neutral
	Volatility        float64 `json:"volatility"`          // [0,1]
	DeviationFromMean float64 `json:"deviation_from_mean"` // [0,1]
	PricePosition     string  `json:"price_position"`      // oversold, overbought, neutral
	Confidence        float64 `json:"confidence"`          // [0,1]
	SentimentScore    float64 `json:"sentiment_score"`     // [-1,1]
}

// NeutralAnalysis is substituted whenever the analysis provider fails.
func NeutralAnalysis() AnalysisResult {
	return AnalysisResult{
		TrendStrength:     0.5,
		Direction:         DirectionNeutral,
		Volatility:        0.5,
		DeviationFromMean: 0.5,
		PricePosition:     PositionNeutral,
		Confidence:        0.5,
		SentimentScore:    0,
	}
}

// OrderIntent is a proposed, not yet recorded, trade.
type OrderIntent struct {
	Pair           string  `json:"pair"`
	Side           string  `json:"side"`
	ReferencePrice float64 `json:"referencePrice"`
}
