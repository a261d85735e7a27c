package models

import (
	"fmt"
	"strings"
)

// StrategyType names one member of the strategy set.
type StrategyType string

const (
	StrategyTrendFollowing StrategyType = "Trend Following"
	StrategyGridTrading    StrategyType = "Grid Trading"
	StrategyDCA            StrategyType = "DCA"
	StrategyScalping       StrategyType = "Scalping"
	StrategyMeanReversion  StrategyType = "Mean Reversion"
)

// StrategyTypes lists every known strategy in display order.
var StrategyTypes = []StrategyType{
	StrategyTrendFollowing,
	StrategyGridTrading,
	StrategyDCA,
	StrategyScalping,
	StrategyMeanReversion,
}

// Valid reports whether s is one of the known strategies.
func (s StrategyType) Valid() bool {
	for _, known := range StrategyTypes {
		if s == known {
			return true
		}
	}
	return false
}

// Slug is the identifier written to trade records, e.g. "trend_following".
func (s StrategyType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// ParseStrategyType accepts a display name or a slug, case-insensitively.
func ParseStrategyType(name string) (StrategyType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, known := range StrategyTypes {
		if normalized == strings.ToLower(string(known)) || normalized == known.Slug() {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", name)
}
