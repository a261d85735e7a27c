package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptobot-go/internal/models"

	"go.uber.org/zap"
)

// Provider supplies the market snapshot consumed by each trading cycle.
type Provider interface {
	Snapshot(ctx context.Context) (models.MarketSnapshot, error)
}

// BinanceFeed builds snapshots from Binance 24h ticker statistics.
type BinanceFeed struct {
	client RestClientInterface
	pairs  []string
	logger *zap.Logger
}

// NewBinanceFeed creates a feed for pairs written as "BTC/USDT".
func NewBinanceFeed(client RestClientInterface, pairs []string, logger *zap.Logger) *BinanceFeed {
	return &BinanceFeed{client: client, pairs: pairs, logger: logger.Named("binance-feed")}
}

// Snapshot implements Provider.
func (f *BinanceFeed) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	bySymbol := make(map[string]string, len(f.pairs))
	symbols := make([]string, 0, len(f.pairs))
	for _, pair := range f.pairs {
		symbol := strings.ReplaceAll(pair, "/", "")
		bySymbol[symbol] = pair
		symbols = append(symbols, symbol)
	}

	tickers, err := f.client.Get24hTickers(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("could not get 24h tickers: %w", err)
	}

	snapshot := make(models.MarketSnapshot, len(tickers))
	for _, t := range tickers {
		pair, ok := bySymbol[t.Symbol]
		if !ok {
			continue
		}
		ticker, err := parseTicker(t)
		if err != nil {
			f.logger.Warn("Skipping malformed ticker", zap.String("symbol", t.Symbol), zap.Error(err))
			continue
		}
		snapshot[pair] = ticker
	}
	return snapshot, nil
}

// Ping checks connectivity to the exchange.
func (f *BinanceFeed) Ping(ctx context.Context) error {
	serverTime, err := f.client.GetServerTime(ctx)
	if err != nil {
		return err
	}
	f.logger.Info("Connected to Binance", zap.Time("server_time", time.UnixMilli(serverTime).UTC()))
	return nil
}

func parseTicker(t Ticker24h) (models.Ticker, error) {
	var ticker models.Ticker
	var err error
	if ticker.Price, err = parseField("lastPrice", t.LastPrice); err != nil {
		return models.Ticker{}, err
	}
	if ticker.Change24h, err = parseField("priceChangePercent", t.PriceChangePercent); err != nil {
		return models.Ticker{}, err
	}
	if ticker.Volume24h, err = parseField("quoteVolume", t.QuoteVolume); err != nil {
		return models.Ticker{}, err
	}
	if ticker.High24h, err = parseField("highPrice", t.HighPrice); err != nil {
		return models.Ticker{}, err
	}
	if ticker.Low24h, err = parseField("lowPrice", t.LowPrice); err != nil {
		return models.Ticker{}, err
	}

	ticker.Timestamp = time.Now().UTC()
	if t.CloseTime > 0 {
		ticker.Timestamp = time.UnixMilli(t.CloseTime).UTC()
	}
	return ticker, nil
}

func parseField(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s %q: %w", name, raw, err)
	}
	return v, nil
}

// Guarded wraps a provider with a timeout and drops unusable tickers.
// It never returns an error: a failed fetch yields an empty snapshot, so no intents are produced.
type Guarded struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGuarded creates a failure-tolerant provider.
func NewGuarded(provider Provider, timeout time.Duration, logger *zap.Logger) *Guarded {
	return &Guarded{provider: provider, timeout: timeout, logger: logger.Named("market")}
}

// Snapshot implements Provider.
func (g *Guarded) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	snapshot, err := g.provider.Snapshot(ctx)
	if err != nil {
		g.logger.Warn("Market data unavailable, using empty snapshot", zap.Error(err))
		return models.MarketSnapshot{}, nil
	}

	clean := make(models.MarketSnapshot, len(snapshot))
	for pair, ticker := range snapshot {
		if ticker.Price <= 0 {
			g.logger.Warn("Dropping ticker without a positive price", zap.String("pair", pair), zap.Float64("price", ticker.Price))
			continue
		}
		clean[pair] = ticker
	}
	return clean, nil
}

// Overview is one row of the market overview.
type Overview struct {
	Pair   string  `json:"pair"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Volume float64 `json:"volume"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// MarketOverview lists the snapshot sorted by pair. Failures degrade to an empty list.
func MarketOverview(ctx context.Context, provider Provider, logger *zap.Logger) []Overview {
	snapshot, err := provider.Snapshot(ctx)
	if err != nil {
		logger.Error("Error getting market data", zap.Error(err))
		return []Overview{}
	}
	rows := make([]Overview, 0, len(snapshot))
	for _, pair := range snapshot.Pairs() {
		t := snapshot[pair]
		rows = append(rows, Overview{Pair: pair, Price: t.Price, Change: t.Change24h, Volume: t.Volume24h, High: t.High24h, Low: t.Low24h})
	}
	return rows
}
