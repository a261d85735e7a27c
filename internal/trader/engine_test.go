package trader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cryptobot-go/internal/analysis"
	"cryptobot-go/internal/config"
	"cryptobot-go/internal/database"
	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/market"
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.Database{DSN: "file::memory:"},
		Trading: config.Trading{
			CycleInterval:       10 * time.Millisecond,
			ErrorBackoff:        20 * time.Millisecond,
			InitialBalance:      10000,
			DefaultStrategy:     "Trend Following",
			TrendThreshold:      0.7,
			VolatilityThreshold: 0.5,
			DeviationThreshold:  0.8,
			GridGate:            0.3,
			DCAGate:             0.2,
			ScalpingGate:        0.4,
			GridSpacing:         0.02,
			MinFillAmount:       0.01,
			MaxFillAmount:       0.1,
			MinProfit:           5,
			MaxProfit:           50,
			MinConfidence:       0.7,
			MaxConfidence:       0.95,
		},
		Reserve: config.Reserve{Percentage: 10, AllocationWindow: time.Hour, TransferInterval: 24 * time.Hour},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// setupLedger creates a seeded store on a new in-memory database, driven by a fake clock.
func setupLedger(t *testing.T) (*ledger.Store, *gorm.DB, *fakeClock) {
	t.Helper()
	db, err := database.NewDatabase(testConfig())
	require.NoError(t, err)
	store := ledger.NewStore(db)
	clock := newFakeClock()
	store.SetClock(clock.Now)
	return store, db, clock
}

type stubMarket struct {
	snapshot models.MarketSnapshot
	err      error
}

func (s stubMarket) Snapshot(context.Context) (models.MarketSnapshot, error) {
	return s.snapshot, s.err
}

type stubAnalyzer struct {
	result models.AnalysisResult
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, models.MarketSnapshot) (models.AnalysisResult, error) {
	return s.result, s.err
}

// countingMarket counts calls, tracks overlapping calls and can panic on demand.
type countingMarket struct {
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	panics   bool
}

func (m *countingMarket) Snapshot(context.Context) (models.MarketSnapshot, error) {
	m.calls.Add(1)
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(m.delay)
	if m.panics {
		panic("feed exploded")
	}
	return models.MarketSnapshot{}, nil
}

type panicStrategy struct{}

func (panicStrategy) Name() models.StrategyType { return models.StrategyTrendFollowing }

func (panicStrategy) Evaluate(models.MarketSnapshot, models.AnalysisResult) ([]models.OrderIntent, error) {
	panic("index out of range")
}

type fixedStrategy struct {
	intents []models.OrderIntent
	err     error
}

func (fixedStrategy) Name() models.StrategyType { return models.StrategyTrendFollowing }

func (s fixedStrategy) Evaluate(models.MarketSnapshot, models.AnalysisResult) ([]models.OrderIntent, error) {
	return s.intents, s.err
}

func setupEngine(t *testing.T, cfg *config.Config, m market.Provider, a analysis.Analyzer) (*Engine, *ledger.Store, *gorm.DB, *fakeClock) {
	t.Helper()
	store, db, clock := setupLedger(t)
	e := NewEngine(zap.NewNop(), cfg, Components{
		Store:    store,
		Market:   m,
		Analyzer: a,
		GateRand: random.New(1),
		FillRand: random.New(2),
		Now:      clock.Now,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e, store, db, clock
}

func TestRunOneCycle_TrendFollowingBuy(t *testing.T) {
	// Arrange
	e, store, _, _ := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}}},
		stubAnalyzer{result: models.AnalysisResult{TrendStrength: 0.8, Direction: models.DirectionBullish}},
	)
	ctx := context.Background()

	// Act
	report, err := e.RunOneCycle(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StrategyTrendFollowing, report.Strategy)
	assert.Equal(t, 1, report.Intents)
	require.Len(t, report.Trades, 1)
	trade := report.Trades[0]
	assert.Equal(t, "BTC/USDT", trade.Pair)
	assert.Equal(t, models.SideBuy, trade.Side)
	assert.True(t, decimal.NewFromInt(42150).Equal(trade.Price))

	status, err := store.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ActiveTrades)
	assert.True(t, trade.Profit.Equal(status.TotalProfit), "totalProfit %s, profit %s", status.TotalProfit, trade.Profit)
	assert.True(t, decimal.NewFromInt(10000).Equal(status.Balance))

	// The same cycle allocates 10% of the fresh profit to the reserve.
	expectedReserve := trade.Profit.Mul(decimal.NewFromInt(10)).Div(decimal.NewFromInt(100))
	assert.True(t, expectedReserve.Equal(report.ReserveAllocated), "allocated %s", report.ReserveAllocated)
	assert.True(t, expectedReserve.Equal(status.ReserveBalance), "reserve %s", status.ReserveBalance)
	assert.False(t, report.Transferred)
}

func TestRunOneCycle_AnalysisFailureUsesNeutralDefaults(t *testing.T) {
	e, store, _, _ := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}}},
		stubAnalyzer{err: errors.New("groq timeout")},
	)

	report, err := e.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Intents)
	trades, err := store.ListTrades(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunOneCycle_MarketFailureYieldsNoIntents(t *testing.T) {
	e, _, _, _ := setupEngine(t, testConfig(),
		stubMarket{err: errors.New("binance down")},
		stubAnalyzer{result: models.AnalysisResult{TrendStrength: 0.9, Direction: models.DirectionBearish}},
	)

	report, err := e.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Intents)
	assert.Empty(t, report.Trades)
}

func TestRunOneCycle_StrategyFailuresAreContained(t *testing.T) {
	testCases := []struct {
		name     string
		strategy Strategy
	}{
		{"Panic", panicStrategy{}},
		{"Error", fixedStrategy{err: errors.New("bad input")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, _, _, _ := setupEngine(t, testConfig(),
				stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}}},
				stubAnalyzer{result: models.NeutralAnalysis()},
			)
			e.strategies[models.StrategyTrendFollowing] = tc.strategy

			report, err := e.RunOneCycle(context.Background())

			assert.NoError(t, err)
			assert.Zero(t, report.Intents)
			assert.Empty(t, report.Trades)
		})
	}
}

func TestRunOneCycle_FailedIntentIsDroppedOthersProceed(t *testing.T) {
	e, store, _, _ := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}}},
		stubAnalyzer{result: models.NeutralAnalysis()},
	)
	e.strategies[models.StrategyTrendFollowing] = fixedStrategy{intents: []models.OrderIntent{
		{Pair: "BTC/USDT", Side: models.SideBuy, ReferencePrice: 0},
		{Pair: "ETH/USDT", Side: models.SideSell, ReferencePrice: 2580.5},
	}}

	report, err := e.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Intents)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Trades, 1)
	assert.Equal(t, "ETH/USDT", report.Trades[0].Pair)

	status, err := store.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, status.ActiveTrades)
}

func TestRunOneCycle_UsesSelectedStrategy(t *testing.T) {
	e, _, _, _ := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}}},
		stubAnalyzer{result: models.AnalysisResult{DeviationFromMean: 0.9, PricePosition: models.PositionOverbought}},
	)
	name := "Mean Reversion"
	_, err := e.UpdateSettings(context.Background(), SettingsUpdate{SelectedStrategy: &name})
	require.NoError(t, err)

	report, err := e.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.StrategyMeanReversion, report.Strategy)
	require.Len(t, report.Trades, 1)
	assert.Equal(t, models.SideSell, report.Trades[0].Side)
	assert.Equal(t, "mean_reversion", report.Trades[0].Strategy)
}

func TestRunOneCycle_TransfersReserveAfterInterval(t *testing.T) {
	e, store, _, clock := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{}},
		stubAnalyzer{result: models.NeutralAnalysis()},
	)
	setReserveBalance(t, store, 250)
	clock.Advance(25 * time.Hour)

	report, err := e.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Transferred)
	assert.True(t, decimal.NewFromInt(250).Equal(report.ReserveTransferred))
	status, err := store.GetAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10250).Equal(status.Balance))
	assert.True(t, status.ReserveBalance.IsZero())
}

func TestRunOneCycle_MissingAccountFails(t *testing.T) {
	e, _, db, _ := setupEngine(t, testConfig(), stubMarket{}, stubAnalyzer{result: models.NeutralAnalysis()})
	require.NoError(t, db.Delete(&models.AccountStatus{}, models.AccountStatusID).Error)

	_, err := e.RunOneCycle(context.Background())

	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStartLoop_Idempotent(t *testing.T) {
	// Arrange
	feed := &countingMarket{}
	e, store, _, _ := setupEngine(t, testConfig(), feed, stubAnalyzer{result: models.NeutralAnalysis()})
	ctx := context.Background()

	// Act
	started, err := e.StartLoop(ctx)
	require.NoError(t, err)
	again, err := e.StartLoop(ctx)
	require.NoError(t, err)

	// Assert
	assert.True(t, started)
	assert.False(t, again)
	assert.Equal(t, StateRunning, e.State())
	status, err := store.GetAccount(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsRunning)

	require.Eventually(t, func() bool { return feed.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, feed.maxSeen.Load(), int32(1), "a second start must not spawn a second loop")
}

func TestStopLoop(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.CycleInterval = time.Hour
	feed := &countingMarket{}
	e, store, _, _ := setupEngine(t, cfg, feed, stubAnalyzer{result: models.NeutralAnalysis()})
	ctx := context.Background()

	_, err := e.StartLoop(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// The loop is asleep for an hour; stop must wake it.
	require.NoError(t, e.StopLoop(ctx))
	assert.Equal(t, StateStopped, e.State())

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(shutdownCtx))
	assert.Equal(t, int32(1), feed.calls.Load())

	status, err := store.GetAccount(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
}

func TestLoop_BacksOffAndKeepsRunningAfterFailure(t *testing.T) {
	feed := &countingMarket{panics: true}
	e, _, _, _ := setupEngine(t, testConfig(), feed, stubAnalyzer{result: models.NeutralAnalysis()})

	_, err := e.StartLoop(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return feed.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, e.State())
}

func TestLoop_RestartDoesNotOverlap(t *testing.T) {
	feed := &countingMarket{delay: 20 * time.Millisecond}
	e, _, _, _ := setupEngine(t, testConfig(), feed, stubAnalyzer{result: models.NeutralAnalysis()})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.StartLoop(ctx)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return feed.inflight.Load() == 1 }, 2*time.Second, time.Millisecond)
		require.NoError(t, e.StopLoop(ctx))
	}
	_, err := e.StartLoop(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return feed.calls.Load() >= 6 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), feed.maxSeen.Load())
}

func TestRestore(t *testing.T) {
	setRunning := func(t *testing.T, store *ledger.Store) {
		err := store.MutateAccount(context.Background(), func(_ *ledger.Tx, status *models.AccountStatus) error {
			status.IsRunning = true
			return nil
		})
		require.NoError(t, err)
	}

	t.Run("Clears stale flag by default", func(t *testing.T) {
		e, store, _, _ := setupEngine(t, testConfig(), &countingMarket{}, stubAnalyzer{result: models.NeutralAnalysis()})
		setRunning(t, store)

		require.NoError(t, e.Restore(context.Background()))

		assert.Equal(t, StateStopped, e.State())
		status, err := store.GetAccount(context.Background())
		require.NoError(t, err)
		assert.False(t, status.IsRunning)
	})

	t.Run("Resumes when configured", func(t *testing.T) {
		cfg := testConfig()
		cfg.Trading.ResumeOnStart = true
		feed := &countingMarket{}
		e, store, _, _ := setupEngine(t, cfg, feed, stubAnalyzer{result: models.NeutralAnalysis()})
		setRunning(t, store)

		require.NoError(t, e.Restore(context.Background()))
		assert.Equal(t, StateRunning, e.State())
		require.Eventually(t, func() bool { return feed.calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

		// Shutdown keeps the persisted flag so the next process resumes too.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, e.Shutdown(ctx))
		assert.Equal(t, StateStopped, e.State())
		status, err := store.GetAccount(context.Background())
		require.NoError(t, err)
		assert.True(t, status.IsRunning)
	})

	t.Run("Stopped flag stays stopped", func(t *testing.T) {
		e, _, _, _ := setupEngine(t, testConfig(), &countingMarket{}, stubAnalyzer{result: models.NeutralAnalysis()})

		require.NoError(t, e.Restore(context.Background()))
		assert.Equal(t, StateStopped, e.State())
	})
}

func TestStatusAndTrades(t *testing.T) {
	e, _, db, clock := setupEngine(t, testConfig(),
		stubMarket{snapshot: models.MarketSnapshot{"BTC/USDT": {Price: 42150}, "ETH/USDT": {Price: 2580.5}}},
		stubAnalyzer{result: models.AnalysisResult{TrendStrength: 0.8, Direction: models.DirectionBullish}},
	)
	ctx := context.Background()
	_, err := e.RunOneCycle(ctx)
	require.NoError(t, err)
	clock.Advance(90 * time.Second)

	status := e.Status(ctx)
	assert.NotEmpty(t, status.UUID)
	assert.Equal(t, "STOPPED", status.State)
	assert.False(t, status.IsRunning)
	assert.Equal(t, 2, status.ActiveTrades)
	assert.Equal(t, "1m30s", status.Uptime)

	trades := e.ListTrades(ctx, 1)
	require.Len(t, trades, 1)
	assert.Equal(t, "ETH/USDT", trades[0].Pair, "most recent first")
	assert.Len(t, e.ListTrades(ctx, 0), 2)

	stats, err := e.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.AllTime.TotalTrades)

	// Storage failures degrade to defaults.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Empty(t, e.ListTrades(ctx, 10))
	fallback := e.GetAccountStatus(ctx)
	assert.True(t, decimal.NewFromInt(10000).Equal(fallback.Balance))
	assert.Equal(t, models.StrategyTrendFollowing, fallback.SelectedStrategy)
}
