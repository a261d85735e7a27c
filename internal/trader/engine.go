package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptobot-go/internal/analysis"
	"cryptobot-go/internal/config"
	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/market"
	"cryptobot-go/internal/metrics"
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/random"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the control state of the trading loop.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "RUNNING"
	}
	return "STOPPED"
}

// Components groups the collaborators the engine drives.
// Nil random sources are seeded from trading.random_seed; a nil clock means time.Now.
type Components struct {
	Store    *ledger.Store
	Market   market.Provider
	Analyzer analysis.Analyzer
	Metrics  *metrics.Metrics
	GateRand random.Source // strategy admission gates
	FillRand random.Source // simulated fill magnitudes
	Now      func() time.Time
}

// CycleReport summarises one trading cycle.
type CycleReport struct {
	Strategy           models.StrategyType  `json:"strategy"`
	Intents            int                  `json:"intents"`
	Trades             []models.TradeRecord `json:"trades"`
	Failed             int                  `json:"failed"`
	ReserveAllocated   decimal.Decimal      `json:"reserveAllocated"`
	ReserveTransferred decimal.Decimal      `json:"reserveTransferred"`
	Transferred        bool                 `json:"transferred"`
	Duration           time.Duration        `json:"duration"`
}

// Engine is the trading cycle orchestrator. It owns the running/stopped state machine
// and the single background loop that runs one cycle at a time.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger     *zap.Logger
	cfg        *config.Config
	store      *ledger.Store
	market     market.Provider
	analyzer   analysis.Analyzer
	strategies map[models.StrategyType]Strategy
	executor   *Executor
	reserve    *ReserveManager
	metrics    *metrics.Metrics
	now        func() time.Time

	control sync.Mutex // serialises start/stop transitions

	mu     sync.RWMutex
	state  State
	stopCh chan struct{}
	done   chan struct{}
}

// NewEngine creates a stopped engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, c Components) *Engine {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	gate := c.GateRand
	if gate == nil {
		gate = random.New(random.Derive(cfg.Trading.RandomSeed, random.StreamGate))
	}
	fill := c.FillRand
	if fill == nil {
		fill = random.New(random.Derive(cfg.Trading.RandomSeed, random.StreamFill))
	}

	logger = logger.Named("engine")
	return &Engine{
		UUID:      uuid.NewString(),
		Name:      "cryptobot",
		StartTime: now(),
		logger:    logger,
		cfg:       cfg,
		store:     c.Store,
		market:    c.Market,
		analyzer:  c.Analyzer,
		strategies: NewStrategySet(StrategyContext{
			Logger: logger,
			Cfg:    &cfg.Trading,
			Rand:   gate,
		}),
		executor: NewExecutor(c.Store, &cfg.Trading, fill, logger, c.Metrics),
		reserve:  NewReserveManager(c.Store, &cfg.Reserve, logger, c.Metrics, now),
		metrics:  c.Metrics,
		now:      now,
		state:    StateStopped,
	}
}

// ReserveStats reports the reserve figures.
func (e *Engine) ReserveStats(ctx context.Context) (ReserveStats, error) {
	return e.reserve.Stats(ctx)
}

// State returns a snapshot of the control state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// StartLoop transitions to RUNNING, persists the flag and launches the loop.
// It reports false without side effects when the loop is already running.
func (e *Engine) StartLoop(ctx context.Context) (bool, error) {
	e.control.Lock()
	defer e.control.Unlock()

	if e.State() == StateRunning {
		return false, nil
	}
	if err := e.persistRunning(ctx, true); err != nil {
		return false, fmt.Errorf("failed to start trading loop: %w", err)
	}
	e.launch()
	e.logger.Info("Trading bot started")
	return true, nil
}

// StopLoop transitions to STOPPED and persists the flag. An in-flight cycle completes;
// a sleeping loop wakes and exits. The loop stops even when persisting fails.
func (e *Engine) StopLoop(ctx context.Context) error {
	e.control.Lock()
	defer e.control.Unlock()

	e.halt()
	if err := e.persistRunning(ctx, false); err != nil {
		return fmt.Errorf("failed to persist stopped state: %w", err)
	}
	e.logger.Info("Trading bot stopped")
	return nil
}

// Restore applies the persisted running flag at process start. The loop is resumed only
// when trading.resume_on_start is set; otherwise a stale running flag is cleared.
func (e *Engine) Restore(ctx context.Context) error {
	e.control.Lock()
	defer e.control.Unlock()

	status, err := e.store.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read persisted state: %w", err)
	}
	if !status.IsRunning {
		return nil
	}
	if e.cfg.Trading.ResumeOnStart {
		e.logger.Info("Resuming trading loop from persisted state")
		e.launch()
		return nil
	}
	e.logger.Info("Clearing persisted running flag")
	return e.persistRunning(ctx, false)
}

// Shutdown stops the loop without touching the persisted flag and waits for the
// in-flight iteration to finish or ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.control.Lock()
	e.halt()
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	e.control.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		e.logger.Info("Trading engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch must be called with control held.
func (e *Engine) launch() {
	e.mu.Lock()
	previous := e.done
	stopCh := make(chan struct{})
	done := make(chan struct{})
	e.state = StateRunning
	e.stopCh = stopCh
	e.done = done
	e.mu.Unlock()

	e.metrics.SetRunning(true)
	go e.loop(stopCh, done, previous)
}

// halt must be called with control held.
func (e *Engine) halt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		close(e.stopCh)
	}
	e.state = StateStopped
	e.metrics.SetRunning(false)
}

func (e *Engine) persistRunning(ctx context.Context, running bool) error {
	return e.store.MutateAccount(ctx, func(_ *ledger.Tx, status *models.AccountStatus) error {
		status.IsRunning = running
		return nil
	})
}

func (e *Engine) loop(stopCh <-chan struct{}, done chan<- struct{}, previous <-chan struct{}) {
	defer close(done)

	// A restarted loop must not overlap the iteration of the loop it replaces.
	if previous != nil {
		<-previous
	}

	e.logger.Info("Starting trading loop", zap.Duration("interval", e.cfg.Trading.CycleInterval))
	for {
		select {
		case <-stopCh:
			e.logger.Info("Trading loop exited")
			return
		default:
		}

		wait := e.cfg.Trading.CycleInterval
		if _, err := e.safeCycle(context.Background()); err != nil {
			e.logger.Error("Error in trading loop", zap.Error(err), zap.Duration("backoff", e.cfg.Trading.ErrorBackoff))
			wait = e.cfg.Trading.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			e.logger.Info("Trading loop exited")
			return
		case <-timer.C:
		}
	}
}

// safeCycle runs one cycle and converts a panic into an error.
func (e *Engine) safeCycle(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trading cycle panicked: %v", r)
		}
	}()
	return e.RunOneCycle(ctx)
}

// RunOneCycle fetches signals, evaluates the selected strategy, executes its intents and runs
// the reserve bookkeeping. Only a failure to read the account makes the cycle fail; every other
// failure is logged and the cycle carries on.
func (e *Engine) RunOneCycle(ctx context.Context) (report CycleReport, err error) {
	start := e.now()
	defer func() {
		report.Duration = e.now().Sub(start)
		e.metrics.RecordCycle(report.Duration.Seconds(), err)
	}()
	e.logger.Info("Executing trading cycle...")

	snapshot, err := e.market.Snapshot(ctx)
	if err != nil {
		e.logger.Warn("Market data unavailable", zap.Error(err))
		snapshot = models.MarketSnapshot{}
	}
	result, err := e.analyzer.Analyze(ctx, snapshot)
	if err != nil {
		e.logger.Warn("Analysis unavailable, using neutral defaults", zap.Error(err))
		result = models.NeutralAnalysis()
	}

	status, err := e.store.GetAccount(ctx)
	if err != nil {
		return report, fmt.Errorf("could not resolve current strategy: %w", err)
	}
	report.Strategy = status.SelectedStrategy

	strategy, ok := e.strategies[status.SelectedStrategy]
	if !ok {
		e.logger.Warn("Unknown strategy selected, skipping evaluation", zap.String("strategy", string(status.SelectedStrategy)))
	} else {
		intents := e.evaluate(strategy, snapshot, result)
		report.Intents = len(intents)
		for _, intent := range intents {
			trade, err := e.executor.Execute(ctx, intent, strategy.Name())
			if err != nil {
				e.logger.Error("Dropping order intent", zap.String("pair", intent.Pair), zap.String("side", intent.Side), zap.Error(err))
				report.Failed++
				continue
			}
			report.Trades = append(report.Trades, *trade)
		}
	}

	if report.ReserveAllocated, err = e.reserve.AllocateFromRecentProfit(ctx); err != nil {
		e.logger.Error("Reserve allocation failed", zap.Error(err))
	}
	if report.ReserveTransferred, report.Transferred, err = e.reserve.MaybeTransferReserveToBalance(ctx); err != nil {
		e.logger.Error("Reserve transfer failed", zap.Error(err))
	}

	e.logger.Info("Trading cycle completed",
		zap.String("strategy", string(report.Strategy)),
		zap.Int("intents", report.Intents),
		zap.Int("executed", len(report.Trades)),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// evaluate runs the strategy, treating an error or a panic as no intents.
func (e *Engine) evaluate(strategy Strategy, snapshot models.MarketSnapshot, result models.AnalysisResult) (intents []models.OrderIntent) {
	l := e.logger.With(zap.String("strategy", string(strategy.Name())))
	defer func() {
		if r := recover(); r != nil {
			l.Error("Strategy panicked", zap.Any("panic", r))
			intents = nil
		}
	}()

	intents, err := strategy.Evaluate(snapshot, result)
	if err != nil {
		l.Error("Strategy evaluation failed", zap.Error(err))
		return nil
	}
	return intents
}
