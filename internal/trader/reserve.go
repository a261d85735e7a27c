package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptobot-go/internal/config"
	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/metrics"
	"cryptobot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReserveManager skims a share of recent profit into the reserve balance and
// periodically moves the whole reserve back into the tradable balance.
type ReserveManager struct {
	store   *ledger.Store
	cfg     *config.Reserve
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu           sync.Mutex
	lastTransfer time.Time // in memory only; a restart starts a new interval
}

// ReserveStats summarises the reserve for the control surface.
type ReserveStats struct {
	ReservePercentage int             `json:"reservePercentage"`
	ReserveBalance    decimal.Decimal `json:"reserveBalance"`
	TotalProfit       decimal.Decimal `json:"totalProfit"` // sum of profitable trades
	LastTransfer      time.Time       `json:"lastTransfer"`
	NextTransfer      time.Time       `json:"nextTransfer"`
}

// NewReserveManager creates a reserve manager. The transfer interval starts at construction.
func NewReserveManager(store *ledger.Store, cfg *config.Reserve, logger *zap.Logger, m *metrics.Metrics, now func() time.Time) *ReserveManager {
	if now == nil {
		now = time.Now
	}
	return &ReserveManager{
		store:        store,
		cfg:          cfg,
		logger:       logger.Named("reserve"),
		metrics:      m,
		now:          now,
		lastTransfer: now(),
	}
}

// AllocateFromRecentProfit moves reservePercentage of the profit recorded within the allocation
// window into the reserve balance. Each trade is offered to the reserve at most once, so a second
// call with no new profit in between allocates nothing. Balance and totalProfit are untouched.
func (r *ReserveManager) AllocateFromRecentProfit(ctx context.Context) (decimal.Decimal, error) {
	cutoff := r.now().Add(-r.cfg.AllocationWindow)
	allocated := decimal.Zero

	err := r.store.MutateAccount(ctx, func(tx *ledger.Tx, status *models.AccountStatus) error {
		trades, err := tx.TradesSince(cutoff, status.LastAllocatedTradeID)
		if err != nil {
			return err
		}
		latest, err := tx.LatestTradeID()
		if err != nil {
			return err
		}

		recent := decimal.Zero
		for _, trade := range trades {
			if trade.Profit.IsPositive() {
				recent = recent.Add(trade.Profit)
			}
		}
		if latest > status.LastAllocatedTradeID {
			status.LastAllocatedTradeID = latest
		}

		if recent.IsPositive() && status.ReservePercentage > 0 {
			allocated = recent.Mul(decimal.NewFromInt(int64(status.ReservePercentage))).Div(decimal.NewFromInt(100)).Round(8)
			status.ReserveBalance = status.ReserveBalance.Add(allocated)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to allocate reserve: %w", err)
	}

	if allocated.IsPositive() {
		f, _ := allocated.Float64()
		r.metrics.RecordReserveAllocation(f)
		r.logger.Info("Allocated profit to reserve", zap.String("amount", allocated.String()))
	}
	return allocated, nil
}

// MaybeTransferReserveToBalance moves the whole reserve balance into the tradable balance once the
// transfer interval has elapsed since the last transfer. It reports the amount moved and whether a
// transfer happened. The interval restarts even when the reserve was empty.
func (r *ReserveManager) MaybeTransferReserveToBalance(ctx context.Context) (decimal.Decimal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastTransfer) < r.cfg.TransferInterval {
		return decimal.Zero, false, nil
	}

	moved := decimal.Zero
	err := r.store.MutateAccount(ctx, func(_ *ledger.Tx, status *models.AccountStatus) error {
		moved = status.ReserveBalance
		status.Balance = status.Balance.Add(moved)
		status.ReserveBalance = decimal.Zero
		return nil
	})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to transfer reserve: %w", err)
	}

	r.lastTransfer = now
	r.metrics.RecordReserveTransfer()
	r.logger.Info("Transferred reserve to balance", zap.String("amount", moved.String()))
	return moved, true, nil
}

// Stats reports the current reserve figures.
func (r *ReserveManager) Stats(ctx context.Context) (ReserveStats, error) {
	status, err := r.store.GetAccount(ctx)
	if err != nil {
		return ReserveStats{}, err
	}
	total, err := r.store.TotalPositiveProfit(ctx)
	if err != nil {
		return ReserveStats{}, err
	}

	r.mu.Lock()
	last := r.lastTransfer
	r.mu.Unlock()

	return ReserveStats{
		ReservePercentage: status.ReservePercentage,
		ReserveBalance:    status.ReserveBalance,
		TotalProfit:       total,
		LastTransfer:      last.UTC(),
		NextTransfer:      last.Add(r.cfg.TransferInterval).UTC(),
	}, nil
}
