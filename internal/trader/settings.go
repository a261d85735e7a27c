package trader

import (
	"context"
	"errors"
	"fmt"

	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/models"

	"go.uber.org/zap"
)

// ErrInvalidSettings is returned when a settings update is rejected. The account is left untouched.
var ErrInvalidSettings = errors.New("invalid settings")

// SettingsUpdate is a partial update of the user-controlled settings. Nil fields are left as they are.
type SettingsUpdate struct {
	SelectedStrategy  *string `json:"selectedStrategy"`
	ReservePercentage *int    `json:"reservePercentage"`
}

// Validate checks the update and resolves the strategy name.
func (u SettingsUpdate) Validate() (models.StrategyType, error) {
	if u.SelectedStrategy == nil && u.ReservePercentage == nil {
		return "", fmt.Errorf("%w: nothing to update", ErrInvalidSettings)
	}

	var kind models.StrategyType
	if u.SelectedStrategy != nil {
		parsed, err := models.ParseStrategyType(*u.SelectedStrategy)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		kind = parsed
	}
	if u.ReservePercentage != nil && (*u.ReservePercentage < 0 || *u.ReservePercentage > 100) {
		return "", fmt.Errorf("%w: reserve percentage %d is outside [0, 100]", ErrInvalidSettings, *u.ReservePercentage)
	}
	return kind, nil
}

// UpdateSettings validates and applies u through the same serialised mutation the trading loop uses.
func (e *Engine) UpdateSettings(ctx context.Context, u SettingsUpdate) (*models.AccountStatus, error) {
	kind, err := u.Validate()
	if err != nil {
		return nil, err
	}

	var updated *models.AccountStatus
	err = e.store.MutateAccount(ctx, func(_ *ledger.Tx, status *models.AccountStatus) error {
		if kind != "" {
			status.SelectedStrategy = kind
		}
		if u.ReservePercentage != nil {
			status.ReservePercentage = *u.ReservePercentage
		}
		updated = status
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	e.logger.Info("Settings updated",
		zap.String("strategy", string(updated.SelectedStrategy)),
		zap.Int("reserve_percentage", updated.ReservePercentage),
	)
	return updated, nil
}
