package database

import (
	"errors"
	"fmt"

	"cryptobot-go/internal/config"
	"cryptobot-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection, migrates the schema and seeds the account row.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Open connects to the sqlite database at dsn.
// The pool is pinned to one connection: sqlite serialises writers anyway, and an
// in-memory database only exists on the connection that created it.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// AutoMigrate creates or updates the tables and inserts the account singleton on first start.
// Existing rows are never dropped: the ledger must survive restarts.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.AccountStatus{}, &models.TradeRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	var existing models.AccountStatus
	err := db.First(&existing, models.AccountStatusID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read account status: %w", err)
	}

	strategy, err := models.ParseStrategyType(cfg.Trading.DefaultStrategy)
	if err != nil {
		strategy = models.StrategyTrendFollowing
	}
	percentage := cfg.Reserve.Percentage
	if percentage < 0 || percentage > 100 {
		percentage = 10
	}

	status := models.NewAccountStatus(decimal.NewFromFloat(cfg.Trading.InitialBalance), strategy, percentage)
	if err := db.Create(&status).Error; err != nil {
		return fmt.Errorf("failed to seed account status: %w", err)
	}
	return nil
}
