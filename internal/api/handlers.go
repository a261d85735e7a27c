// Package api is the HTTP control and query surface over the trading engine.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/market"
	"cryptobot-go/internal/models"
	"cryptobot-go/internal/trader"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentTradesOnStatus = 10

// Engine is the part of the trading engine the handlers drive.
type Engine interface {
	Status(ctx context.Context) trader.Status
	ListTrades(ctx context.Context, limit int) []models.TradeRecord
	StartLoop(ctx context.Context) (bool, error)
	StopLoop(ctx context.Context) error
	UpdateSettings(ctx context.Context, u trader.SettingsUpdate) (*models.AccountStatus, error)
	Statistics(ctx context.Context) (ledger.Statistics, error)
	ReserveStats(ctx context.Context) (trader.ReserveStats, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log    *zap.Logger
	engine Engine
	market market.Provider
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, engine Engine, provider market.Provider) *APIHandler {
	return &APIHandler{log: log.Named("api"), engine: engine, market: provider}
}

// RegisterRoutes mounts the bot, trade, market, reserve and statistics endpoints.
func (h *APIHandler) RegisterRoutes(r *gin.RouterGroup) {
	bot := r.Group("/bot")
	bot.GET("/status", h.StatusHandler)
	bot.POST("/start", h.StartHandler)
	bot.POST("/stop", h.StopHandler)
	bot.PUT("/settings", h.SettingsHandler)

	r.GET("/trades", h.TradesHandler)
	r.GET("/market/data", h.MarketDataHandler)
	r.GET("/reserve", h.ReserveHandler)
	r.GET("/statistics", h.StatisticsHandler)
}

// StatusResponse is the body of GET /api/bot/status.
type StatusResponse struct {
	trader.Status
	RecentTrades []models.TradeRecord `json:"recentTrades"`
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "CryptoBot backend is running", "status": "healthy"})
}

// StatusHandler returns the account status with the most recent trades.
func (h *APIHandler) StatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, StatusResponse{
		Status:       h.engine.Status(ctx),
		RecentTrades: h.engine.ListTrades(ctx, recentTradesOnStatus),
	})
}

// StartHandler starts the trading loop.
func (h *APIHandler) StartHandler(c *gin.Context) {
	started, err := h.engine.StartLoop(c.Request.Context())
	if err != nil {
		h.log.Error("Error starting bot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !started {
		c.JSON(http.StatusOK, gin.H{"message": "Bot is already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trading bot started successfully"})
}

// StopHandler stops the trading loop.
func (h *APIHandler) StopHandler(c *gin.Context) {
	if err := h.engine.StopLoop(c.Request.Context()); err != nil {
		h.log.Error("Error stopping bot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trading bot stopped successfully"})
}

// SettingsHandler updates the selected strategy and/or the reserve percentage.
func (h *APIHandler) SettingsHandler(c *gin.Context) {
	var req trader.SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.engine.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, trader.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("Error updating settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully", "status": status})
}

// TradesHandler returns historical trades, most recent first.
func (h *APIHandler) TradesHandler(c *gin.Context) {
	limit := trader.DefaultTradeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.engine.ListTrades(c.Request.Context(), limit))
}

// MarketDataHandler returns the current market overview.
func (h *APIHandler) MarketDataHandler(c *gin.Context) {
	c.JSON(http.StatusOK, market.MarketOverview(c.Request.Context(), h.market, h.log))
}

// ReserveHandler returns the reserve figures.
func (h *APIHandler) ReserveHandler(c *gin.Context) {
	stats, err := h.engine.ReserveStats(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to get reserve stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get reserve stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StatisticsHandler returns trading statistics for the last 24 hours and all time.
func (h *APIHandler) StatisticsHandler(c *gin.Context) {
	stats, err := h.engine.Statistics(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to calculate statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
