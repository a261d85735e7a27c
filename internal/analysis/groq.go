package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cryptobot-go/internal/config"
	"cryptobot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const systemPrompt = `You are a crypto market analyst. Reply with a single JSON object with the keys ` +
	`trend_strength (0..1), direction ("bullish"|"bearish"|"neutral"), volatility (0..1), ` +
	`deviation_from_mean (0..1), price_position ("oversold"|"overbought"|"neutral"), ` +
	`confidence (0..1) and sentiment_score (-1..1).`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GroqClient asks an OpenAI-compatible chat completions endpoint to score the market.
type GroqClient struct {
	client  *resty.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Analyzer = (*GroqClient)(nil)

// NewGroqClient creates a client from the analysis configuration.
func NewGroqClient(cfg *config.Analysis, logger *zap.Logger) *GroqClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.ApiKey).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &GroqClient{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("groq"),
	}
}

// Analyze implements Analyzer.
func (c *GroqClient) Analyze(ctx context.Context, snapshot models.MarketSnapshot) (models.AnalysisResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: summarize(snapshot)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("analysis request failed: %w", err)
	}
	if resp.IsError() {
		return models.AnalysisResult{}, fmt.Errorf("analysis request failed with status %s: %s", resp.Status(), resp.String())
	}
	if len(out.Choices) == 0 {
		return models.AnalysisResult{}, errors.New("analysis response has no choices")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to decode analysis content: %w", err)
	}
	c.logger.Debug("Received analysis", zap.String("direction", result.Direction))
	return result, nil
}

// summarize renders one line per pair, in stable order.
func summarize(snapshot models.MarketSnapshot) string {
	var b strings.Builder
	b.WriteString("Current market (pair, price, 24h change %, 24h volume):\n")
	for _, pair := range snapshot.Pairs() {
		t := snapshot[pair]
		fmt.Fprintf(&b, "%s %.8g %.2f %.0f\n", pair, t.Price, t.Change24h, t.Volume24h)
	}
	return b.String()
}
