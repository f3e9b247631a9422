// Package currency converts yen amounts into a user's display currency.
// Rates come from a live JSON rate source with a fixed table as fallback;
// a short-lived in-memory cache keeps a bulk refresh down to one rate fetch.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

// ratesResponse is the rate source payload: target code to rate, base JPY.
type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// fallbackRates are used when the live source is unreachable.
var fallbackRates = map[models.Currency]decimal.Decimal{
	models.JPY: decimal.NewFromInt(1),
	models.USD: decimal.NewFromFloat(0.0067),
	models.EUR: decimal.NewFromFloat(0.0062),
	models.GBP: decimal.NewFromFloat(0.0053),
}

var symbols = map[models.Currency]string{
	models.JPY: "¥",
	models.USD: "$",
	models.EUR: "€",
	models.GBP: "£",
}

type Converter struct {
	logger *logger.Logger
	client *http.Client
	apiURL string
	ttl    time.Duration

	mu        sync.RWMutex
	rates     map[models.Currency]decimal.Decimal
	fetchedAt time.Time
}

// NewConverter creates a converter against the given rate endpoint.
func NewConverter(apiURL string, ttl, timeout time.Duration, logger *logger.Logger) *Converter {
	return &Converter{
		logger: logger,
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
		ttl:    ttl,
	}
}

// Convert returns amountJPY formatted in the target currency.
// Returns models.ErrRateUnavailable when neither the live source nor the
// fallback table covers the target.
func (c *Converter) Convert(ctx context.Context, amountJPY int64, target models.Currency) (string, error) {
	amount := decimal.NewFromInt(amountJPY)
	if target == models.JPY {
		return Format(amount, models.JPY), nil
	}

	rate, err := c.rate(ctx, target)
	if err != nil {
		return "", err
	}
	return Format(amount.Mul(rate), target), nil
}

// rate resolves the JPY->target rate: fresh cache, then live fetch,
// then the fixed fallback table.
func (c *Converter) rate(ctx context.Context, target models.Currency) (decimal.Decimal, error) {
	c.mu.RLock()
	if c.rates != nil && time.Since(c.fetchedAt) < c.ttl {
		rate, ok := c.rates[target]
		c.mu.RUnlock()
		if ok {
			return rate, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrRateUnavailable, target)
	}
	c.mu.RUnlock()

	fetched, err := c.fetchRates(ctx)
	if err != nil {
		c.logger.Warn("Live rate fetch failed, using fixed table ", "error ", err)
		rate, ok := fallbackRates[target]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", models.ErrRateUnavailable, target)
		}
		return rate, nil
	}

	c.mu.Lock()
	c.rates = fetched
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	rate, ok := fetched[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrRateUnavailable, target)
	}
	return rate, nil
}

func (c *Converter) fetchRates(ctx context.Context) (map[models.Currency]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate response: %w", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("rate response contains no rates")
	}

	rates := make(map[models.Currency]decimal.Decimal, len(parsed.Rates))
	for code, rate := range parsed.Rates {
		rates[models.Currency(code)] = decimal.NewFromFloat(rate)
	}
	return rates, nil
}

// Format renders an amount per currency minor-unit convention:
// zero decimal places for JPY, two for everything else.
func Format(amount decimal.Decimal, currency models.Currency) string {
	symbol, ok := symbols[currency]
	if !ok {
		symbol = string(currency) + " "
	}
	if currency == models.JPY {
		return symbol + amount.StringFixed(0)
	}
	return symbol + amount.StringFixed(2)
}
