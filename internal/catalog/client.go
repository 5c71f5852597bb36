package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"context"

	"github.com/joa111/ecom-mang/internal/domain"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// ClientConfig holds configuration for the HTTP catalog client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint
}

// DefaultClientConfig returns sensible defaults for the catalog client.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}
}

// Client is an HTTP implementation of Catalog against the product catalog
// service. Transient failures are retried with exponential backoff; repeated
// failures trip a circuit breaker so a down catalog cannot stall cart
// mutations.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*domain.Product]
	logger     *slog.Logger
}

// NewClient creates a new catalog client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[*domain.Product](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// productDTO is the catalog service's wire representation of a product.
type productDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	ImageURL      string `json:"image_url"`
}

type productResponse struct {
	Data productDTO `json:"data"`
}

// GetProduct fetches the product snapshot from the catalog service.
func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := c.breaker.Execute(func() (*domain.Product, error) {
		return backoff.Retry(ctx,
			func() (*domain.Product, error) { return c.fetchProduct(ctx, productID) },
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(c.cfg.MaxRetries),
		)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("catalog circuit open: %w", err))
		}
		return nil, err
	}
	return product, nil
}

// fetchProduct performs one GET against the catalog. Non-retryable outcomes
// (404, malformed body) are wrapped in backoff.Permanent so the retry loop
// stops immediately.
func (c *Client) fetchProduct(ctx context.Context, productID string) (*domain.Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.cfg.BaseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create catalog request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(apperrors.NotFound("product", productID))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("catalog returned %d", resp.StatusCode))
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode catalog response: %w", err))
	}

	return &domain.Product{
		ID:            body.Data.ID,
		Name:          body.Data.Name,
		UnitPrice:     body.Data.Price,
		StockQuantity: body.Data.StockQuantity,
		ImageURL:      body.Data.ImageURL,
	}, nil
}
