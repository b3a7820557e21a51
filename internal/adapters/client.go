// Package adapters implements the external collaborators named by §6: a
// CLOB REST client, an on-chain balance/approval client, a gas-price
// oracle, and a reference price feed with a randomized fallback. The
// ClobAdapter type composes the CLOB and on-chain clients into the single
// orderbook.Adapter and strategy.PriceFeed interfaces the rest of the
// keeper depends on.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"ctfmm/internal/config"
	"ctfmm/internal/metrics"
	"ctfmm/internal/model"
)

// amountDecimals is the USDC amount rounding precision for the default
// min_tick of 0.01 (§6 strategy config default).
const amountDecimals = 4

// Client is the Polymarket CLOB REST API client: order book reads, batch
// order placement, and cancellation, rate-limited and authenticated per
// endpoint category.
type Client struct {
	http    *resty.Client
	auth    *Auth
	rl      *RateLimiter
	dryRun  bool
	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewClient builds a CLOB REST client with retry and rate limiting.
func NewClient(cfg config.Config, auth *Auth, reg *metrics.Registry, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		auth:    auth,
		rl:      NewRateLimiter(),
		dryRun:  cfg.DryRun,
		logger:  logger,
		metrics: reg,
	}
}

func (c *Client) timeRequest(category string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.metrics.ObserveClobLatency(category, time.Since(start))
	return err
}

// GetOrderBook fetches the top-of-book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result BookResponse
	err := c.timeRequest("book", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&result).
			Get("/book")
		if err != nil {
			return fmt.Errorf("get book: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMidpoint fetches the CLOB's own midpoint for a token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return 0, err
	}

	var result MidpointResponse
	err := c.timeRequest("midpoint", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&result).
			Get("/midpoint")
		if err != nil {
			return fmt.Errorf("get midpoint: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("get midpoint: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	var mid float64
	if _, err := fmt.Sscanf(result.Mid, "%f", &mid); err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", result.Mid, err)
	}
	return mid, nil
}

// GetOpenOrders fetches every live order for the condition id.
func (c *Client) GetOpenOrders(ctx context.Context, conditionID string) ([]OpenOrder, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result []OpenOrder
	err := c.timeRequest("orders", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("market", conditionID).
			SetResult(&result).
			Get("/orders")
		if err != nil {
			return fmt.Errorf("get orders: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("get orders: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	return result, err
}

func (c *Client) buildOrderPayload(intent model.Order, tokenID string) OrderPayload {
	makerAmt, takerAmt := PriceToAmounts(intent.Price64(), intent.Size64(), intent.Side, amountDecimals)

	return OrderPayload{
		Order: SignedOrder{
			Maker:         c.auth.FunderAddress().Hex(),
			Signer:        c.auth.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       tokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          intent.Side.String(),
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    "0",
			SignatureType: c.auth.sigType,
		},
		Owner:     c.auth.creds.ApiKey,
		OrderType: "GTC",
	}
}

// PostOrders places up to 15 orders in a single batch request.
func (c *Client) PostOrders(ctx context.Context, intents []model.Order, tokenIDs []string) ([]OrderResponse, error) {
	if len(intents) == 0 {
		return nil, nil
	}
	if len(intents) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(intents))
	}
	if c.dryRun {
		results := make([]OrderResponse, len(intents))
		for i := range intents {
			results[i] = OrderResponse{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payloads := make([]OrderPayload, len(intents))
	for i, intent := range intents {
		payloads[i] = c.buildOrderPayload(intent, tokenIDs[i])
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []OrderResponse
	err = c.timeRequest("place", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(payloads).
			SetResult(&results).
			Post("/orders")
		if err != nil {
			return fmt.Errorf("post orders: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	return results, err
}

// CancelOrdersByID cancels a batch of orders by id.
func (c *Client) CancelOrdersByID(ctx context.Context, ids []string) (*CancelResponse, error) {
	if len(ids) == 0 {
		return &CancelResponse{}, nil
	}
	if c.dryRun {
		return &CancelResponse{Canceled: ids}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.L2Headers("DELETE", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result CancelResponse
	err = c.timeRequest("cancel", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(json.RawMessage(body)).
			SetResult(&result).
			Delete("/orders")
		if err != nil {
			return fmt.Errorf("cancel orders: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	return &result, err
}

// CancelAll cancels every open order for the funder address.
func (c *Client) CancelAll(ctx context.Context) (*CancelResponse, error) {
	if c.dryRun {
		return &CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result CancelResponse
	err = c.timeRequest("cancel_all", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetResult(&result).
			Delete("/cancel-all")
		if err != nil {
			return fmt.Errorf("cancel all: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	return &result, err
}

// DeriveAPIKey bootstraps L2 credentials via L1 auth.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

// randomizedFallbackPrice returns 0.5 +/- U(-0.1, 0.1), floored to
// MaxDecimals, used when the midpoint feed fails (§2a).
func randomizedFallbackPrice() float64 {
	jitter := (rand.Float64() - 0.5) * 0.2
	return model.RoundDown(0.5+jitter, model.MaxDecimals)
}
