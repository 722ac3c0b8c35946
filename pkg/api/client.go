package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"btcdash/pkg/metrics"
	"btcdash/pkg/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// CoinGeckoBaseURL is the default market-data endpoint. Config can
// override it per install; tests point it at a local server.
var CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// RequestTimeout bounds a single HTTP attempt. Retries each get the
// full window.
var RequestTimeout = 10 * time.Second

// Both upstreams are free public APIs, so outbound requests share one
// conservative rate limit.
const requestsPerSecond = 5

// Client wraps the explorer backend REST API and the CoinGecko market API.
type Client struct {
	backend *resty.Client
	gecko   *resty.Client
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

// NewClient builds a client for the given backend base URL. An empty
// coinGeckoURL selects the public CoinGecko endpoint.
func NewClient(baseURL, coinGeckoURL string, logger *zap.Logger) *Client {
	if coinGeckoURL == "" {
		coinGeckoURL = CoinGeckoBaseURL
	}
	newRestClient := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(RequestTimeout).
			SetHeader("Accept", "application/json").
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond)
	}
	return &Client{
		backend: newRestClient(baseURL),
		gecko:   newRestClient(coinGeckoURL),
		limiter: ratelimit.New(requestsPerSecond),
		logger:  logger,
	}
}

// BackendURL returns the configured explorer backend base URL.
func (c *Client) BackendURL() string {
	return c.backend.BaseURL
}

// LatestMetrics fetches the latest block plus network aggregates.
func (c *Client) LatestMetrics(ctx context.Context) (*models.BlockSnapshot, error) {
	started := time.Now()
	var snap models.BlockSnapshot
	err := c.getJSON(ctx, c.backend, "/latest_block_metrics", nil, &snap)
	metrics.ObserveFetch(metrics.StreamLatestMetrics, err, started)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LatestBlocks fetches the most recent block heights, ordered as the
// backend returns them (newest first).
func (c *Client) LatestBlocks(ctx context.Context) ([]int64, error) {
	started := time.Now()
	var heights []int64
	err := c.getJSON(ctx, c.backend, "/latest_15_blocks", nil, &heights)
	metrics.ObserveFetch(metrics.StreamBlockList, err, started)
	if err != nil {
		return nil, err
	}
	return heights, nil
}

// BlockByHeight fetches the full snapshot for a single block.
func (c *Client) BlockByHeight(ctx context.Context, height int64) (*models.BlockSnapshot, error) {
	started := time.Now()
	var snap models.BlockSnapshot
	err := c.getJSON(ctx, c.backend, fmt.Sprintf("/block/%d", height), nil, &snap)
	metrics.ObserveFetch(metrics.StreamBlockDetail, err, started)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// MarketChart fetches the USD price history for the trailing window.
func (c *Client) MarketChart(ctx context.Context, days int) ([]models.PricePoint, error) {
	started := time.Now()
	var raw struct {
		Prices [][]float64 `json:"prices"`
	}
	err := c.getJSON(ctx, c.gecko, "/coins/bitcoin/market_chart", map[string]string{
		"vs_currency": "usd",
		"days":        strconv.Itoa(days),
	}, &raw)
	metrics.ObserveFetch(metrics.StreamPriceHistory, err, started)
	if err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(raw.Prices))
	for _, pair := range raw.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, models.PricePoint{
			Timestamp: time.UnixMilli(int64(pair[0])),
			Price:     pair[1],
		})
	}
	return points, nil
}

func (c *Client) getJSON(ctx context.Context, rc *resty.Client, endpoint string, query map[string]string, out interface{}) error {
	c.limiter.Take()

	req := rc.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	if resp.IsError() {
		c.logger.Debug("request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode()))
		return &Error{
			Kind:     KindNetwork,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Err:      fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		c.logger.Debug("response undecodable", zap.String("endpoint", endpoint), zap.Error(err))
		return &Error{Kind: KindParse, Endpoint: endpoint, Err: err}
	}
	return nil
}
