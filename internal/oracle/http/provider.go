// Package http is an oracle.Provider backed by a real HTTP price/transfer
// service, directly modeled on teacher's pkg/market/exchanges/hyperliquid
// client: a small Option-configured Client posting JSON requests and
// decoding JSON responses, with retry/backoff on transient failures.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/oracle"
	"perpvenue/internal/pricepoint"
)

const (
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond
)

func init() {
	oracle.RegisterProvider("http", func(name string, cfg *oracle.ProviderConfig) (oracle.Provider, error) {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http oracle provider %s: base_url is required", name)
		}
		opts := []Option{WithBaseURL(cfg.BaseURL), WithAPIKey(cfg.APIKey)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewProvider(opts...), nil
	})
}

// Provider is an oracle.Provider that reaches a price/transfer/query
// service over HTTP, the counterpart to internal/oracle/sim for a real
// deployment.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// Option configures a new Provider.
type Option func(*Provider)

// WithHTTPClient injects a custom http.Client — a go-vcr-wrapped client in
// recorded tests, a timeout-bound one in production.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// WithBaseURL overrides the service's base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithMaxRetries adjusts the retry budget for transient failures.
func WithMaxRetries(max int) Option {
	return func(p *Provider) {
		if max >= 0 {
			p.maxRetries = max
		}
	}
}

// NewProvider constructs an HTTP-backed oracle.Provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) doRequest(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("http oracle: encode request: %w", err)
	}
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("http oracle: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("http oracle: %s: server error %d", path, resp.StatusCode)
				return
			}
			if resp.StatusCode >= 400 {
				lastErr = fmt.Errorf("http oracle: %s: client error %d", path, resp.StatusCode)
				return
			}
			lastErr = json.NewDecoder(resp.Body).Decode(result)
		}()
		if lastErr == nil {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return lastErr
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return fmt.Errorf("http oracle: %s: %w", path, lastErr)
}

type spotPriceRequest struct {
	Market string `json:"market"`
}

// SpotPrice posts the market name to the service's price endpoint and
// decodes the returned price point.
func (p *Provider) SpotPrice(ctx context.Context, market string, at time.Time) (pricepoint.Point, error) {
	var point pricepoint.Point
	if err := p.doRequest(ctx, "/price", spotPriceRequest{Market: market}, &point); err != nil {
		return pricepoint.Point{}, err
	}
	return point, nil
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Transfer posts a recipient/amount pair to the service's transfer
// endpoint; the service is the system of record for whether the transfer
// actually settled.
func (p *Provider) Transfer(ctx context.Context, recipient string, amount numeric.Collateral) error {
	var ack struct{}
	return p.doRequest(ctx, "/transfer", transferRequest{Recipient: recipient, Amount: amount.String()}, &ack)
}

type queryExternalRequest struct {
	Market  string          `json:"market"`
	Message json.RawMessage `json:"message"`
}

// QueryExternal forwards message to the service's query endpoint and
// returns its raw JSON response unparsed.
func (p *Provider) QueryExternal(ctx context.Context, market string, message json.RawMessage) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.doRequest(ctx, "/query", queryExternalRequest{Market: market, Message: message}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
