// Package sim provides a deterministic, in-memory oracle.Provider for tests
// and backtests, directly modeled on teacher's pkg/exchange/sim paper
// trading provider: no network calls, prices are whatever the harness sets.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/oracle"
	"perpvenue/internal/pricepoint"
)

func init() {
	oracle.RegisterProvider("sim", func(name string, cfg *oracle.ProviderConfig) (oracle.Provider, error) {
		return New(), nil
	})
}

// Provider is a paper-market oracle: prices are injected by the caller via
// SetPrice, transfers are recorded rather than executed, and
// QueryExternal serves whatever canned responses the caller registers.
type Provider struct {
	mu sync.Mutex

	prices    map[string]pricepoint.Point
	transfers []Transfer
	queries   map[string]json.RawMessage
}

// Transfer records one Transfer call for test assertions.
type Transfer struct {
	Recipient string
	Amount    numeric.Collateral
}

// New constructs an empty simulator.
func New() *Provider {
	return &Provider{
		prices:  make(map[string]pricepoint.Point),
		queries: make(map[string]json.RawMessage),
	}
}

func canonical(market string) string { return strings.ToUpper(strings.TrimSpace(market)) }

// SetPrice fixes market's current price point, returned by every
// subsequent SpotPrice call until overwritten.
func (p *Provider) SetPrice(market string, point pricepoint.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[canonical(market)] = point
}

// SetQueryResponse fixes the canned response QueryExternal returns for a
// given (market, message) pair, keyed by the message's literal bytes.
func (p *Provider) SetQueryResponse(market string, message, response json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[canonical(market)+"|"+string(message)] = response
}

// SpotPrice returns the fixed price point for market, or an error if none
// was ever set.
func (p *Provider) SpotPrice(ctx context.Context, market string, at time.Time) (pricepoint.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.prices[canonical(market)]
	if !ok {
		return pricepoint.Point{}, fmt.Errorf("sim oracle: no price set for %s", market)
	}
	return pt, nil
}

// Transfer records the transfer and always succeeds.
func (p *Provider) Transfer(ctx context.Context, recipient string, amount numeric.Collateral) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers = append(p.transfers, Transfer{Recipient: recipient, Amount: amount})
	return nil
}

// Transfers returns every transfer recorded so far, for test assertions.
func (p *Provider) Transfers() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Transfer, len(p.transfers))
	copy(out, p.transfers)
	return out
}

// QueryExternal returns the canned response registered via
// SetQueryResponse, or an empty "null" response if none was set.
func (p *Provider) QueryExternal(ctx context.Context, market string, message json.RawMessage) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resp, ok := p.queries[canonical(market)+"|"+string(message)]; ok {
		return resp, nil
	}
	return json.RawMessage("null"), nil
}
