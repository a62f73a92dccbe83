package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpvenue/internal/numeric"
	"perpvenue/internal/pricepoint"
)

func newMockServer(t *testing.T) (*httptest.Server, *Provider) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		var req spotPriceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(pricepoint.Point{
			Timestamp:     time.Unix(1_700_000_000, 0).UTC(),
			PriceNotional: numeric.NewPrice(numeric.MustParseDec("100")),
			PriceUsd:      numeric.NewPrice(numeric.MustParseDec("100")),
		})
	})
	mux.HandleFunc("/transfer", func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(struct{}{})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(json.RawMessage(`{"ok":true}`))
	})
	server := httptest.NewServer(mux)
	provider := NewProvider(WithBaseURL(server.URL), WithMaxRetries(0))
	return server, provider
}

func TestProvider_SpotPrice(t *testing.T) {
	server, provider := newMockServer(t)
	defer server.Close()

	point, err := provider.SpotPrice(context.Background(), "BTC-PERP", time.Now())
	require.NoError(t, err)
	assert.True(t, point.PriceUsd.Dec().Equal(numeric.MustParseDec("100")))
}

func TestProvider_Transfer(t *testing.T) {
	server, provider := newMockServer(t)
	defer server.Close()

	err := provider.Transfer(context.Background(), "0xabc", numeric.NewCollateral(numeric.MustParseDec("5")))
	assert.NoError(t, err)
}

func TestProvider_QueryExternal(t *testing.T) {
	server, provider := newMockServer(t)
	defer server.Close()

	resp, err := provider.QueryExternal(context.Background(), "BTC-PERP", json.RawMessage(`{"q":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp))
}

func TestProvider_ClientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	provider := NewProvider(WithBaseURL(server.URL), WithMaxRetries(3))
	_, err := provider.SpotPrice(context.Background(), "BTC-PERP", time.Now())
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
