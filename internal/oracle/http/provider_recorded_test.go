package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test uses go-vcr to record/replay a real SpotPrice call, the same
// pattern teacher's hyperliquid client uses for its recorded fixture test.
// It skips by default if the cassette is absent and RECORD_CASSETTES != 1.
func TestProvider_SpotPrice_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "spot_price.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	httpClient := &http.Client{Transport: r}
	provider := NewProvider(WithBaseURL("https://oracle.example.invalid"), WithHTTPClient(httpClient))

	point, err := provider.SpotPrice(context.Background(), "BTC-PERP", time.Time{})
	assert.NoError(t, err)
	assert.False(t, point.Timestamp.IsZero())
	assert.False(t, point.PriceUsd.IsZero())
}
