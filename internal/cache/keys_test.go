package cache

import (
	"testing"

	"perpvenue/internal/config"
)

func TestSpotPriceKey(t *testing.T) {
	if got, want := SpotPriceKey("BTC_USD"), "perpvenue:spot:BTC_USD"; got != want {
		t.Fatalf("SpotPriceKey = %q, want %q", got, want)
	}
}

func TestClosedPositionHistoryKey(t *testing.T) {
	got := ClosedPositionHistoryKey("BTC_USD", "alice", 42)
	want := "perpvenue:closed_history:BTC_USD:alice:42"
	if got != want {
		t.Fatalf("ClosedPositionHistoryKey = %q, want %q", got, want)
	}
}

func TestNewTTLSet_Defaults(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{})
	if ttl.Short != 10e9 {
		t.Fatalf("Short default = %s, want 10s", ttl.Short)
	}
	if ttl.Medium.String() != "1m0s" {
		t.Fatalf("Medium default = %s, want 1m0s", ttl.Medium)
	}
	if ttl.Long.String() != "5m0s" {
		t.Fatalf("Long default = %s, want 5m0s", ttl.Long)
	}
}

func TestTTLSet_Scaled(t *testing.T) {
	ttl := TTLSet{Medium: 60e9}
	if got, want := ttl.Scaled(TTLMedium, 0.5).String(), "30s"; got != want {
		t.Fatalf("Scaled = %s, want %s", got, want)
	}
}

func TestBuildKeyWithSuffix(t *testing.T) {
	if got, want := BuildKeyWithSuffix("a:b", "c"), "a:b:c"; got != want {
		t.Fatalf("BuildKeyWithSuffix = %q, want %q", got, want)
	}
	if got, want := BuildKeyWithSuffix("a:b", "  "), "a:b"; got != want {
		t.Fatalf("BuildKeyWithSuffix with blank suffix = %q, want %q", got, want)
	}
}
