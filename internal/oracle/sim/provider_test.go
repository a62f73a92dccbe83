package sim

import (
	"context"
	"testing"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/pricepoint"
)

func TestProvider_SpotPrice(t *testing.T) {
	p := New()
	now := time.Now()
	point := pricepoint.Point{Timestamp: now, PriceNotional: numeric.NewPrice(numeric.MustParseDec("100")), PriceUsd: numeric.NewPrice(numeric.MustParseDec("100"))}
	p.SetPrice("BTC_USD", point)

	got, err := p.SpotPrice(context.Background(), "btc_usd", now)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if got.PriceNotional.Cmp(point.PriceNotional) != 0 {
		t.Fatalf("PriceNotional = %s, want %s", got.PriceNotional, point.PriceNotional)
	}
}

func TestProvider_SpotPrice_Unset(t *testing.T) {
	p := New()
	if _, err := p.SpotPrice(context.Background(), "ETH_USD", time.Now()); err == nil {
		t.Fatal("expected error for unset market")
	}
}

func TestProvider_Transfer(t *testing.T) {
	p := New()
	amount := numeric.NewCollateral(numeric.MustParseDec("42"))
	if err := p.Transfer(context.Background(), "dao", amount); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	transfers := p.Transfers()
	if len(transfers) != 1 || transfers[0].Recipient != "dao" {
		t.Fatalf("transfers = %+v", transfers)
	}
}

func TestProvider_QueryExternal_Default(t *testing.T) {
	p := New()
	resp, err := p.QueryExternal(context.Background(), "BTC_USD", []byte(`{"q":"status"}`))
	if err != nil {
		t.Fatalf("QueryExternal: %v", err)
	}
	if string(resp) != "null" {
		t.Fatalf("resp = %s, want null", resp)
	}
}
