package position

import (
	"testing"
	"time"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

func testMargin() MarginConfig {
	return MarginConfig{
		MaxLeverage: numeric.MustParseDec("30"),
		RfCap:       numeric.MustParseDec("0.02"),
		DnfCap:      numeric.MustParseDec("0.01"),
		CrankFee:    numeric.NewCollateral(numeric.MustParseDec("0.01")),
	}
}

func fixedLock(ratio string) LockCounterCollateral {
	return func(notionalAbs numeric.Dec) (numeric.Collateral, error) {
		d, err := notionalAbs.Mul(numeric.MustParseDec(ratio))
		if err != nil {
			return numeric.Collateral{}, err
		}
		return numeric.NewCollateral(d), nil
	}
}

func TestOpen_Long(t *testing.T) {
	tx, err := store.NewMem().Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	pos, err := Open(tx, 1, OpenParams{
		Owner:             "alice",
		Collateral:        numeric.NewCollateral(numeric.MustParseDec("100")),
		Leverage:          numeric.MustParseDec("5"),
		Long:              true,
		Price:             PricePoint{Timestamp: now, PriceNotional: numeric.NewPrice(numeric.MustParseDec("100"))},
		LiquifundingDelay: time.Hour,
		Margin:            testMargin(),
	}, fixedLock("0.1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !pos.IsLong() {
		t.Fatal("expected long position")
	}
	if pos.NotionalSize.Abs().Dec().Cmp(numeric.MustParseDec("500")) != 0 {
		t.Fatalf("notional = %s, want 500", pos.NotionalSize.Abs())
	}
	if pos.LiquidationPrice == nil || pos.TakeProfitPrice == nil {
		t.Fatal("expected liquidation and take-profit prices to be set")
	}
	if pos.LiquidationPrice.Cmp(*pos.TakeProfitPrice) >= 0 {
		t.Fatalf("liquidation price %s should be below take-profit price %s", pos.LiquidationPrice, pos.TakeProfitPrice)
	}
}

func TestOpen_RejectsLeverageAboveMax(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	now := time.Now()
	_, err := Open(tx, 1, OpenParams{
		Owner:             "alice",
		Collateral:        numeric.NewCollateral(numeric.MustParseDec("100")),
		Leverage:          numeric.MustParseDec("31"),
		Long:              true,
		Price:             PricePoint{Timestamp: now, PriceNotional: numeric.NewPrice(numeric.MustParseDec("100"))},
		LiquifundingDelay: time.Hour,
		Margin:            testMargin(),
	}, fixedLock("0.1"))
	if err == nil {
		t.Fatal("expected leverage-out-of-range error")
	}
}

func TestAddCollateral_RaisesActiveBalance(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	now := time.Now()
	price := numeric.NewPrice(numeric.MustParseDec("100"))
	_, err := Open(tx, 1, OpenParams{
		Owner:             "alice",
		Collateral:        numeric.NewCollateral(numeric.MustParseDec("100")),
		Leverage:          numeric.MustParseDec("5"),
		Long:              true,
		Price:             PricePoint{Timestamp: now, PriceNotional: price},
		LiquifundingDelay: time.Hour,
		Margin:            testMargin(),
	}, fixedLock("0.1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos, err := AddCollateral(tx, 1, numeric.NewCollateral(numeric.MustParseDec("50")), testMargin(), price)
	if err != nil {
		t.Fatalf("AddCollateral: %v", err)
	}
	if pos.ActiveCollateral.Cmp(numeric.NewCollateral(numeric.MustParseDec("150"))) != 0 {
		t.Fatalf("active_collateral = %s, want 150", pos.ActiveCollateral)
	}
}

func TestRemoveCollateral_RejectsBelowMargin(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	now := time.Now()
	price := numeric.NewPrice(numeric.MustParseDec("100"))
	_, err := Open(tx, 1, OpenParams{
		Owner:             "alice",
		Collateral:        numeric.NewCollateral(numeric.MustParseDec("100")),
		Leverage:          numeric.MustParseDec("5"),
		Long:              true,
		Price:             PricePoint{Timestamp: now, PriceNotional: price},
		LiquifundingDelay: time.Hour,
		Margin:            testMargin(),
	}, fixedLock("0.1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := RemoveCollateral(tx, 1, numeric.NewCollateral(numeric.MustParseDec("99")), testMargin(), price); err == nil {
		t.Fatal("expected insufficient-margin rejection")
	}
}

func TestCloseUser_RejectsWrongOwner(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	now := time.Now()
	_, err := Open(tx, 1, OpenParams{
		Owner:             "alice",
		Collateral:        numeric.NewCollateral(numeric.MustParseDec("100")),
		Leverage:          numeric.MustParseDec("5"),
		Long:              true,
		Price:             PricePoint{Timestamp: now, PriceNotional: numeric.NewPrice(numeric.MustParseDec("100"))},
		LiquifundingDelay: time.Hour,
		Margin:            testMargin(),
	}, fixedLock("0.1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := CloseUser(tx, 1, "mallory"); err == nil {
		t.Fatal("expected auth error for non-owner close")
	}
}
