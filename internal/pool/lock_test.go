package pool

import (
	"testing"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

func TestLockCounterCollateral_MovesUnlockedToLocked(t *testing.T) {
	tx, err := store.NewMem().Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := setTotals(tx, Totals{Unlocked: numeric.NewCollateral(numeric.MustParseDec("1000"))}); err != nil {
		t.Fatalf("setTotals: %v", err)
	}

	locked, err := LockCounterCollateral(tx, numeric.MustParseDec("500"), numeric.MustParseDec("25"))
	if err != nil {
		t.Fatalf("LockCounterCollateral: %v", err)
	}
	if locked.Cmp(numeric.NewCollateral(numeric.MustParseDec("20"))) != 0 {
		t.Fatalf("locked = %s, want 20", locked)
	}

	totals, err := GetTotals(tx)
	if err != nil {
		t.Fatalf("GetTotals: %v", err)
	}
	if totals.Locked.Cmp(locked) != 0 {
		t.Fatalf("totals.Locked = %s, want %s", totals.Locked, locked)
	}
	if totals.Unlocked.Cmp(numeric.NewCollateral(numeric.MustParseDec("980"))) != 0 {
		t.Fatalf("totals.Unlocked = %s, want 980", totals.Unlocked)
	}
}

func TestLockCounterCollateral_RejectsInsufficientLiquidity(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	if err := setTotals(tx, Totals{Unlocked: numeric.NewCollateral(numeric.MustParseDec("10"))}); err != nil {
		t.Fatalf("setTotals: %v", err)
	}
	if _, err := LockCounterCollateral(tx, numeric.MustParseDec("500"), numeric.MustParseDec("25")); err == nil {
		t.Fatal("expected insufficient-liquidity error")
	}
}

func TestUnlockCounterCollateral_RoundTrips(t *testing.T) {
	tx, _ := store.NewMem().Begin()
	if err := setTotals(tx, Totals{Unlocked: numeric.NewCollateral(numeric.MustParseDec("1000"))}); err != nil {
		t.Fatalf("setTotals: %v", err)
	}
	locked, err := LockCounterCollateral(tx, numeric.MustParseDec("500"), numeric.MustParseDec("25"))
	if err != nil {
		t.Fatalf("LockCounterCollateral: %v", err)
	}
	if err := UnlockCounterCollateral(tx, locked); err != nil {
		t.Fatalf("UnlockCounterCollateral: %v", err)
	}
	totals, err := GetTotals(tx)
	if err != nil {
		t.Fatalf("GetTotals: %v", err)
	}
	if totals.Locked.Cmp(numeric.NewCollateral(numeric.Zero())) != 0 {
		t.Fatalf("totals.Locked = %s, want 0", totals.Locked)
	}
	if totals.Unlocked.Cmp(numeric.NewCollateral(numeric.MustParseDec("1000"))) != 0 {
		t.Fatalf("totals.Unlocked = %s, want 1000", totals.Unlocked)
	}
}
