package copytrading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpvenue/internal/numeric"
	"perpvenue/internal/store"
)

func TestGetBalances_BatchFetchesAndSkipsMissing(t *testing.T) {
	m := store.NewMem()
	tx, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, SetBalance(tx, DepositorBalance{Depositor: "alice", Token: "BTC-PERP", Shares: numeric.NewLpToken(numeric.MustParseDec("10"))}))
	require.NoError(t, SetBalance(tx, DepositorBalance{Depositor: "bob", Token: "BTC-PERP", Shares: numeric.NewLpToken(numeric.MustParseDec("5"))}))
	require.NoError(t, tx.Commit())

	tx, err = m.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := GetBalances(tx, "BTC-PERP", []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got["alice"].Shares.Dec().Equal(numeric.MustParseDec("10")))
	assert.True(t, got["bob"].Shares.Dec().Equal(numeric.MustParseDec("5")))
	_, ok := got["carol"]
	assert.False(t, ok)
}
