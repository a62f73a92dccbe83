package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMem_MultiGet(t *testing.T) {
	m := NewMem()
	tx, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, tx.Set("b", StringKey("a"), []byte("1")))
	require.NoError(t, tx.Set("b", StringKey("c"), []byte("3")))
	require.NoError(t, tx.Commit())

	tx, err = m.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := tx.MultiGet("b", []Key{StringKey("a"), StringKey("b"), StringKey("c")})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got[string(StringKey("a"))])
	assert.Equal(t, []byte("3"), got[string(StringKey("c"))])
	_, present := got[string(StringKey("b"))]
	assert.False(t, present)
}

func TestScoped_MultiGet(t *testing.T) {
	m := NewMem()
	tx, err := m.Begin()
	require.NoError(t, err)
	scoped := Scoped(tx, "market1")

	require.NoError(t, scoped.Set("bal", StringKey("alice"), []byte("10")))
	require.NoError(t, tx.Commit())

	tx, err = m.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	scoped = Scoped(tx, "market1")

	got, err := scoped.MultiGet("bal", []Key{StringKey("alice"), StringKey("bob")})
	require.NoError(t, err)
	assert.Equal(t, []byte("10"), got[string(StringKey("alice"))])
	assert.Len(t, got, 1)
}
