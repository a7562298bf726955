package stock

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveConfirmConservesQuantities(t *testing.T) {
	it, err := NewItem("1", "100", 10, "v1")
	require.NoError(t, err)

	require.NoError(t, it.Reserve(4))
	assert.Equal(t, 4, it.QtyReserved)

	assert.ErrorIs(t, it.Reserve(7), ErrInsufficientStock)
	assert.Equal(t, 4, it.QtyReserved)

	require.NoError(t, it.Confirm(4))
	assert.Equal(t, 6, it.QtyAvailable)
	assert.Equal(t, 0, it.QtyReserved)
	assert.Equal(t, 1, it.OrderCount)
}

func TestReserveCancelRestoresReserved(t *testing.T) {
	it, _ := NewItem("1", "100", 10, "v1")
	require.NoError(t, it.Reserve(2))
	before := *it

	require.NoError(t, it.Reserve(5))
	require.NoError(t, it.Cancel(5))
	assert.Equal(t, before.QtyReserved, it.QtyReserved)
	assert.Equal(t, before.QtyAvailable, it.QtyAvailable)
}

func TestConfirmBeyondReservedLeavesItemUntouched(t *testing.T) {
	it, _ := NewItem("1", "100", 10, "v1")
	require.NoError(t, it.Reserve(2))

	assert.ErrorIs(t, it.Confirm(3), ErrReservedUnderflow)
	assert.ErrorIs(t, it.Cancel(3), ErrReservedUnderflow)
	assert.Equal(t, 10, it.QtyAvailable)
	assert.Equal(t, 2, it.QtyReserved)
}

func TestReservedNeverExceedsAvailable(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	it, _ := NewItem("1", "100", 5, "v1")

	for i := 0; i < 5000; i++ {
		qty := rng.Intn(6)
		switch rng.Intn(4) {
		case 0:
			_ = it.Reserve(qty)
		case 1:
			_ = it.Confirm(qty)
		case 2:
			_ = it.Cancel(qty)
		case 3:
			_ = it.Increase(qty)
		}
		require.LessOrEqual(t, it.QtyReserved, it.QtyAvailable, "step %d", i)
		require.GreaterOrEqual(t, it.QtyReserved, 0, "step %d", i)
	}
}
