package inventory

import (
	"testing"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerApplyIsAllOrNothing(t *testing.T) {
	l := NewLedger([]models.Batch{
		{ID: 1, ProductID: 1, BatchNumber: "A", CurrentStock: 20, ReservedStock: 5},
		{ID: 2, ProductID: 1, BatchNumber: "B", CurrentStock: 10},
	})

	err := l.Apply(Adjustments{1: -10, 2: -11})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 15, l.Available(1), "first batch must be untouched after a failed apply")
	assert.Equal(t, 10, l.Available(2))

	require.NoError(t, l.Apply(Adjustments{1: -15, 2: 4}))
	assert.Equal(t, 0, l.Available(1))
	assert.Equal(t, 14, l.Available(2))
}

func TestLedgerUnknownBatch(t *testing.T) {
	l := NewLedger(nil)
	assert.ErrorIs(t, l.Check(Adjustments{3: 1}), ErrBatchNotFound)
}

func TestLedgerForProduct(t *testing.T) {
	l := NewLedger([]models.Batch{
		{ID: 5, ProductID: 2},
		{ID: 3, ProductID: 1},
		{ID: 1, ProductID: 1},
	})
	got := l.ForProduct(1)
	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].ID)
	assert.Equal(t, uint(3), got[1].ID)
}

func TestLedgerReleaseMakesReservedStockAvailable(t *testing.T) {
	l := NewLedger([]models.Batch{{ID: 1, BatchNumber: "A", CurrentStock: 30, ReservedStock: 30}})

	assert.ErrorIs(t, l.Check(Adjustments{1: -10}), ErrInsufficientStock)

	require.NoError(t, l.Release(1, 10))
	require.NoError(t, l.Apply(Adjustments{1: -10}))
	assert.Equal(t, 0, l.Available(1))

	assert.ErrorIs(t, l.Release(1, 50), ErrReservation)
	assert.ErrorIs(t, l.Release(9, 1), ErrBatchNotFound)
}
