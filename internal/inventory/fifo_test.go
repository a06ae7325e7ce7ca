package inventory

import (
	"testing"
	"time"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestSelectFIFOPicksOldestImport(t *testing.T) {
	// Batch A (import 2024-01-01, stock 100, no expiry), Batch B (2024-02-01, stock 50)
	batches := []models.Batch{
		{ID: 2, ProductID: 1, BatchNumber: "B", CurrentStock: 50, ImportDate: date("2024-02-01")},
		{ID: 1, ProductID: 1, BatchNumber: "A", CurrentStock: 100, ImportDate: date("2024-01-01")},
	}

	got, ok := SelectFIFO(batches, 1, date("2024-03-01"))
	require.True(t, ok)
	assert.Equal(t, "A", got.BatchNumber)
}

func TestSelectFIFOSkipsIneligible(t *testing.T) {
	today := date("2024-06-15")
	batches := []models.Batch{
		{ID: 1, ProductID: 1, BatchNumber: "expired", CurrentStock: 10, ImportDate: date("2023-01-01"), ExpiryDate: datePtr("2024-06-14")},
		{ID: 2, ProductID: 1, BatchNumber: "reserved", CurrentStock: 10, ReservedStock: 10, ImportDate: date("2023-02-01")},
		{ID: 3, ProductID: 2, BatchNumber: "other-product", CurrentStock: 10, ImportDate: date("2023-03-01")},
		{ID: 4, ProductID: 1, BatchNumber: "empty", CurrentStock: 0, ImportDate: date("2023-04-01")},
		{ID: 5, ProductID: 1, BatchNumber: "expires-today", CurrentStock: 3, ImportDate: date("2023-05-01"), ExpiryDate: datePtr("2024-06-15")},
		{ID: 6, ProductID: 1, BatchNumber: "newest", CurrentStock: 30, ImportDate: date("2024-01-01")},
	}

	got, ok := SelectFIFO(batches, 1, today)
	require.True(t, ok)
	assert.Equal(t, "expires-today", got.BatchNumber)
}

func TestSelectFIFOTieBreaksOnID(t *testing.T) {
	batches := []models.Batch{
		{ID: 9, ProductID: 1, CurrentStock: 1, ImportDate: date("2024-01-01")},
		{ID: 4, ProductID: 1, CurrentStock: 1, ImportDate: date("2024-01-01")},
		{ID: 7, ProductID: 1, CurrentStock: 1, ImportDate: date("2024-01-01")},
	}
	got, ok := SelectFIFO(batches, 1, date("2024-01-02"))
	require.True(t, ok)
	assert.Equal(t, uint(4), got.ID)
}

func TestSelectFIFONone(t *testing.T) {
	batches := []models.Batch{
		{ID: 1, ProductID: 1, CurrentStock: 10, ImportDate: date("2023-01-01"), ExpiryDate: datePtr("2023-12-31")},
	}
	_, ok := SelectFIFO(batches, 1, date("2024-01-01"))
	assert.False(t, ok)

	_, ok = SelectFIFO(nil, 1, date("2024-01-01"))
	assert.False(t, ok)
}

// Property: the selected batch has the minimum import date of all eligible batches.
func TestSelectFIFOMinimumImportProperty(t *testing.T) {
	today := date("2024-05-01")
	batches := make([]models.Batch, 0, 40)
	for i := 1; i <= 40; i++ {
		b := models.Batch{
			ID:            uint(i),
			ProductID:     uint(1 + i%2),
			CurrentStock:  (i * 7) % 13,
			ReservedStock: (i * 3) % 5,
			ImportDate:    date("2023-01-01").AddDate(0, 0, (i*37)%200),
		}
		if b.ReservedStock > b.CurrentStock {
			b.ReservedStock = b.CurrentStock
		}
		if i%3 == 0 {
			b.ExpiryDate = datePtr("2024-04-30")
		} else if i%5 == 0 {
			b.ExpiryDate = datePtr("2025-01-01")
		}
		batches = append(batches, b)
	}

	for _, productID := range []uint{1, 2} {
		got, ok := SelectFIFO(batches, productID, today)
		require.True(t, ok)
		for _, b := range batches {
			if eligible(b, productID, today) {
				assert.False(t, b.ImportDate.Before(got.ImportDate), "batch %d is older than selected %d", b.ID, got.ID)
			}
		}
	}
}

func TestPlanFIFOSplitsAcrossBatches(t *testing.T) {
	batches := []models.Batch{
		{ID: 1, ProductID: 1, BatchNumber: "A", CurrentStock: 100, ReservedStock: 90, ImportDate: date("2024-01-01")},
		{ID: 2, ProductID: 1, BatchNumber: "B", CurrentStock: 50, ImportDate: date("2024-02-01")},
		{ID: 3, ProductID: 1, BatchNumber: "C", CurrentStock: 50, ImportDate: date("2024-03-01")},
	}

	plan := PlanFIFO(batches, 1, 30, date("2024-04-01"))
	assert.True(t, plan.Complete())
	assert.Equal(t, 30, plan.Allocated)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, Allocation{BatchID: 1, BatchNumber: "A", Quantity: 10}, plan.Allocations[0])
	assert.Equal(t, Allocation{BatchID: 2, BatchNumber: "B", Quantity: 20}, plan.Allocations[1])
}

func TestPlanFIFOShortfall(t *testing.T) {
	batches := []models.Batch{
		{ID: 1, ProductID: 1, CurrentStock: 5, ImportDate: date("2024-01-01")},
	}
	plan := PlanFIFO(batches, 1, 8, date("2024-04-01"))
	assert.False(t, plan.Complete())
	assert.Equal(t, 5, plan.Allocated)
	assert.Equal(t, 3, plan.Shortfall)
}
