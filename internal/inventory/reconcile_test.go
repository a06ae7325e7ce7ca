package inventory

import (
	"testing"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func line(batchID uint, qty int) models.DispatchLineItem {
	return models.DispatchLineItem{ProductID: 1, BatchID: batchID, Quantity: qty}
}

func TestNetAdjustmentsIncrease(t *testing.T) {
	// [batch A qty 20] -> [batch A qty 35] consumes 15 more
	adj := NetAdjustments(
		[]models.DispatchLineItem{line(1, 20)},
		[]models.DispatchLineItem{line(1, 35)},
	)
	assert.Equal(t, Adjustments{1: -15}, adj)
}

func TestNetAdjustmentsNoOpEditIsZero(t *testing.T) {
	items := []models.DispatchLineItem{line(1, 20), line(2, 5), line(1, 3)}
	same := []models.DispatchLineItem{line(2, 5), line(1, 3), line(1, 20)}

	adj := NetAdjustments(items, same)
	assert.True(t, adj.IsZero())
	assert.Len(t, adj, 2, "every touched batch is reported")
	assert.Empty(t, adj.NonZero())
}

func TestNetAdjustmentsBatchSwap(t *testing.T) {
	adj := NetAdjustments(
		[]models.DispatchLineItem{line(1, 10), line(2, 4)},
		[]models.DispatchLineItem{line(2, 6), line(3, 8)},
	)
	assert.Equal(t, Adjustments{1: 10, 2: -2, 3: -8}, adj)
	assert.Equal(t, []uint{1, 2, 3}, adj.BatchIDs())
}

func TestDispatchAndRestoreAreInverse(t *testing.T) {
	items := []models.DispatchLineItem{line(4, 7), line(5, 2), line(4, 1)}
	out := DispatchAdjustments(items)
	back := RestoreAdjustments(items)

	assert.Equal(t, Adjustments{4: -8, 5: -2}, out)
	for id, d := range out {
		assert.Equal(t, -d, back[id])
	}
}
