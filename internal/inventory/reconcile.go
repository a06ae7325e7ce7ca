package inventory

import (
	"sort"

	"pharmadist-backend/internal/models"
)

// Adjustments maps batch id to a signed change of current_stock.
type Adjustments map[uint]int

func (a Adjustments) BatchIDs() []uint {
	ids := make([]uint, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a Adjustments) NonZero() Adjustments {
	out := make(Adjustments, len(a))
	for id, d := range a {
		if d != 0 {
			out[id] = d
		}
	}
	return out
}

func (a Adjustments) IsZero() bool {
	for _, d := range a {
		if d != 0 {
			return false
		}
	}
	return true
}

func sumByBatch(items []models.DispatchLineItem) map[uint]int {
	out := make(map[uint]int)
	for _, it := range items {
		out[it.BatchID] += it.Quantity
	}
	return out
}

// NetAdjustments returns, per touched batch, (sum of original quantities) -
// (sum of updated quantities). Negative means more stock leaves the batch.
// Every batch on either side gets an entry, zero included.
func NetAdjustments(original, updated []models.DispatchLineItem) Adjustments {
	adj := make(Adjustments)
	for id, q := range sumByBatch(original) {
		adj[id] += q
	}
	for id, q := range sumByBatch(updated) {
		adj[id] -= q
	}
	return adj
}

// DispatchAdjustments is the stock effect of creating a challan.
func DispatchAdjustments(items []models.DispatchLineItem) Adjustments {
	return NetAdjustments(nil, items)
}

// RestoreAdjustments puts back everything a set of lines took out.
func RestoreAdjustments(items []models.DispatchLineItem) Adjustments {
	return NetAdjustments(items, nil)
}
