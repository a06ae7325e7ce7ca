package inventory

import (
	"sort"
	"time"

	"pharmadist-backend/internal/models"
)

// eligible: same product, not expired on `today`, something left to sell.
func eligible(b models.Batch, productID uint, today time.Time) bool {
	return b.ProductID == productID && !b.Expired(today) && b.Available() > 0
}

// fifoLess orders by import date, then batch id.
func fifoLess(a, b models.Batch) bool {
	if !a.ImportDate.Equal(b.ImportDate) {
		return a.ImportDate.Before(b.ImportDate)
	}
	return a.ID < b.ID
}

// SelectFIFO returns the oldest eligible batch for the product. It does not
// look at the requested quantity; the caller checks it against Available.
func SelectFIFO(batches []models.Batch, productID uint, today time.Time) (models.Batch, bool) {
	var best models.Batch
	found := false
	for _, b := range batches {
		if !eligible(b, productID, today) {
			continue
		}
		if !found || fifoLess(b, best) {
			best = b
			found = true
		}
	}
	return best, found
}

type Allocation struct {
	BatchID     uint       `json:"batch_id"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

type Plan struct {
	ProductID   uint         `json:"product_id"`
	Requested   int          `json:"requested"`
	Allocated   int          `json:"allocated"`
	Shortfall   int          `json:"shortfall"`
	Allocations []Allocation `json:"allocations"`
}

func (p Plan) Complete() bool {
	return p.Shortfall == 0
}

// PlanFIFO spreads qty over eligible batches, oldest first.
func PlanFIFO(batches []models.Batch, productID uint, qty int, today time.Time) Plan {
	plan := Plan{ProductID: productID, Requested: qty}

	candidates := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if eligible(b, productID, today) {
			candidates = append(candidates, b)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return fifoLess(candidates[i], candidates[j])
	})

	remaining := qty
	for _, b := range candidates {
		if remaining <= 0 {
			break
		}
		take := min(b.Available(), remaining)
		plan.Allocations = append(plan.Allocations, Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			ExpiryDate:  b.ExpiryDate,
		})
		plan.Allocated += take
		remaining -= take
	}
	if remaining > 0 {
		plan.Shortfall = remaining
	}
	return plan
}
