package inventory

import (
	"fmt"
	"sort"

	"pharmadist-backend/internal/models"
)

// Ledger is an in-memory snapshot of batches used to check a set of stock
// movements before any of them is written.
type Ledger struct {
	batches map[uint]models.Batch
}

func NewLedger(batches []models.Batch) *Ledger {
	l := &Ledger{batches: make(map[uint]models.Batch, len(batches))}
	for _, b := range batches {
		l.batches[b.ID] = b
	}
	return l
}

func (l *Ledger) Batch(id uint) (models.Batch, bool) {
	b, ok := l.batches[id]
	return b, ok
}

func (l *Ledger) Available(id uint) int {
	return l.batches[id].Available()
}

// ForProduct returns the product's batches ordered by id.
func (l *Ledger) ForProduct(productID uint) []models.Batch {
	var out []models.Batch
	for _, b := range l.batches {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check reports the first adjustment that would leave a batch with negative
// available stock, without changing the ledger.
func (l *Ledger) Check(adj Adjustments) error {
	for _, id := range adj.BatchIDs() {
		b, ok := l.batches[id]
		if !ok {
			return fmt.Errorf("batch %d: %w", id, ErrBatchNotFound)
		}
		if b.CurrentStock+adj[id] < b.ReservedStock {
			return fmt.Errorf("batch %s: %w (available %d, change %d)",
				b.BatchNumber, ErrInsufficientStock, b.Available(), adj[id])
		}
	}
	return nil
}

// Apply is all-or-nothing: nothing changes when Check fails.
func (l *Ledger) Apply(adj Adjustments) error {
	if err := l.Check(adj); err != nil {
		return err
	}
	for id, delta := range adj {
		b := l.batches[id]
		b.CurrentStock += delta
		l.batches[id] = b
	}
	return nil
}

// Release moves qty of a batch's reservation back to available in the
// snapshot, as shipping against a sales order does.
func (l *Ledger) Release(id uint, qty int) error {
	b, ok := l.batches[id]
	if !ok {
		return fmt.Errorf("batch %d: %w", id, ErrBatchNotFound)
	}
	if qty > b.ReservedStock {
		return fmt.Errorf("batch %s: %w", b.BatchNumber, ErrReservation)
	}
	b.ReservedStock -= qty
	l.batches[id] = b
	return nil
}
