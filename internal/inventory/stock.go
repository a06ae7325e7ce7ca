package inventory

import (
	"fmt"
	"time"

	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockBatches loads the batches FOR UPDATE inside tx.
func LockBatches(tx *gorm.DB, ids []uint) ([]models.Batch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var batches []models.Batch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	if len(batches) != len(ids) {
		return nil, ErrBatchNotFound
	}
	return batches, nil
}

// ProductBatches returns the batches of a product that can still be sold on today.
func ProductBatches(tx *gorm.DB, productID uint, today time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	err := tx.Where("product_id = ?", productID).
		Where("current_stock > reserved_stock").
		Where("expiry_date IS NULL OR expiry_date >= ?", today.Format("2006-01-02")).
		Order("import_date, id").
		Find(&batches).Error
	return batches, err
}

// LockProductBatches is ProductBatches with the rows locked FOR UPDATE, for
// callers that reserve or ship from the result.
func LockProductBatches(tx *gorm.DB, productID uint, today time.Time) ([]models.Batch, error) {
	return ProductBatches(tx.Clauses(clause.Locking{Strength: "UPDATE"}), productID, today)
}

// AdjustStock adds delta to current_stock. A negative delta only succeeds
// while the batch has that much available; the guard lives in the UPDATE so
// a concurrent writer cannot push the batch below its reservations.
func AdjustStock(tx *gorm.DB, batchID uint, delta int) error {
	if delta == 0 {
		return nil
	}
	q := tx.Model(&models.Batch{}).Where("id = ?", batchID)
	if delta < 0 {
		q = q.Where("current_stock - reserved_stock >= ?", -delta)
	}
	res := q.Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %d: %w", batchID, ErrInsufficientStock)
	}
	return nil
}

// ApplyAdjustments writes every non-zero adjustment in batch id order and
// stops at the first failure; the caller's transaction rolls back the rest.
func ApplyAdjustments(tx *gorm.DB, adj Adjustments) error {
	nz := adj.NonZero()
	for _, id := range nz.BatchIDs() {
		if err := AdjustStock(tx, id, nz[id]); err != nil {
			return err
		}
	}
	return nil
}

// Reserve holds qty of the batch for a sales order.
func Reserve(tx *gorm.DB, batchID uint, qty int) error {
	res := tx.Model(&models.Batch{}).
		Where("id = ? AND current_stock - reserved_stock >= ?", batchID, qty).
		Update("reserved_stock", gorm.Expr("reserved_stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %d: %w", batchID, ErrInsufficientStock)
	}
	return nil
}

func ReleaseReservation(tx *gorm.DB, batchID uint, qty int) error {
	if qty == 0 {
		return nil
	}
	res := tx.Model(&models.Batch{}).
		Where("id = ? AND reserved_stock >= ?", batchID, qty).
		Update("reserved_stock", gorm.Expr("reserved_stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %d: %w", batchID, ErrReservation)
	}
	return nil
}

// DeductAndRelease ships qty units of which `release` were reserved for the
// order: both counters move in one statement.
func DeductAndRelease(tx *gorm.DB, batchID uint, qty, release int) error {
	if release == 0 {
		return AdjustStock(tx, batchID, -qty)
	}
	res := tx.Model(&models.Batch{}).
		Where("id = ? AND reserved_stock >= ?", batchID, release).
		Where("current_stock - reserved_stock + ? >= ?", release, qty).
		Updates(map[string]any{
			"current_stock":  gorm.Expr("current_stock - ?", qty),
			"reserved_stock": gorm.Expr("reserved_stock - ?", release),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %d: %w", batchID, ErrInsufficientStock)
	}
	return nil
}

// Today is the calendar day used for expiry checks.
func Today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
