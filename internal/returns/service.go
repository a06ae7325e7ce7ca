package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/locks"
	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrReturnNotFound   = errors.New("material return not found")
	ErrNoItems          = errors.New("a return needs at least one item")
	ErrChallanCustomer  = errors.New("challan belongs to another customer")
	ErrChallanPending   = errors.New("goods can only be returned against an approved challan")
	ErrExceedsDispatch  = errors.New("returned quantity exceeds what the challan dispatched")
	ErrChallanNotFound  = errors.New("delivery challan not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

type ItemInput struct {
	ProductID uint
	BatchID   uint
	Quantity  int
}

type Input struct {
	CustomerID uint
	ChallanID  *uint
	Date       time.Time
	Reason     string
	Items      []ItemInput
}

// ReturnableQuantities is what may still come back per batch: dispatched
// minus already returned on other live returns.
func ReturnableQuantities(dispatched []models.DispatchLineItem, returned []models.MaterialReturnItem) map[uint]int {
	out := make(map[uint]int)
	for _, ln := range dispatched {
		out[ln.BatchID] += ln.Quantity
	}
	for _, it := range returned {
		out[it.BatchID] -= it.Quantity
	}
	return out
}

// CheckReturnable fails on the first batch whose requested quantity is over
// the returnable quantity.
func CheckReturnable(returnable map[uint]int, items []ItemInput) error {
	want := make(map[uint]int)
	for _, it := range items {
		want[it.BatchID] += it.Quantity
	}
	for batchID, qty := range want {
		if qty > returnable[batchID] {
			return fmt.Errorf("batch %d: %w (returnable %d, requested %d)", batchID, ErrExceedsDispatch, max(returnable[batchID], 0), qty)
		}
	}
	return nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func lockKey(id uint) string {
	return locks.DocumentKey(audit.EntityMaterialReturn, id)
}

func lockReturn(tx *gorm.DB, id uint) (*models.MaterialReturn, error) {
	var mr models.MaterialReturn
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&mr, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReturnNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("return_id = ?", mr.ID).Order("id").Find(&mr.Items).Error; err != nil {
		return nil, err
	}
	return &mr, nil
}

// validate checks products, batches and, for a challan-linked return, the
// dispatched quantities. excludeID skips the return being edited.
func validate(tx *gorm.DB, in Input, excludeID uint) ([]models.MaterialReturnItem, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	var customer models.Customer
	if err := tx.First(&customer, in.CustomerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	ids := make([]uint, 0, len(in.Items))
	seen := make(map[uint]bool)
	for _, it := range in.Items {
		if !seen[it.BatchID] {
			seen[it.BatchID] = true
			ids = append(ids, it.BatchID)
		}
	}
	var batches []models.Batch
	if err := tx.Where("id IN ?", ids).Find(&batches).Error; err != nil {
		return nil, err
	}
	ledger := inventory.NewLedger(batches)

	items := make([]models.MaterialReturnItem, 0, len(in.Items))
	for i, it := range in.Items {
		b, ok := ledger.Batch(it.BatchID)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", i+1, inventory.ErrBatchNotFound)
		}
		if b.ProductID != it.ProductID {
			return nil, fmt.Errorf("item %d: %w", i+1, inventory.ErrBatchMismatch)
		}
		items = append(items, models.MaterialReturnItem{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.Quantity})
	}

	if in.ChallanID == nil {
		return items, nil
	}

	var ch models.DeliveryChallan
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Preload("Items").First(&ch, *in.ChallanID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallanNotFound
		}
		return nil, err
	}
	if ch.CustomerID != in.CustomerID {
		return nil, ErrChallanCustomer
	}
	// an approved challan is final, so the dispatched quantities below cannot move
	switch ch.Status {
	case models.ApprovalApproved:
	case models.ApprovalPending, models.ApprovalRejected:
		return nil, ErrChallanPending
	default:
		return nil, fmt.Errorf("challan %d has unknown status %q", ch.ID, ch.Status)
	}

	var returned []models.MaterialReturnItem
	err = tx.Model(&models.MaterialReturnItem{}).
		Joins("JOIN material_returns ON material_returns.id = material_return_items.return_id").
		Where("material_returns.challan_id = ? AND material_returns.status <> ?", ch.ID, models.ApprovalRejected).
		Where("material_returns.id <> ?", excludeID).
		Find(&returned).Error
	if err != nil {
		return nil, err
	}
	if err := CheckReturnable(ReturnableQuantities(ch.Items, returned), in.Items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create records a pending return. Stock is untouched until approval.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in Input) (*models.MaterialReturn, error) {
	mr := models.MaterialReturn{
		ReturnNumber: models.NewDocumentNumber(models.PrefixReturn, in.Date),
		CustomerID:   in.CustomerID,
		ChallanID:    in.ChallanID,
		Date:         in.Date,
		Reason:       in.Reason,
		Status:       models.ApprovalPending,
		CreatedBy:    actor.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := validate(tx, in, 0)
		if err != nil {
			return err
		}
		mr.Items = items
		if err := tx.Create(&mr).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityMaterialReturn,
			EntityID:    mr.ID,
			Action:      models.AuditActionCreate,
			Description: "Material return created: " + mr.ReturnNumber,
			After:       mr,
		})
	})
	if err != nil {
		return nil, err
	}
	return &mr, nil
}

// Update replaces the items of a pending return. Customer and challan stay.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uint, in Input) (*models.MaterialReturn, error) {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var mr *models.MaterialReturn
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		mr, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := approval.RequirePending(mr.Status); err != nil {
			return err
		}
		before := *mr

		in.CustomerID = mr.CustomerID
		in.ChallanID = mr.ChallanID
		items, err := validate(tx, in, mr.ID)
		if err != nil {
			return err
		}
		if err := tx.Where("return_id = ?", mr.ID).Delete(&models.MaterialReturnItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ReturnID = mr.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		mr.Items = items
		mr.Date = in.Date
		mr.Reason = in.Reason
		if err := tx.Model(&models.MaterialReturn{}).Where("id = ?", mr.ID).
			Updates(map[string]any{"date": mr.Date, "reason": mr.Reason}).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityMaterialReturn,
			EntityID:    mr.ID,
			Action:      models.AuditActionUpdate,
			Description: "Material return updated: " + mr.ReturnNumber,
			Before:      before,
			After:       mr,
		})
	})
	if err != nil {
		return nil, err
	}
	return mr, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uint) error {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mr, err := lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := approval.RequirePending(mr.Status); err != nil {
			return err
		}
		if err := tx.Where("return_id = ?", mr.ID).Delete(&models.MaterialReturnItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.MaterialReturn{}, mr.ID).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityMaterialReturn,
			EntityID:    mr.ID,
			Action:      models.AuditActionDelete,
			Description: "Material return deleted: " + mr.ReturnNumber,
			Before:      mr,
		})
	})
}

// Decide approves or rejects a pending return. Approval puts every item's
// quantity back on its batch in the same transaction as the status change.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, id uint, action approval.Action, reason string) (*models.MaterialReturn, error) {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var mr *models.MaterialReturn
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		mr, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		next, err := approval.Transition(mr.Status, action, actor.Role, reason)
		if err != nil {
			return err
		}
		before := *mr

		now := time.Now()
		mr.Status = next
		updates := map[string]any{"status": next}
		logAction := models.AuditActionApprove
		switch next {
		case models.ApprovalApproved:
			restore := make(inventory.Adjustments)
			for _, it := range mr.Items {
				restore[it.BatchID] += it.Quantity
			}
			if _, err := inventory.LockBatches(tx, restore.BatchIDs()); err != nil {
				return err
			}
			if err := inventory.ApplyAdjustments(tx, restore); err != nil {
				return err
			}
			mr.ApprovedBy = &actor.ID
			mr.ApprovedAt = &now
			updates["approved_by"] = actor.ID
			updates["approved_at"] = now
		case models.ApprovalRejected:
			mr.RejectionReason = reason
			updates["rejection_reason"] = reason
			logAction = models.AuditActionReject
		case models.ApprovalPending:
			return fmt.Errorf("return %d: transition stayed pending", mr.ID)
		}

		if err := tx.Model(&models.MaterialReturn{}).Where("id = ?", mr.ID).Updates(updates).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityMaterialReturn,
			EntityID:    mr.ID,
			Action:      logAction,
			Description: fmt.Sprintf("Material return %s: %s", next, mr.ReturnNumber),
			Before:      before,
			After:       mr,
		})
	})
	if err != nil {
		return nil, err
	}
	return mr, nil
}
