package dispatch

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
	"pharmadist-backend/internal/orders"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChallanNotFound = errors.New("delivery challan not found")
	ErrNoLines         = errors.New("a challan needs at least one line")
	ErrCustomerInvalid = errors.New("customer not found or inactive")
	ErrOrderCustomer   = errors.New("sales order belongs to another customer")
	ErrOrderLineLink   = errors.New("order lines require a sales order on the challan")
	ErrChallanInUse    = errors.New("challan is referenced by an invoice or a material return")
)

type LineInput struct {
	ProductID        uint
	BatchID          uint
	SalesOrderItemID *uint
	Quantity         int
	NumberOfPacks    int
}

type CreateInput struct {
	CustomerID   uint
	SalesOrderID *uint
	Date         time.Time
	Note         string
	Lines        []LineInput
}

type UpdateInput struct {
	Date  time.Time
	Note  string
	Lines []LineInput
}

// Service runs challan workflows; every method is one database transaction.
type Service struct {
	db    *gorm.DB
	today func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, today: inventory.Today}
}

func lockKey(id uint) string {
	return locks.DocumentKey(audit.EntityDeliveryChallan, id)
}

func lockChallan(tx *gorm.DB, id uint) (*models.DeliveryChallan, error) {
	var ch models.DeliveryChallan
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ch, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChallanNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("challan_id = ?", ch.ID).Order("id").Find(&ch.Items).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// checkUnreferenced fails with ErrChallanInUse while an invoice or a material
// return points at the challan. Rejected returns count only when
// withRejected is set.
func checkUnreferenced(tx *gorm.DB, challanID uint, withRejected bool) error {
	var n int64
	if err := tx.Model(&models.Invoice{}).Where("challan_id = ?", challanID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrChallanInUse
	}
	q := tx.Model(&models.MaterialReturn{}).Where("challan_id = ?", challanID)
	if !withRejected {
		q = q.Where("status <> ?", models.ApprovalRejected)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrChallanInUse
	}
	return nil
}

func checkCustomer(tx *gorm.DB, id uint) error {
	var customer models.Customer
	err := tx.First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !customer.IsActive) {
		return ErrCustomerInvalid
	}
	return err
}

func batchIDs(lines []LineInput, extra []models.DispatchLineItem) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, ln := range lines {
		if !seen[ln.BatchID] {
			seen[ln.BatchID] = true
			ids = append(ids, ln.BatchID)
		}
	}
	for _, it := range extra {
		if !seen[it.BatchID] {
			seen[it.BatchID] = true
			ids = append(ids, it.BatchID)
		}
	}
	return ids
}

// buildLines checks each line against the locked batches and fills in the
// pack details from the product. Expiry is only checked for batches the
// document did not already ship from.
func buildLines(tx *gorm.DB, ledger *inventory.Ledger, in []LineInput, known map[uint]bool, today time.Time) ([]models.DispatchLineItem, error) {
	if len(in) == 0 {
		return nil, ErrNoLines
	}
	products := make(map[uint]models.Product)
	out := make([]models.DispatchLineItem, 0, len(in))
	for i, ln := range in {
		b, ok := ledger.Batch(ln.BatchID)
		if !ok {
			return nil, fmt.Errorf("line %d: %w", i+1, inventory.ErrBatchNotFound)
		}
		if b.ProductID != ln.ProductID {
			return nil, fmt.Errorf("line %d: %w", i+1, inventory.ErrBatchMismatch)
		}
		if !known[b.ID] && b.Expired(today) {
			return nil, fmt.Errorf("line %d: %w", i+1, inventory.ErrBatchExpired)
		}
		p, ok := products[ln.ProductID]
		if !ok {
			if err := tx.First(&p, ln.ProductID).Error; err != nil {
				return nil, err
			}
			products[p.ID] = p
		}
		packs := ln.NumberOfPacks
		if packs == 0 && p.PackSize > 0 {
			packs = (ln.Quantity + p.PackSize - 1) / p.PackSize
		}
		out = append(out, models.DispatchLineItem{
			ProductID:        ln.ProductID,
			BatchID:          ln.BatchID,
			SalesOrderItemID: ln.SalesOrderItemID,
			Quantity:         ln.Quantity,
			PackSize:         p.PackSize,
			PackType:         p.PackType,
			NumberOfPacks:    packs,
		})
	}
	return out, nil
}

// Create ships the lines: stock leaves the batches immediately and, for a
// challan against a sales order, the order's reservations are consumed and
// its delivery status promoted.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*models.DeliveryChallan, error) {
	ch := models.DeliveryChallan{
		ChallanNumber: models.NewDocumentNumber(models.PrefixChallan, in.Date),
		CustomerID:    in.CustomerID,
		SalesOrderID:  in.SalesOrderID,
		Date:          in.Date,
		Status:        models.ApprovalPending,
		Note:          in.Note,
		CreatedBy:     actor.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCustomer(tx, in.CustomerID); err != nil {
			return err
		}

		var order *models.SalesOrder
		if in.SalesOrderID != nil {
			var err error
			order, err = orders.LockOrder(tx, *in.SalesOrderID)
			if err != nil {
				return err
			}
			switch order.Status {
			case models.OrderPendingDelivery, models.OrderPartiallyDelivered:
			case models.OrderDelivered, models.OrderCancelled:
				return orders.ErrOrderClosed
			default:
				return fmt.Errorf("order %d has unknown status %q", order.ID, order.Status)
			}
			if order.CustomerID != in.CustomerID {
				return ErrOrderCustomer
			}
		} else {
			for _, ln := range in.Lines {
				if ln.SalesOrderItemID != nil {
					return ErrOrderLineLink
				}
			}
		}

		batches, err := inventory.LockBatches(tx, batchIDs(in.Lines, nil))
		if err != nil {
			return err
		}
		ledger := inventory.NewLedger(batches)

		lines, err := buildLines(tx, ledger, in.Lines, nil, s.today())
		if err != nil {
			return err
		}

		releases := make([]int, len(lines))
		if order != nil {
			releases, err = orders.PlanReleases(order.Items, lines)
			if err != nil {
				return err
			}
			for i, r := range releases {
				if err := ledger.Release(lines[i].BatchID, r); err != nil {
					return err
				}
			}
		}
		if err := ledger.Apply(inventory.DispatchAdjustments(lines)); err != nil {
			return err
		}

		for i, ln := range lines {
			if err := inventory.DeductAndRelease(tx, ln.BatchID, ln.Quantity, releases[i]); err != nil {
				return err
			}
		}

		ch.Items = lines
		if err := tx.Create(&ch).Error; err != nil {
			return err
		}

		if order != nil {
			if err := orders.SaveReservations(tx, order.Items); err != nil {
				return err
			}
			if _, err := orders.RefreshDelivery(tx, order.ID); err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityDeliveryChallan,
			EntityID:    ch.ID,
			Action:      models.AuditActionCreate,
			Description: "Delivery challan created: " + ch.ChallanNumber,
			After:       ch,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Update replaces the line set of a pending challan. The net per-batch
// difference between the old and new lines is written to stock in the same
// transaction as the line replacement. A challan that is already invoiced or
// returned against cannot be edited.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uint, in UpdateInput) (*models.DeliveryChallan, error) {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var ch *models.DeliveryChallan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ch, err = lockChallan(tx, id)
		if err != nil {
			return err
		}
		if err := approval.RequirePending(ch.Status); err != nil {
			return err
		}
		if err := checkUnreferenced(tx, ch.ID, false); err != nil {
			return err
		}
		if ch.SalesOrderID == nil {
			for _, ln := range in.Lines {
				if ln.SalesOrderItemID != nil {
					return ErrOrderLineLink
				}
			}
		}
		before := *ch

		batches, err := inventory.LockBatches(tx, batchIDs(in.Lines, ch.Items))
		if err != nil {
			return err
		}
		ledger := inventory.NewLedger(batches)

		known := make(map[uint]bool, len(ch.Items))
		for _, it := range ch.Items {
			known[it.BatchID] = true
		}
		lines, err := buildLines(tx, ledger, in.Lines, known, s.today())
		if err != nil {
			return err
		}

		if ch.SalesOrderID != nil {
			order, err := orders.LockOrder(tx, *ch.SalesOrderID)
			if err != nil {
				return err
			}
			if err := orders.CheckLines(order.Items, lines); err != nil {
				return err
			}
		}

		adj := inventory.NetAdjustments(ch.Items, lines)
		if err := ledger.Apply(adj); err != nil {
			return err
		}
		if err := inventory.ApplyAdjustments(tx, adj); err != nil {
			return err
		}

		if err := tx.Where("challan_id = ?", ch.ID).Delete(&models.DispatchLineItem{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].ChallanID = ch.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		ch.Items = lines
		ch.Date = in.Date
		ch.Note = in.Note
		if err := tx.Model(&models.DeliveryChallan{}).Where("id = ?", ch.ID).
			Updates(map[string]any{"date": ch.Date, "note": ch.Note}).Error; err != nil {
			return err
		}

		if ch.SalesOrderID != nil {
			if _, err := orders.RefreshDelivery(tx, *ch.SalesOrderID); err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityDeliveryChallan,
			EntityID:    ch.ID,
			Action:      models.AuditActionUpdate,
			Description: "Delivery challan updated: " + ch.ChallanNumber,
			Before:      before,
			After:       ch,
		})
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Delete removes a pending challan. Shipped stock is not put back; a linked
// order's delivery status is derived again from its remaining challans.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uint) error {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := lockChallan(tx, id)
		if err != nil {
			return err
		}
		if err := approval.RequirePending(ch.Status); err != nil {
			return err
		}

		// rejected returns still point at the row
		if err := checkUnreferenced(tx, ch.ID, true); err != nil {
			return err
		}

		if err := tx.Where("challan_id = ?", ch.ID).Delete(&models.DispatchLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.DeliveryChallan{}, ch.ID).Error; err != nil {
			return err
		}
		if ch.SalesOrderID != nil {
			if _, err := orders.RefreshDelivery(tx, *ch.SalesOrderID); err != nil {
				return err
			}
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityDeliveryChallan,
			EntityID:    ch.ID,
			Action:      models.AuditActionDelete,
			Description: "Delivery challan deleted: " + ch.ChallanNumber,
			Before:      ch,
		})
	})
}

// Decide approves or rejects a pending challan. Rejection puts the shipped
// stock back and takes the challan out of its order's delivered quantities;
// it is refused while an invoice or a live return references the challan.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, id uint, action approval.Action, reason string) (*models.DeliveryChallan, error) {
	release, err := locks.Obtain(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var ch *models.DeliveryChallan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ch, err = lockChallan(tx, id)
		if err != nil {
			return err
		}
		next, err := approval.Transition(ch.Status, action, actor.Role, reason)
		if err != nil {
			return err
		}
		before := *ch

		now := time.Now()
		ch.Status = next
		updates := map[string]any{"status": next}
		logAction := models.AuditActionApprove
		switch next {
		case models.ApprovalApproved:
			ch.ApprovedBy = &actor.ID
			ch.ApprovedAt = &now
			updates["approved_by"] = actor.ID
			updates["approved_at"] = now
		case models.ApprovalRejected:
			ch.RejectionReason = reason
			updates["rejection_reason"] = reason
			logAction = models.AuditActionReject
			if err := checkUnreferenced(tx, ch.ID, false); err != nil {
				return err
			}
			if _, err := inventory.LockBatches(tx, batchIDs(nil, ch.Items)); err != nil {
				return err
			}
			if err := inventory.ApplyAdjustments(tx, inventory.RestoreAdjustments(ch.Items)); err != nil {
				return err
			}
		case models.ApprovalPending:
			return fmt.Errorf("challan %d: transition stayed pending", ch.ID)
		}

		if err := tx.Model(&models.DeliveryChallan{}).Where("id = ?", ch.ID).Updates(updates).Error; err != nil {
			return err
		}
		if next == models.ApprovalRejected && ch.SalesOrderID != nil {
			if _, err := orders.RefreshDelivery(tx, *ch.SalesOrderID); err != nil {
				return err
			}
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityDeliveryChallan,
			EntityID:    ch.ID,
			Action:      logAction,
			Description: fmt.Sprintf("Delivery challan %s: %s", next, ch.ChallanNumber),
			Before:      before,
			After:       ch,
		})
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}
