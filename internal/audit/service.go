package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
)

// Entity types written to the audit log.
const (
	EntityProduct         = "product"
	EntityBatch           = "batch"
	EntityCustomer        = "customer"
	EntitySalesOrder      = "sales_order"
	EntityDeliveryChallan = "delivery_challan"
	EntityMaterialReturn  = "material_return"
	EntityInvoice         = "invoice"
	EntityPayment         = "payment"
	EntityJournalEntry    = "journal_entry"
	EntityAppointment     = "appointment"
	EntityUser            = "user"
)

var (
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
	ErrEntityInUse   = errors.New("entity is referenced by other records")
)

type LogOptions struct {
	Actor       auth.Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog inserts the log through db, so passing a transaction makes the log
// part of the same commit.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// jsonb needs "null" rather than an empty string
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.Actor.ID,
		UserName:    opts.Actor.Name,
		UserRole:    opts.Actor.Role,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}

// UndoLog reverts a master-data change (products and customers). Stock and
// money documents are corrected with compensating documents instead.
func UndoLog(db *gorm.DB, logID uint, actor auth.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var log models.AuditLog
		if err := tx.First(&log, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("log not found: %w", err)
		}
		if log.IsUndone {
			return ErrAlreadyUndone
		}
		if log.EntityType != EntityProduct && log.EntityType != EntityCustomer {
			return ErrNotUndoable
		}

		switch log.Action {
		case models.AuditActionCreate:
			if err := deleteEntity(tx, log.EntityType, log.EntityID); err != nil {
				return err
			}
		case models.AuditActionUpdate:
			if err := restoreEntity(tx, log.EntityType, log.EntityID, log.BeforeData); err != nil {
				return fmt.Errorf("entity could not be restored: %w", err)
			}
		case models.AuditActionDelete:
			if err := recreateEntity(tx, log.EntityType, log.BeforeData); err != nil {
				return fmt.Errorf("entity could not be recreated: %w", err)
			}
		case models.AuditActionApprove, models.AuditActionReject, models.AuditActionUndo:
			return ErrNotUndoable
		default:
			return ErrNotUndoable
		}

		now := time.Now()
		log.IsUndone = true
		log.UndoneBy = &actor.ID
		log.UndoneAt = &now
		if err := tx.Save(&log).Error; err != nil {
			return fmt.Errorf("log could not be updated: %w", err)
		}

		undoLog := models.AuditLog{
			UserID:      actor.ID,
			UserName:    actor.Name,
			UserRole:    actor.Role,
			EntityType:  log.EntityType,
			EntityID:    log.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("Undone: %s", log.Description),
			BeforeData:  log.AfterData,
			AfterData:   log.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undoLog).Error; err != nil {
			return fmt.Errorf("undo log could not be saved: %w", err)
		}
		return nil
	})
}

func deleteEntity(tx *gorm.DB, entityType string, entityID uint) error {
	var refs int64
	switch entityType {
	case EntityProduct:
		if err := tx.Raw(`SELECT
			(SELECT COUNT(*) FROM batches WHERE product_id = ?) +
			(SELECT COUNT(*) FROM invoice_items WHERE product_id = ?)`, entityID, entityID).
			Scan(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrEntityInUse
		}
		return tx.Delete(&models.Product{}, "id = ?", entityID).Error
	case EntityCustomer:
		if err := tx.Raw(`SELECT
			(SELECT COUNT(*) FROM invoices WHERE customer_id = ?) +
			(SELECT COUNT(*) FROM delivery_challans WHERE customer_id = ?)`, entityID, entityID).
			Scan(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrEntityInUse
		}
		return tx.Delete(&models.Customer{}, "id = ?", entityID).Error
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

func recreateEntity(tx *gorm.DB, entityType string, dataJSON string) error {
	switch entityType {
	case EntityProduct:
		var p models.Product
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		p.ID = 0
		return tx.Create(&p).Error
	case EntityCustomer:
		var cust models.Customer
		if err := json.Unmarshal([]byte(dataJSON), &cust); err != nil {
			return err
		}
		cust.ID = 0
		return tx.Create(&cust).Error
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

func restoreEntity(tx *gorm.DB, entityType string, entityID uint, dataJSON string) error {
	switch entityType {
	case EntityProduct:
		var p models.Product
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		return tx.Model(&models.Product{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":       p.Name,
			"sku":        p.SKU,
			"pack_type":  p.PackType,
			"pack_size":  p.PackSize,
			"unit_price": p.UnitPrice,
			"is_active":  p.IsActive,
		}).Error
	case EntityCustomer:
		var cust models.Customer
		if err := json.Unmarshal([]byte(dataJSON), &cust); err != nil {
			return err
		}
		return tx.Model(&models.Customer{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":         cust.Name,
			"phone":        cust.Phone,
			"email":        cust.Email,
			"address":      cust.Address,
			"license_no":   cust.LicenseNo,
			"credit_limit": cust.CreditLimit,
			"is_active":    cust.IsActive,
		}).Error
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}
