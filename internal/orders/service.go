package orders

import (
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
)

type ItemInput struct {
	ProductID uint
	Quantity  int

	// BatchID pins the reservation to one batch; zero lets FIFO choose.
	BatchID uint
}

type CreateInput struct {
	CustomerID uint
	OrderDate  time.Time
	Note       string
	Items      []ItemInput
}

// CreateOrder stores the order and reserves its stock in one transaction.
// A product line may be split across several batches.
func CreateOrder(db *gorm.DB, actor auth.Actor, in CreateInput, today time.Time) (*models.SalesOrder, error) {
	order := models.SalesOrder{
		OrderNumber: models.NewDocumentNumber(models.PrefixOrder, in.OrderDate),
		CustomerID:  in.CustomerID,
		OrderDate:   in.OrderDate,
		Status:      models.OrderPendingDelivery,
		Note:        in.Note,
		CreatedBy:   actor.ID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		err := tx.First(&customer, in.CustomerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !customer.IsActive) {
			return ErrCustomerInvalid
		}
		if err != nil {
			return err
		}

		for i, item := range in.Items {
			allocs, err := reserveItem(tx, item, today)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			for _, a := range allocs {
				order.Items = append(order.Items, models.SalesOrderItem{
					ProductID:   item.ProductID,
					BatchID:     a.BatchID,
					OrderedQty:  a.Quantity,
					ReservedQty: a.Quantity,
				})
			}
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntitySalesOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: "Sales order created: " + order.OrderNumber,
			After:       order,
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func reserveItem(tx *gorm.DB, item ItemInput, today time.Time) ([]inventory.Allocation, error) {
	if item.BatchID != 0 {
		batches, err := inventory.LockBatches(tx, []uint{item.BatchID})
		if err != nil {
			return nil, err
		}
		b := batches[0]
		if b.ProductID != item.ProductID {
			return nil, inventory.ErrBatchMismatch
		}
		if b.Expired(today) {
			return nil, inventory.ErrBatchExpired
		}
		if err := inventory.Reserve(tx, b.ID, item.Quantity); err != nil {
			return nil, err
		}
		return []inventory.Allocation{{BatchID: b.ID, BatchNumber: b.BatchNumber, Quantity: item.Quantity, ExpiryDate: b.ExpiryDate}}, nil
	}

	batches, err := inventory.LockProductBatches(tx, item.ProductID, today)
	if err != nil {
		return nil, err
	}
	plan := inventory.PlanFIFO(batches, item.ProductID, item.Quantity, today)
	if len(plan.Allocations) == 0 {
		return nil, inventory.ErrNoBatchAvailable
	}
	if !plan.Complete() {
		return nil, fmt.Errorf("short by %d units: %w", plan.Shortfall, inventory.ErrInsufficientStock)
	}
	for _, a := range plan.Allocations {
		if err := inventory.Reserve(tx, a.BatchID, a.Quantity); err != nil {
			return nil, err
		}
	}
	return plan.Allocations, nil
}

// CancelOrder releases every outstanding reservation. Orders with deliveries
// cannot be cancelled.
func CancelOrder(db *gorm.DB, actor auth.Actor, orderID uint) (*models.SalesOrder, error) {
	var order *models.SalesOrder
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = LockOrder(tx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case models.OrderPendingDelivery:
		case models.OrderPartiallyDelivered:
			return ErrOrderDelivered
		case models.OrderDelivered, models.OrderCancelled:
			return ErrOrderClosed
		default:
			return fmt.Errorf("order %d has unknown status %q", order.ID, order.Status)
		}
		before := *order
		before.Items = append([]models.SalesOrderItem(nil), order.Items...)

		for i := range order.Items {
			it := &order.Items[i]
			if err := inventory.ReleaseReservation(tx, it.BatchID, it.ReservedQty); err != nil {
				return err
			}
			it.ReservedQty = 0
		}
		if err := SaveReservations(tx, order.Items); err != nil {
			return err
		}
		order.Status = models.OrderCancelled
		if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("status", order.Status).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntitySalesOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: "Sales order cancelled: " + order.OrderNumber,
			Before:      before,
			After:       order,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// IsNotFound reports errors that should surface as 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
