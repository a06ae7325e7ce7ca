package orders

import (
	"errors"
	"fmt"

	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound   = errors.New("sales order not found")
	ErrOrderClosed     = errors.New("sales order is delivered or cancelled")
	ErrOrderItem       = errors.New("line does not belong to the sales order")
	ErrOverDelivery    = errors.New("delivered quantity exceeds ordered quantity")
	ErrCustomerInvalid = errors.New("customer not found or inactive")
	ErrOrderDelivered  = errors.New("sales order already has deliveries")
)

// DeliveryStatus derives the order status from its items. Cancelled orders
// are handled by the caller.
func DeliveryStatus(items []models.SalesOrderItem) models.OrderStatus {
	if len(items) == 0 {
		return models.OrderPendingDelivery
	}
	complete := true
	started := false
	for _, it := range items {
		if it.DeliveredQty > 0 {
			started = true
		}
		if it.DeliveredQty < it.OrderedQty {
			complete = false
		}
	}
	switch {
	case complete:
		return models.OrderDelivered
	case started:
		return models.OrderPartiallyDelivered
	default:
		return models.OrderPendingDelivery
	}
}

// LockOrder loads an open order and its items FOR UPDATE.
func LockOrder(tx *gorm.DB, orderID uint) (*models.SalesOrder, error) {
	var order models.SalesOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// PlanReleases decides how much of each dispatch line is taken from the
// order's reservation. A line only consumes the reservation of its own order
// item when it ships from the reserved batch. items is updated in place.
func PlanReleases(items []models.SalesOrderItem, lines []models.DispatchLineItem) ([]int, error) {
	byID := make(map[uint]*models.SalesOrderItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	releases := make([]int, len(lines))
	for i, ln := range lines {
		if ln.SalesOrderItemID == nil {
			continue
		}
		it, ok := byID[*ln.SalesOrderItemID]
		if !ok || it.ProductID != ln.ProductID {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrOrderItem)
		}
		if it.BatchID != ln.BatchID {
			continue
		}
		r := min(it.ReservedQty, ln.Quantity)
		it.ReservedQty -= r
		releases[i] = r
	}
	return releases, nil
}

// CheckLines validates the order links of dispatch lines without touching
// the reservations.
func CheckLines(items []models.SalesOrderItem, lines []models.DispatchLineItem) error {
	_, err := PlanReleases(append([]models.SalesOrderItem(nil), items...), lines)
	return err
}

// SaveReservations writes back reserved_qty after PlanReleases.
func SaveReservations(tx *gorm.DB, items []models.SalesOrderItem) error {
	for _, it := range items {
		if err := tx.Model(&models.SalesOrderItem{}).Where("id = ?", it.ID).
			Update("reserved_qty", it.ReservedQty).Error; err != nil {
			return err
		}
	}
	return nil
}

// RefreshDelivery recomputes delivered_qty of every item from the dispatch
// lines of the order's challans that were not rejected, then sets the order
// status. Cancelled orders keep their status.
func RefreshDelivery(tx *gorm.DB, orderID uint) (models.OrderStatus, error) {
	order, err := LockOrder(tx, orderID)
	if err != nil {
		return "", err
	}

	type row struct {
		SalesOrderItemID uint
		Delivered        int
	}
	var rows []row
	err = tx.Model(&models.DispatchLineItem{}).
		Select("dispatch_line_items.sales_order_item_id, COALESCE(SUM(dispatch_line_items.quantity),0) AS delivered").
		Joins("JOIN delivery_challans ON delivery_challans.id = dispatch_line_items.challan_id").
		Where("delivery_challans.sales_order_id = ? AND delivery_challans.status <> ?", orderID, models.ApprovalRejected).
		Where("dispatch_line_items.sales_order_item_id IS NOT NULL").
		Group("dispatch_line_items.sales_order_item_id").
		Scan(&rows).Error
	if err != nil {
		return "", err
	}
	delivered := make(map[uint]int, len(rows))
	for _, r := range rows {
		delivered[r.SalesOrderItemID] = r.Delivered
	}

	for i := range order.Items {
		it := &order.Items[i]
		qty := delivered[it.ID]
		if qty > it.OrderedQty {
			return "", fmt.Errorf("order item %d: %w", it.ID, ErrOverDelivery)
		}
		if qty == it.DeliveredQty {
			continue
		}
		it.DeliveredQty = qty
		if err := tx.Model(&models.SalesOrderItem{}).Where("id = ?", it.ID).
			Update("delivered_qty", qty).Error; err != nil {
			return "", err
		}
	}

	status := order.Status
	switch order.Status {
	case models.OrderCancelled:
	case models.OrderPendingDelivery, models.OrderPartiallyDelivered, models.OrderDelivered:
		status = DeliveryStatus(order.Items)
	default:
		return "", fmt.Errorf("order %d has unknown status %q", order.ID, order.Status)
	}
	if status != order.Status {
		if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("status", status).Error; err != nil {
			return "", err
		}
	}
	return status, nil
}
