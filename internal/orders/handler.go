package orders

import (
	"errors"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type OrderItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	BatchID   uint `json:"batch_id"`
	Quantity  int  `json:"quantity" validate:"gt=0"`
}

type CreateOrderRequest struct {
	CustomerID uint               `json:"customer_id" validate:"required"`
	OrderDate  string             `json:"order_date" validate:"required"`
	Note       string             `json:"note" validate:"max=255"`
	Items      []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func httpError(err error, funcName string, data any) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case IsNotFound(err):
		return fiber.NewError(fiber.StatusNotFound, "Sales order not found")
	case errors.Is(err, ErrCustomerInvalid):
		return fiber.NewError(fiber.StatusUnprocessableEntity, ErrCustomerInvalid.Error())
	case errors.Is(err, ErrOrderClosed), errors.Is(err, ErrOrderDelivered):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrNoBatchAvailable),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrBatchMismatch),
		errors.Is(err, inventory.ErrBatchExpired),
		errors.Is(err, inventory.ErrBatchNotFound):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError(config.GetLogger(), "orders", funcName, "sales order workflow failed", data, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Sales order could not be saved")
}

// GET /api/sales-orders?status=pending_delivery&customer_id=3
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.SalesOrder{}).
			Preload("Customer").Preload("Items")

		if s := c.Query("status"); s != "" {
			status := models.OrderStatus(s)
			if !status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
			}
			dbq = dbq.Where("status = ?", status)
		}
		customerID, err := validation.QueryID(c, "customer_id")
		if err != nil {
			return err
		}
		if customerID > 0 {
			dbq = dbq.Where("customer_id = ?", customerID)
		}

		var orders []models.SalesOrder
		if err := dbq.Order("order_date DESC, id DESC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sales orders could not be listed")
		}
		return c.JSON(orders)
	}
}

// GET /api/sales-orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var order models.SalesOrder
		if err := database.DB.WithContext(c.UserContext()).
			Preload("Customer").Preload("Items").
			First(&order, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sales order not found")
		}
		return c.JSON(order)
	}
}

// POST /api/sales-orders
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		orderDate, err := validation.ParseDate("order_date", body.OrderDate)
		if err != nil {
			return err
		}

		in := CreateInput{
			CustomerID: body.CustomerID,
			OrderDate:  orderDate,
			Note:       body.Note,
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, ItemInput{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.Quantity})
		}

		order, err := CreateOrder(database.DB.WithContext(c.UserContext()), actor, in, inventory.Today())
		if err != nil {
			return httpError(err, "CreateOrderHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// POST /api/sales-orders/:id/cancel
func CancelOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		order, err := CancelOrder(database.DB.WithContext(c.UserContext()), actor, id)
		if err != nil {
			return httpError(err, "CancelOrderHandler", id)
		}
		return c.JSON(order)
	}
}
