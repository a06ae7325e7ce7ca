package dispatch

import (
	"errors"

	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/locks"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/orders"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type LineRequest struct {
	ProductID        uint  `json:"product_id" validate:"required"`
	BatchID          uint  `json:"batch_id" validate:"required"`
	SalesOrderItemID *uint `json:"sales_order_item_id"`
	Quantity         int   `json:"quantity" validate:"gt=0"`
	NumberOfPacks    int   `json:"number_of_packs" validate:"gte=0"`
}

type CreateChallanRequest struct {
	CustomerID   uint          `json:"customer_id" validate:"required"`
	SalesOrderID *uint         `json:"sales_order_id"`
	Date         string        `json:"date" validate:"required"`
	Note         string        `json:"note" validate:"max=255"`
	Items        []LineRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateChallanRequest struct {
	Date  string        `json:"date" validate:"required"`
	Note  string        `json:"note" validate:"max=255"`
	Items []LineRequest `json:"items" validate:"required,min=1,dive"`
}

func toLines(items []LineRequest) []LineInput {
	out := make([]LineInput, 0, len(items))
	for _, it := range items {
		out = append(out, LineInput{
			ProductID:        it.ProductID,
			BatchID:          it.BatchID,
			SalesOrderItemID: it.SalesOrderItemID,
			Quantity:         it.Quantity,
			NumberOfPacks:    it.NumberOfPacks,
		})
	}
	return out
}

func httpError(err error, funcName string, data any) error {
	if fe := approval.HTTPError(err); fe != nil {
		return fe
	}
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrChallanNotFound), errors.Is(err, orders.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, locks.ErrLocked):
		return fiber.NewError(fiber.StatusLocked, locks.ErrLocked.Error())
	case errors.Is(err, ErrChallanInUse), errors.Is(err, orders.ErrOrderClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrCustomerInvalid),
		errors.Is(err, ErrOrderCustomer),
		errors.Is(err, ErrOrderLineLink),
		errors.Is(err, orders.ErrOrderItem),
		errors.Is(err, orders.ErrOverDelivery),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrBatchNotFound),
		errors.Is(err, inventory.ErrBatchMismatch),
		errors.Is(err, inventory.ErrBatchExpired),
		errors.Is(err, inventory.ErrReservation):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError(config.GetLogger(), "dispatch", funcName, "delivery challan workflow failed", data, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Delivery challan could not be saved, no changes were applied")
}

// GET /api/delivery-challans?status=pending_approval&customer_id=1&sales_order_id=2
func ListChallansHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.DeliveryChallan{}).
			Preload("Customer").Preload("Items")

		if s := c.Query("status"); s != "" {
			status := models.ApprovalStatus(s)
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
		orderID, err := validation.QueryID(c, "sales_order_id")
		if err != nil {
			return err
		}
		if orderID > 0 {
			dbq = dbq.Where("sales_order_id = ?", orderID)
		}

		var challans []models.DeliveryChallan
		if err := dbq.Order("date DESC, id DESC").Find(&challans).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Delivery challans could not be listed")
		}
		return c.JSON(challans)
	}
}

// GET /api/delivery-challans/:id
func GetChallanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var ch models.DeliveryChallan
		if err := database.DB.WithContext(c.UserContext()).
			Preload("Customer").Preload("Items").
			First(&ch, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Delivery challan not found")
		}
		return c.JSON(ch)
	}
}

// POST /api/delivery-challans
func CreateChallanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateChallanRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		date, err := validation.ParseDate("date", body.Date)
		if err != nil {
			return err
		}

		ch, err := svc.Create(c.UserContext(), actor, CreateInput{
			CustomerID:   body.CustomerID,
			SalesOrderID: body.SalesOrderID,
			Date:         date,
			Note:         body.Note,
			Lines:        toLines(body.Items),
		})
		if err != nil {
			return httpError(err, "CreateChallanHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	}
}

// PUT /api/delivery-challans/:id
func UpdateChallanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateChallanRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		date, err := validation.ParseDate("date", body.Date)
		if err != nil {
			return err
		}

		ch, err := svc.Update(c.UserContext(), actor, id, UpdateInput{
			Date:  date,
			Note:  body.Note,
			Lines: toLines(body.Items),
		})
		if err != nil {
			return httpError(err, "UpdateChallanHandler", body)
		}
		return c.JSON(ch)
	}
}

// DELETE /api/delivery-challans/:id
func DeleteChallanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), actor, id); err != nil {
			return httpError(err, "DeleteChallanHandler", id)
		}
		return c.JSON(fiber.Map{"message": "Delivery challan deleted"})
	}
}

// POST /api/delivery-challans/:id/approve
// POST /api/delivery-challans/:id/reject
func DecideChallanHandler(svc *Service, action approval.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body approval.DecisionRequest
		if len(c.Body()) > 0 {
			if err := validation.ParseBody(c, &body); err != nil {
				return err
			}
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		ch, err := svc.Decide(c.UserContext(), actor, id, action, body.Reason)
		if err != nil {
			return httpError(err, "DecideChallanHandler", id)
		}
		return c.JSON(ch)
	}
}
