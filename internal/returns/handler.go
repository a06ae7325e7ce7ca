package returns

import (
	"errors"

	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/locks"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type ItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	BatchID   uint `json:"batch_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"gt=0"`
}

type ReturnRequest struct {
	CustomerID uint          `json:"customer_id"`
	ChallanID  *uint         `json:"challan_id"`
	Date       string        `json:"date" validate:"required"`
	Reason     string        `json:"reason" validate:"max=500"`
	Items      []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ReturnRequest) input() (Input, error) {
	date, err := validation.ParseDate("date", r.Date)
	if err != nil {
		return Input{}, err
	}
	in := Input{CustomerID: r.CustomerID, ChallanID: r.ChallanID, Date: date, Reason: r.Reason}
	for _, it := range r.Items {
		in.Items = append(in.Items, ItemInput{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.Quantity})
	}
	return in, nil
}

func httpError(err error, funcName string, data any) error {
	if fe := approval.HTTPError(err); fe != nil {
		return fe
	}
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrReturnNotFound), errors.Is(err, ErrChallanNotFound), errors.Is(err, ErrCustomerNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, locks.ErrLocked):
		return fiber.NewError(fiber.StatusLocked, locks.ErrLocked.Error())
	case errors.Is(err, ErrNoItems),
		errors.Is(err, ErrChallanCustomer),
		errors.Is(err, ErrChallanPending),
		errors.Is(err, ErrExceedsDispatch),
		errors.Is(err, inventory.ErrBatchNotFound),
		errors.Is(err, inventory.ErrBatchMismatch):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError(config.GetLogger(), "returns", funcName, "material return workflow failed", data, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Material return could not be saved, no changes were applied")
}

// GET /api/material-returns?status=pending_approval&customer_id=1
func ListReturnsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.MaterialReturn{}).Preload("Items")

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

		var list []models.MaterialReturn
		if err := dbq.Order("date DESC, id DESC").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Material returns could not be listed")
		}
		return c.JSON(list)
	}
}

// GET /api/material-returns/:id
func GetReturnHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var mr models.MaterialReturn
		if err := database.DB.WithContext(c.UserContext()).Preload("Items").First(&mr, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Material return not found")
		}
		return c.JSON(mr)
	}
}

// POST /api/material-returns
func CreateReturnHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ReturnRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		if body.CustomerID == 0 {
			return &validation.FieldsError{Fields: map[string]string{"customer_id": "required"}}
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		mr, err := svc.Create(c.UserContext(), actor, in)
		if err != nil {
			return httpError(err, "CreateReturnHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(mr)
	}
}

// PUT /api/material-returns/:id
// customer_id and challan_id in the body are ignored.
func UpdateReturnHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body ReturnRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		mr, err := svc.Update(c.UserContext(), actor, id, in)
		if err != nil {
			return httpError(err, "UpdateReturnHandler", body)
		}
		return c.JSON(mr)
	}
}

// DELETE /api/material-returns/:id
func DeleteReturnHandler(svc *Service) fiber.Handler {
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
			return httpError(err, "DeleteReturnHandler", id)
		}
		return c.JSON(fiber.Map{"message": "Material return deleted"})
	}
}

// POST /api/material-returns/:id/approve
// POST /api/material-returns/:id/reject
func DecideReturnHandler(svc *Service, action approval.Action) fiber.Handler {
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
		mr, err := svc.Decide(c.UserContext(), actor, id, action, body.Reason)
		if err != nil {
			return httpError(err, "DecideReturnHandler", id)
		}
		return c.JSON(mr)
	}
}
