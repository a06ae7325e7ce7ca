package crm

import (
	"errors"
	"strings"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrCustomerInUse = errors.New("customer has transactions; deactivate instead")

type CustomerRequest struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Phone       string          `json:"phone" validate:"max=30"`
	Email       string          `json:"email" validate:"omitempty,email,max=100"`
	Address     string          `json:"address" validate:"max=255"`
	LicenseNo   string          `json:"license_no" validate:"max=50"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	IsActive    *bool           `json:"is_active"`
}

func (r CustomerRequest) apply(cu *models.Customer) error {
	if r.CreditLimit.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "credit_limit cannot be negative")
	}
	cu.Name = strings.TrimSpace(r.Name)
	cu.Phone = strings.TrimSpace(r.Phone)
	cu.Email = strings.ToLower(strings.TrimSpace(r.Email))
	cu.Address = strings.TrimSpace(r.Address)
	cu.LicenseNo = strings.TrimSpace(r.LicenseNo)
	cu.CreditLimit = r.CreditLimit
	if r.IsActive != nil {
		cu.IsActive = *r.IsActive
	}
	return nil
}

// GET /api/customers?active=true&q=city
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Customer{})
		switch c.Query("active") {
		case "true":
			dbq = dbq.Where("is_active = ?", true)
		case "false":
			dbq = dbq.Where("is_active = ?", false)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
		var customers []models.Customer
		if err := dbq.Order("name asc").Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Customers could not be listed")
		}
		return c.JSON(customers)
	}
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		cu := models.Customer{IsActive: true}
		if err := body.apply(&cu); err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&cu).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityCustomer,
				EntityID:    cu.ID,
				Action:      models.AuditActionCreate,
				Description: "Customer created: " + cu.Name,
				After:       cu,
			})
		})
		if err != nil {
			config.LogError(config.GetLogger(), "crm", "CreateCustomerHandler", "create customer", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Customer could not be created")
		}
		return c.Status(fiber.StatusCreated).JSON(cu)
	}
}

// PUT /api/customers/:id
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body CustomerRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var cu models.Customer
		if err := database.DB.WithContext(c.UserContext()).First(&cu, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Customer not found")
		}
		before := cu
		if err := body.apply(&cu); err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&cu).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityCustomer,
				EntityID:    cu.ID,
				Action:      models.AuditActionUpdate,
				Description: "Customer updated: " + cu.Name,
				Before:      before,
				After:       cu,
			})
		})
		if err != nil {
			config.LogError(config.GetLogger(), "crm", "UpdateCustomerHandler", "update customer", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Customer could not be updated")
		}
		return c.JSON(cu)
	}
}

// CustomerInUse reports whether any document references the customer.
func CustomerInUse(tx *gorm.DB, customerID uint) (bool, error) {
	for _, m := range []any{
		&models.Invoice{},
		&models.DeliveryChallan{},
		&models.SalesOrder{},
		&models.Payment{},
		&models.MaterialReturn{},
		&models.Appointment{},
	} {
		var n int64
		if err := tx.Model(m).Where("customer_id = ?", customerID).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DELETE /api/customers/:id
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var cu models.Customer
			if err := tx.First(&cu, id).Error; err != nil {
				return err
			}
			inUse, err := CustomerInUse(tx, cu.ID)
			if err != nil {
				return err
			}
			if inUse {
				return ErrCustomerInUse
			}
			if err := tx.Delete(&cu).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityCustomer,
				EntityID:    cu.ID,
				Action:      models.AuditActionDelete,
				Description: "Customer deleted: " + cu.Name,
				Before:      cu,
			})
		})
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Customer deleted"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Customer not found")
		case errors.Is(err, ErrCustomerInUse):
			return fiber.NewError(fiber.StatusConflict, ErrCustomerInUse.Error())
		default:
			config.LogError(config.GetLogger(), "crm", "DeleteCustomerHandler", "delete customer", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Customer could not be deleted")
		}
	}
}
