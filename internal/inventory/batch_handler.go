package inventory

import (
	"errors"
	"strings"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateBatchRequest struct {
	ProductID   uint    `json:"product_id" validate:"required"`
	BatchNumber string  `json:"batch_number" validate:"required,max=50"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	ExpiryDate  *string `json:"expiry_date"`
	ImportDate  string  `json:"import_date" validate:"required"`
}

type BatchResponse struct {
	models.Batch
	Available int  `json:"available"`
	Expired   bool `json:"expired"`
}

func toBatchResponse(b models.Batch, today time.Time) BatchResponse {
	return BatchResponse{Batch: b, Available: b.Available(), Expired: b.Expired(today)}
}

// GET /api/batches?product_id=1&available=true&expiring_within=90
func ListBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		today := Today()
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Batch{}).Preload("Product")

		productID, err := validation.QueryID(c, "product_id")
		if err != nil {
			return err
		}
		if productID > 0 {
			dbq = dbq.Where("product_id = ?", productID)
		}
		if c.Query("available") == "true" {
			dbq = dbq.Where("current_stock > reserved_stock").
				Where("expiry_date IS NULL OR expiry_date >= ?", today.Format(validation.DateLayout))
		}
		if days := c.QueryInt("expiring_within", 0); days > 0 {
			dbq = dbq.Where("expiry_date IS NOT NULL AND expiry_date <= ?", today.AddDate(0, 0, days).Format(validation.DateLayout))
		}

		var batches []models.Batch
		if err := dbq.Order("import_date, id").Find(&batches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Batches could not be listed")
		}
		res := make([]BatchResponse, 0, len(batches))
		for _, b := range batches {
			res = append(res, toBatchResponse(b, today))
		}
		return c.JSON(res)
	}
}

// POST /api/batches
// Goods receipt: registers a new batch with its opening stock.
func CreateBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBatchRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		importDate, err := validation.ParseDate("import_date", body.ImportDate)
		if err != nil {
			return err
		}
		expiry, err := validation.ParseOptionalDate("expiry_date", body.ExpiryDate)
		if err != nil {
			return err
		}
		if expiry != nil && expiry.Before(importDate) {
			return fiber.NewError(fiber.StatusBadRequest, "expiry_date cannot be before import_date")
		}

		var product models.Product
		if err := database.DB.WithContext(c.UserContext()).First(&product, body.ProductID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		if !product.IsActive {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Product is inactive")
		}

		b := models.Batch{
			ProductID:    product.ID,
			BatchNumber:  strings.TrimSpace(body.BatchNumber),
			CurrentStock: body.Quantity,
			ExpiryDate:   expiry,
			ImportDate:   importDate,
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.Batch{}).
				Where("product_id = ? AND batch_number = ?", b.ProductID, b.BatchNumber).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fiber.NewError(fiber.StatusConflict, "Batch number already exists for this product")
			}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityBatch,
				EntityID:    b.ID,
				Action:      models.AuditActionCreate,
				Description: "Batch received: " + product.Name + " / " + b.BatchNumber,
				After:       b,
			})
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			config.LogError(config.GetLogger(), "inventory", "CreateBatchHandler", "create batch", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Batch could not be created")
		}
		return c.Status(fiber.StatusCreated).JSON(toBatchResponse(b, Today()))
	}
}

// BatchInUse reports whether any transaction line references the batch.
func BatchInUse(tx *gorm.DB, batchID uint) (bool, error) {
	for _, m := range []any{
		&models.DispatchLineItem{},
		&models.InvoiceItem{},
		&models.SalesOrderItem{},
		&models.MaterialReturnItem{},
	} {
		var n int64
		if err := tx.Model(m).Where("batch_id = ?", batchID).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DELETE /api/batches/:id
func DeleteBatchHandler() fiber.Handler {
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
			batches, err := LockBatches(tx, []uint{id})
			if err != nil {
				return err
			}
			inUse, err := BatchInUse(tx, id)
			if err != nil {
				return err
			}
			if inUse {
				return ErrBatchInUse
			}
			if err := tx.Delete(&models.Batch{}, id).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityBatch,
				EntityID:    id,
				Action:      models.AuditActionDelete,
				Description: "Batch deleted: " + batches[0].BatchNumber,
				Before:      batches[0],
			})
		})
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Batch deleted"})
		case errors.Is(err, ErrBatchNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Batch not found")
		case errors.Is(err, ErrBatchInUse):
			return fiber.NewError(fiber.StatusConflict, "Batch is used in transactions and cannot be deleted")
		default:
			config.LogError(config.GetLogger(), "inventory", "DeleteBatchHandler", "delete batch", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Batch could not be deleted")
		}
	}
}

// GET /api/products/:id/fifo?quantity=30
// Without quantity only the FIFO batch is returned; with it the quantity is
// split across batches in FIFO order.
func FIFOHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		today := Today()

		batches, err := ProductBatches(database.DB.WithContext(c.UserContext()), productID, today)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Batches could not be loaded")
		}

		qty := c.QueryInt("quantity", 0)
		if qty < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity cannot be negative")
		}
		if qty == 0 {
			b, ok := SelectFIFO(batches, productID, today)
			if !ok {
				return fiber.NewError(fiber.StatusUnprocessableEntity, ErrNoBatchAvailable.Error())
			}
			return c.JSON(toBatchResponse(b, today))
		}

		plan := PlanFIFO(batches, productID, qty, today)
		if len(plan.Allocations) == 0 {
			return fiber.NewError(fiber.StatusUnprocessableEntity, ErrNoBatchAvailable.Error())
		}
		return c.JSON(plan)
	}
}
