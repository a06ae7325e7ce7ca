package inventory

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

type CreateProductRequest struct {
	Name      string          `json:"name" validate:"required,max=150"`
	SKU       string          `json:"sku" validate:"required,max=50"`
	PackType  string          `json:"pack_type" validate:"max=30"`
	PackSize  int             `json:"pack_size" validate:"gte=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type UpdateProductRequest struct {
	Name      *string          `json:"name" validate:"omitempty,max=150"`
	PackType  *string          `json:"pack_type" validate:"omitempty,max=30"`
	PackSize  *int             `json:"pack_size" validate:"omitempty,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	IsActive  *bool            `json:"is_active"`
}

type ProductStockResponse struct {
	models.Product
	TotalStock     int `json:"total_stock"`
	AvailableStock int `json:"available_stock"`
}

// GET /api/products?active=true&q=para
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Product{})

		switch c.Query("active") {
		case "true":
			dbq = dbq.Where("is_active = ?", true)
		case "false":
			dbq = dbq.Where("is_active = ?", false)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Products could not be listed")
		}

		type stockRow struct {
			ProductID uint
			Total     int
			Available int
		}
		var rows []stockRow
		if err := database.DB.WithContext(c.UserContext()).Model(&models.Batch{}).
			Select("product_id, COALESCE(SUM(current_stock),0) AS total, COALESCE(SUM(current_stock - reserved_stock),0) AS available").
			Group("product_id").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stock totals could not be calculated")
		}
		byProduct := make(map[uint]stockRow, len(rows))
		for _, r := range rows {
			byProduct[r.ProductID] = r
		}

		res := make([]ProductStockResponse, 0, len(products))
		for _, p := range products {
			s := byProduct[p.ID]
			res = append(res, ProductStockResponse{Product: p, TotalStock: s.Total, AvailableStock: s.Available})
		}
		return c.JSON(res)
	}
}

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		body.Name = strings.TrimSpace(body.Name)
		body.SKU = strings.ToUpper(strings.TrimSpace(body.SKU))
		if body.Name == "" || body.SKU == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name and sku are required")
		}
		if body.UnitPrice.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "unit_price cannot be negative")
		}
		if body.PackSize == 0 {
			body.PackSize = 1
		}

		var count int64
		database.DB.WithContext(c.UserContext()).Model(&models.Product{}).Where("sku = ?", body.SKU).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "This sku is already in use")
		}

		p := models.Product{
			Name:      body.Name,
			SKU:       body.SKU,
			PackType:  strings.TrimSpace(body.PackType),
			PackSize:  body.PackSize,
			UnitPrice: body.UnitPrice,
			IsActive:  true,
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityProduct,
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: "Product created: " + p.Name,
				After:       p,
			})
		})
		if err != nil {
			config.LogError(config.GetLogger(), "inventory", "CreateProductHandler", "create product", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/products/:id
// Also used to deactivate a product that can no longer be deleted.
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateProductRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.WithContext(c.UserContext()).First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		before := p

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			p.Name = name
		}
		if body.PackType != nil {
			p.PackType = strings.TrimSpace(*body.PackType)
		}
		if body.PackSize != nil {
			p.PackSize = *body.PackSize
		}
		if body.UnitPrice != nil {
			if body.UnitPrice.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "unit_price cannot be negative")
			}
			p.UnitPrice = *body.UnitPrice
		}
		if body.IsActive != nil {
			p.IsActive = *body.IsActive
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityProduct,
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: "Product updated: " + p.Name,
				Before:      before,
				After:       p,
			})
		})
		if err != nil {
			config.LogError(config.GetLogger(), "inventory", "UpdateProductHandler", "update product", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be updated")
		}
		return c.JSON(p)
	}
}

// ProductInUse reports whether any batch, dispatch line, invoice line, order
// or return still points at the product.
func ProductInUse(tx *gorm.DB, productID uint) (bool, error) {
	for _, m := range []any{
		&models.Batch{},
		&models.DispatchLineItem{},
		&models.InvoiceItem{},
		&models.SalesOrderItem{},
		&models.MaterialReturnItem{},
	} {
		var n int64
		if err := tx.Model(m).Where("product_id = ?", productID).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DELETE /api/products/:id
func DeleteProductHandler() fiber.Handler {
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
			var p models.Product
			if err := tx.First(&p, id).Error; err != nil {
				return err
			}
			inUse, err := ProductInUse(tx, p.ID)
			if err != nil {
				return err
			}
			if inUse {
				return ErrProductInUse
			}
			if err := tx.Delete(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityProduct,
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: "Product deleted: " + p.Name,
				Before:      p,
			})
		})
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Product deleted"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		case errors.Is(err, ErrProductInUse):
			return fiber.NewError(fiber.StatusConflict, "Product is used in invoices or challans; deactivate it instead")
		default:
			config.LogError(config.GetLogger(), "inventory", "DeleteProductHandler", "delete product", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be deleted")
		}
	}
}
