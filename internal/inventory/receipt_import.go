package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReceiptRow is one line of a goods receipt sheet:
// SKU | batch number | quantity | expiry date | import date
type ReceiptRow struct {
	Line        int        `json:"line"`
	SKU         string     `json:"sku"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	ImportDate  time.Time  `json:"import_date"`
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToUpper(strings.TrimSpace(row[0]))
	return first == "SKU" || strings.Contains(first, "PRODUCT")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ParseReceiptRows reads sheet rows; an empty import date defaults to
// received. Blank rows are skipped, bad rows are reported and left out.
func ParseReceiptRows(rows [][]string, received time.Time) ([]ReceiptRow, []RowError) {
	var out []ReceiptRow
	var errs []RowError

	start := 0
	if len(rows) > 0 && isHeaderRow(rows[0]) {
		start = 1
	}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		if strings.Join(row, "") == "" {
			continue
		}

		r := ReceiptRow{Line: line, SKU: strings.ToUpper(cell(row, 0)), BatchNumber: cell(row, 1), ImportDate: received}
		if r.SKU == "" || r.BatchNumber == "" {
			errs = append(errs, RowError{Line: line, Message: "sku and batch number are required"})
			continue
		}
		qty, err := strconv.Atoi(cell(row, 2))
		if err != nil || qty <= 0 {
			errs = append(errs, RowError{Line: line, Message: "quantity must be a positive whole number"})
			continue
		}
		r.Quantity = qty

		if s := cell(row, 3); s != "" {
			d, err := time.Parse(validation.DateLayout, s)
			if err != nil {
				errs = append(errs, RowError{Line: line, Message: "expiry date must be YYYY-MM-DD"})
				continue
			}
			r.ExpiryDate = &d
		}
		if s := cell(row, 4); s != "" {
			d, err := time.Parse(validation.DateLayout, s)
			if err != nil {
				errs = append(errs, RowError{Line: line, Message: "import date must be YYYY-MM-DD"})
				continue
			}
			r.ImportDate = d
		}
		out = append(out, r)
	}
	return out, errs
}

var errImportRejected = errors.New("import rejected")

// POST /api/batches/import (multipart, field "file")
// The whole sheet is received in one transaction; any bad row rejects it.
func ImportReceiptHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File could not be uploaded")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx files are accepted")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File could not be opened")
		}
		defer file.Close()

		book, err := excelize.OpenReader(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file could not be read")
		}
		defer book.Close()

		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file has no sheets")
		}
		rows, err := book.GetRows(sheets[0])
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Sheet could not be read")
		}

		parsed, rowErrs := ParseReceiptRows(rows, Today())
		if len(parsed) == 0 && len(rowErrs) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file is empty")
		}

		var created []models.Batch
		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			products := make(map[string]models.Product)
			for _, r := range parsed {
				p, ok := products[r.SKU]
				if !ok {
					if err := tx.Where("sku = ?", r.SKU).First(&p).Error; err != nil {
						rowErrs = append(rowErrs, RowError{Line: r.Line, Message: "unknown sku " + r.SKU})
						continue
					}
					products[r.SKU] = p
				}
				var n int64
				if err := tx.Model(&models.Batch{}).Where("product_id = ? AND batch_number = ?", p.ID, r.BatchNumber).Count(&n).Error; err != nil {
					return err
				}
				if n > 0 {
					rowErrs = append(rowErrs, RowError{Line: r.Line, Message: "batch " + r.BatchNumber + " already exists"})
					continue
				}
				b := models.Batch{
					ProductID:    p.ID,
					BatchNumber:  r.BatchNumber,
					CurrentStock: r.Quantity,
					ExpiryDate:   r.ExpiryDate,
					ImportDate:   r.ImportDate,
				}
				if err := tx.Create(&b).Error; err != nil {
					return err
				}
				created = append(created, b)
			}
			if len(rowErrs) > 0 {
				return errImportRejected
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityBatch,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Goods receipt imported from %s: %d batches", fileHeader.Filename, len(created)),
				After:       created,
			})
		})
		if errors.Is(err, errImportRejected) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Import rejected, no batches were created",
				"rows":  rowErrs,
			})
		}
		if err != nil {
			config.LogError(config.GetLogger(), "inventory", "ImportReceiptHandler", "import goods receipt", fileHeader.Filename, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Goods receipt could not be imported")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"created_count": len(created),
			"batches":       created,
		})
	}
}
