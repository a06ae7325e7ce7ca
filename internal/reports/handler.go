package reports

import (
	"bytes"

	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func sendXLSX(c *fiber.Ctx, name string, buf *bytes.Buffer) error {
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}

// GET /api/reports/receivables.xlsx?as_of=2024-03-31
func ReceivablesReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		asOf := inventory.Today()
		if s := c.Query("as_of"); s != "" {
			d, err := validation.ParseDate("as_of", s)
			if err != nil {
				return err
			}
			asOf = d
		}
		rows, err := ReceivableRows(database.DB.WithContext(c.UserContext()), asOf)
		if err != nil {
			config.LogError(config.GetLogger(), "reports", "ReceivablesReportHandler", "load receivables", asOf, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Receivables could not be loaded")
		}
		var buf bytes.Buffer
		if err := WriteReceivables(&buf, rows); err != nil {
			config.LogError(config.GetLogger(), "reports", "ReceivablesReportHandler", "write xlsx", nil, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Report could not be generated")
		}
		return sendXLSX(c, FileName("receivables", asOf), &buf)
	}
}

// GET /api/reports/expiry.xlsx?days=90
func ExpiryReportHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", cfg.ExpiryWarningDays)
		if days <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "days must be positive")
		}
		today := inventory.Today()
		rows, err := ExpiryRows(database.DB.WithContext(c.UserContext()), today, days)
		if err != nil {
			config.LogError(config.GetLogger(), "reports", "ExpiryReportHandler", "load batches", days, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Batches could not be loaded")
		}
		var buf bytes.Buffer
		if err := WriteExpiry(&buf, rows); err != nil {
			config.LogError(config.GetLogger(), "reports", "ExpiryReportHandler", "write xlsx", nil, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Report could not be generated")
		}
		return sendXLSX(c, FileName("expiry", today), &buf)
	}
}
