package audit

import (
	"errors"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?entity_type=delivery_challan&entity_id=1&user_id=2
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.AuditLog{})

		userID, err := validation.QueryID(c, "user_id")
		if err != nil {
			return err
		}
		if userID > 0 {
			dbq = dbq.Where("user_id = ?", userID)
		}
		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		entityID, err := validation.QueryID(c, "entity_id")
		if err != nil {
			return err
		}
		if entityID > 0 {
			dbq = dbq.Where("entity_id = ?", entityID)
		}

		limit := c.QueryInt("limit", 200)
		if limit <= 0 || limit > 1000 {
			limit = 200
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logs could not be listed")
		}
		return c.JSON(logs)
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		err = UndoLog(database.DB.WithContext(c.UserContext()), logID, actor)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Change undone"})
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrEntityInUse):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		default:
			config.LogError(config.GetLogger(), "audit", "UndoAuditLogHandler", "undo failed", logID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Change could not be undone")
		}
	}
}
