package accounting

import (
	"errors"
	"time"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type CreateEntryRequest struct {
	Date      string      `json:"date" validate:"required"`
	Memo      string      `json:"memo" validate:"max=255"`
	Reference string      `json:"reference" validate:"max=100"`
	Lines     []LineInput `json:"lines" validate:"required"`
}

// GET /api/journal-entries?from=2024-01-01&to=2024-01-31
func ListEntriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.JournalEntry{}).Preload("Lines")

		if from := c.Query("from"); from != "" {
			d, err := validation.ParseDate("from", from)
			if err != nil {
				return err
			}
			dbq = dbq.Where("date >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := validation.ParseDate("to", to)
			if err != nil {
				return err
			}
			dbq = dbq.Where("date <= ?", d)
		}

		var entries []models.JournalEntry
		if err := dbq.Order("date DESC, id DESC").Find(&entries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Journal entries could not be listed")
		}
		return c.JSON(entries)
	}
}

// POST /api/journal-entries
func CreateEntryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateEntryRequest
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

		entry, err := CreateEntry(database.DB.WithContext(c.UserContext()), actor, EntryInput{
			Date:      date,
			Memo:      body.Memo,
			Reference: body.Reference,
			Lines:     body.Lines,
		})
		switch {
		case err == nil:
			return c.Status(fiber.StatusCreated).JSON(entry)
		case errors.Is(err, ErrTooFewLines), errors.Is(err, ErrLineSide), errors.Is(err, ErrNegativeLine),
			errors.Is(err, ErrLinePrecision), errors.Is(err, ErrUnbalanced), errors.Is(err, ErrAccountCode):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		default:
			config.LogError(config.GetLogger(), "accounting", "CreateEntryHandler", "create journal entry", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Journal entry could not be saved")
		}
	}
}

// DELETE /api/journal-entries/:id
func DeleteEntryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		err = DeleteEntry(database.DB.WithContext(c.UserContext()), actor, id)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Journal entry deleted"})
		case errors.Is(err, ErrEntryNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		default:
			config.LogError(config.GetLogger(), "accounting", "DeleteEntryHandler", "delete journal entry", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Journal entry could not be deleted")
		}
	}
}

// GET /api/journal-entries/trial-balance?as_of=2024-03-31
func TrialBalanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		asOf := time.Now()
		if s := c.Query("as_of"); s != "" {
			d, err := validation.ParseDate("as_of", s)
			if err != nil {
				return err
			}
			asOf = d
		}
		rows, err := TrialBalance(database.DB.WithContext(c.UserContext()), asOf)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Trial balance could not be calculated")
		}
		return c.JSON(rows)
	}
}
