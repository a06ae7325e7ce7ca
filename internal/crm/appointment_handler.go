package crm

import (
	"errors"
	"strings"
	"time"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type CreateAppointmentRequest struct {
	CustomerID uint      `json:"customer_id" validate:"required"`
	AssignedTo uint      `json:"assigned_to"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" validate:"required"`
	Purpose    string    `json:"purpose" validate:"required,max=255"`
	Notes      string    `json:"notes"`
}

type RescheduleRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}

func appointmentError(err error, funcName string, data any) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAppointmentOverlap), errors.Is(err, ErrAppointmentClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrAppointmentWindow), errors.Is(err, ErrAssigneeInvalid):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError(config.GetLogger(), "crm", funcName, "appointment workflow failed", data, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Appointment could not be saved")
}

// GET /api/appointments?assigned_to=2&customer_id=1&status=scheduled&from=2024-03-01&to=2024-03-31
func ListAppointmentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Appointment{}).Preload("Customer")

		assignee, err := validation.QueryID(c, "assigned_to")
		if err != nil {
			return err
		}
		if assignee > 0 {
			dbq = dbq.Where("assigned_to = ?", assignee)
		}
		customerID, err := validation.QueryID(c, "customer_id")
		if err != nil {
			return err
		}
		if customerID > 0 {
			dbq = dbq.Where("customer_id = ?", customerID)
		}
		if s := c.Query("status"); s != "" {
			status := models.AppointmentStatus(s)
			if !status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
			}
			dbq = dbq.Where("status = ?", status)
		}
		if from := c.Query("from"); from != "" {
			d, err := validation.ParseDate("from", from)
			if err != nil {
				return err
			}
			dbq = dbq.Where("starts_at >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := validation.ParseDate("to", to)
			if err != nil {
				return err
			}
			dbq = dbq.Where("starts_at < ?", d.AddDate(0, 0, 1))
		}

		var list []models.Appointment
		if err := dbq.Order("starts_at").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Appointments could not be listed")
		}
		return c.JSON(list)
	}
}

// POST /api/appointments
// assigned_to defaults to the caller.
func CreateAppointmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateAppointmentRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		if body.AssignedTo == 0 {
			body.AssignedTo = actor.ID
		}
		ap, err := CreateAppointment(database.DB.WithContext(c.UserContext()), actor, AppointmentInput{
			CustomerID: body.CustomerID,
			AssignedTo: body.AssignedTo,
			StartsAt:   body.StartsAt,
			EndsAt:     body.EndsAt,
			Purpose:    strings.TrimSpace(body.Purpose),
			Notes:      body.Notes,
		})
		if err != nil {
			return appointmentError(err, "CreateAppointmentHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(ap)
	}
}

// PUT /api/appointments/:id/reschedule
func RescheduleAppointmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body RescheduleRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		ap, err := RescheduleAppointment(database.DB.WithContext(c.UserContext()), actor, id, body.StartsAt, body.EndsAt)
		if err != nil {
			return appointmentError(err, "RescheduleAppointmentHandler", body)
		}
		return c.JSON(ap)
	}
}

// PATCH /api/appointments/:id/status
func AppointmentStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body StatusRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		ap, err := SetAppointmentStatus(database.DB.WithContext(c.UserContext()), actor, id, models.AppointmentStatus(body.Status))
		if err != nil {
			return appointmentError(err, "AppointmentStatusHandler", body)
		}
		return c.JSON(ap)
	}
}
