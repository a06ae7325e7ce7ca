package crm

import (
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAppointmentWindow   = errors.New("appointment must end after it starts")
	ErrAppointmentOverlap  = errors.New("assignee already has an appointment at that time")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentClosed   = errors.New("appointment is already completed or cancelled")
	ErrAssigneeInvalid     = errors.New("assigned user not found or inactive")
)

// Overlaps treats the windows as half-open, so back-to-back slots are fine.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first scheduled appointment of the same assignee
// that overlaps candidate. candidate itself is skipped when it has an id.
func FindConflict(existing []models.Appointment, candidate models.Appointment) (models.Appointment, bool) {
	for _, a := range existing {
		if a.ID != 0 && a.ID == candidate.ID {
			continue
		}
		if a.AssignedTo != candidate.AssignedTo || a.Status != models.AppointmentScheduled {
			continue
		}
		if Overlaps(a.StartsAt, a.EndsAt, candidate.StartsAt, candidate.EndsAt) {
			return a, true
		}
	}
	return models.Appointment{}, false
}

func checkSlot(tx *gorm.DB, ap models.Appointment) error {
	if !ap.EndsAt.After(ap.StartsAt) {
		return ErrAppointmentWindow
	}
	// lock the assignee's user row so two bookings for one person serialise
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, ap.AssignedTo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		return ErrAssigneeInvalid
	}
	if err != nil {
		return err
	}

	var existing []models.Appointment
	err = tx.Where("assigned_to = ? AND status = ?", ap.AssignedTo, models.AppointmentScheduled).
		Where("starts_at < ? AND ends_at > ?", ap.EndsAt, ap.StartsAt).
		Find(&existing).Error
	if err != nil {
		return err
	}
	if other, ok := FindConflict(existing, ap); ok {
		return fmt.Errorf("%w (%s - %s)", ErrAppointmentOverlap,
			other.StartsAt.Format("2006-01-02 15:04"), other.EndsAt.Format("15:04"))
	}
	return nil
}

type AppointmentInput struct {
	CustomerID uint
	AssignedTo uint
	StartsAt   time.Time
	EndsAt     time.Time
	Purpose    string
	Notes      string
}

func CreateAppointment(db *gorm.DB, actor auth.Actor, in AppointmentInput) (*models.Appointment, error) {
	ap := models.Appointment{
		CustomerID: in.CustomerID,
		AssignedTo: in.AssignedTo,
		StartsAt:   in.StartsAt,
		EndsAt:     in.EndsAt,
		Purpose:    in.Purpose,
		Notes:      in.Notes,
		Status:     models.AppointmentScheduled,
		CreatedBy:  actor.ID,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkSlot(tx, ap); err != nil {
			return err
		}
		if err := tx.Create(&ap).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityAppointment,
			EntityID:    ap.ID,
			Action:      models.AuditActionCreate,
			Description: "Appointment scheduled: " + ap.Purpose,
			After:       ap,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

// RescheduleAppointment moves a scheduled appointment to a new window.
func RescheduleAppointment(db *gorm.DB, actor auth.Actor, id uint, startsAt, endsAt time.Time) (*models.Appointment, error) {
	var ap models.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockAppointment(tx, id, &ap); err != nil {
			return err
		}
		if ap.Status != models.AppointmentScheduled {
			return ErrAppointmentClosed
		}
		before := ap
		ap.StartsAt, ap.EndsAt = startsAt, endsAt
		if err := checkSlot(tx, ap); err != nil {
			return err
		}
		if err := tx.Model(&models.Appointment{}).Where("id = ?", ap.ID).
			Updates(map[string]any{"starts_at": ap.StartsAt, "ends_at": ap.EndsAt}).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityAppointment,
			EntityID:    ap.ID,
			Action:      models.AuditActionUpdate,
			Description: "Appointment rescheduled: " + ap.Purpose,
			Before:      before,
			After:       ap,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

// SetAppointmentStatus completes or cancels a scheduled appointment.
func SetAppointmentStatus(db *gorm.DB, actor auth.Actor, id uint, status models.AppointmentStatus) (*models.Appointment, error) {
	var ap models.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockAppointment(tx, id, &ap); err != nil {
			return err
		}
		switch ap.Status {
		case models.AppointmentScheduled:
		case models.AppointmentCompleted, models.AppointmentCancelled:
			return ErrAppointmentClosed
		default:
			return fmt.Errorf("appointment %d has unknown status %q", ap.ID, ap.Status)
		}
		before := ap
		ap.Status = status
		if err := tx.Model(&models.Appointment{}).Where("id = ?", ap.ID).Update("status", status).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityAppointment,
			EntityID:    ap.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Appointment %s: %s", status, ap.Purpose),
			Before:      before,
			After:       ap,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

func lockAppointment(tx *gorm.DB, id uint, ap *models.Appointment) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(ap, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAppointmentNotFound
	}
	return err
}
