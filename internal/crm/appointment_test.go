package crm

import (
	"testing"
	"time"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(at(9, 0), at(10, 0), at(9, 30), at(10, 30)))
	assert.True(t, Overlaps(at(9, 0), at(12, 0), at(10, 0), at(11, 0)))
	assert.False(t, Overlaps(at(9, 0), at(10, 0), at(10, 0), at(11, 0)), "back-to-back slots do not overlap")
	assert.False(t, Overlaps(at(13, 0), at(14, 0), at(9, 0), at(10, 0)))
}

func TestFindConflict(t *testing.T) {
	existing := []models.Appointment{
		{ID: 1, AssignedTo: 5, StartsAt: at(9, 0), EndsAt: at(10, 0), Status: models.AppointmentScheduled},
		{ID: 2, AssignedTo: 5, StartsAt: at(11, 0), EndsAt: at(12, 0), Status: models.AppointmentCancelled},
		{ID: 3, AssignedTo: 6, StartsAt: at(13, 0), EndsAt: at(14, 0), Status: models.AppointmentScheduled},
	}

	tests := []struct {
		name      string
		candidate models.Appointment
		wantID    uint
		want      bool
	}{
		{"overlaps scheduled", models.Appointment{AssignedTo: 5, StartsAt: at(9, 30), EndsAt: at(10, 30)}, 1, true},
		{"cancelled slot is free", models.Appointment{AssignedTo: 5, StartsAt: at(11, 0), EndsAt: at(11, 30)}, 0, false},
		{"other assignee", models.Appointment{AssignedTo: 5, StartsAt: at(13, 0), EndsAt: at(14, 0)}, 0, false},
		{"moving itself", models.Appointment{ID: 1, AssignedTo: 5, StartsAt: at(9, 15), EndsAt: at(10, 15)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindConflict(existing, tt.candidate)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}
