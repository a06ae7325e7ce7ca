package receivables

import (
	"testing"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		paid, total string
		want        models.PaymentStatus
	}{
		{"0", "1000", models.PaymentPending},
		{"0.01", "1000", models.PaymentPartial},
		{"999.99", "1000", models.PaymentPartial},
		{"1000", "1000", models.PaymentPaid},
	}
	for _, tt := range tests {
		t.Run(tt.paid+"/"+tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(dec(tt.paid), dec(tt.total)))
		})
	}
}
