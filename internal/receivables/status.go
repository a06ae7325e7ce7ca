package receivables

import (
	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
)

// DeriveStatus is the only source of an invoice's payment status.
func DeriveStatus(paid, total decimal.Decimal) models.PaymentStatus {
	switch {
	case !paid.IsPositive():
		return models.PaymentPending
	case paid.LessThan(total):
		return models.PaymentPartial
	default:
		return models.PaymentPaid
	}
}
