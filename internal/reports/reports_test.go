package reports

import (
	"bytes"
	"testing"
	"time"

	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDaysOverdue(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, DaysOverdue(due, due.AddDate(0, 0, 10), decimal.NewFromInt(5)))
	assert.Equal(t, 0, DaysOverdue(due, due.AddDate(0, 0, -3), decimal.NewFromInt(5)))
	assert.Equal(t, 0, DaysOverdue(due, due.AddDate(0, 0, 10), decimal.Zero))
}

func TestWriteReceivables(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []ReceivableRow{{
		InvoiceNumber: "INV-20240301-AAAA0001",
		CustomerName:  "City Pharmacy",
		InvoiceDate:   day,
		DueDate:       day.AddDate(0, 0, 30),
		Total:         decimal.NewFromInt(1000),
		Paid:          decimal.NewFromInt(600),
		Balance:       decimal.NewFromInt(400),
		Status:        models.PaymentPartial,
		DaysOverdue:   3,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteReceivables(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Invoice", got[0][0])
	assert.Equal(t, "Days Overdue", got[0][8])
	assert.Equal(t, "City Pharmacy", got[1][1])
	assert.Equal(t, "2024-03-31", got[1][3])
	assert.Equal(t, "400", got[1][6])
	assert.Equal(t, "partial", got[1][7])
}

func TestWriteExpiryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExpiry(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Product", "SKU", "Batch", "Expiry Date", "Days Left", "Stock", "Reserved"}, got[0])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "expiry-20240301.xlsx", FileName("expiry", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
