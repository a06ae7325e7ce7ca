package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReceiptRows(t *testing.T) {
	received := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]string{
		{"SKU", "Batch", "Quantity", "Expiry", "Import"},
		{"para500", "P-01", "120", "2026-01-31", "2024-02-15"},
		{},
		{"AMOX250", "A-7", "40"},
		{"AMOX250", "", "40"},
		{"AMOX250", "A-8", "-3"},
		{"AMOX250", "A-9", "10", "31/12/2026"},
	}

	got, errs := ParseReceiptRows(rows, received)
	require.Len(t, got, 2)
	assert.Equal(t, "PARA500", got[0].SKU)
	assert.Equal(t, 120, got[0].Quantity)
	require.NotNil(t, got[0].ExpiryDate)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), got[0].ImportDate)

	assert.Equal(t, 4, got[1].Line)
	assert.Nil(t, got[1].ExpiryDate)
	assert.Equal(t, received, got[1].ImportDate)

	require.Len(t, errs, 3)
	assert.Equal(t, []int{5, 6, 7}, []int{errs[0].Line, errs[1].Line, errs[2].Line})
}

func TestParseReceiptRowsWithoutHeader(t *testing.T) {
	got, errs := ParseReceiptRows([][]string{{"X1", "B1", "5"}}, time.Now())
	assert.Empty(t, errs)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Line)
}
