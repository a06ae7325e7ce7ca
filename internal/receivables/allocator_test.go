package receivables

import (
	"testing"
	"time"

	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balances(bs ...InvoiceBalance) map[uint]InvoiceBalance {
	out := make(map[uint]InvoiceBalance, len(bs))
	for _, b := range bs {
		out[b.InvoiceID] = b
	}
	return out
}

func TestPartialPaymentLeavesBalance(t *testing.T) {
	inv := InvoiceBalance{InvoiceID: 1, InvoiceNumber: "INV-1", CustomerID: 7, TotalAmount: dec("1000"), PaidAmount: decimal.Zero}

	res, err := ValidateAllocations(dec("600"), 7, balances(inv), []AllocationRequest{{InvoiceID: 1, Amount: dec("600")}})
	require.NoError(t, err)
	assert.True(t, res.Allocated.Equal(dec("600")))
	assert.True(t, res.Unallocated.IsZero())

	inv.PaidAmount = inv.PaidAmount.Add(res.Allocated)
	assert.True(t, inv.Remaining().Equal(dec("400")))
	assert.Equal(t, models.PaymentPartial, DeriveStatus(inv.PaidAmount, inv.TotalAmount))
}

func TestValidateAllocationsRejects(t *testing.T) {
	invs := balances(
		InvoiceBalance{InvoiceID: 1, InvoiceNumber: "INV-1", CustomerID: 7, TotalAmount: dec("500"), PaidAmount: dec("200")},
		InvoiceBalance{InvoiceID: 2, InvoiceNumber: "INV-2", CustomerID: 7, TotalAmount: dec("300")},
		InvoiceBalance{InvoiceID: 3, InvoiceNumber: "INV-3", CustomerID: 8, TotalAmount: dec("300")},
	)

	tests := []struct {
		name    string
		payment string
		reqs    []AllocationRequest
		wantErr error
	}{
		{"over invoice balance", "1000", []AllocationRequest{{InvoiceID: 1, Amount: dec("300.01")}}, ErrAllocationExceedsBalance},
		{"over payment", "400", []AllocationRequest{{InvoiceID: 1, Amount: dec("300")}, {InvoiceID: 2, Amount: dec("101")}}, ErrAllocationExceedsPayment},
		{"zero amount", "100", []AllocationRequest{{InvoiceID: 2, Amount: decimal.Zero}}, ErrAllocationNotPositive},
		{"negative amount", "100", []AllocationRequest{{InvoiceID: 2, Amount: dec("-5")}}, ErrAllocationNotPositive},
		{"below stored scale", "100", []AllocationRequest{{InvoiceID: 2, Amount: dec("0.00001")}}, ErrAmountPrecision},
		{"fifth decimal place", "100", []AllocationRequest{{InvoiceID: 2, Amount: dec("10.12345")}}, ErrAmountPrecision},
		{"duplicate invoice", "500", []AllocationRequest{{InvoiceID: 2, Amount: dec("10")}, {InvoiceID: 2, Amount: dec("10")}}, ErrDuplicateInvoice},
		{"other customer", "500", []AllocationRequest{{InvoiceID: 3, Amount: dec("10")}}, ErrInvoiceCustomer},
		{"unknown invoice", "500", []AllocationRequest{{InvoiceID: 9, Amount: dec("10")}}, ErrUnknownInvoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAllocations(dec(tt.payment), 7, invs, tt.reqs)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateAllocationsBounds(t *testing.T) {
	invs := balances(
		InvoiceBalance{InvoiceID: 1, CustomerID: 7, TotalAmount: dec("500"), PaidAmount: dec("200")},
		InvoiceBalance{InvoiceID: 2, CustomerID: 7, TotalAmount: dec("300")},
	)
	reqs := []AllocationRequest{{InvoiceID: 1, Amount: dec("300")}, {InvoiceID: 2, Amount: dec("150")}}

	res, err := ValidateAllocations(dec("500"), 7, invs, reqs)
	require.NoError(t, err)
	assert.True(t, res.Allocated.Equal(dec("450")))
	assert.True(t, res.Unallocated.Equal(dec("50")), "remainder stays as credit")
	assert.True(t, res.Allocated.LessThanOrEqual(dec("500")))
	for _, r := range reqs {
		assert.True(t, r.Amount.LessThanOrEqual(invs[r.InvoiceID].Remaining()))
	}
}

func TestValidateAllocationsAcceptsTrailingZeros(t *testing.T) {
	invs := balances(InvoiceBalance{InvoiceID: 1, CustomerID: 7, TotalAmount: dec("100")})

	res, err := ValidateAllocations(dec("100"), 7, invs, []AllocationRequest{{InvoiceID: 1, Amount: dec("12.3400000")}})
	require.NoError(t, err)
	assert.True(t, res.Allocated.Equal(dec("12.34")))
}

func TestSuggestFIFO(t *testing.T) {
	jan := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	invs := []InvoiceBalance{
		{InvoiceID: 3, DueDate: feb, TotalAmount: dec("400")},
		{InvoiceID: 2, DueDate: jan, TotalAmount: dec("300"), PaidAmount: dec("100")},
		{InvoiceID: 1, DueDate: jan, TotalAmount: dec("100"), PaidAmount: dec("100")},
		{InvoiceID: 4, DueDate: jan, TotalAmount: dec("50")},
	}

	got := SuggestFIFO(dec("300"), invs)
	require.Len(t, got, 3)
	assert.Equal(t, uint(2), got[0].InvoiceID)
	assert.True(t, got[0].Amount.Equal(dec("200")))
	assert.Equal(t, uint(4), got[1].InvoiceID)
	assert.True(t, got[1].Amount.Equal(dec("50")))
	assert.Equal(t, uint(3), got[2].InvoiceID)
	assert.True(t, got[2].Amount.Equal(dec("50")))

	assert.Empty(t, SuggestFIFO(decimal.Zero, invs))
}
