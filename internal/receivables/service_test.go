package receivables

import (
	"testing"
	"time"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLifecycle(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "accounts", Role: models.RoleAccounts}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	customer := models.Customer{Name: "City Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)
	other := models.Customer{Name: "Other", IsActive: true}
	require.NoError(t, db.Create(&other).Error)

	inv, err := CreateInvoice(db, actor, InvoiceInput{
		CustomerID: customer.ID, InvoiceDate: day, DueDate: day.AddDate(0, 0, 30), TotalAmount: dec("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, inv.PaymentStatus)

	foreign, err := CreateInvoice(db, actor, InvoiceInput{
		CustomerID: other.ID, InvoiceDate: day, DueDate: day, TotalAmount: dec("50"),
	})
	require.NoError(t, err)

	// one bad allocation rejects the whole payment
	_, err = RecordPayment(db, actor, PaymentInput{
		CustomerID: customer.ID, Amount: dec("700"), PaymentDate: day, Method: models.MethodCash,
		Allocations: []AllocationRequest{
			{InvoiceID: inv.ID, Amount: dec("600")},
			{InvoiceID: foreign.ID, Amount: dec("50")},
		},
	})
	require.ErrorIs(t, err, ErrInvoiceCustomer)
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)

	pay, err := RecordPayment(db, actor, PaymentInput{
		CustomerID: customer.ID, Amount: dec("700"), PaymentDate: day, Method: models.MethodBankTransfer,
		Allocations: []AllocationRequest{{InvoiceID: inv.ID, Amount: dec("600")}},
	})
	require.NoError(t, err)
	assert.True(t, pay.Unallocated.Equal(dec("100")))

	paid, err := PaidAmounts(db, []uint{inv.ID})
	require.NoError(t, err)
	view := NewInvoiceView(inv.Invoice, paid[inv.ID])
	assert.True(t, view.Balance.Equal(dec("400")))
	assert.Equal(t, models.PaymentPartial, view.PaymentStatus)

	// an invoice already paid from this payment cannot be added again
	_, err = AllocatePayment(db, actor, pay.ID, []AllocationRequest{{InvoiceID: inv.ID, Amount: dec("150")}})
	assert.ErrorIs(t, err, ErrDuplicateInvoice)

	assert.ErrorIs(t, DeleteInvoice(db, actor, inv.ID), ErrInvoicePaid)

	require.NoError(t, DeletePayment(db, actor, pay.ID))
	paid, err = PaidAmounts(db, []uint{inv.ID})
	require.NoError(t, err)
	assert.True(t, paid[inv.ID].Equal(decimal.Zero))
	require.NoError(t, DeleteInvoice(db, actor, inv.ID))
}

func TestAutoAllocatePayment(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "accounts", Role: models.RoleAccounts}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	customer := models.Customer{Name: "City Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)

	older, err := CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID, InvoiceDate: day, DueDate: day, TotalAmount: dec("300")})
	require.NoError(t, err)
	newer, err := CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID, InvoiceDate: day, DueDate: day.AddDate(0, 1, 0), TotalAmount: dec("500")})
	require.NoError(t, err)

	pay, err := RecordPayment(db, actor, PaymentInput{
		CustomerID: customer.ID, Amount: dec("400"), PaymentDate: day, Method: models.MethodCheque, AutoAllocate: true,
	})
	require.NoError(t, err)
	require.Len(t, pay.Allocations, 2)
	assert.True(t, pay.Unallocated.IsZero())

	paid, err := PaidAmounts(db, []uint{older.ID, newer.ID})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, DeriveStatus(paid[older.ID], older.TotalAmount))
	assert.Equal(t, models.PaymentPartial, DeriveStatus(paid[newer.ID], newer.TotalAmount))
	assert.True(t, paid[newer.ID].Equal(dec("100")))
}

func TestInvoicesAndPaymentsNeedActiveCustomer(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "accounts", Role: models.RoleAccounts}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	customer := models.Customer{Name: "Closed Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)
	require.NoError(t, db.Model(&customer).Update("is_active", false).Error)

	_, err := CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID, InvoiceDate: day, DueDate: day, TotalAmount: dec("100")})
	assert.ErrorIs(t, err, ErrCustomerInactive)
	_, err = RecordPayment(db, actor, PaymentInput{CustomerID: customer.ID, Amount: dec("100"), PaymentDate: day, Method: models.MethodCash})
	assert.ErrorIs(t, err, ErrCustomerInactive)
	_, err = CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID + 1, InvoiceDate: day, DueDate: day, TotalAmount: dec("100")})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestAmountsFinerThanStoredScaleAreRejected(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "accounts", Role: models.RoleAccounts}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	customer := models.Customer{Name: "City Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)

	_, err := CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID, InvoiceDate: day, DueDate: day, TotalAmount: dec("100.00005")})
	assert.ErrorIs(t, err, ErrAmountPrecision)
	_, err = CreateInvoice(db, actor, InvoiceInput{
		CustomerID: customer.ID, InvoiceDate: day, DueDate: day,
		Items: []InvoiceItemInput{{ProductID: 1, Quantity: 2, UnitPrice: dec("9.99999")}},
	})
	assert.ErrorIs(t, err, ErrAmountPrecision)

	inv, err := CreateInvoice(db, actor, InvoiceInput{CustomerID: customer.ID, InvoiceDate: day, DueDate: day, TotalAmount: dec("100")})
	require.NoError(t, err)

	_, err = RecordPayment(db, actor, PaymentInput{CustomerID: customer.ID, Amount: dec("0.00001"), PaymentDate: day, Method: models.MethodCash})
	assert.ErrorIs(t, err, ErrAmountPrecision)
	_, err = RecordPayment(db, actor, PaymentInput{
		CustomerID: customer.ID, Amount: dec("50"), PaymentDate: day, Method: models.MethodCash,
		Allocations: []AllocationRequest{{InvoiceID: inv.ID, Amount: dec("0.00001")}},
	})
	assert.ErrorIs(t, err, ErrAmountPrecision)

	var count int64
	require.NoError(t, db.Model(&models.PaymentAllocation{}).Count(&count).Error)
	assert.Zero(t, count)
}
