package receivables

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrAllocationNotPositive    = errors.New("allocated amount must be greater than zero")
	ErrAmountPrecision          = errors.New("amounts carry at most 4 decimal places")
	ErrAllocationExceedsBalance = errors.New("allocated amount exceeds the invoice balance")
	ErrAllocationExceedsPayment = errors.New("allocations exceed the payment amount")
	ErrDuplicateInvoice         = errors.New("invoice appears more than once")
	ErrInvoiceCustomer          = errors.New("invoice belongs to another customer")
	ErrUnknownInvoice           = errors.New("invoice not found")
)

// InvoiceBalance is an invoice with its paid amount summed from allocations.
type InvoiceBalance struct {
	InvoiceID     uint            `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uint            `json:"customer_id"`
	DueDate       time.Time       `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

func (b InvoiceBalance) Remaining() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount)
}

// AllocationRequest assigns part of a payment to one invoice.
type AllocationRequest struct {
	InvoiceID uint            `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type AllocationResult struct {
	Allocated   decimal.Decimal `json:"allocated_amount"`
	Unallocated decimal.Decimal `json:"unallocated_amount"`
}

// ValidateAllocations accepts the requests only as a whole. available is what
// is left of the payment; anything not allocated stays as customer credit.
func ValidateAllocations(available decimal.Decimal, customerID uint, balances map[uint]InvoiceBalance, reqs []AllocationRequest) (AllocationResult, error) {
	seen := make(map[uint]bool, len(reqs))
	total := decimal.Zero
	for _, r := range reqs {
		if seen[r.InvoiceID] {
			return AllocationResult{}, fmt.Errorf("invoice %d: %w", r.InvoiceID, ErrDuplicateInvoice)
		}
		seen[r.InvoiceID] = true

		inv, ok := balances[r.InvoiceID]
		if !ok {
			return AllocationResult{}, fmt.Errorf("invoice %d: %w", r.InvoiceID, ErrUnknownInvoice)
		}
		if inv.CustomerID != customerID {
			return AllocationResult{}, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, ErrInvoiceCustomer)
		}
		if !r.Amount.IsPositive() {
			return AllocationResult{}, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, ErrAllocationNotPositive)
		}
		if !models.FitsMoneyScale(r.Amount) {
			return AllocationResult{}, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, ErrAmountPrecision)
		}
		if r.Amount.GreaterThan(inv.Remaining()) {
			return AllocationResult{}, fmt.Errorf("invoice %s: %w (balance %s, requested %s)",
				inv.InvoiceNumber, ErrAllocationExceedsBalance, inv.Remaining().StringFixed(2), r.Amount.StringFixed(2))
		}
		total = total.Add(r.Amount)
	}
	if total.GreaterThan(available) {
		return AllocationResult{}, fmt.Errorf("%w (payment %s, allocated %s)",
			ErrAllocationExceedsPayment, available.StringFixed(2), total.StringFixed(2))
	}
	return AllocationResult{Allocated: total, Unallocated: available.Sub(total)}, nil
}

// SuggestFIFO fills the oldest due invoices first until the amount runs out.
func SuggestFIFO(amount decimal.Decimal, balances []InvoiceBalance) []AllocationRequest {
	open := make([]InvoiceBalance, 0, len(balances))
	for _, b := range balances {
		if b.Remaining().IsPositive() {
			open = append(open, b)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].InvoiceID < open[j].InvoiceID
	})

	var out []AllocationRequest
	left := amount
	for _, b := range open {
		if !left.IsPositive() {
			break
		}
		take := decimal.Min(left, b.Remaining())
		out = append(out, AllocationRequest{InvoiceID: b.InvoiceID, Amount: take})
		left = left.Sub(take)
	}
	return out
}
