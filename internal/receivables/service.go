package receivables

import (
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvoicePaid      = errors.New("invoice has payments; remove the allocations first")
	ErrInvoiceTotal     = errors.New("invoice total must be greater than zero")
	ErrInvoiceDueDate   = errors.New("due date cannot be before the invoice date")
	ErrPaymentAmount    = errors.New("payment amount must be greater than zero")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerInactive = errors.New("customer is inactive")
	ErrChallanInvalid   = errors.New("challan not found, rejected or for another customer")
	ErrNothingToSuggest = errors.New("customer has no outstanding invoices")
)

func checkCustomer(tx *gorm.DB, id uint) error {
	var customer models.Customer
	err := tx.First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCustomerNotFound
	}
	if err != nil {
		return err
	}
	if !customer.IsActive {
		return ErrCustomerInactive
	}
	return nil
}

// InvoiceView is an invoice with its derived payment fields.
type InvoiceView struct {
	models.Invoice
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	Balance       decimal.Decimal      `json:"balance"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
}

func NewInvoiceView(inv models.Invoice, paid decimal.Decimal) InvoiceView {
	return InvoiceView{
		Invoice:       inv,
		PaidAmount:    paid,
		Balance:       inv.TotalAmount.Sub(paid),
		PaymentStatus: DeriveStatus(paid, inv.TotalAmount),
	}
}

// PaidAmounts sums allocation rows per invoice.
func PaidAmounts(tx *gorm.DB, invoiceIDs []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		InvoiceID uint
		Paid      decimal.Decimal
	}
	err := tx.Model(&models.PaymentAllocation{}).
		Select("invoice_id, COALESCE(SUM(allocated_amount), 0) AS paid").
		Where("invoice_id IN ?", invoiceIDs).
		Group("invoice_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.InvoiceID] = r.Paid
	}
	return out, nil
}

// Balances loads invoices with their paid amounts. When lock is set the
// invoice rows are locked FOR UPDATE so concurrent payments serialise.
func Balances(tx *gorm.DB, query func(*gorm.DB) *gorm.DB, lock bool) ([]InvoiceBalance, error) {
	q := tx.Model(&models.Invoice{})
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var invoices []models.Invoice
	if err := query(q).Order("due_date, id").Find(&invoices).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	paid, err := PaidAmounts(tx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceBalance, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, InvoiceBalance{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerID:    inv.CustomerID,
			DueDate:       inv.DueDate,
			TotalAmount:   inv.TotalAmount,
			PaidAmount:    paid[inv.ID],
		})
	}
	return out, nil
}

// OutstandingBalances lists a customer's invoices that still have a balance.
func OutstandingBalances(tx *gorm.DB, customerID uint, lock bool) ([]InvoiceBalance, error) {
	all, err := Balances(tx, func(q *gorm.DB) *gorm.DB {
		return q.Where("customer_id = ?", customerID)
	}, lock)
	if err != nil {
		return nil, err
	}
	open := all[:0]
	for _, b := range all {
		if b.Remaining().IsPositive() {
			open = append(open, b)
		}
	}
	return open, nil
}

type InvoiceItemInput struct {
	ProductID uint
	BatchID   *uint
	Quantity  int
	UnitPrice decimal.Decimal
}

type InvoiceInput struct {
	CustomerID  uint
	ChallanID   *uint
	InvoiceDate time.Time
	DueDate     time.Time
	Note        string
	// TotalAmount is used when there are no items.
	TotalAmount decimal.Decimal
	Items       []InvoiceItemInput
}

func CreateInvoice(db *gorm.DB, actor auth.Actor, in InvoiceInput) (*InvoiceView, error) {
	if in.DueDate.Before(in.InvoiceDate) {
		return nil, ErrInvoiceDueDate
	}
	inv := models.Invoice{
		InvoiceNumber: models.NewDocumentNumber(models.PrefixInvoice, in.InvoiceDate),
		CustomerID:    in.CustomerID,
		ChallanID:     in.ChallanID,
		InvoiceDate:   in.InvoiceDate,
		DueDate:       in.DueDate,
		Note:          in.Note,
		CreatedBy:     actor.ID,
		TotalAmount:   in.TotalAmount,
	}
	if len(in.Items) > 0 {
		inv.TotalAmount = decimal.Zero
		for _, it := range in.Items {
			if !models.FitsMoneyScale(it.UnitPrice) {
				return nil, ErrAmountPrecision
			}
			line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			inv.Items = append(inv.Items, models.InvoiceItem{
				ProductID: it.ProductID,
				BatchID:   it.BatchID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				LineTotal: line,
			})
			inv.TotalAmount = inv.TotalAmount.Add(line)
		}
	}
	if !inv.TotalAmount.IsPositive() {
		return nil, ErrInvoiceTotal
	}
	if !models.FitsMoneyScale(inv.TotalAmount) {
		return nil, ErrAmountPrecision
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkCustomer(tx, in.CustomerID); err != nil {
			return err
		}
		if in.ChallanID != nil {
			var ch models.DeliveryChallan
			err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&ch, *in.ChallanID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChallanInvalid
			}
			if err != nil {
				return err
			}
			if ch.CustomerID != in.CustomerID || ch.Status == models.ApprovalRejected {
				return ErrChallanInvalid
			}
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityInvoice,
			EntityID:    inv.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Invoice created: %s (%s)", inv.InvoiceNumber, inv.TotalAmount.StringFixed(2)),
			After:       inv,
		})
	})
	if err != nil {
		return nil, err
	}
	view := NewInvoiceView(inv, decimal.Zero)
	return &view, nil
}

// DeleteInvoice is blocked while any payment is allocated to the invoice.
func DeleteInvoice(db *gorm.DB, actor auth.Actor, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&inv, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvoiceNotFound
		}
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.PaymentAllocation{}).Where("invoice_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrInvoicePaid
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Invoice{}, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityInvoice,
			EntityID:    inv.ID,
			Action:      models.AuditActionDelete,
			Description: "Invoice deleted: " + inv.InvoiceNumber,
			Before:      inv,
		})
	})
}

type PaymentInput struct {
	CustomerID  uint
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      models.PaymentMethod
	Reference   string
	Note        string
	Allocations []AllocationRequest

	// AutoAllocate ignores Allocations and fills the oldest due invoices.
	AutoAllocate bool
}

// PaymentView is a payment with its allocation totals.
type PaymentView struct {
	models.Payment
	AllocationResult
}

// RecordPayment stores the payment and its allocations together; a single
// invalid allocation rejects the whole payment.
func RecordPayment(db *gorm.DB, actor auth.Actor, in PaymentInput) (*PaymentView, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrPaymentAmount
	}
	if !models.FitsMoneyScale(in.Amount) {
		return nil, ErrAmountPrecision
	}
	p := models.Payment{
		CustomerID:  in.CustomerID,
		Amount:      in.Amount,
		PaymentDate: in.PaymentDate,
		Method:      in.Method,
		Reference:   in.Reference,
		Note:        in.Note,
		CreatedBy:   actor.ID,
	}
	var res AllocationResult

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkCustomer(tx, in.CustomerID); err != nil {
			return err
		}

		open, err := OutstandingBalances(tx, in.CustomerID, true)
		if err != nil {
			return err
		}
		reqs := in.Allocations
		if in.AutoAllocate {
			reqs = SuggestFIFO(in.Amount, open)
		}
		// invoices of other customers must still be reported as such
		byID, err := balancesFor(tx, reqs, open)
		if err != nil {
			return err
		}
		res, err = ValidateAllocations(in.Amount, in.CustomerID, byID, reqs)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			p.Allocations = append(p.Allocations, models.PaymentAllocation{InvoiceID: r.InvoiceID, AllocatedAmount: r.Amount})
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPayment,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Payment received: %s, allocated %s", p.Amount.StringFixed(2), res.Allocated.StringFixed(2)),
			After:       p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &PaymentView{Payment: p, AllocationResult: res}, nil
}

// balancesFor indexes open, adding any requested invoice missing from it so
// the allocator sees fully paid or foreign invoices too.
func balancesFor(tx *gorm.DB, reqs []AllocationRequest, open []InvoiceBalance) (map[uint]InvoiceBalance, error) {
	byID := make(map[uint]InvoiceBalance, len(open))
	for _, b := range open {
		byID[b.InvoiceID] = b
	}
	var missing []uint
	for _, r := range reqs {
		if _, ok := byID[r.InvoiceID]; !ok {
			missing = append(missing, r.InvoiceID)
		}
	}
	if len(missing) == 0 {
		return byID, nil
	}
	extra, err := Balances(tx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id IN ?", missing)
	}, true)
	if err != nil {
		return nil, err
	}
	for _, b := range extra {
		byID[b.InvoiceID] = b
	}
	return byID, nil
}

func loadPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	var p models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("payment_id = ?", p.ID).Order("id").Find(&p.Allocations).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func allocatedSum(allocs []models.PaymentAllocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.AllocatedAmount)
	}
	return sum
}

// AllocatePayment spends the unallocated remainder of an existing payment.
// An invoice already allocated from this payment is rejected as a duplicate.
func AllocatePayment(db *gorm.DB, actor auth.Actor, paymentID uint, reqs []AllocationRequest) (*PaymentView, error) {
	var view PaymentView
	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := loadPayment(tx, paymentID)
		if err != nil {
			return err
		}
		before := *p
		before.Allocations = append([]models.PaymentAllocation(nil), p.Allocations...)

		for _, a := range p.Allocations {
			for _, r := range reqs {
				if r.InvoiceID == a.InvoiceID {
					return fmt.Errorf("invoice %d: %w", r.InvoiceID, ErrDuplicateInvoice)
				}
			}
		}

		open, err := OutstandingBalances(tx, p.CustomerID, true)
		if err != nil {
			return err
		}
		byID, err := balancesFor(tx, reqs, open)
		if err != nil {
			return err
		}
		available := p.Amount.Sub(allocatedSum(p.Allocations))
		if _, err := ValidateAllocations(available, p.CustomerID, byID, reqs); err != nil {
			return err
		}

		for _, r := range reqs {
			a := models.PaymentAllocation{PaymentID: p.ID, InvoiceID: r.InvoiceID, AllocatedAmount: r.Amount}
			if err := tx.Create(&a).Error; err != nil {
				return err
			}
			p.Allocations = append(p.Allocations, a)
		}
		allocated := allocatedSum(p.Allocations)
		view = PaymentView{
			Payment:          *p,
			AllocationResult: AllocationResult{Allocated: allocated, Unallocated: p.Amount.Sub(allocated)},
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPayment,
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Payment %d allocated, %s left", p.ID, view.Unallocated.StringFixed(2)),
			Before:      before,
			After:       p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeletePayment removes the payment and its allocations; the invoices'
// paid amounts drop with them.
func DeletePayment(db *gorm.DB, actor auth.Actor, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		p, err := loadPayment(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", p.ID).Delete(&models.PaymentAllocation{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Payment{}, p.ID).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPayment,
			EntityID:    p.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Payment deleted: %s", p.Amount.StringFixed(2)),
			Before:      p,
		})
	})
}

func PaymentViewOf(p models.Payment) PaymentView {
	allocated := allocatedSum(p.Allocations)
	return PaymentView{
		Payment:          p,
		AllocationResult: AllocationResult{Allocated: allocated, Unallocated: p.Amount.Sub(allocated)},
	}
}
