package receivables

import (
	"errors"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request types
// -------------------------

type InvoiceItemRequest struct {
	ProductID uint            `json:"product_id" validate:"required"`
	BatchID   *uint           `json:"batch_id"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	CustomerID  uint                 `json:"customer_id" validate:"required"`
	ChallanID   *uint                `json:"challan_id"`
	InvoiceDate string               `json:"invoice_date" validate:"required"`
	DueDate     string               `json:"due_date" validate:"required"`
	Note        string               `json:"note" validate:"max=255"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Items       []InvoiceItemRequest `json:"items" validate:"dive"`
}

type CreatePaymentRequest struct {
	CustomerID   uint                `json:"customer_id" validate:"required"`
	Amount       decimal.Decimal     `json:"amount"`
	PaymentDate  string              `json:"payment_date" validate:"required"`
	Method       string              `json:"method" validate:"required"`
	Reference    string              `json:"reference" validate:"max=100"`
	Note         string              `json:"note" validate:"max=255"`
	Allocations  []AllocationRequest `json:"allocations"`
	AutoAllocate bool                `json:"auto_allocate"`
}

type AllocateRequest struct {
	Allocations []AllocationRequest `json:"allocations" validate:"required,min=1"`
}

func httpError(err error, funcName string, data any) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrCustomerNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvoicePaid):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvoiceTotal),
		errors.Is(err, ErrInvoiceDueDate),
		errors.Is(err, ErrPaymentAmount),
		errors.Is(err, ErrCustomerInactive),
		errors.Is(err, ErrChallanInvalid),
		errors.Is(err, ErrAllocationNotPositive),
		errors.Is(err, ErrAmountPrecision),
		errors.Is(err, ErrAllocationExceedsBalance),
		errors.Is(err, ErrAllocationExceedsPayment),
		errors.Is(err, ErrDuplicateInvoice),
		errors.Is(err, ErrInvoiceCustomer),
		errors.Is(err, ErrUnknownInvoice),
		errors.Is(err, ErrNothingToSuggest):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError(config.GetLogger(), "receivables", funcName, "receivables workflow failed", data, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Receivables could not be saved, no changes were applied")
}

// -------------------------
// Invoices
// -------------------------

// GET /api/invoices?customer_id=1&status=partial
func ListInvoicesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		db := database.DB.WithContext(c.UserContext())
		dbq := db.Model(&models.Invoice{}).Preload("Customer")

		customerID, err := validation.QueryID(c, "customer_id")
		if err != nil {
			return err
		}
		if customerID > 0 {
			dbq = dbq.Where("customer_id = ?", customerID)
		}
		var status models.PaymentStatus
		if s := c.Query("status"); s != "" {
			status = models.PaymentStatus(s)
			if !status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
			}
		}

		var invoices []models.Invoice
		if err := dbq.Order("invoice_date DESC, id DESC").Find(&invoices).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Invoices could not be listed")
		}
		ids := make([]uint, 0, len(invoices))
		for _, inv := range invoices {
			ids = append(ids, inv.ID)
		}
		paid, err := PaidAmounts(db, ids)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Paid amounts could not be calculated")
		}

		res := make([]InvoiceView, 0, len(invoices))
		for _, inv := range invoices {
			v := NewInvoiceView(inv, paid[inv.ID])
			// status is derived, so it is filtered here rather than in SQL
			if status != "" && v.PaymentStatus != status {
				continue
			}
			res = append(res, v)
		}
		return c.JSON(res)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		db := database.DB.WithContext(c.UserContext())
		var inv models.Invoice
		if err := db.Preload("Customer").Preload("Items").First(&inv, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Invoice not found")
		}
		paid, err := PaidAmounts(db, []uint{inv.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Paid amount could not be calculated")
		}
		return c.JSON(NewInvoiceView(inv, paid[inv.ID]))
	}
}

// POST /api/invoices
func CreateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInvoiceRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		invoiceDate, err := validation.ParseDate("invoice_date", body.InvoiceDate)
		if err != nil {
			return err
		}
		dueDate, err := validation.ParseDate("due_date", body.DueDate)
		if err != nil {
			return err
		}

		in := InvoiceInput{
			CustomerID:  body.CustomerID,
			ChallanID:   body.ChallanID,
			InvoiceDate: invoiceDate,
			DueDate:     dueDate,
			Note:        body.Note,
			TotalAmount: body.TotalAmount,
		}
		for _, it := range body.Items {
			if it.UnitPrice.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "unit_price cannot be negative")
			}
			in.Items = append(in.Items, InvoiceItemInput{
				ProductID: it.ProductID,
				BatchID:   it.BatchID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}

		view, err := CreateInvoice(database.DB.WithContext(c.UserContext()), actor, in)
		if err != nil {
			return httpError(err, "CreateInvoiceHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// DELETE /api/invoices/:id
func DeleteInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		if err := DeleteInvoice(database.DB.WithContext(c.UserContext()), actor, id); err != nil {
			return httpError(err, "DeleteInvoiceHandler", id)
		}
		return c.JSON(fiber.Map{"message": "Invoice deleted"})
	}
}

// GET /api/customers/:id/outstanding
func OutstandingHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		open, err := OutstandingBalances(database.DB.WithContext(c.UserContext()), id, false)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Outstanding invoices could not be loaded")
		}
		total := decimal.Zero
		for _, b := range open {
			total = total.Add(b.Remaining())
		}
		return c.JSON(fiber.Map{"invoices": open, "total_outstanding": total})
	}
}

// -------------------------
// Payments
// -------------------------

// GET /api/payments?customer_id=1
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Payment{}).
			Preload("Customer").Preload("Allocations")

		customerID, err := validation.QueryID(c, "customer_id")
		if err != nil {
			return err
		}
		if customerID > 0 {
			dbq = dbq.Where("customer_id = ?", customerID)
		}

		var payments []models.Payment
		if err := dbq.Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Payments could not be listed")
		}
		res := make([]PaymentView, 0, len(payments))
		for _, p := range payments {
			res = append(res, PaymentViewOf(p))
		}
		return c.JSON(res)
	}
}

// GET /api/payments/suggest?customer_id=1&amount=600
func SuggestAllocationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := validation.QueryID(c, "customer_id")
		if err != nil {
			return err
		}
		if customerID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "customer_id is required")
		}
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil || !amount.IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be a positive number")
		}

		open, err := OutstandingBalances(database.DB.WithContext(c.UserContext()), customerID, false)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Outstanding invoices could not be loaded")
		}
		if len(open) == 0 {
			return httpError(ErrNothingToSuggest, "SuggestAllocationsHandler", customerID)
		}
		suggested := SuggestFIFO(amount, open)
		allocated := decimal.Zero
		for _, s := range suggested {
			allocated = allocated.Add(s.Amount)
		}
		return c.JSON(fiber.Map{
			"allocations":        suggested,
			"allocated_amount":   allocated,
			"unallocated_amount": amount.Sub(allocated),
		})
	}
}

// POST /api/payments
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePaymentRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		date, err := validation.ParseDate("payment_date", body.PaymentDate)
		if err != nil {
			return err
		}
		method := models.PaymentMethod(body.Method)
		if !method.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid payment method")
		}

		view, err := RecordPayment(database.DB.WithContext(c.UserContext()), actor, PaymentInput{
			CustomerID:   body.CustomerID,
			Amount:       body.Amount,
			PaymentDate:  date,
			Method:       method,
			Reference:    body.Reference,
			Note:         body.Note,
			Allocations:  body.Allocations,
			AutoAllocate: body.AutoAllocate,
		})
		if err != nil {
			return httpError(err, "CreatePaymentHandler", body)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// POST /api/payments/:id/allocations
func AllocatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body AllocateRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		view, err := AllocatePayment(database.DB.WithContext(c.UserContext()), actor, id, body.Allocations)
		if err != nil {
			return httpError(err, "AllocatePaymentHandler", body)
		}
		return c.JSON(view)
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		if err := DeletePayment(database.DB.WithContext(c.UserContext()), actor, id); err != nil {
			return httpError(err, "DeletePaymentHandler", id)
		}
		return c.JSON(fiber.Map{"message": "Payment deleted"})
	}
}
