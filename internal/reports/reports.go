package reports

import (
	"fmt"
	"io"
	"time"

	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/receivables"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const sheetName = "Sheet1"

type ReceivableRow struct {
	InvoiceNumber string
	CustomerName  string
	InvoiceDate   time.Time
	DueDate       time.Time
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Balance       decimal.Decimal
	Status        models.PaymentStatus
	DaysOverdue   int
}

// DaysOverdue counts whole days past due for an unpaid balance.
func DaysOverdue(due, asOf time.Time, balance decimal.Decimal) int {
	if !balance.IsPositive() {
		return 0
	}
	days := int(asOf.Sub(due).Hours() / 24)
	return max(days, 0)
}

// ReceivableRows lists every invoice with an open balance as of asOf.
func ReceivableRows(db *gorm.DB, asOf time.Time) ([]ReceivableRow, error) {
	var invoices []models.Invoice
	if err := db.Preload("Customer").Order("due_date, id").Find(&invoices).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	paid, err := receivables.PaidAmounts(db, ids)
	if err != nil {
		return nil, err
	}

	var rows []ReceivableRow
	for _, inv := range invoices {
		view := receivables.NewInvoiceView(inv, paid[inv.ID])
		if !view.Balance.IsPositive() {
			continue
		}
		name := ""
		if inv.Customer != nil {
			name = inv.Customer.Name
		}
		rows = append(rows, ReceivableRow{
			InvoiceNumber: inv.InvoiceNumber,
			CustomerName:  name,
			InvoiceDate:   inv.InvoiceDate,
			DueDate:       inv.DueDate,
			Total:         inv.TotalAmount,
			Paid:          view.PaidAmount,
			Balance:       view.Balance,
			Status:        view.PaymentStatus,
			DaysOverdue:   DaysOverdue(inv.DueDate, asOf, view.Balance),
		})
	}
	return rows, nil
}

type ExpiryRow struct {
	ProductName  string
	SKU          string
	BatchNumber  string
	ExpiryDate   time.Time
	DaysLeft     int
	CurrentStock int
	Reserved     int
}

// ExpiryRows lists batches with stock that expire within days of today,
// already expired ones included.
func ExpiryRows(db *gorm.DB, today time.Time, days int) ([]ExpiryRow, error) {
	var batches []models.Batch
	err := db.Preload("Product").
		Where("current_stock > 0").
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", today.AddDate(0, 0, days)).
		Order("expiry_date, id").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	rows := make([]ExpiryRow, 0, len(batches))
	for _, b := range batches {
		r := ExpiryRow{
			BatchNumber:  b.BatchNumber,
			ExpiryDate:   *b.ExpiryDate,
			DaysLeft:     int(b.ExpiryDate.Sub(today).Hours() / 24),
			CurrentStock: b.CurrentStock,
			Reserved:     b.ReservedStock,
		}
		if b.Product != nil {
			r.ProductName = b.Product.Name
			r.SKU = b.Product.SKU
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func writeSheet(w io.Writer, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range header {
		ref, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, ref, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for i, v := range row {
			ref, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, ref, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func WriteReceivables(w io.Writer, rows []ReceivableRow) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{
			r.InvoiceNumber,
			r.CustomerName,
			r.InvoiceDate.Format("2006-01-02"),
			r.DueDate.Format("2006-01-02"),
			money(r.Total),
			money(r.Paid),
			money(r.Balance),
			string(r.Status),
			r.DaysOverdue,
		})
	}
	return writeSheet(w, []string{"Invoice", "Customer", "Invoice Date", "Due Date", "Total", "Paid", "Balance", "Status", "Days Overdue"}, data)
}

func WriteExpiry(w io.Writer, rows []ExpiryRow) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{
			r.ProductName,
			r.SKU,
			r.BatchNumber,
			r.ExpiryDate.Format("2006-01-02"),
			r.DaysLeft,
			r.CurrentStock,
			r.Reserved,
		})
	}
	return writeSheet(w, []string{"Product", "SKU", "Batch", "Expiry Date", "Days Left", "Stock", "Reserved"}, data)
}

// FileName builds e.g. receivables-20240301.xlsx.
func FileName(kind string, at time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", kind, at.Format("20060102"))
}
