package dispatch

import (
	"context"
	"testing"
	"time"

	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/orders"
	"pharmadist-backend/internal/receivables"
	"pharmadist-backend/internal/returns"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	admin = auth.Actor{ID: 1, Name: "admin", Role: models.RoleAdmin}
	sales = auth.Actor{ID: 2, Name: "sales", Role: models.RoleSales}
	day   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	customer models.Customer
	product  models.Product
	batchA   models.Batch
	batchB   models.Batch
}

func setup(t *testing.T) *fixture {
	db := database.OpenTestDB(t)
	f := &fixture{db: db, svc: NewService(db)}
	f.svc.today = func() time.Time { return day }

	f.customer = models.Customer{Name: "City Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&f.customer).Error)
	f.product = models.Product{Name: "Paracetamol 500", SKU: "PARA500", PackType: "strip", PackSize: 10, IsActive: true}
	require.NoError(t, db.Create(&f.product).Error)

	f.batchA = models.Batch{ProductID: f.product.ID, BatchNumber: "A", CurrentStock: 100, ImportDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.batchB = models.Batch{ProductID: f.product.ID, BatchNumber: "B", CurrentStock: 50, ImportDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&f.batchA).Error)
	require.NoError(t, db.Create(&f.batchB).Error)
	return f
}

func (f *fixture) stock(t *testing.T, id uint) models.Batch {
	var b models.Batch
	require.NoError(t, f.db.First(&b, id).Error)
	return b
}

func (f *fixture) line(batch models.Batch, qty int) LineInput {
	return LineInput{ProductID: f.product.ID, BatchID: batch.ID, Quantity: qty}
}

func TestChallanEditAppliesNetAdjustment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchA, 20)}})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, ch.Status)
	assert.Equal(t, 2, ch.Items[0].NumberOfPacks)
	assert.Equal(t, 80, f.stock(t, f.batchA.ID).CurrentStock)

	_, err = f.svc.Update(ctx, sales, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchA, 35)}})
	require.NoError(t, err)
	assert.Equal(t, 65, f.stock(t, f.batchA.ID).CurrentStock)

	// same lines again: nothing moves
	_, err = f.svc.Update(ctx, sales, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchA, 35)}})
	require.NoError(t, err)
	assert.Equal(t, 65, f.stock(t, f.batchA.ID).CurrentStock)

	// moving the lines to batch B returns A's stock
	_, err = f.svc.Update(ctx, sales, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchB, 10)}})
	require.NoError(t, err)
	assert.Equal(t, 100, f.stock(t, f.batchA.ID).CurrentStock)
	assert.Equal(t, 40, f.stock(t, f.batchB.ID).CurrentStock)
}

func TestChallanFailedEditChangesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchA, 20)}})
	require.NoError(t, err)

	// A gives back 20 but B cannot cover 60
	_, err = f.svc.Update(ctx, sales, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchB, 60)}})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Equal(t, 80, f.stock(t, f.batchA.ID).CurrentStock)
	assert.Equal(t, 50, f.stock(t, f.batchB.ID).CurrentStock)

	var items []models.DispatchLineItem
	require.NoError(t, f.db.Where("challan_id = ?", ch.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].Quantity)
}

func TestChallanCreateRejectsOverdraw(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchB, 51)}})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 50, f.stock(t, f.batchB.ID).CurrentStock)
}

func TestChallanApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchA, 20)}})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, sales, ch.ID, approval.ActionApprove, "")
	assert.ErrorIs(t, err, approval.ErrNotAllowed)

	_, err = f.svc.Decide(ctx, admin, ch.ID, approval.ActionReject, "")
	assert.ErrorIs(t, err, approval.ErrReasonRequired)

	rejected, err := f.svc.Decide(ctx, admin, ch.ID, approval.ActionReject, "wrong customer")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, rejected.Status)
	assert.Equal(t, 100, f.stock(t, f.batchA.ID).CurrentStock)

	_, err = f.svc.Decide(ctx, admin, ch.ID, approval.ActionApprove, "")
	assert.ErrorIs(t, err, approval.ErrAlreadyDecided)

	_, err = f.svc.Update(ctx, admin, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchA, 1)}})
	assert.ErrorIs(t, err, approval.ErrAlreadyDecided)
}

func TestChallanDeleteKeepsStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchA, 20)}})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, sales, ch.ID))

	assert.Equal(t, 80, f.stock(t, f.batchA.ID).CurrentStock)
	assert.ErrorIs(t, f.svc.Delete(ctx, sales, ch.ID), ErrChallanNotFound)
}

func TestChallanAgainstSalesOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(f.db, sales, orders.CreateInput{
		CustomerID: f.customer.ID,
		OrderDate:  day,
		Items:      []orders.ItemInput{{ProductID: f.product.ID, Quantity: 30}},
	}, day)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, f.batchA.ID, item.BatchID)
	assert.Equal(t, 30, f.stock(t, f.batchA.ID).ReservedStock)

	line := f.line(f.batchA, 10)
	line.SalesOrderItemID = &item.ID
	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, SalesOrderID: &order.ID, Date: day, Lines: []LineInput{line}})
	require.NoError(t, err)

	a := f.stock(t, f.batchA.ID)
	assert.Equal(t, 90, a.CurrentStock)
	assert.Equal(t, 20, a.ReservedStock)

	var reloaded models.SalesOrder
	require.NoError(t, f.db.Preload("Items").First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderPartiallyDelivered, reloaded.Status)
	assert.Equal(t, 10, reloaded.Items[0].DeliveredQty)

	line.Quantity = 20
	_, err = f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, SalesOrderID: &order.ID, Date: day, Lines: []LineInput{line}})
	require.NoError(t, err)
	require.NoError(t, f.db.Preload("Items").First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderDelivered, reloaded.Status)
	assert.Equal(t, 0, f.stock(t, f.batchA.ID).ReservedStock)

	// deleting the first challan takes its 10 units out of the order
	require.NoError(t, f.svc.Delete(ctx, sales, ch.ID))
	require.NoError(t, f.db.Preload("Items").First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderPartiallyDelivered, reloaded.Status)
	assert.Equal(t, 20, reloaded.Items[0].DeliveredQty)
}

func TestReferencedChallanKeepsItsStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rs := returns.NewService(f.db)

	ch, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchA, 20)}})
	require.NoError(t, err)

	// goods only come back against an approved challan
	_, err = rs.Create(ctx, admin, returns.Input{
		CustomerID: f.customer.ID, ChallanID: &ch.ID, Date: day, Reason: "damaged",
		Items: []returns.ItemInput{{ProductID: f.product.ID, BatchID: f.batchA.ID, Quantity: 20}},
	})
	require.ErrorIs(t, err, returns.ErrChallanPending)

	// a live return pins the challan: no edit, no reject
	mr := models.MaterialReturn{
		ReturnNumber: "MR-TEST-1",
		CustomerID:   f.customer.ID,
		ChallanID:    &ch.ID,
		Date:         day,
		Status:       models.ApprovalPending,
		Items:        []models.MaterialReturnItem{{ProductID: f.product.ID, BatchID: f.batchA.ID, Quantity: 20}},
	}
	require.NoError(t, f.db.Create(&mr).Error)

	_, err = f.svc.Decide(ctx, admin, ch.ID, approval.ActionReject, "wrong customer")
	assert.ErrorIs(t, err, ErrChallanInUse)
	_, err = f.svc.Update(ctx, sales, ch.ID, UpdateInput{Date: day, Lines: []LineInput{f.line(f.batchA, 5)}})
	assert.ErrorIs(t, err, ErrChallanInUse)
	assert.Equal(t, 80, f.stock(t, f.batchA.ID).CurrentStock)

	// a rejected return no longer counts
	require.NoError(t, f.db.Model(&mr).Update("status", models.ApprovalRejected).Error)
	_, err = f.svc.Decide(ctx, admin, ch.ID, approval.ActionReject, "wrong customer")
	require.NoError(t, err)
	assert.Equal(t, 100, f.stock(t, f.batchA.ID).CurrentStock)

	// invoices pin the challan the same way
	billed, err := f.svc.Create(ctx, sales, CreateInput{CustomerID: f.customer.ID, Date: day, Lines: []LineInput{f.line(f.batchB, 10)}})
	require.NoError(t, err)
	_, err = receivables.CreateInvoice(f.db, admin, receivables.InvoiceInput{
		CustomerID: f.customer.ID, ChallanID: &billed.ID, InvoiceDate: day, DueDate: day, TotalAmount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, admin, billed.ID, approval.ActionReject, "duplicate")
	assert.ErrorIs(t, err, ErrChallanInUse)
	assert.Equal(t, 40, f.stock(t, f.batchB.ID).CurrentStock)

	// after approval a return restores stock once and the challan is final
	_, err = f.svc.Decide(ctx, admin, billed.ID, approval.ActionApprove, "")
	require.NoError(t, err)
	ret, err := rs.Create(ctx, admin, returns.Input{
		CustomerID: f.customer.ID, ChallanID: &billed.ID, Date: day, Reason: "near expiry",
		Items: []returns.ItemInput{{ProductID: f.product.ID, BatchID: f.batchB.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = rs.Decide(ctx, admin, ret.ID, approval.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, 44, f.stock(t, f.batchB.ID).CurrentStock)

	_, err = f.svc.Decide(ctx, admin, billed.ID, approval.ActionReject, "late")
	assert.ErrorIs(t, err, approval.ErrAlreadyDecided)
	assert.Equal(t, 44, f.stock(t, f.batchB.ID).CurrentStock)
}
