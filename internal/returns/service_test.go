package returns

import (
	"context"
	"testing"
	"time"

	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnableQuantities(t *testing.T) {
	dispatched := []models.DispatchLineItem{
		{BatchID: 1, Quantity: 20},
		{BatchID: 1, Quantity: 5},
		{BatchID: 2, Quantity: 10},
	}
	returned := []models.MaterialReturnItem{{BatchID: 1, Quantity: 8}}

	got := ReturnableQuantities(dispatched, returned)
	assert.Equal(t, map[uint]int{1: 17, 2: 10}, got)

	assert.NoError(t, CheckReturnable(got, []ItemInput{{BatchID: 1, Quantity: 10}, {BatchID: 1, Quantity: 7}}))
	assert.ErrorIs(t, CheckReturnable(got, []ItemInput{{BatchID: 1, Quantity: 10}, {BatchID: 1, Quantity: 8}}), ErrExceedsDispatch)
	assert.ErrorIs(t, CheckReturnable(got, []ItemInput{{BatchID: 3, Quantity: 1}}), ErrExceedsDispatch)
}

func TestReturnApprovalRestoresStock(t *testing.T) {
	db := database.OpenTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	admin := auth.Actor{ID: 1, Name: "admin", Role: models.RoleAdmin}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	customer := models.Customer{Name: "City Pharmacy", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)
	product := models.Product{Name: "Amoxicillin", SKU: "AMOX250", PackSize: 1, IsActive: true}
	require.NoError(t, db.Create(&product).Error)
	batch := models.Batch{ProductID: product.ID, BatchNumber: "X1", CurrentStock: 40, ImportDate: day}
	require.NoError(t, db.Create(&batch).Error)

	ch := models.DeliveryChallan{
		ChallanNumber: "DC-TEST-1",
		CustomerID:    customer.ID,
		Date:          day,
		Status:        models.ApprovalApproved,
		Items:         []models.DispatchLineItem{{ProductID: product.ID, BatchID: batch.ID, Quantity: 10}},
	}
	require.NoError(t, db.Create(&ch).Error)

	_, err := svc.Create(ctx, admin, Input{
		CustomerID: customer.ID, ChallanID: &ch.ID, Date: day,
		Items: []ItemInput{{ProductID: product.ID, BatchID: batch.ID, Quantity: 11}},
	})
	require.ErrorIs(t, err, ErrExceedsDispatch)

	mr, err := svc.Create(ctx, admin, Input{
		CustomerID: customer.ID, ChallanID: &ch.ID, Date: day, Reason: "damaged",
		Items: []ItemInput{{ProductID: product.ID, BatchID: batch.ID, Quantity: 6}},
	})
	require.NoError(t, err)

	var b models.Batch
	require.NoError(t, db.First(&b, batch.ID).Error)
	assert.Equal(t, 40, b.CurrentStock, "pending returns do not move stock")

	approved, err := svc.Decide(ctx, admin, mr.ID, approval.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)

	require.NoError(t, db.First(&b, batch.ID).Error)
	assert.Equal(t, 46, b.CurrentStock)

	// only 4 units of the challan are still returnable
	_, err = svc.Create(ctx, admin, Input{
		CustomerID: customer.ID, ChallanID: &ch.ID, Date: day,
		Items: []ItemInput{{ProductID: product.ID, BatchID: batch.ID, Quantity: 5}},
	})
	assert.ErrorIs(t, err, ErrExceedsDispatch)

	assert.ErrorIs(t, svc.Delete(ctx, admin, mr.ID), approval.ErrAlreadyDecided)
}
