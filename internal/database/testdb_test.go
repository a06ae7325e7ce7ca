package database

import (
	"testing"

	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenTestDBStartsEmpty(t *testing.T) {
	db := OpenTestDB(t)
	for _, m := range []any{&models.Batch{}, &models.DeliveryChallan{}, &models.PaymentAllocation{}, &models.Appointment{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}

	require.NoError(t, db.Create(&models.Customer{Name: "City Pharmacy", IsActive: true}).Error)
	var n int64
	require.NoError(t, db.Model(&models.Customer{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	require.NoError(t, OpenTestDB(t).Model(&models.Customer{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOpenTestDBRollsBackFailedTransactions(t *testing.T) {
	db := OpenTestDB(t)
	p := models.Product{Name: "Paracetamol", SKU: "PARA500", PackSize: 10, IsActive: true}
	require.NoError(t, db.Create(&p).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Batch{ProductID: p.ID, BatchNumber: "A", CurrentStock: 10}).Error; err != nil {
			return err
		}
		// current_stock has a non-negative check
		return tx.Create(&models.Batch{ProductID: p.ID, BatchNumber: "B", CurrentStock: -1}).Error
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.Batch{}).Count(&n).Error)
	assert.Zero(t, n)
}
