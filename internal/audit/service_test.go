package audit

import (
	"testing"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndoProductUpdate(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "admin", Role: models.RoleAdmin}

	p := models.Product{Name: "Paracetamol", SKU: "PARA500", PackSize: 10, IsActive: true}
	require.NoError(t, db.Create(&p).Error)
	before := p
	p.Name = "Paracetamol 500mg"
	require.NoError(t, db.Save(&p).Error)
	require.NoError(t, WriteLog(db, LogOptions{
		Actor:      actor,
		EntityType: EntityProduct,
		EntityID:   p.ID,
		Action:     models.AuditActionUpdate,
		Before:     before,
		After:      p,
	}))

	var log models.AuditLog
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", EntityProduct, p.ID).First(&log).Error)
	require.NoError(t, UndoLog(db, log.ID, actor))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, "Paracetamol", reloaded.Name)

	assert.ErrorIs(t, UndoLog(db, log.ID, actor), ErrAlreadyUndone)
}

func TestUndoRefusesStockDocuments(t *testing.T) {
	db := database.OpenTestDB(t)
	actor := auth.Actor{ID: 1, Name: "admin", Role: models.RoleAdmin}

	require.NoError(t, WriteLog(db, LogOptions{
		Actor:      actor,
		EntityType: EntityDeliveryChallan,
		EntityID:   7,
		Action:     models.AuditActionCreate,
	}))
	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.ErrorIs(t, UndoLog(db, log.ID, actor), ErrNotUndoable)
}
