package admin

import (
	"net/http/httptest"
	"strings"
	"testing"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminApp(actorID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, actorID)
		c.Locals(auth.CtxUserRoleKey, models.RoleAdmin)
		c.Locals(auth.CtxUserNameKey, "Root")
		return c.Next()
	})
	app.Post("/users", CreateUserHandler())
	app.Put("/users/:id", UpdateUserHandler())
	return app
}

func send(t *testing.T, app *fiber.App, method, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	database.DB = database.OpenTestDB(t)
	root, err := auth.CreateUser(database.DB, "Root", "root@example.com", "secret-123", models.RoleAdmin)
	require.NoError(t, err)
	app := newAdminApp(root.ID)

	body := `{"name":"Ravi","email":"ravi@example.com","password":"secret-123","role":"sales"}`
	assert.Equal(t, fiber.StatusCreated, send(t, app, "POST", "/users", body))
	assert.Equal(t, fiber.StatusConflict, send(t, app, "POST", "/users", strings.Replace(body, "ravi@", "RAVI@", 1)))

	bad := `{"name":"X","email":"x@example.com","password":"secret-123","role":"owner"}`
	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "POST", "/users", bad))
}

func TestUpdateUserKeepsLastAdmin(t *testing.T) {
	database.DB = database.OpenTestDB(t)
	root, err := auth.CreateUser(database.DB, "Root", "root@example.com", "secret-123", models.RoleAdmin)
	require.NoError(t, err)
	app := newAdminApp(root.ID)

	assert.Equal(t, fiber.StatusConflict, send(t, app, "PUT", "/users/1", `{"is_active":false}`))
	assert.Equal(t, fiber.StatusConflict, send(t, app, "PUT", "/users/1", `{"role":"sales"}`))
	assert.Equal(t, fiber.StatusNotFound, send(t, app, "PUT", "/users/99", `{"name":"Ghost"}`))

	_, err = auth.CreateUser(database.DB, "Second", "second@example.com", "secret-123", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, send(t, app, "PUT", "/users/1", `{"role":"manager"}`))

	var u models.User
	require.NoError(t, database.DB.First(&u, root.ID).Error)
	assert.Equal(t, models.RoleManager, u.Role)
}
