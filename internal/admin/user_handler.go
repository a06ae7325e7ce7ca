package admin

import (
	"errors"
	"strings"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrLastAdmin = errors.New("the last active admin cannot be demoted or deactivated")

type UserResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	CreatedAt string          `json:"created_at"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// ----------------------------------------
// USERS
// ----------------------------------------

// GET /api/admin/users?role=sales
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.User{})
		if r := c.Query("role"); r != "" {
			role := models.UserRole(r)
			if !role.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
			}
			dbq = dbq.Where("role = ?", role)
		}
		var users []models.User
		if err := dbq.Order("name asc").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Users could not be listed")
		}
		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toUserResponse(u))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/users
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		role := models.UserRole(body.Role)
		if !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
		}
		email := strings.TrimSpace(strings.ToLower(body.Email))

		var user *models.User
		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fiber.NewError(fiber.StatusConflict, "This email is already registered")
			}
			user, err = auth.CreateUser(tx, body.Name, email, body.Password, role)
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityUser,
				EntityID:    user.ID,
				Action:      models.AuditActionCreate,
				Description: "User created: " + user.Email + " (" + string(user.Role) + ")",
				After:       toUserResponse(*user),
			})
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			config.LogError(config.GetLogger(), "admin", "CreateUserHandler", "create user", email, err)
			return fiber.NewError(fiber.StatusInternalServerError, "User could not be created")
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(*user))
	}
}

// PUT /api/admin/users/:id
func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParseID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateUserRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var user models.User
		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&user, id).Error; err != nil {
				return err
			}
			before := toUserResponse(user)

			if body.Name != nil {
				name := strings.TrimSpace(*body.Name)
				if name == "" {
					return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
				}
				user.Name = name
			}
			if body.Role != nil {
				role := models.UserRole(*body.Role)
				if !role.Valid() {
					return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
				}
				user.Role = role
			}
			if body.IsActive != nil {
				user.IsActive = *body.IsActive
			}
			if body.Password != nil {
				hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				user.PasswordHash = string(hash)
			}

			if before.Role == models.RoleAdmin && before.IsActive && (user.Role != models.RoleAdmin || !user.IsActive) {
				var admins int64
				if err := tx.Model(&models.User{}).
					Where("role = ? AND is_active = ? AND id <> ?", models.RoleAdmin, true, user.ID).
					Count(&admins).Error; err != nil {
					return err
				}
				if admins == 0 {
					return ErrLastAdmin
				}
			}

			if err := tx.Save(&user).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityUser,
				EntityID:    user.ID,
				Action:      models.AuditActionUpdate,
				Description: "User updated: " + user.Email,
				Before:      before,
				After:       toUserResponse(user),
			})
		})
		var fe *fiber.Error
		switch {
		case err == nil:
			return c.JSON(toUserResponse(user))
		case errors.As(err, &fe):
			return fe
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		case errors.Is(err, ErrLastAdmin):
			return fiber.NewError(fiber.StatusConflict, ErrLastAdmin.Error())
		default:
			config.LogError(config.GetLogger(), "admin", "UpdateUserHandler", "update user", id, err)
			return fiber.NewError(fiber.StatusInternalServerError, "User could not be updated")
		}
	}
}
