package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/middleware"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

// UserHandler manages the authenticated user's profile and settings.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetMe returns the authenticated user's profile.
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user.PublicProfile()})
}

type updateMeRequest struct {
	Email         string `json:"email" validate:"omitempty,email"`
	WalletAddress string `json:"wallet_address" validate:"omitempty,eth_addr"`
}

// UpdateMe updates profile fields. Uniqueness violations surface as
// validation errors.
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Email != "" {
		var count int64
		if err := h.db.Model(&models.User{}).
			Where("email = ? AND id <> ?", req.Email, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "email already taken")
		}
		updates["email"] = req.Email
	}
	if req.WalletAddress != "" {
		wallet := strings.ToLower(req.WalletAddress)
		var count int64
		if err := h.db.Model(&models.User{}).
			Where("wallet_address = ? AND id <> ?", wallet, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "wallet address already taken")
		}
		updates["wallet_address"] = wallet
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// DeleteMe removes the authenticated user's account.
func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.db.Delete(&models.RefreshToken{}, "user_id = ?", userID).Error; err != nil {
		return err
	}
	if err := h.db.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "account deleted"})
}

type updateSettingsRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// UpdateSettings changes the account password after re-verifying the
// current one.
func (h *UserHandler) UpdateSettings(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateSettingsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	passwordHash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"password_hash": passwordHash,
		"updated_at":    time.Now(),
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "settings updated"})
}
