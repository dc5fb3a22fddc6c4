package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/services"
	"github.com/example/xfans/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	tokens *services.TokenService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

type registerRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=64"`
	Password      string `json:"password" validate:"required,min=8,max=128"`
	Email         string `json:"email" validate:"omitempty,email"`
	WalletAddress string `json:"wallet_address" validate:"omitempty,eth_addr"`
}

// Register creates a new user account. Role is always "user"; admin
// accounts are provisioned out of band.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var count int64
	query := h.db.Model(&models.User{}).Where("username = ?", req.Username)
	if req.Email != "" {
		query = query.Or("email = ?", req.Email)
	}
	if req.WalletAddress != "" {
		query = query.Or("wallet_address = ?", strings.ToLower(req.WalletAddress))
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "username, email or wallet already taken")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if req.WalletAddress != "" {
		wallet := strings.ToLower(req.WalletAddress)
		user.WalletAddress = &wallet
	}

	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	pair, err := h.tokens.GenerateTokens(c.UserContext(), &user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":   user.PublicProfile(),
			"tokens": pair,
		},
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing user. Failures are deliberately
// indistinguishable between unknown username and wrong password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	pair, err := h.tokens.GenerateTokens(c.UserContext(), &user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":   user.PublicProfile(),
			"tokens": pair,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, pair, err := h.tokens.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":   user.PublicProfile(),
			"tokens": pair,
		},
	})
}

// Logout invalidates the presented refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.tokens.DeleteRefreshToken(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}
