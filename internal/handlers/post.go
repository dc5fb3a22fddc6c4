package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/cache"
	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/middleware"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

// postCacheTTL bounds staleness of the single-post read cache.
const postCacheTTL = 30 * time.Second

// PostHandler manages creator post CRUD.
type PostHandler struct {
	db       *gorm.DB
	cache    *cache.Store
	registry *chain.Registry
}

// NewPostHandler constructs PostHandler.
func NewPostHandler(db *gorm.DB, store *cache.Store, registry *chain.Registry) *PostHandler {
	return &PostHandler{db: db, cache: store, registry: registry}
}

type postRequest struct {
	Title        string `json:"title" validate:"required,max=255"`
	Price        string `json:"price" validate:"required"`
	Image        string `json:"image" validate:"omitempty,url"`
	TokenAddress string `json:"token_address" validate:"required,eth_addr"`
	ChainID      int64  `json:"chain_id" validate:"required,gt=0"`
}

func (h *PostHandler) validatePostRequest(req *postRequest) error {
	amount, err := utils.ParseAmount(req.Price)
	if err != nil || amount.Sign() == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price must be a positive integer string")
	}
	if !h.registry.Known(req.ChainID) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported chain id")
	}
	return nil
}

// CreatePost creates a paid post. The owner address comes from the
// authenticated user's wallet, never from the request.
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validatePostRequest(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	if user.WalletAddress == nil {
		return fiber.NewError(fiber.StatusBadRequest, "a wallet address is required to create posts")
	}

	post := models.Post{
		Title:        req.Title,
		Price:        req.Price,
		Image:        req.Image,
		TokenAddress: strings.ToLower(req.TokenAddress),
		ChainID:      req.ChainID,
		OwnerAddress: *user.WalletAddress,
	}

	if err := h.db.Create(&post).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": post})
}

// GetPost returns a single post, served from the cache when fresh.
func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var cached models.Post
	if hit, _ := h.cache.Get(c.UserContext(), "post:"+id.String(), &cached); hit {
		return c.JSON(fiber.Map{"success": true, "data": cached})
	}

	var post models.Post
	if err := h.db.First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		return err
	}

	_ = h.cache.Set(c.UserContext(), "post:"+id.String(), post, postCacheTTL)

	return c.JSON(fiber.Map{"success": true, "data": post})
}

// ListPosts returns paginated posts, optionally filtered by owner.
func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Post{})

	if owner := strings.TrimSpace(c.Query("owner")); owner != "" {
		if !utils.IsHexAddress(owner) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid owner address")
		}
		query = query.Where("owner_address = ?", strings.ToLower(owner))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var posts []models.Post
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&posts).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    posts,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// UpdatePost mutates a post after the ownership check.
func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	post, err := h.loadOwnedPost(c)
	if err != nil {
		return err
	}

	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validatePostRequest(&req); err != nil {
		return err
	}

	post.Title = req.Title
	post.Price = req.Price
	post.Image = req.Image
	post.TokenAddress = strings.ToLower(req.TokenAddress)
	post.ChainID = req.ChainID

	if err := h.db.Save(post).Error; err != nil {
		return err
	}

	_ = h.cache.Delete(c.UserContext(), "post:"+post.ID.String())

	return c.JSON(fiber.Map{"success": true, "data": post})
}

// DeletePost removes a post after the ownership check.
func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	post, err := h.loadOwnedPost(c)
	if err != nil {
		return err
	}

	if err := h.db.Delete(&models.Post{}, "id = ?", post.ID).Error; err != nil {
		return err
	}

	_ = h.cache.Delete(c.UserContext(), "post:"+post.ID.String())

	return c.JSON(fiber.Map{"success": true, "message": "post deleted"})
}

// loadOwnedPost loads the post from the id param and verifies the
// caller's wallet matches the owner address.
func (h *PostHandler) loadOwnedPost(c *fiber.Ctx) (*models.Post, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var post models.Post
	if err := h.db.First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		return nil, err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	if user.WalletAddress == nil || !strings.EqualFold(*user.WalletAddress, post.OwnerAddress) {
		return nil, fiber.NewError(fiber.StatusForbidden, "you do not own this post")
	}

	return &post, nil
}
