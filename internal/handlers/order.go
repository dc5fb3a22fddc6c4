package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/middleware"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/services"
	"github.com/example/xfans/internal/utils"
)

// OrderHandler exposes the order lifecycle over HTTP.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type createOrderRequest struct {
	PostID string `json:"post_id" validate:"required,uuid4"`
}

type updateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	TxHash *string `json:"tx_hash" validate:"omitempty,len=66"`
}

// CreateOrder opens a pending order for a post and returns the unsigned
// payment transaction the client should submit on-chain.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid post_id")
	}

	order, tx, err := h.orders.CreateOrder(c.UserContext(), userID, postID)
	if err != nil {
		return err
	}

	serialized, err := tx.Serialize()
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order":          order,
			"transaction":    tx,
			"serialized_txn": serialized,
		},
	})
}

// GetOrder returns a single order to its buyer or to an admin.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	claims, ok := middleware.GetCurrentClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.orders.GetOrderByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	if claims.Role != models.RoleAdmin && order.UserID.String() != claims.UserID {
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateStatus handles both callers of the status endpoint: the signed
// event listener webhook may move a pending order to completed or
// failed, while an authenticated buyer may only close their own order.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	next, ok := models.ParseOrderStatus(strings.ToLower(req.Status))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	orderID := c.Params("id")

	if middleware.IsWebhookAuthenticated(c) {
		if next != models.OrderStatusCompleted && next != models.OrderStatusFailed {
			return fiber.NewError(fiber.StatusBadRequest, "webhook may only set completed or failed")
		}
		order, err := h.orders.UpdateOrderStatus(c.UserContext(), orderID, next, req.TxHash)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": order})
	}

	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	if next != models.OrderStatusClosed {
		return fiber.NewError(fiber.StatusForbidden, "users may only close their own orders")
	}

	order, err := h.orders.CloseOrder(c.UserContext(), userID, orderID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ListMine returns the authenticated user's orders.
func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	status, err := statusFilter(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	page, err := h.orders.ListOrdersByUser(c.UserContext(), userID, status, pg.Offset, pg.Limit)
	if err != nil {
		return err
	}

	return c.JSON(orderPageEnvelope(page, pg))
}

// ListByWallet returns the purchase orders of the user who holds the
// given wallet. The caller must be an admin or that user.
func (h *OrderHandler) ListByWallet(c *fiber.Ctx) error {
	claims, ok := middleware.GetCurrentClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	wallet := strings.ToLower(c.Params("address"))
	if !utils.IsHexAddress(wallet) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid wallet address")
	}

	if claims.Role != models.RoleAdmin {
		var user models.User
		if err := h.db.First(&user, "id = ?", claims.UserID).Error; err != nil {
			return err
		}
		if user.WalletAddress == nil || !strings.EqualFold(*user.WalletAddress, wallet) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}
	}

	status, err := statusFilter(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	page, err := h.orders.ListOrdersByWallet(c.UserContext(), wallet, status, pg.Offset, pg.Limit)
	if err != nil {
		return err
	}

	return c.JSON(orderPageEnvelope(page, pg))
}

// ListAll returns every order, admin only.
func (h *OrderHandler) ListAll(c *fiber.Ctx) error {
	status, err := statusFilter(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	page, err := h.orders.ListAllOrders(c.UserContext(), status, pg.Offset, pg.Limit)
	if err != nil {
		return err
	}

	return c.JSON(orderPageEnvelope(page, pg))
}

func statusFilter(c *fiber.Ctx) (*models.OrderStatus, error) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return nil, nil
	}
	status, ok := models.ParseOrderStatus(strings.ToLower(raw))
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unknown status filter")
	}
	return &status, nil
}

func orderPageEnvelope(page *services.OrderPage, pg utils.Pagination) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    page.Orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    page.Total,
		},
	}
}
