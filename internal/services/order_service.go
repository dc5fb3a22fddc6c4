package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

// OrderService owns the order lifecycle: creation, status transitions,
// the expiry sweep and listings.
type OrderService struct {
	db       *gorm.DB
	payments *PaymentService
	notify   *TelegramService
	ttl      time.Duration
	log      *zap.SugaredLogger
}

// NewOrderService constructs an OrderService with the given order TTL.
func NewOrderService(db *gorm.DB, payments *PaymentService, notify *TelegramService, ttl time.Duration, log *zap.SugaredLogger) *OrderService {
	return &OrderService{db: db, payments: payments, notify: notify, ttl: ttl, log: log}
}

// OrderPage is a single listing page plus the unfiltered total for
// page-count computation.
type OrderPage struct {
	Orders []models.Order
	Total  int64
}

// CreateOrder persists a PENDING order for (user, post) and returns it
// together with the wallet-ready payment transaction. An unexpired
// PENDING order for the same pair is rejected rather than reused.
func (s *OrderService) CreateOrder(ctx context.Context, userID, postID uuid.UUID) (*models.Order, *PaymentTransaction, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: post %s", apperrors.ErrNotFound, postID)
		}
		return nil, nil, err
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ? AND post_id = ? AND status = ? AND expires_at > ?",
			userID, postID, models.OrderStatusPending, time.Now()).
		Count(&existing).Error
	if err != nil {
		return nil, nil, err
	}
	if existing > 0 {
		return nil, nil, fmt.Errorf("%w: a pending order already exists for this post", apperrors.ErrValidation)
	}

	orderID, err := utils.GenerateOrderID()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	order := models.Order{
		ID:        orderID,
		PostID:    post.ID,
		UserID:    userID,
		Amount:    post.Price,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	// Build and sign before persisting: a build failure must not leave a
	// dangling PENDING row that blocks retries until the TTL lapses.
	tx, err := s.payments.BuildTransaction(&order, &post)
	if err != nil {
		return nil, nil, err
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, nil, err
	}

	order.Post = &post
	return &order, tx, nil
}

// UpdateOrderStatus applies a forward-only transition. The write is
// conditional on the previously observed status so a concurrent sweep
// and webhook cannot overwrite each other; the loser of the race gets
// a ValidationError.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, next models.OrderStatus, txHash *string) (*models.Order, error) {
	if _, err := utils.DecodeOrderID(orderID); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
		}
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s",
			apperrors.ErrValidation, order.Status, next)
	}
	if next == models.OrderStatusCompleted && (txHash == nil || *txHash == "") {
		return nil, fmt.Errorf("%w: completed orders require a transaction hash", apperrors.ErrValidation)
	}

	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	if txHash != nil {
		updates["tx_hash"] = *txHash
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: order %s changed concurrently", apperrors.ErrValidation, orderID)
	}

	order.Status = next
	order.TxHash = txHash

	if next == models.OrderStatusCompleted && s.notify != nil {
		go s.notify.NotifyOrderCompleted(order.ID, order.Amount, txHash)
	}

	return &order, nil
}

// CloseOrder lets the owning user close their own PENDING order.
func (s *OrderService) CloseOrder(ctx context.Context, userID uuid.UUID, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order belongs to another user", apperrors.ErrForbidden)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: only PENDING orders can be closed", apperrors.ErrValidation)
	}
	return s.UpdateOrderStatus(ctx, orderID, models.OrderStatusClosed, nil)
}

// UpdateExpiredOrders flips every PENDING order past its TTL to
// EXPIRED. Idempotent and safe to run concurrently: the status
// predicate makes re-runs no-ops.
func (s *OrderService) UpdateExpiredOrders(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND expires_at < ?", models.OrderStatusPending, time.Now()).
		Updates(map[string]any{
			"status":     models.OrderStatusExpired,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Infow("expired pending orders", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// GetOrderByID loads an order with its post.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Post").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns a page of the user's orders, newest first,
// optionally filtered by status.
func (s *OrderService) ListOrdersByUser(ctx context.Context, userID uuid.UUID, status *models.OrderStatus, offset, limit int) (*OrderPage, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	return s.page(query, offset, limit)
}

// ListOrdersByWallet resolves a wallet address to its user and lists
// that user's orders.
func (s *OrderService) ListOrdersByWallet(ctx context.Context, wallet string, status *models.OrderStatus, offset, limit int) (*OrderPage, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "wallet_address = ?", wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no user with wallet %s", apperrors.ErrNotFound, wallet)
		}
		return nil, err
	}
	return s.ListOrdersByUser(ctx, user.ID, status, offset, limit)
}

// ListAllOrders returns a page over every order; admin only at the
// route layer.
func (s *OrderService) ListAllOrders(ctx context.Context, status *models.OrderStatus, offset, limit int) (*OrderPage, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	return s.page(query, offset, limit)
}

func (s *OrderService) page(query *gorm.DB, offset, limit int) (*OrderPage, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := query.Preload("Post").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, err
	}

	return &OrderPage{Orders: orders, Total: total}, nil
}
