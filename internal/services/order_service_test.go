package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/database"
	"github.com/example/xfans/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestOrderService(t *testing.T, db *gorm.DB, ttl time.Duration) *OrderService {
	t.Helper()
	signer, err := chain.NewSigner(testSignerKey)
	require.NoError(t, err)
	registry := chain.NewRegistry(map[int64]string{1: "http://localhost:8545"}, testContract)
	payments := NewPaymentService(signer, registry, zap.NewNop().Sugar())
	return NewOrderService(db, payments, nil, ttl, zap.NewNop().Sugar())
}

func seedUserAndPost(t *testing.T, db *gorm.DB) (*models.User, *models.Post) {
	t.Helper()

	wallet := "0x2222222222222222222222222222222222222222"
	user := models.User{
		Username:      "buyer",
		PasswordHash:  "x",
		WalletAddress: &wallet,
		Role:          models.RoleUser,
	}
	require.NoError(t, db.Create(&user).Error)

	post := models.Post{
		Title:        "exclusive set",
		Price:        "1000000000000000000",
		TokenAddress: models.ZeroAddress,
		ChainID:      1,
		OwnerAddress: "0x3333333333333333333333333333333333333333",
	}
	require.NoError(t, db.Create(&post).Error)

	return &user, &post
}

func TestCreateOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, tx, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, post.Price, order.Amount)
	assert.Equal(t, post.ID, order.PostID)
	assert.Len(t, order.ID, 66)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), order.ExpiresAt, 5*time.Second)

	require.NotNil(t, tx)
	assert.Equal(t, order.ID, tx.OrderID)
	assert.Equal(t, post.Price, tx.Value)
}

func TestCreateOrderUnknownPost(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, _ := seedUserAndPost(t, db)

	_, _, err := svc.CreateOrder(context.Background(), user.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateOrderRejectsDuplicatePending(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	_, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, _, err = svc.CreateOrder(ctx, user.ID, post.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateOrderAllowsRetryAfterExpiry(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, -time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	// First order is born already past its TTL.
	_, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, _, err = svc.CreateOrder(ctx, user.ID, post.ID)
	assert.NoError(t, err)
}

func TestCreateOrderBuildFailureLeavesNoRow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, _ := seedUserAndPost(t, db)
	ctx := context.Background()

	post := models.Post{
		Title:        "overpriced",
		Price:        strings.Repeat("9", 78),
		TokenAddress: models.ZeroAddress,
		ChainID:      1,
		OwnerAddress: "0x3333333333333333333333333333333333333333",
	}
	require.NoError(t, db.Create(&post).Error)

	_, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)

	// Once the price is fixed a retry succeeds immediately; no stale
	// pending order blocks it.
	require.NoError(t, db.Model(&models.Post{}).
		Where("id = ?", post.ID).
		Update("price", "1000000000000000000").Error)

	_, _, err = svc.CreateOrder(ctx, user.ID, post.ID)
	assert.NoError(t, err)
}

func TestUpdateOrderStatusToCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	txHash := "0xabcd000000000000000000000000000000000000000000000000000000000000"
	updated, err := svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted, &txHash)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)
	require.NotNil(t, updated.TxHash)
	assert.Equal(t, txHash, *updated.TxHash)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
}

func TestUpdateOrderStatusCompletedRequiresTxHash(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFailed, nil)
	require.NoError(t, err)

	// Terminal states have no outgoing edges.
	txHash := "0xdead"
	_, err = svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted, &txHash)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
}

func TestUpdateOrderStatusRejectsMalformedID(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)

	_, err := svc.UpdateOrderStatus(context.Background(), "not-hex", models.OrderStatusFailed, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCloseOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	closed, err := svc.CloseOrder(ctx, user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)

	// Closing twice fails: the order is no longer PENDING.
	_, err = svc.CloseOrder(ctx, user.ID, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCloseOrderOwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, err = svc.CloseOrder(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUpdateExpiredOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, -time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	count, err := svc.UpdateExpiredOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusExpired, stored.Status)

	// Re-running is a no-op.
	count, err = svc.UpdateExpiredOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExpiredOrderRejectsLateCompletion(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, -time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	_, err = svc.UpdateExpiredOrders(ctx)
	require.NoError(t, err)

	// A webhook arriving after expiry must not resurrect the order.
	txHash := "0xfeed"
	_, err = svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted, &txHash)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOrderService(t, db, 30*time.Minute)
	user, post := seedUserAndPost(t, db)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, user.ID, post.ID)
	require.NoError(t, err)

	page, err := svc.ListOrdersByUser(ctx, user.ID, nil, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, order.ID, page.Orders[0].ID)

	byWallet, err := svc.ListOrdersByWallet(ctx, *user.WalletAddress, nil, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byWallet.Total)

	_, err = svc.ListOrdersByWallet(ctx, "0x9999999999999999999999999999999999999999", nil, 0, 20)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	pending := models.OrderStatusPending
	filtered, err := svc.ListAllOrders(ctx, &pending, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered.Total)

	completed := models.OrderStatusCompleted
	empty, err := svc.ListAllOrders(ctx, &completed, 0, 20)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}
