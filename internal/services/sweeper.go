package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs the periodic maintenance loops: the order expiry sweep
// every minute and the refresh-token cleanup daily.
type Sweeper struct {
	orders *OrderService
	tokens *TokenService
	log    *zap.SugaredLogger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(orders *OrderService, tokens *TokenService, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{orders: orders, tokens: tokens, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	orderTicker := time.NewTicker(time.Minute)
	tokenTicker := time.NewTicker(24 * time.Hour)
	defer orderTicker.Stop()
	defer tokenTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-orderTicker.C:
			if _, err := s.orders.UpdateExpiredOrders(ctx); err != nil {
				s.log.Errorw("order expiry sweep failed", "error", err)
			}
		case <-tokenTicker.C:
			deleted, err := s.tokens.CleanupExpired(ctx)
			if err != nil {
				s.log.Errorw("refresh token cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.log.Infow("cleaned up expired refresh tokens", "count", deleted)
			}
		}
	}
}
