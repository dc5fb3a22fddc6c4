package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusExpired, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusClosed, true},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusFailed, false},
		{OrderStatusExpired, OrderStatusCompleted, false},
		{OrderStatusFailed, OrderStatusClosed, false},
		{OrderStatusClosed, OrderStatusCompleted, false},
	}

	for _, tc := range cases {
		t.Run(tc.from.String()+"_to_"+tc.to.String(), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := ParseOrderStatus("completed")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusCompleted, status)

	_, ok = ParseOrderStatus("paid")
	assert.False(t, ok)
}

func TestOrderIsExpired(t *testing.T) {
	now := time.Now()
	order := Order{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, order.IsExpired(now))
	assert.True(t, order.IsExpired(now.Add(2*time.Minute)))
}
