package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a strictly forward-moving payment state.
type OrderStatus int

const (
	OrderStatusPending   OrderStatus = 0
	OrderStatusCompleted OrderStatus = 1
	OrderStatusExpired   OrderStatus = 2
	OrderStatusFailed    OrderStatus = 3
	OrderStatusClosed    OrderStatus = 4
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPending:   "pending",
	OrderStatusCompleted: "completed",
	OrderStatusExpired:   "expired",
	OrderStatusFailed:    "failed",
	OrderStatusClosed:    "closed",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseOrderStatus resolves a status name to its enum value.
func ParseOrderStatus(name string) (OrderStatus, bool) {
	for status, n := range orderStatusNames {
		if n == name {
			return status, true
		}
	}
	return 0, false
}

// CanTransitionTo reports whether moving from s to next is legal. Only
// PENDING has outgoing edges; every other status is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s != OrderStatusPending {
		return false
	}
	switch next {
	case OrderStatusCompleted, OrderStatusExpired, OrderStatusFailed, OrderStatusClosed:
		return true
	}
	return false
}

// Order records an intent to pay for a Post. The primary key is the
// 0x-prefixed hex encoding of 32 random bytes, matching the bytes32
// order identifier the payment contract sees.
type Order struct {
	ID        string      `gorm:"primaryKey;size:66" json:"id"`
	PostID    uuid.UUID   `gorm:"type:uuid;index" json:"post_id"`
	Post      *Post       `json:"post,omitempty"`
	UserID    uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User      *User       `json:"user,omitempty"`
	Amount    string      `gorm:"type:numeric(78,0)" json:"amount"`
	Status    OrderStatus `gorm:"index" json:"status"`
	TxHash    *string     `gorm:"size:66" json:"tx_hash,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// IsExpired reports whether the order's TTL has elapsed.
func (o *Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
