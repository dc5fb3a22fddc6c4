package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// maxUint256 is one past the largest value the payment contract's
// uint256 fields can carry.
var maxUint256 = new(big.Int).Lsh(big.NewInt(1), 256)

// GenerateOrderID returns 32 random bytes as a 0x-prefixed hex string.
func GenerateOrderID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// DecodeOrderID parses an order identifier into its 32 raw bytes.
func DecodeOrderID(id string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(id, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("order id is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("order id must decode to 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// IsHexAddress reports whether s looks like a 20-byte 0x hex address.
func IsHexAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ParseAmount validates a decimal string as a non-negative integer that
// fits in a uint256 and returns it as a big.Int. Monetary values never
// pass through floats.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if amount.Cmp(maxUint256) >= 0 {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return amount, nil
}
