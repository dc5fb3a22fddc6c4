package chain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the server-side key that authorizes payment payloads.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner parses a hex-encoded secp256k1 private key. An empty key is
// an error: unsigned payment authorizations are not issued.
func NewSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("signer private key is not configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Sign produces a 65-byte [R || S || V] signature over the digest, with
// V adjusted to 27/28 so the contract can ecrecover it directly.
func (s *Signer) Sign(digest [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Address returns the signer's on-chain address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}
