package services

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

// orderDataLen is the size of the packed payment payload:
// orderId(32) + amount(32) + token(20) + seller(20) + timestamp(4) + chainId(8).
const orderDataLen = 116

// PaymentTransaction is the wallet-ready transaction returned to the
// client. Monetary fields are decimal strings.
type PaymentTransaction struct {
	To               string `json:"to"`
	Value            string `json:"value"`
	Data             string `json:"data"`
	ChainID          int64  `json:"chain_id"`
	OrderID          string `json:"order_id"`
	Signature        string `json:"signature"`
	RequiresApproval bool   `json:"requires_approval"`
}

// PaymentService encodes, signs and assembles payment transactions for
// pending orders.
type PaymentService struct {
	signer   *chain.Signer
	registry *chain.Registry
	log      *zap.SugaredLogger
}

// NewPaymentService constructs a PaymentService. The signer must be
// configured; orders are never issued with an empty authorization.
func NewPaymentService(signer *chain.Signer, registry *chain.Registry, log *zap.SugaredLogger) *PaymentService {
	return &PaymentService{signer: signer, registry: registry, log: log}
}

// EncodeOrderData produces the canonical packed payload the contract
// verifies. The byte layout is fixed; changing it breaks on-chain
// signature recovery.
func EncodeOrderData(orderID [32]byte, amount *big.Int, token, seller common.Address, timestamp uint32, chainID uint64) []byte {
	buf := make([]byte, 0, orderDataLen)
	buf = append(buf, orderID[:]...)

	amountBytes := make([]byte, 32)
	amount.FillBytes(amountBytes)
	buf = append(buf, amountBytes...)

	buf = append(buf, token.Bytes()...)
	buf = append(buf, seller.Bytes()...)

	buf = append(buf,
		byte(timestamp>>24), byte(timestamp>>16), byte(timestamp>>8), byte(timestamp))

	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(chainID>>uint(shift)))
	}

	return buf
}

// BuildTransaction assembles the signed payment transaction for a
// pending order and its post.
func (s *PaymentService) BuildTransaction(order *models.Order, post *models.Post) (*PaymentTransaction, error) {
	orderID, err := utils.DecodeOrderID(order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	amount, err := utils.ParseAmount(order.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: order amount: %v", apperrors.ErrValidation, err)
	}

	token := common.HexToAddress(post.TokenAddress)
	seller := common.HexToAddress(post.OwnerAddress)
	timestamp := uint32(order.CreatedAt.Unix())

	orderData := EncodeOrderData(orderID, amount, token, seller, timestamp, uint64(post.ChainID))
	digest := crypto.Keccak256(orderData)

	var digest32 [32]byte
	copy(digest32[:], digest)
	signature, err := s.signer.Sign(digest32)
	if err != nil {
		return nil, fmt.Errorf("sign payment payload: %w", err)
	}

	tx := &PaymentTransaction{
		To:        s.registry.Contract().Hex(),
		ChainID:   post.ChainID,
		OrderID:   order.ID,
		Signature: "0x" + hex.EncodeToString(signature),
	}

	if post.IsNativeAsset() {
		calldata, err := chain.PackPayWithNative(orderData, signature)
		if err != nil {
			return nil, fmt.Errorf("encode payWithNative calldata: %w", err)
		}
		tx.Value = amount.String()
		tx.Data = "0x" + hex.EncodeToString(calldata)
	} else {
		calldata, err := chain.PackPayWithERC20(token, amount, orderData, signature)
		if err != nil {
			return nil, fmt.Errorf("encode payWithERC20 calldata: %w", err)
		}
		tx.Value = "0"
		tx.Data = "0x" + hex.EncodeToString(calldata)
		tx.RequiresApproval = true
	}

	return tx, nil
}

// Serialize returns the transaction as base64-encoded JSON for
// transport to the browser wallet.
func (t *PaymentTransaction) Serialize() (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
