package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// paymentABIJSON describes the payment contract surface the backend
// interacts with: two entry points and the completion event.
const paymentABIJSON = `[
	{"type":"function","name":"payWithNative","stateMutability":"payable","inputs":[{"name":"orderData","type":"bytes"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"payWithERC20","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"orderData","type":"bytes"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"event","name":"PaymentCompleted","anonymous":false,"inputs":[{"name":"orderId","type":"bytes32","indexed":true}]}
]`

// PaymentCompletedTopic is the keccak hash of the event signature, used
// to filter logs.
var PaymentCompletedTopic = crypto.Keccak256Hash([]byte("PaymentCompleted(bytes32)"))

var paymentABI = mustParseABI(paymentABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid payment contract ABI: %v", err))
	}
	return parsed
}

// PackPayWithNative encodes calldata for the native-asset payment path.
func PackPayWithNative(orderData, signature []byte) ([]byte, error) {
	return paymentABI.Pack("payWithNative", orderData, signature)
}

// PackPayWithERC20 encodes calldata for the token payment path. The
// contract pulls funds via transferFrom, so the caller must hold an
// approval before submitting this transaction.
func PackPayWithERC20(token common.Address, amount *big.Int, orderData, signature []byte) ([]byte, error) {
	return paymentABI.Pack("payWithERC20", token, amount, orderData, signature)
}
