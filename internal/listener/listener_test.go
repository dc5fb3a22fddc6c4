package listener

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/middleware"
)

func newTestListener(baseURL string) *Listener {
	registry := chain.NewRegistry(
		map[int64]string{1: "http://localhost:8545"},
		"0x00000000000000000000000000000000000000aa",
	)
	l := New(1, registry, baseURL, "listener-key", "listener-secret", zap.NewNop().Sugar())
	l.backoff = time.Millisecond
	return l
}

func TestReportCompletionSignsWebhook(t *testing.T) {
	var captured struct {
		path      string
		apiKey    string
		timestamp string
		signature string
		body      []byte
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("X-API-Key")
		captured.timestamp = r.Header.Get("X-Timestamp")
		captured.signature = r.Header.Get("X-Signature")
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	l := newTestListener(server.URL)
	orderID := common.HexToHash("0x01").Hex()

	err := l.reportCompletion(context.Background(), orderID, "0xdeadbeef")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/orders/"+orderID+"/status", captured.path)
	assert.Equal(t, "listener-key", captured.apiKey)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	assert.Equal(t, "completed", payload["status"])
	assert.Equal(t, "0xdeadbeef", payload["tx_hash"])

	// The signature must verify against body + timestamp.
	want := middleware.ComputeWebhookSignature("listener-secret", captured.body, captured.timestamp)
	got, err := hex.DecodeString(captured.signature)
	require.NoError(t, err)
	assert.True(t, hmac.Equal(want, got))
}

func TestReportCompletionRetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	l := newTestListener(server.URL)

	err := l.reportCompletion(context.Background(), common.HexToHash("0x02").Hex(), "0xbeef")
	assert.Error(t, err)
	assert.Equal(t, webhookAttempts, attempts)
}

func TestReportCompletionRecoversAfterTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	l := newTestListener(server.URL)

	err := l.reportCompletion(context.Background(), common.HexToHash("0x03").Hex(), "0xbeef")
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
