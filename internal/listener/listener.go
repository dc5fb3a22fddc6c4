package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/middleware"
)

const (
	pollInterval    = 10 * time.Second
	webhookAttempts = 3
	webhookBackoff  = 2 * time.Second
)

// Listener watches one chain for PaymentCompleted events and reports
// each one to the backend over the signed webhook.
type Listener struct {
	chainID  int64
	registry *chain.Registry
	client   *http.Client
	baseURL  string
	apiKey   string
	secret   string
	backoff  time.Duration
	log      *zap.SugaredLogger
}

// New constructs a Listener for the given chain id.
func New(chainID int64, registry *chain.Registry, baseURL, apiKey, secret string, log *zap.SugaredLogger) *Listener {
	return &Listener{
		chainID:  chainID,
		registry: registry,
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		apiKey:   apiKey,
		secret:   secret,
		backoff:  webhookBackoff,
		log:      log.With("chain_id", chainID),
	}
}

// Run blocks until ctx is cancelled. It prefers a log subscription and
// falls back to polling when the RPC endpoint does not support one.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.watch(ctx); err != nil && ctx.Err() == nil {
			l.log.Warnw("log watch interrupted, reconnecting", "error", err)
			select {
			case <-time.After(l.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (l *Listener) filterQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{l.registry.Contract()},
		Topics:    [][]common.Hash{{chain.PaymentCompletedTopic}},
	}
}

func (l *Listener) watch(ctx context.Context) error {
	client, err := l.registry.Client(ctx, l.chainID)
	if err != nil {
		return err
	}

	logs := make(chan types.Log, 64)
	sub, err := client.SubscribeFilterLogs(ctx, l.filterQuery(), logs)
	if err != nil {
		l.log.Infow("subscription unavailable, polling for logs", "error", err)
		return l.poll(ctx, client)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case entry := <-logs:
			l.handleLog(ctx, entry)
		}
	}
}

// poll scans new blocks for matching logs at a fixed interval. Used
// against HTTP-only RPC endpoints.
func (l *Listener) poll(ctx context.Context, client chainReader) error {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	next := head + 1

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		head, err := client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head < next {
			continue
		}

		query := l.filterQuery()
		query.FromBlock = new(big.Int).SetUint64(next)
		query.ToBlock = new(big.Int).SetUint64(head)

		entries, err := client.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			l.handleLog(ctx, entry)
		}
		next = head + 1
	}
}

// chainReader is the slice of ethclient.Client the poller needs.
type chainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

func (l *Listener) handleLog(ctx context.Context, entry types.Log) {
	if entry.Removed {
		return
	}
	if len(entry.Topics) < 2 {
		l.log.Warnw("payment event missing order id topic", "tx", entry.TxHash.Hex())
		return
	}

	orderID := entry.Topics[1].Hex()
	txHash := entry.TxHash.Hex()

	l.log.Infow("payment completed on-chain", "order_id", orderID, "tx", txHash, "block", entry.BlockNumber)

	if err := l.reportCompletion(ctx, orderID, txHash); err != nil {
		l.log.Errorw("webhook delivery failed", "order_id", orderID, "error", err)
	}
}

// reportCompletion posts the status update to the backend with the
// webhook auth headers, retrying transient failures a few times.
func (l *Listener) reportCompletion(ctx context.Context, orderID, txHash string) error {
	body, err := json.Marshal(map[string]string{
		"status":  "completed",
		"tx_hash": txHash,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/orders/%s/status", l.baseURL, orderID)

	var lastErr error
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(l.backoff << attempt):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = l.deliver(ctx, url, body)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (l *Listener) deliver(ctx context.Context, url string, body []byte) error {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := middleware.ComputeWebhookSignature(l.secret, body, timestamp)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", l.apiKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", fmt.Sprintf("%x", signature))

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook rejected: status %d: %s", resp.StatusCode, payload)
	}
	return nil
}
