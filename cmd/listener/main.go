package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/config"
	"github.com/example/xfans/internal/listener"
)

func main() {
	cfg := config.Load()

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap init: %v", err)
	}
	defer zapLog.Sync()
	sugar := zapLog.Sugar()

	if len(cfg.ChainRPCURLs) == 0 {
		sugar.Fatal("CHAIN_RPC_URLS must list at least one chain")
	}
	if cfg.EventListenerAPIKey == "" || cfg.EventListenerAPISecret == "" {
		sugar.Fatal("EVENT_LISTENER_API_KEY and EVENT_LISTENER_API_SECRET must be set")
	}

	baseURL := os.Getenv("BACKEND_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.AppPort
	}

	registry := chain.NewRegistry(cfg.ChainRPCURLs, cfg.PaymentContractAddress)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for chainID := range cfg.ChainRPCURLs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			l := listener.New(id, registry, baseURL, cfg.EventListenerAPIKey, cfg.EventListenerAPISecret, sugar)
			if err := l.Run(ctx); err != nil && ctx.Err() == nil {
				sugar.Errorw("listener exited", "chain_id", id, "error", err)
			}
		}(chainID)
	}

	sugar.Infow("event listener started", "chains", len(cfg.ChainRPCURLs))
	wg.Wait()
}
