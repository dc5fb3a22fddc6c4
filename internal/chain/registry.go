package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/example/xfans/internal/cache"
)

// Registry resolves chain ids to RPC endpoints and hands out dialed
// clients from an injected bounded cache, so no module-level client
// state exists.
type Registry struct {
	rpcURLs  map[int64]string
	contract common.Address
	clients  *cache.TTLCache[int64, *ethclient.Client]
}

// NewRegistry builds a registry over the configured chain id -> RPC URL
// map and the payment contract address (shared across chains).
func NewRegistry(rpcURLs map[int64]string, contractAddress string) *Registry {
	return &Registry{
		rpcURLs:  rpcURLs,
		contract: common.HexToAddress(contractAddress),
		clients:  cache.NewTTLCache[int64, *ethclient.Client](8, 30*time.Minute),
	}
}

// Known reports whether a chain id has a configured RPC endpoint.
func (r *Registry) Known(chainID int64) bool {
	_, ok := r.rpcURLs[chainID]
	return ok
}

// Contract returns the payment contract address.
func (r *Registry) Contract() common.Address {
	return r.contract
}

// Client returns a connected RPC client for the chain, reusing cached
// connections while they are fresh.
func (r *Registry) Client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	if client, ok := r.clients.Get(chainID); ok {
		return client, nil
	}

	url, ok := r.rpcURLs[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %d", chainID)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}

	r.clients.Set(chainID, client)
	return client, nil
}
