package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to a chain RPC endpoint. The returned client implements
// RPCClient. Callers own it and must Close it.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc %s: %w", rpcURL, err)
	}
	return c, nil
}

var _ RPCClient = (*ethclient.Client)(nil)
