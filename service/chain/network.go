package chain

import (
	"fmt"
	"strings"
)

// Currency describes a chain's native token.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Network holds the canonical parameters of the chain the application
// transacts on. These are the values handed to a wallet provider when it
// has to be taught about the chain (EIP-3085).
type Network struct {
	ChainID     uint64   `json:"chain_id"`
	Name        string   `json:"name"`
	Currency    Currency `json:"native_currency"`
	RPCURL      string   `json:"rpc_url"`
	ExplorerURL string   `json:"explorer_url"`
}

// ShardeumSphinx is the default network.
var ShardeumSphinx = Network{
	ChainID: 8080,
	Name:    "Shardeum Sphinx 1.X",
	Currency: Currency{
		Name:     "SHM",
		Symbol:   "SHM",
		Decimals: 18,
	},
	RPCURL:      "https://sphinx.shardeum.org/",
	ExplorerURL: "https://explorer-sphinx.shardeum.org/",
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallet providers expect.
func (n Network) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// TxURL returns the explorer link for a transaction hash, or "" when no
// explorer is configured.
func (n Network) TxURL(hash string) string {
	if n.ExplorerURL == "" || hash == "" {
		return ""
	}
	return strings.TrimSuffix(n.ExplorerURL, "/") + "/transaction/" + hash
}
