// Package chain defines Kaspa network parameters and the RPC client the
// inscription pipeline uses to submit transactions and fetch UTXOs.
package chain

import "fmt"

// Network identifies which Kaspa network a component is configured for.
type Network string

const (
	Mainnet   Network = "mainnet"
	Testnet10 Network = "testnet-10"
)

// Params holds the network-specific constants the inscription pipeline and
// RPC client need. The engine targets exactly one chain family, so the
// registry is keyed by Network rather than by coin symbol.
type Params struct {
	Network        Network
	Name           string
	Decimals       uint8
	ScriptAddrID   byte   // P2SH address version/prefix byte
	PubKeyAddrID   byte   // pay-to-pubkey address version/prefix byte
	Bech32Prefix   string // kaspa / kaspatest address human-readable prefix
	DefaultRPCAddr string
}

var registry = map[Network]*Params{
	Mainnet: {
		Network:        Mainnet,
		Name:           "kaspa-mainnet",
		Decimals:       8,
		ScriptAddrID:   0x08,
		PubKeyAddrID:   0x00,
		Bech32Prefix:   "kaspa",
		DefaultRPCAddr: "http://localhost:16110",
	},
	Testnet10: {
		Network:        Testnet10,
		Name:           "kaspa-testnet-10",
		Decimals:       8,
		ScriptAddrID:   0x19,
		PubKeyAddrID:   0x11,
		Bech32Prefix:   "kaspatest",
		DefaultRPCAddr: "http://localhost:16210",
	},
}

// Get returns the Params for a network, or an error if unrecognized.
func Get(network Network) (*Params, error) {
	p, ok := registry[network]
	if !ok {
		return nil, fmt.Errorf("chain: unsupported network %q", network)
	}
	return p, nil
}

// ParseNetwork validates a network string from configuration.
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if _, ok := registry[n]; !ok {
		return "", fmt.Errorf("chain: unrecognized KASPA_NETWORK %q", s)
	}
	return n, nil
}
