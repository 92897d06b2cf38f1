// Package config holds node configuration, genesis construction, and TLS
// material loading.
package config

import (
	"encoding/json"
	"os"
)

// TokenConfig names the fungible token deployed at genesis.
type TokenConfig struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// GenesisConfig describes the chain's initial state: native allocations,
// the administrator, and the single token and bar contracts to deploy.
type GenesisConfig struct {
	ChainID  string            `json:"chain_id"`
	Alloc    map[string]uint64 `json:"alloc"`     // pubkey hex → initial native balance
	BarOwner string            `json:"bar_owner"` // administrator pubkey hex
	Token    TokenConfig       `json:"token"`
}

// SeedPeer is a peer to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// TLSConfig holds PEM paths for mutual TLS between nodes.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	NodeCert string `json:"node_cert"`
	NodeKey  string `json:"node_key"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `json:"node_id"`
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	RPCAuthToken string        `json:"rpc_auth_token"` // empty → no auth
	P2PPort      int           `json:"p2p_port"`
	MaxBlockTxs  int           `json:"max_block_txs"` // max transactions per block; 0 → 500
	Validators   []string      `json:"validators"`    // authorised proposer pubkey hexes
	SeedPeers    []SeedPeer    `json:"seed_peers"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "barchain-dev",
			Alloc:   map[string]uint64{},
			Token:   TokenConfig{Name: "BeerToken", Symbol: "BEER"},
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
