package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ContractAddress derives the deterministic 40-char address of a genesis
// contract from the chain ID and a role label ("token" or "bar"). Using the
// chain ID keeps contract addresses distinct across networks.
func ContractAddress(chainID, label string) string {
	h := crypto.HashBytes([]byte(chainID + ":" + label))
	return hex.EncodeToString(h[:20])
}

// TokenAddress returns the genesis token ledger's address.
func TokenAddress(chainID string) string { return ContractAddress(chainID, "token") }

// BarAddress returns the genesis bar contract's address.
func BarAddress(chainID string) string { return ContractAddress(chainID, "bar") }

// CreateGenesisBlock builds and signs block #0: it credits the Alloc
// accounts, deploys the token ledger and the bar contract with the
// configured owner, points the bar at the token, and commits state.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	if cfg.Genesis.BarOwner == "" {
		return nil, errors.New("genesis: bar_owner is required")
	}
	if _, err := crypto.PubKeyFromHex(cfg.Genesis.BarOwner); err != nil {
		return nil, fmt.Errorf("genesis: bar_owner: %w", err)
	}

	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: pubkeyHex,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}

	tokenAddr := TokenAddress(cfg.Genesis.ChainID)
	if err := state.SetToken(&core.Token{
		Address: tokenAddr,
		Name:    cfg.Genesis.Token.Name,
		Symbol:  cfg.Genesis.Token.Symbol,
		Owner:   cfg.Genesis.BarOwner,
	}); err != nil {
		return nil, err
	}

	if err := state.SetBar(&core.Bar{
		Address:      BarAddress(cfg.Genesis.ChainID),
		Owner:        cfg.Genesis.BarOwner,
		Barkeepers:   map[string]bool{},
		TokenAddress: tokenAddr,
		PendingBeer:  map[string]uint64{},
	}); err != nil {
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
