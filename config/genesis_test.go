package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/config"
	"github.com/krugbar/barchain/internal/testutil"
	"github.com/krugbar/barchain/wallet"
)

func TestContractAddressDeterministic(t *testing.T) {
	a := config.TokenAddress("net-a")
	assert.Equal(t, a, config.TokenAddress("net-a"))
	assert.Len(t, a, 40)

	assert.NotEqual(t, a, config.TokenAddress("net-b"), "addresses differ per network")
	assert.NotEqual(t, a, config.BarAddress("net-a"), "token and bar addresses differ")
}

func TestCreateGenesisBlock(t *testing.T) {
	owner, err := wallet.Generate()
	require.NoError(t, err)
	validator, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Genesis.BarOwner = owner.PubKey()
	cfg.Genesis.Alloc = map[string]uint64{owner.PubKey(): 1000}

	state := testutil.NewStateDB()
	block, err := config.CreateGenesisBlock(cfg, state, validator.PrivKey())
	require.NoError(t, err)

	assert.Equal(t, int64(0), block.Header.Height)
	assert.True(t, config.IsGenesisHash(block.Header.PrevHash))
	require.NoError(t, block.Verify(validator.PrivKey().Public()))

	acc, err := state.GetAccount(owner.PubKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), acc.Balance)

	tok, err := state.GetToken(config.TokenAddress(cfg.Genesis.ChainID))
	require.NoError(t, err)
	assert.Equal(t, owner.PubKey(), tok.Owner)
	assert.Equal(t, "BeerToken", tok.Name)

	bar, err := state.GetBar(config.BarAddress(cfg.Genesis.ChainID))
	require.NoError(t, err)
	assert.Equal(t, owner.PubKey(), bar.Owner)
	assert.Equal(t, tok.Address, bar.TokenAddress)
	assert.False(t, bar.Open)
	assert.Zero(t, bar.PricePerToken)
}

func TestCreateGenesisBlockRequiresOwner(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	_, err = config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	assert.Error(t, err)
}

func TestCreateGenesisBlockRejectsMalformedOwner(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Genesis.BarOwner = "not-a-pubkey"
	_, err = config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	assert.Error(t, err)
}
