package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto"
)

func TestBlockSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	block := core.NewBlock(1, "prev", pub.Hex(), nil)
	block.Sign(priv)

	assert.Equal(t, block.ComputeHash(), block.Hash)
	require.NoError(t, block.Verify(pub))

	// A header change invalidates both hash and signature.
	block.Header.Height = 2
	assert.NotEqual(t, block.ComputeHash(), block.Hash)
}

func TestBlockVerifyWrongKey(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, otherPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	block := core.NewBlock(1, "prev", "proposer", nil)
	block.Sign(priv)
	assert.Error(t, block.Verify(otherPub))
}

func TestComputeTxRoot(t *testing.T) {
	empty := core.ComputeTxRoot(nil)
	assert.NotEmpty(t, empty)

	tx1 := &core.Transaction{ID: "aaa"}
	tx2 := &core.Transaction{ID: "bbb"}
	r12 := core.ComputeTxRoot([]*core.Transaction{tx1, tx2})
	r21 := core.ComputeTxRoot([]*core.Transaction{tx2, tx1})
	assert.NotEqual(t, empty, r12)
	assert.NotEqual(t, r12, r21, "tx root is order-sensitive")
}
