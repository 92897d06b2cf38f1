package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto"
)

func poolTx(t *testing.T, nonce uint64) *core.Transaction {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := core.NewTransaction("barchain-test", core.TxBarOpen, pub.Hex(), nonce, 0, core.BarOpenClosePayload{Bar: "bar1"})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestMempoolAddGet(t *testing.T) {
	mp := core.NewMempool()
	tx := poolTx(t, 0)

	require.NoError(t, mp.Add(tx))
	assert.Equal(t, 1, mp.Size())

	got, ok := mp.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, tx.ID, got.ID)
}

func TestMempoolRejectsDuplicate(t *testing.T) {
	mp := core.NewMempool()
	tx := poolTx(t, 0)
	require.NoError(t, mp.Add(tx))
	assert.Error(t, mp.Add(tx))
}

func TestMempoolRejectsBadSignature(t *testing.T) {
	mp := core.NewMempool()
	tx := poolTx(t, 0)
	tx.Fee = 1 // invalidates signature
	assert.Error(t, mp.Add(tx))
}

func TestMempoolRejectsExpired(t *testing.T) {
	mp := core.NewMempool()

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := core.NewTransaction("barchain-test", core.TxBarOpen, pub.Hex(), 0, 0, core.BarOpenClosePayload{Bar: "bar1"})
	require.NoError(t, err)
	tx.Timestamp = time.Now().Add(-2 * time.Hour).UnixNano()
	tx.Sign(priv)

	assert.Error(t, mp.Add(tx))
}

func TestMempoolPendingOrderAndRemove(t *testing.T) {
	mp := core.NewMempool()
	tx1 := poolTx(t, 0)
	tx2 := poolTx(t, 0)
	tx3 := poolTx(t, 0)
	require.NoError(t, mp.Add(tx1))
	require.NoError(t, mp.Add(tx2))
	require.NoError(t, mp.Add(tx3))

	pending := mp.Pending(2)
	require.Len(t, pending, 2)
	assert.Equal(t, tx1.ID, pending[0].ID)
	assert.Equal(t, tx2.ID, pending[1].ID)

	mp.Remove([]string{tx1.ID, tx3.ID})
	assert.Equal(t, 1, mp.Size())
	pending = mp.Pending(10)
	require.Len(t, pending, 1)
	assert.Equal(t, tx2.ID, pending[0].ID)
}
