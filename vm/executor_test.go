package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/internal/testutil"
	"github.com/krugbar/barchain/vm"
	"github.com/krugbar/barchain/wallet"

	_ "github.com/krugbar/barchain/vm/modules/token"
)

const chainID = "barchain-test"

const tokenAddr = "beer0000000000000000000000000000000000ff"

func setup(t *testing.T) (core.State, *vm.Executor, *wallet.Wallet) {
	t.Helper()
	state := testutil.NewStateDB()
	exec := vm.NewExecutor(state, events.NewEmitter())
	w, err := wallet.Generate()
	require.NoError(t, err)
	require.NoError(t, state.SetToken(&core.Token{Address: tokenAddr, Owner: w.PubKey()}))
	require.NoError(t, state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000}))
	return state, exec, w
}

func TestExecuteTxDeductsFeeAndBumpsNonce(t *testing.T) {
	state, exec, w := setup(t)

	tx, err := w.Mint(chainID, tokenAddr, w.PubKey(), 10, 0, 25)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})
	require.NoError(t, exec.ExecuteTx(block, tx))

	acc, err := state.GetAccount(w.PubKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(975), acc.Balance)
	assert.Equal(t, uint64(1), acc.Nonce)
}

func TestExecuteTxRejectsNonceReplay(t *testing.T) {
	_, exec, w := setup(t)

	tx, err := w.Mint(chainID, tokenAddr, w.PubKey(), 10, 0, 0)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})
	require.NoError(t, exec.ExecuteTx(block, tx))

	err = exec.ExecuteTx(block, tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce")
}

func TestExecuteTxRejectsUnpayableFee(t *testing.T) {
	state, exec, w := setup(t)

	tx, err := w.Mint(chainID, tokenAddr, w.PubKey(), 10, 0, 5000)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})

	err = exec.ExecuteTx(block, tx)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	// Nothing is applied, the fee included.
	acc, _ := state.GetAccount(w.PubKey())
	assert.Equal(t, uint64(1000), acc.Balance)
	assert.Zero(t, acc.Nonce)
}

func TestExecuteTxRejectsBadSignature(t *testing.T) {
	_, exec, w := setup(t)

	tx, err := w.Mint(chainID, tokenAddr, w.PubKey(), 10, 0, 0)
	require.NoError(t, err)
	tx.Fee = 1 // invalidate the signature
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})
	assert.Error(t, exec.ExecuteTx(block, tx))
}

// Staged blocks hold their events back until the caller decides the block
// is final; a follower that rejects a block on state-root mismatch must not
// have leaked its events to subscribers.
func TestStageBlockDefersEvents(t *testing.T) {
	state := testutil.NewStateDB()
	emitter := events.NewEmitter()
	var seen []events.Event
	emitter.SubscribeAll(func(ev events.Event) { seen = append(seen, ev) })
	exec := vm.NewExecutor(state, emitter)

	w, err := wallet.Generate()
	require.NoError(t, err)
	require.NoError(t, state.SetToken(&core.Token{Address: tokenAddr, Owner: w.PubKey()}))
	require.NoError(t, state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000}))

	tx, err := w.Mint(chainID, tokenAddr, w.PubKey(), 10, 0, 0)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})

	evs, err := exec.StageBlock(block)
	require.NoError(t, err)
	assert.Empty(t, seen)
	require.NotEmpty(t, evs)

	exec.PublishEvents(evs)
	assert.Len(t, seen, len(evs))
	assert.Equal(t, events.EventTokenMint, seen[0].Type)
}

// A transaction that fails mid-handler publishes nothing at all.
func TestFailedTxPublishesNoEvents(t *testing.T) {
	state := testutil.NewStateDB()
	emitter := events.NewEmitter()
	var seen []events.Event
	emitter.SubscribeAll(func(ev events.Event) { seen = append(seen, ev) })
	exec := vm.NewExecutor(state, emitter)

	w, err := wallet.Generate()
	require.NoError(t, err)
	require.NoError(t, state.SetToken(&core.Token{Address: tokenAddr, Owner: w.PubKey()}))
	require.NoError(t, state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000}))

	// Transfer more than the sender holds; the handler errors after decode.
	tx, err := w.Transfer(chainID, tokenAddr, "ffff000000000000000000000000000000000000", 50, 0, 0)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})

	require.ErrorIs(t, exec.ExecuteTx(block, tx), core.ErrInsufficientBalance)
	assert.Empty(t, seen)
}

func TestExecuteTxUnknownType(t *testing.T) {
	_, exec, w := setup(t)

	tx, err := w.NewTx(chainID, core.TxType("no_such_op"), 0, 0, struct{}{})
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx})

	err = exec.ExecuteTx(block, tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}
