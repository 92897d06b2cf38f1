package rpc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/indexer"
	"github.com/krugbar/barchain/internal/testutil"
	"github.com/krugbar/barchain/rpc"
	"github.com/krugbar/barchain/wallet"
)

const chainID = "barchain-test"

type rpcFixture struct {
	handler *rpc.Handler
	state   core.State
	mempool *core.Mempool
	emitter *events.Emitter
	bc      *core.Blockchain
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	state := testutil.NewStateDB()
	mempool := core.NewMempool()
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	require.NoError(t, bc.Init())
	genesis := core.NewBlock(0, "0000", "proposer", nil)
	genesis.Hash = genesis.ComputeHash()
	require.NoError(t, bc.AddBlock(genesis))

	return &rpcFixture{
		handler: rpc.NewHandler(bc, mempool, state, idx, chainID),
		state:   state,
		mempool: mempool,
		emitter: emitter,
		bc:      bc,
	}
}

func request(t *testing.T, method string, params any) rpc.Request {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw}
}

func TestGetBlockHeight(t *testing.T) {
	f := newRPCFixture(t)
	resp := f.handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getBlockHeight"})
	require.Nil(t, resp.Error)
	assert.Equal(t, int64(0), resp.Result)
}

func TestGetBalance(t *testing.T) {
	f := newRPCFixture(t)
	require.NoError(t, f.state.SetAccount(&core.Account{Address: "alice", Balance: 42, Nonce: 3}))

	resp := f.handler.Dispatch(request(t, "getBalance", map[string]string{"address": "alice"}))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, uint64(42), result["balance"])
	assert.Equal(t, uint64(3), result["nonce"])
}

func TestGetBalanceRequiresAddress(t *testing.T) {
	f := newRPCFixture(t)
	resp := f.handler.Dispatch(request(t, "getBalance", map[string]string{}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
}

func TestGetBarAndPendingBeer(t *testing.T) {
	f := newRPCFixture(t)
	require.NoError(t, f.state.SetBar(&core.Bar{
		Address:     "bar1",
		Owner:       "owner",
		Barkeepers:  map[string]bool{},
		PendingBeer: map[string]uint64{"alice": 4},
	}))

	resp := f.handler.Dispatch(request(t, "getBar", map[string]string{"address": "bar1"}))
	require.Nil(t, resp.Error)
	bar := resp.Result.(*core.Bar)
	assert.Equal(t, "owner", bar.Owner)

	resp = f.handler.Dispatch(request(t, "getPendingBeer", map[string]string{"bar": "bar1", "customer": "alice"}))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, uint64(4), result["pending"])
}

func TestGetTokenBalance(t *testing.T) {
	f := newRPCFixture(t)
	require.NoError(t, f.state.SetTokenBalance("tok", "alice", 11))

	resp := f.handler.Dispatch(request(t, "getTokenBalance", map[string]string{"token": "tok", "holder": "alice"}))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, uint64(11), result["balance"])
}

func TestGetOrdersByCustomer(t *testing.T) {
	f := newRPCFixture(t)
	f.emitter.Emit(events.Event{
		Type: events.EventBeerOrdered,
		TxID: "tx1",
		Data: map[string]any{"bar": "bar1", "customer": "alice", "amount": uint64(2)},
	})

	resp := f.handler.Dispatch(request(t, "getOrdersByCustomer", map[string]string{"customer": "alice"}))
	require.Nil(t, resp.Error)
	orders := resp.Result.([]indexer.Order)
	require.Len(t, orders, 1)
	assert.Equal(t, "tx1", orders[0].TxID)
}

func TestSendTx(t *testing.T) {
	f := newRPCFixture(t)
	w, err := wallet.Generate()
	require.NoError(t, err)
	tx, err := w.OpenBar(chainID, "bar1", 0, 0)
	require.NoError(t, err)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	resp := f.handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "sendTx", Params: raw})
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, f.mempool.Size())
}

func TestSendTxRejectsChainIDMismatch(t *testing.T) {
	f := newRPCFixture(t)
	w, err := wallet.Generate()
	require.NoError(t, err)
	tx, err := w.OpenBar("other-net", "bar1", 0, 0)
	require.NoError(t, err)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	resp := f.handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "sendTx", Params: raw})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
	assert.Zero(t, f.mempool.Size())
}

func TestUnknownMethod(t *testing.T) {
	f := newRPCFixture(t)
	resp := f.handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "noSuchMethod"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}
