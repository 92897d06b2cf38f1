package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/internal/testutil"
	"github.com/krugbar/barchain/storage"
)

func TestSnapshotRevert(t *testing.T) {
	state := testutil.NewStateDB()

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 100}))

	id, err := state.Snapshot()
	require.NoError(t, err)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 1}))
	require.NoError(t, state.SetTokenBalance("tok", "alice", 42))

	require.NoError(t, state.RevertToSnapshot(id))

	acc, err := state.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), acc.Balance)

	bal, err := state.GetTokenBalance("tok", "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestRevertInvalidSnapshotID(t *testing.T) {
	state := testutil.NewStateDB()
	assert.Error(t, state.RevertToSnapshot(0))
	assert.Error(t, state.RevertToSnapshot(-1))
}

func TestNestedSnapshots(t *testing.T) {
	state := testutil.NewStateDB()

	require.NoError(t, state.SetAccount(&core.Account{Address: "a", Balance: 1}))
	outer, err := state.Snapshot()
	require.NoError(t, err)

	require.NoError(t, state.SetAccount(&core.Account{Address: "a", Balance: 2}))
	inner, err := state.Snapshot()
	require.NoError(t, err)

	require.NoError(t, state.SetAccount(&core.Account{Address: "a", Balance: 3}))
	require.NoError(t, state.RevertToSnapshot(inner))

	acc, _ := state.GetAccount("a")
	assert.Equal(t, uint64(2), acc.Balance)

	require.NoError(t, state.RevertToSnapshot(outer))
	acc, _ = state.GetAccount("a")
	assert.Equal(t, uint64(1), acc.Balance)
}

func TestCommitPersists(t *testing.T) {
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 7}))
	require.NoError(t, state.SetTokenBalance("tok", "alice", 9))
	require.NoError(t, state.Commit())

	// A fresh StateDB over the same DB must see committed values.
	fresh := storage.NewStateDB(db)
	acc, err := fresh.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), acc.Balance)

	bal, err := fresh.GetTokenBalance("tok", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), bal)
}

func TestUnknownAccountIsZeroValued(t *testing.T) {
	state := testutil.NewStateDB()
	acc, err := state.GetAccount("nobody")
	require.NoError(t, err)
	assert.Zero(t, acc.Balance)
	assert.Zero(t, acc.Nonce)
}

func TestUnknownTokenBalanceIsZero(t *testing.T) {
	state := testutil.NewStateDB()
	bal, err := state.GetTokenBalance("tok", "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestUnknownTokenAndBarReturnNotFound(t *testing.T) {
	state := testutil.NewStateDB()
	_, err := state.GetToken("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = state.GetBar("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// Bars stored with nil maps come back with initialised maps so handlers can
// write into them without nil checks.
func TestGetBarInitialisesMaps(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, state.SetBar(&core.Bar{Address: "bar1", Owner: "o"}))

	b, err := state.GetBar("bar1")
	require.NoError(t, err)
	assert.NotNil(t, b.Barkeepers)
	assert.NotNil(t, b.PendingBeer)
}

func TestComputeRootDeterministic(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 5}))

	r1 := state.ComputeRoot()
	r2 := state.ComputeRoot()
	assert.Equal(t, r1, r2, "ComputeRoot must not mutate state")

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 6}))
	assert.NotEqual(t, r1, state.ComputeRoot())
}

// The root must be identical whether entries live in the write buffer or have
// already been flushed to the DB.
func TestComputeRootBufferVsCommitted(t *testing.T) {
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 5}))
	require.NoError(t, state.SetBar(&core.Bar{Address: "bar1", Owner: "alice"}))

	before := state.ComputeRoot()
	require.NoError(t, state.Commit())
	assert.Equal(t, before, state.ComputeRoot())
}
