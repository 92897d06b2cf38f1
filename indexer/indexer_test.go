package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/indexer"
	"github.com/krugbar/barchain/internal/testutil"
)

func TestOrdersByCustomer(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type:        events.EventBeerOrdered,
		TxID:        "tx1",
		BlockHeight: 3,
		Data:        map[string]any{"bar": "bar1", "customer": "alice", "amount": uint64(2)},
	})
	emitter.Emit(events.Event{
		Type:        events.EventBeerOrdered,
		TxID:        "tx2",
		BlockHeight: 4,
		Data:        map[string]any{"bar": "bar1", "customer": "alice", "amount": uint64(5)},
	})
	emitter.Emit(events.Event{
		Type: events.EventBeerOrdered,
		TxID: "tx3",
		Data: map[string]any{"bar": "bar1", "customer": "bob", "amount": uint64(1)},
	})

	orders, err := idx.GetOrdersByCustomer("alice")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "tx1", orders[0].TxID)
	assert.Equal(t, uint64(2), orders[0].Amount)
	assert.Equal(t, int64(3), orders[0].BlockHeight)
	assert.Equal(t, "tx2", orders[1].TxID)

	none, err := idx.GetOrdersByCustomer("carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Events that survived a JSON round-trip carry float64 amounts; the indexer
// must accept them.
func TestOrdersToleratesJSONNumbers(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventBeerOrdered,
		TxID: "tx1",
		Data: map[string]any{"bar": "bar1", "customer": "alice", "amount": float64(7)},
	})

	orders, err := idx.GetOrdersByCustomer("alice")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, uint64(7), orders[0].Amount)
}

func TestBarkeeperRoster(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventBarkeeperAdded,
		Data: map[string]any{"bar": "bar1", "account": "bob"},
	})
	emitter.Emit(events.Event{
		Type: events.EventBarkeeperAdded,
		Data: map[string]any{"bar": "bar1", "account": "alice"},
	})

	keepers, err := idx.GetBarkeepers("bar1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, keepers, "roster is sorted")

	emitter.Emit(events.Event{
		Type: events.EventBarkeeperRemoved,
		Data: map[string]any{"bar": "bar1", "account": "bob"},
	})

	keepers, err = idx.GetBarkeepers("bar1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, keepers)
}

func TestMalformedEventsIgnored(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{Type: events.EventBeerOrdered, Data: map[string]any{"bar": "bar1"}})
	emitter.Emit(events.Event{Type: events.EventBarkeeperAdded, Data: map[string]any{"account": "x"}})

	orders, err := idx.GetOrdersByCustomer("")
	require.NoError(t, err)
	assert.Empty(t, orders)

	keepers, err := idx.GetBarkeepers("bar1")
	require.NoError(t, err)
	assert.Empty(t, keepers)
}
