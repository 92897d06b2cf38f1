// Package indexer maintains secondary indexes over emitted events so UIs
// can query a customer's order history or a bar's barkeeper roster without
// scanning blocks.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/storage"
)

const (
	prefixCustomerOrders = "idx:orders:"
	prefixBarkeepers     = "idx:keepers:"
)

// Order is one beer order recorded from a beer_ordered event.
type Order struct {
	TxID        string `json:"tx_id"`
	Bar         string `json:"bar"`
	Amount      uint64 `json:"amount"`
	BlockHeight int64  `json:"block_height"`
}

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventBeerOrdered, idx.onBeerOrdered)
	emitter.Subscribe(events.EventBarkeeperAdded, idx.onBarkeeperAdded)
	emitter.Subscribe(events.EventBarkeeperRemoved, idx.onBarkeeperRemoved)
	return idx
}

// GetOrdersByCustomer returns all recorded orders for the given pubkey.
func (idx *Indexer) GetOrdersByCustomer(customer string) ([]Order, error) {
	data, err := idx.db.Get([]byte(prefixCustomerOrders + customer))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("indexer unmarshal orders: %w", err)
	}
	return orders, nil
}

// GetBarkeepers returns the current barkeeper roster of a bar, sorted.
func (idx *Indexer) GetBarkeepers(bar string) ([]string, error) {
	keepers, err := idx.getSet(prefixBarkeepers + bar)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keepers))
	for k := range keepers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// ---- event handlers ----

func (idx *Indexer) onBeerOrdered(ev events.Event) {
	customer, _ := ev.Data["customer"].(string)
	bar, _ := ev.Data["bar"].(string)
	amount, ok := asUint64(ev.Data["amount"])
	if customer == "" || bar == "" || !ok {
		return
	}
	orders, err := idx.GetOrdersByCustomer(customer)
	if err != nil {
		return
	}
	orders = append(orders, Order{
		TxID:        ev.TxID,
		Bar:         bar,
		Amount:      amount,
		BlockHeight: ev.BlockHeight,
	})
	data, err := json.Marshal(orders)
	if err != nil {
		return
	}
	_ = idx.db.Set([]byte(prefixCustomerOrders+customer), data)
}

func (idx *Indexer) onBarkeeperAdded(ev events.Event) {
	bar, _ := ev.Data["bar"].(string)
	account, _ := ev.Data["account"].(string)
	if bar == "" || account == "" {
		return
	}
	keepers, err := idx.getSet(prefixBarkeepers + bar)
	if err != nil {
		return
	}
	keepers[account] = true
	_ = idx.putSet(prefixBarkeepers+bar, keepers)
}

func (idx *Indexer) onBarkeeperRemoved(ev events.Event) {
	bar, _ := ev.Data["bar"].(string)
	account, _ := ev.Data["account"].(string)
	if bar == "" || account == "" {
		return
	}
	keepers, err := idx.getSet(prefixBarkeepers + bar)
	if err != nil {
		return
	}
	delete(keepers, account)
	_ = idx.putSet(prefixBarkeepers+bar, keepers)
}

// ---- helpers ----

func (idx *Indexer) getSet(key string) (map[string]bool, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	var set map[string]bool
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("indexer unmarshal set: %w", err)
	}
	return set, nil
}

func (idx *Indexer) putSet(key string, set map[string]bool) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

// asUint64 tolerates the numeric types that survive a JSON round-trip.
func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
