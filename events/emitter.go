// Package events delivers state-change notifications to in-process
// subscribers (indexer, websocket stream). Emission is synchronous and
// happens inside transaction execution; subscribers must not mutate state.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"

	// Token ledger events.
	EventTokenMint     EventType = "token_mint"
	EventTokenTransfer EventType = "token_transfer"

	// Bar events. These are the surface a UI subscribes to.
	EventBarOpened        EventType = "bar_opened"
	EventBarClosed        EventType = "bar_closed"
	EventBarkeeperAdded   EventType = "barkeeper_added"
	EventBarkeeperRemoved EventType = "barkeeper_removed"
	EventBeerOrdered      EventType = "beer_ordered"
	EventBeerServed       EventType = "beer_served"
	EventTokenPurchase    EventType = "token_purchase"
	EventPayout           EventType = "payout"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type. Used by the websocket
// stream, which forwards the full feed to UI clients.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"event": ev.Type,
						"panic": r,
					}).Error("event handler panicked")
				}
			}()
			h(ev)
		}()
	}
}
