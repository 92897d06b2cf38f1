package vm

import (
	"fmt"
	"math"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the current block, and the triggering transaction. Events emitted through
// it are buffered for the duration of the transaction and published only if
// the transaction commits, so subscribers never observe a reverted effect.
type Context struct {
	State core.State
	Block *core.Block
	Tx    *core.Transaction

	buffered []events.Event
}

// Emit records an event from the running handler. The transaction ID and
// block height are stamped from the context.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.buffered = append(c.buffered, events.Event{
		Type:        typ,
		TxID:        c.Tx.ID,
		BlockHeight: c.Block.Header.Height,
		Data:        data,
	})
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
}

// NewExecutor creates an Executor with the given state and event emitter.
func NewExecutor(state core.State, emitter *events.Emitter) *Executor {
	return &Executor{state: state, emitter: emitter}
}

// ExecuteBlock applies all transactions in block sequentially and publishes
// their events once every transaction has succeeded.
// A failing transaction causes the whole block to be rejected.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	evs, err := e.StageBlock(block)
	if err != nil {
		return err
	}
	e.PublishEvents(evs)
	return nil
}

// StageBlock applies all transactions in block and returns their buffered
// events without publishing them. Callers that may still reject the executed
// block, such as state-root verification during sync, publish the events via
// PublishEvents only after the block is stored and the state committed.
func (e *Executor) StageBlock(block *core.Block) ([]events.Event, error) {
	var evs []events.Event
	for _, tx := range block.Transactions {
		txEvs, err := e.stageTx(block, tx)
		if err != nil {
			return nil, fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
		evs = append(evs, txEvs...)
	}
	return evs, nil
}

// PublishEvents delivers previously staged events to subscribers in order.
func (e *Executor) PublishEvents(evs []events.Event) {
	if e.emitter == nil {
		return
	}
	for _, ev := range evs {
		e.emitter.Emit(ev)
	}
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// Every effect of the transaction, including balance mutations already made
// when a transfer hook aborts, is discarded on failure: either the whole
// operation commits, events included, or none of it does.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	evs, err := e.stageTx(block, tx)
	if err != nil {
		return err
	}
	e.PublishEvents(evs)
	return nil
}

// stageTx runs tx against the state and returns its buffered events.
// On failure the snapshot is reverted and no events are returned.
func (e *Executor) stageTx(block *core.Block, tx *core.Transaction) ([]events.Event, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{
		State: e.state,
		Block: block,
		Tx:    tx,
	}
	if err := e.applyTx(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return nil, err
	}

	ctx.Emit(events.EventTxExecuted, map[string]any{"type": string(tx.Type), "from": tx.From})
	return ctx.buffered, nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(ctx *Context) error {
	tx := ctx.Tx
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("%w: fee %d exceeds balance %d", core.ErrInsufficientBalance, tx.Fee, acc.Balance)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
