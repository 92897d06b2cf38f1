package bar

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/vm"
)

func init() {
	vm.RegisterReceiver(onTokensReceived)
}

// transferIntent classifies an incoming token transfer. The opaque payload
// is parsed exactly once, here, into a tagged value; the accounting logic
// below switches on the tag instead of comparing bytes.
type transferIntent int

const (
	// intentOrder is the default: payment for service, only accepted while
	// the bar is open. Unrecognised payloads deliberately land here.
	intentOrder transferIntent = iota
	// intentRestock marks an inventory top-up from the owner, accepted in
	// any bar state.
	intentRestock
)

// restockData is the sentinel payload that selects the restock branch.
var restockData = []byte("supply")

func parseIntent(data []byte) transferIntent {
	if bytes.Equal(data, restockData) {
		return intentRestock
	}
	return intentOrder
}

// onTokensReceived is the bar's half of the ledger-to-bar callback protocol.
// It runs inside the sender's transfer transaction, after balances have been
// mutated, so returning an error rolls the entire transfer back.
func onTokensReceived(ctx *vm.Context, token, from, to string, amount uint64, data []byte) (bool, error) {
	b, err := ctx.State.GetBar(to)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil // recipient is not a bar
	}
	if err != nil {
		return false, err
	}

	// A counterfeit ledger must not be able to inject accounting events.
	if b.TokenAddress == "" || token != b.TokenAddress {
		return true, fmt.Errorf("%w: bar only accepts token %q, got %q", core.ErrUnknownToken, b.TokenAddress, token)
	}

	switch parseIntent(data) {
	case intentRestock:
		if !b.IsOwner(from) {
			return true, fmt.Errorf("%w: only the owner may restock", core.ErrUnauthorized)
		}
		// The ledger already credited the bar; the tokens simply become
		// stock. Restocking is permitted in any bar state.
		return true, nil

	case intentOrder:
		if !b.Open {
			return true, fmt.Errorf("%w: orders are only accepted while open", core.ErrBarClosed)
		}
		// Payment received. The matching service obligation is recorded
		// separately by a barkeeper via bar_serve.
		ctx.Emit(events.EventBeerOrdered, map[string]any{
			"bar":      b.Address,
			"customer": from,
			"amount":   amount,
		})
		return true, nil
	}
	return true, nil
}
