package vm

import "sync"

// TokenReceiver is the receiver-callback half of the transfer protocol.
// The token module calls DeliverTokens after it has mutated balances; a
// receiver that recognises the recipient address runs its hook with the
// post-transfer balances visible and returns handled=true. A non-nil error
// aborts the enclosing transaction, rolling back the balance mutation via
// the executor's snapshot.
//
// Contract modules (the bar) register a receiver from init(), mirroring
// handler self-registration. Recipients that no receiver claims are plain
// accounts and the transfer completes with no callback.
type TokenReceiver func(ctx *Context, token, from, to string, amount uint64, data []byte) (handled bool, err error)

var (
	receiverMu sync.RWMutex
	receivers  []TokenReceiver
)

// RegisterReceiver adds a token receiver hook.
func RegisterReceiver(r TokenReceiver) {
	receiverMu.Lock()
	defer receiverMu.Unlock()
	receivers = append(receivers, r)
}

// DeliverTokens offers the completed transfer to each registered receiver
// until one claims the recipient. Called by the token module inside the
// sender's transaction, so the hook observes post-transfer balances and any
// hook failure reverts the whole transfer.
func DeliverTokens(ctx *Context, token, from, to string, amount uint64, data []byte) error {
	receiverMu.RLock()
	rs := receivers
	receiverMu.RUnlock()
	for _, r := range rs {
		handled, err := r(ctx, token, from, to, amount, data)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return nil
}
