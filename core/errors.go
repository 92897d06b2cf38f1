package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Domain error kinds. Handlers wrap these with context via fmt.Errorf and %w;
// callers classify failures with errors.Is. Any handler error reverts the
// per-transaction state snapshot, so a failed operation never leaves partial
// mutations behind.
var (
	// ErrUnauthorized means a role check failed (owner-only or
	// barkeeper-only operation invoked by somebody else).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState means the operation is not permitted in the bar's
	// current open/closed state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientBalance covers both token and native shortfalls.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientStock means a purchase exceeds the bar's token inventory.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnknownToken means the bar's transfer hook was invoked for a token
	// other than the one configured via bar_set_token.
	ErrUnknownToken = errors.New("unknown token")

	// ErrBarClosed means an order or serve was attempted while the bar is closed.
	ErrBarClosed = errors.New("bar closed")

	// ErrPriceNotSet means bar_buy_token was called before a price was configured.
	ErrPriceNotSet = errors.New("price not set")
)
