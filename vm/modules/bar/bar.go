// Package bar implements the service-counter contract: role management,
// the open/closed state machine, pricing and settlement, and the transfer
// hook that classifies incoming token transfers (see hook.go).
package bar

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/vm"
)

func init() {
	vm.Register(core.TxBarSetToken, handleSetToken)
	vm.Register(core.TxBarSetPrice, handleSetPrice)
	vm.Register(core.TxBarAddBarkeeper, handleAddBarkeeper)
	vm.Register(core.TxBarRemoveBarkeeper, handleRemoveBarkeeper)
	vm.Register(core.TxBarOpen, handleOpen)
	vm.Register(core.TxBarClose, handleClose)
	vm.Register(core.TxBarServe, handleServe)
	vm.Register(core.TxBarBuyToken, handleBuyToken)
	vm.Register(core.TxBarPayout, handlePayout)
}

func getBar(ctx *vm.Context, address string) (*core.Bar, error) {
	b, err := ctx.State.GetBar(address)
	if err != nil {
		return nil, fmt.Errorf("bar %q: %w", address, err)
	}
	return b, nil
}

func requireOwner(b *core.Bar, from string) error {
	if !b.IsOwner(from) {
		return fmt.Errorf("%w: owner-only operation", core.ErrUnauthorized)
	}
	return nil
}

func requireBarkeeper(b *core.Bar, from string) error {
	// Ownership does not imply operational authority: the owner must be
	// added as a barkeeper explicitly to open, close, or serve.
	if !b.IsBarkeeper(from) {
		return fmt.Errorf("%w: barkeeper-only operation", core.ErrUnauthorized)
	}
	return nil
}

func handleSetToken(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarSetTokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_set_token payload: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireOwner(b, ctx.Tx.From); err != nil {
		return err
	}
	if _, err := ctx.State.GetToken(p.Token); err != nil {
		return fmt.Errorf("token %q: %w", p.Token, err)
	}

	// Reassignment is only allowed while the bar holds no stock of the
	// currently configured token; switching ledgers with inventory on hand
	// would strand it under an address the bar no longer recognises.
	if b.TokenAddress != "" && b.TokenAddress != p.Token {
		stock, err := ctx.State.GetTokenBalance(b.TokenAddress, b.Address)
		if err != nil {
			return err
		}
		if stock > 0 {
			return fmt.Errorf("%w: bar still holds %d of token %s", core.ErrInvalidState, stock, b.TokenAddress)
		}
	}

	b.TokenAddress = p.Token
	return ctx.State.SetBar(b)
}

func handleSetPrice(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarSetPricePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_set_price payload: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireOwner(b, ctx.Tx.From); err != nil {
		return err
	}
	// The price must not move mid-session while customers are transacting.
	if b.Open {
		return fmt.Errorf("%w: cannot change price while the bar is open", core.ErrInvalidState)
	}

	b.PricePerToken = p.Price
	return ctx.State.SetBar(b)
}

func handleAddBarkeeper(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarKeeperPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_add_barkeeper payload: %w", err)
	}
	if _, err := crypto.PubKeyFromHex(p.Account); err != nil {
		return fmt.Errorf("invalid barkeeper pubkey: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireOwner(b, ctx.Tx.From); err != nil {
		return err
	}
	if b.Barkeepers[p.Account] {
		return nil // already a barkeeper, no-op
	}

	b.Barkeepers[p.Account] = true
	if err := ctx.State.SetBar(b); err != nil {
		return err
	}

	ctx.Emit(events.EventBarkeeperAdded, map[string]any{"bar": b.Address, "account": p.Account})
	return nil
}

func handleRemoveBarkeeper(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarKeeperPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_remove_barkeeper payload: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireOwner(b, ctx.Tx.From); err != nil {
		return err
	}
	if !b.Barkeepers[p.Account] {
		return nil // not a barkeeper, no-op
	}

	delete(b.Barkeepers, p.Account)
	if err := ctx.State.SetBar(b); err != nil {
		return err
	}

	ctx.Emit(events.EventBarkeeperRemoved, map[string]any{"bar": b.Address, "account": p.Account})
	return nil
}

func handleOpen(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarOpenClosePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_open payload: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireBarkeeper(b, ctx.Tx.From); err != nil {
		return err
	}
	if b.Open {
		return fmt.Errorf("%w: bar is already open", core.ErrInvalidState)
	}

	b.Open = true
	if err := ctx.State.SetBar(b); err != nil {
		return err
	}

	ctx.Emit(events.EventBarOpened, map[string]any{"bar": b.Address})
	return nil
}

func handleClose(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarOpenClosePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_close payload: %w", err)
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireBarkeeper(b, ctx.Tx.From); err != nil {
		return err
	}

	// Closing an already-closed bar is allowed; the event still fires.
	b.Open = false
	if err := ctx.State.SetBar(b); err != nil {
		return err
	}

	ctx.Emit(events.EventBarClosed, map[string]any{"bar": b.Address})
	return nil
}

func handleServe(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarServePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_serve payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("serve amount must be > 0")
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireBarkeeper(b, ctx.Tx.From); err != nil {
		return err
	}
	if !b.Open {
		return fmt.Errorf("%w: cannot serve while closed", core.ErrBarClosed)
	}

	// Purely additive: served beer is trusted to the barkeeper role and is
	// not reconciled against token payments received.
	b.PendingBeer[p.Customer] += p.Amount
	if err := ctx.State.SetBar(b); err != nil {
		return err
	}

	ctx.Emit(events.EventBeerServed, map[string]any{
		"bar":      b.Address,
		"customer": p.Customer,
		"amount":   p.Amount,
	})
	return nil
}

func handleBuyToken(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarBuyTokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_buy_token payload: %w", err)
	}
	if p.Value == 0 {
		return errors.New("buy value must be > 0")
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if b.TokenAddress == "" {
		return fmt.Errorf("%w: bar has no token configured", core.ErrInvalidState)
	}
	if b.PricePerToken == 0 {
		return core.ErrPriceNotSet
	}

	// Move the attached native payment from the buyer to the bar first.
	buyer, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if buyer.Balance < p.Value {
		return fmt.Errorf("%w: have %d native units, need %d", core.ErrInsufficientBalance, buyer.Balance, p.Value)
	}
	buyer.Balance -= p.Value
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}
	barAcc, err := ctx.State.GetAccount(b.Address)
	if err != nil {
		return err
	}
	if p.Value > math.MaxUint64-barAcc.Balance {
		return fmt.Errorf("payment would overflow bar balance %d", barAcc.Balance)
	}
	barAcc.Balance += p.Value
	if err := ctx.State.SetAccount(barAcc); err != nil {
		return err
	}

	// Integer division; the remainder stays with the bar.
	tokensOut := p.Value / b.PricePerToken

	stock, err := ctx.State.GetTokenBalance(b.TokenAddress, b.Address)
	if err != nil {
		return err
	}
	if stock < tokensOut {
		return fmt.Errorf("%w: stock %d, requested %d", core.ErrInsufficientStock, stock, tokensOut)
	}
	if err := ctx.State.SetTokenBalance(b.TokenAddress, b.Address, stock-tokensOut); err != nil {
		return err
	}
	buyerBal, err := ctx.State.GetTokenBalance(b.TokenAddress, ctx.Tx.From)
	if err != nil {
		return err
	}
	if err := ctx.State.SetTokenBalance(b.TokenAddress, ctx.Tx.From, buyerBal+tokensOut); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"token":  b.TokenAddress,
		"from":   b.Address,
		"to":     ctx.Tx.From,
		"amount": tokensOut,
	})
	ctx.Emit(events.EventTokenPurchase, map[string]any{
		"bar":    b.Address,
		"buyer":  ctx.Tx.From,
		"value":  p.Value,
		"tokens": tokensOut,
	})
	return nil
}

func handlePayout(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BarPayoutPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode bar_payout payload: %w", err)
	}
	if p.To == "" {
		return errors.New("payout recipient required")
	}
	if p.Amount == 0 {
		return errors.New("payout amount must be > 0")
	}

	b, err := getBar(ctx, p.Bar)
	if err != nil {
		return err
	}
	if err := requireOwner(b, ctx.Tx.From); err != nil {
		return err
	}

	barAcc, err := ctx.State.GetAccount(b.Address)
	if err != nil {
		return err
	}
	if barAcc.Balance < p.Amount {
		return fmt.Errorf("%w: bar holds %d native units, payout of %d requested", core.ErrInsufficientBalance, barAcc.Balance, p.Amount)
	}
	barAcc.Balance -= p.Amount
	if err := ctx.State.SetAccount(barAcc); err != nil {
		return err
	}

	to, err := ctx.State.GetAccount(p.To)
	if err != nil {
		return err
	}
	if p.Amount > math.MaxUint64-to.Balance {
		return fmt.Errorf("payout would overflow recipient balance %d", to.Balance)
	}
	to.Balance += p.Amount
	if err := ctx.State.SetAccount(to); err != nil {
		return err
	}

	ctx.Emit(events.EventPayout, map[string]any{
		"bar":    b.Address,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}
