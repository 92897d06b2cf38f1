// Package token implements the fungible token ledger: owner-gated minting
// and transfers that invoke the recipient's receiver hook after the balance
// mutation, so contract recipients observe post-transfer balances.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/vm"
)

func init() {
	vm.Register(core.TxTokenMint, handleMint)
	vm.Register(core.TxTokenTransfer, handleTransfer)
}

func handleMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenMintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_mint payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("mint amount must be > 0")
	}
	if p.To == "" {
		return errors.New("mint recipient required")
	}

	tok, err := ctx.State.GetToken(p.Token)
	if err != nil {
		return fmt.Errorf("token %q: %w", p.Token, err)
	}
	if tok.Owner != ctx.Tx.From {
		return fmt.Errorf("%w: only the token owner may mint", core.ErrUnauthorized)
	}
	if p.Amount > math.MaxUint64-tok.TotalSupply {
		return fmt.Errorf("mint would overflow total supply %d", tok.TotalSupply)
	}

	bal, err := ctx.State.GetTokenBalance(p.Token, p.To)
	if err != nil {
		return err
	}
	if err := ctx.State.SetTokenBalance(p.Token, p.To, bal+p.Amount); err != nil {
		return err
	}
	tok.TotalSupply += p.Amount
	if err := ctx.State.SetToken(tok); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenMint, map[string]any{
		"token":  p.Token,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}

// handleTransfer debits the sender, credits the recipient, records the
// transfer event, and only then offers the transfer to receiver hooks.
// A hook error propagates up and the executor reverts everything, the
// balance mutation included; the buffered event is discarded with it.
func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenTransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}

	if _, err := ctx.State.GetToken(p.Token); err != nil {
		return fmt.Errorf("token %q: %w", p.Token, err)
	}

	senderBal, err := ctx.State.GetTokenBalance(p.Token, ctx.Tx.From)
	if err != nil {
		return err
	}
	if senderBal < p.Amount {
		return fmt.Errorf("%w: have %d, need %d", core.ErrInsufficientBalance, senderBal, p.Amount)
	}
	if err := ctx.State.SetTokenBalance(p.Token, ctx.Tx.From, senderBal-p.Amount); err != nil {
		return err
	}

	recvBal, err := ctx.State.GetTokenBalance(p.Token, p.To)
	if err != nil {
		return err
	}
	if err := ctx.State.SetTokenBalance(p.Token, p.To, recvBal+p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"token":  p.Token,
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": p.Amount,
	})

	return vm.DeliverTokens(ctx, p.Token, ctx.Tx.From, p.To, p.Amount, p.Data)
}
