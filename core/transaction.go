package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/krugbar/barchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	// Token ledger operations.
	TxTokenMint     TxType = "token_mint"
	TxTokenTransfer TxType = "token_transfer"

	// Bar configuration (owner-gated).
	TxBarSetToken        TxType = "bar_set_token"
	TxBarSetPrice        TxType = "bar_set_price"
	TxBarAddBarkeeper    TxType = "bar_add_barkeeper"
	TxBarRemoveBarkeeper TxType = "bar_remove_barkeeper"
	TxBarPayout          TxType = "bar_payout"

	// Bar operation (barkeeper-gated).
	TxBarOpen  TxType = "bar_open"
	TxBarClose TxType = "bar_close"
	TxBarServe TxType = "bar_serve"

	// Open to any account.
	TxBarBuyToken TxType = "bar_buy_token"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// ChainID pins the transaction to one network to prevent cross-chain replay.
// Signature covers all fields except Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TokenMintPayload mints new tokens. Only the token owner may mint.
type TokenMintPayload struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// TokenTransferPayload moves tokens from the sender to To. Data is the
// opaque byte sequence handed to the recipient's transfer hook when To is a
// contract: the ASCII bytes "supply" mark a restock, anything else
// (including empty) is an order. Data marshals as base64 in JSON.
type TokenTransferPayload struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Data   []byte `json:"data,omitempty"`
}

// BarSetTokenPayload configures which token ledger the bar accepts.
type BarSetTokenPayload struct {
	Bar   string `json:"bar"`
	Token string `json:"token"`
}

// BarSetPricePayload sets the native price per token. Only allowed while
// the bar is closed.
type BarSetPricePayload struct {
	Bar   string `json:"bar"`
	Price uint64 `json:"price"`
}

// BarKeeperPayload adds or removes a barkeeper.
type BarKeeperPayload struct {
	Bar     string `json:"bar"`
	Account string `json:"account"` // pubkey hex
}

// BarOpenClosePayload opens or closes the bar.
type BarOpenClosePayload struct {
	Bar string `json:"bar"`
}

// BarServePayload records beer served to a customer.
type BarServePayload struct {
	Bar      string `json:"bar"`
	Customer string `json:"customer"` // pubkey hex
	Amount   uint64 `json:"amount"`
}

// BarBuyTokenPayload buys tokens from the bar's stock. Value is the native
// amount attached to the call; it is debited from the sender and retained by
// the bar, and tokens are issued at Value / PricePerToken (integer division,
// remainder forfeited to the bar).
type BarBuyTokenPayload struct {
	Bar   string `json:"bar"`
	Value uint64 `json:"value"`
}

// BarPayoutPayload withdraws accumulated native currency from the bar.
type BarPayoutPayload struct {
	Bar    string `json:"bar"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}
