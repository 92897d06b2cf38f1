// Package wallet provides key management and transaction signing helpers.
package wallet

import (
	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network.
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// ---- token ledger ----

// Mint creates a signed token_mint transaction (token owner only).
func (w *Wallet) Mint(chainID, token, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTokenMint, nonce, fee, core.TokenMintPayload{
		Token:  token,
		To:     to,
		Amount: amount,
	})
}

// Transfer creates a signed token transfer with no attached data
// (the 2-argument calling convention: an order when sent to a bar).
func (w *Wallet) Transfer(chainID, token, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.TransferWithData(chainID, token, to, amount, nil, nonce, fee)
}

// TransferWithData creates a signed token transfer carrying an opaque
// payload for the recipient's hook. Pass []byte("supply") to restock a bar.
func (w *Wallet) TransferWithData(chainID, token, to string, amount uint64, data []byte, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTokenTransfer, nonce, fee, core.TokenTransferPayload{
		Token:  token,
		To:     to,
		Amount: amount,
		Data:   data,
	})
}

// ---- bar ----

// SetBarToken points the bar at its accepted token ledger (owner only).
func (w *Wallet) SetBarToken(chainID, bar, token string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarSetToken, nonce, fee, core.BarSetTokenPayload{Bar: bar, Token: token})
}

// SetBeerPrice sets the native price per token (owner only, bar closed).
func (w *Wallet) SetBeerPrice(chainID, bar string, price, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarSetPrice, nonce, fee, core.BarSetPricePayload{Bar: bar, Price: price})
}

// AddBarkeeper grants the barkeeper role (owner only).
func (w *Wallet) AddBarkeeper(chainID, bar, account string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarAddBarkeeper, nonce, fee, core.BarKeeperPayload{Bar: bar, Account: account})
}

// RemoveBarkeeper revokes the barkeeper role (owner only).
func (w *Wallet) RemoveBarkeeper(chainID, bar, account string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarRemoveBarkeeper, nonce, fee, core.BarKeeperPayload{Bar: bar, Account: account})
}

// OpenBar opens the bar (barkeeper only).
func (w *Wallet) OpenBar(chainID, bar string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarOpen, nonce, fee, core.BarOpenClosePayload{Bar: bar})
}

// CloseBar closes the bar (barkeeper only).
func (w *Wallet) CloseBar(chainID, bar string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarClose, nonce, fee, core.BarOpenClosePayload{Bar: bar})
}

// ServeBeer records beer served to a customer (barkeeper only, bar open).
func (w *Wallet) ServeBeer(chainID, bar, customer string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarServe, nonce, fee, core.BarServePayload{
		Bar:      bar,
		Customer: customer,
		Amount:   amount,
	})
}

// BuyToken attaches value native units and buys tokens from the bar's stock.
func (w *Wallet) BuyToken(chainID, bar string, value, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarBuyToken, nonce, fee, core.BarBuyTokenPayload{Bar: bar, Value: value})
}

// Payout withdraws accumulated native currency from the bar (owner only).
func (w *Wallet) Payout(chainID, bar, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBarPayout, nonce, fee, core.BarPayoutPayload{
		Bar:    bar,
		To:     to,
		Amount: amount,
	})
}
