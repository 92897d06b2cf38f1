package core

// Account holds a participant's native balance and replay-protection nonce.
// Address is either the hex-encoded ed25519 public key of an externally-owned
// account or the 40-char address of a contract account (token ledger, bar).
// The native balance is the settlement currency used by bar_buy_token and
// bar_payout; it is distinct from any fungible token tracked by a Token.
type Account struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Token is a fungible token ledger contract. Per-holder balances are stored
// as separate state entries (see storage.StateDB), not inside this struct.
// TotalSupply only ever grows: minting is owner-gated and there is no burn.
// Invariant: the sum of all holder balances equals TotalSupply.
type Token struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Owner       string `json:"owner"` // minter pubkey hex
	TotalSupply uint64 `json:"total_supply"`
}

// Bar is the service-counter contract. It accepts transfers of its configured
// token (restock from the owner, orders from customers while open), sells
// tokens for native currency at PricePerToken, and records service
// obligations in PendingBeer.
type Bar struct {
	Address string `json:"address"`
	Owner   string `json:"owner"` // administrator pubkey hex, fixed at genesis

	// Barkeepers is the operator set. Only barkeepers may open/close the
	// bar and record served beer; the owner is not implicitly a member.
	Barkeepers map[string]bool `json:"barkeepers"`

	Open          bool   `json:"open"`
	PricePerToken uint64 `json:"price_per_token"` // native units per token; 0 = unset
	TokenAddress  string `json:"token_address"`   // accepted token ledger; "" until set

	// PendingBeer tracks unfulfilled service credits per customer. It is
	// only ever increased, by bar_serve; orders do not touch it.
	PendingBeer map[string]uint64 `json:"pending_beer"`
}

// IsBarkeeper reports whether a is in the operator set.
func (b *Bar) IsBarkeeper(a string) bool {
	return b.Barkeepers[a]
}

// IsOwner reports whether a is the bar's administrator.
func (b *Bar) IsOwner(a string) bool {
	return b.Owner == a
}

// State is the world-state interface. Implementations must be snapshot-able
// so the executor can roll back failed transactions, including transfers
// whose receiver hook aborts after balances were already mutated.
type State interface {
	// Native accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Token ledgers
	GetToken(address string) (*Token, error)
	SetToken(token *Token) error
	GetTokenBalance(token, holder string) (uint64, error)
	SetTokenBalance(token, holder string, amount uint64) error

	// Bars
	GetBar(address string) (*Bar, error)
	SetBar(bar *Bar) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current
	// write buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the header.
	Commit() error
}
