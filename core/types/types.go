package types

import "math/big"

// Account holds the spendable balance of a single ledger participant. Custody
// settlements move value between accounts and the module vault.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// NewAccount returns an account with a zero balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy so callers can mutate freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}

// Event is the generic representation of a state change broadcast to
// subscribers. Attributes are flat strings so the record can cross any
// transport without schema coupling.
type Event struct {
	Type       string
	Attributes map[string]string
}
