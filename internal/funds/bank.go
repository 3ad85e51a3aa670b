// Package funds implements the native-currency payment rail the lifecycle
// engine settles against. A transfer that cannot complete fails the whole
// lifecycle call; there is no partial settlement.
package funds

import (
	"context"
	"errors"
	"sync"

	"github.com/renft/marketplace/internal/model"
)

// ErrInsufficientFunds is returned when the paying account cannot cover the
// amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Bank is an in-memory custodial ledger of native-currency balances.
type Bank struct {
	mu       sync.RWMutex
	balances map[model.Account]uint64
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[model.Account]uint64)}
}

// Deposit credits an account out of thin air. Used by the dev faucet and by
// tests to seed balances.
func (b *Bank) Deposit(account model.Account, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
}

// Balance reports the current balance of an account; unknown accounts hold
// zero.
func (b *Bank) Balance(account model.Account) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[account]
}

// Transfer moves amount from one account to another, failing with
// ErrInsufficientFunds when the payer cannot cover it. The debit and credit
// are applied together under the lock.
func (b *Bank) Transfer(_ context.Context, from, to model.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return ErrInsufficientFunds
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
