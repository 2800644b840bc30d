package client

import (
	"errors"
	"sync"
)

// ErrInsufficientBalance rejects a generation the local balance cannot cover.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the client's optimistic mirror of the server balance. Debits
// happen locally before submission so the UI reacts instantly; the server
// value replaces the local one on every read.
type Ledger struct {
	mu        sync.Mutex
	balance   float64
	unlimited bool
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Set replaces the local state with the authoritative server value.
func (l *Ledger) Set(balanceUSD float64, unlimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = balanceUSD
	l.unlimited = unlimited
}

// Balance returns the current local balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Unlimited reports whether generations are billed at all.
func (l *Ledger) Unlimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlimited
}

// Debit optimistically deducts a generation's cost. Unlimited users are
// never charged; everyone else must cover the amount.
func (l *Ledger) Debit(amountUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlimited || amountUSD <= 0 {
		return nil
	}
	if l.balance < amountUSD {
		return ErrInsufficientBalance
	}
	l.balance -= amountUSD
	return nil
}

// Refund returns a debit after a failed or unwound generation.
func (l *Ledger) Refund(amountUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlimited || amountUSD <= 0 {
		return
	}
	l.balance += amountUSD
}
