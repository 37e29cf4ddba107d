// Package ledger tracks token ownership and balances with standard
// non-fungible token semantics: one owner per token, a per-holder count.
//
// The ledger is not safe for concurrent use; the token registry serializes
// every call.
package ledger

import (
	"errors"
	"fmt"

	"aishi/internal/chain"
)

var (
	ErrTokenExists      = errors.New("token already minted")
	ErrNonexistentToken = errors.New("nonexistent token")
	ErrNotOwner         = errors.New("transfer from incorrect owner")
	ErrZeroAddress      = errors.New("zero address is not a valid holder")
)

// Ledger maps token IDs to owners and owners to balances.
type Ledger struct {
	owners   map[uint64]chain.Address
	balances map[chain.Address]uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		owners:   make(map[uint64]chain.Address),
		balances: make(map[chain.Address]uint64),
	}
}

// Mint assigns a new token to owner.
func (l *Ledger) Mint(to chain.Address, id uint64) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if _, ok := l.owners[id]; ok {
		return fmt.Errorf("token %d: %w", id, ErrTokenExists)
	}

	l.owners[id] = to
	l.balances[to]++
	return nil
}

// Transfer moves token id from one holder to another.
func (l *Ledger) Transfer(from, to chain.Address, id uint64) error {
	owner, ok := l.owners[id]
	if !ok {
		return fmt.Errorf("token %d: %w", id, ErrNonexistentToken)
	}
	if owner != from {
		return fmt.Errorf("token %d: %w", id, ErrNotOwner)
	}
	if to.IsZero() {
		return ErrZeroAddress
	}

	l.balances[from]--
	if l.balances[from] == 0 {
		delete(l.balances, from)
	}
	l.owners[id] = to
	l.balances[to]++
	return nil
}

// OwnerOf returns the holder of token id.
func (l *Ledger) OwnerOf(id uint64) (chain.Address, error) {
	owner, ok := l.owners[id]
	if !ok {
		return chain.ZeroAddress, fmt.Errorf("token %d: %w", id, ErrNonexistentToken)
	}
	return owner, nil
}

// BalanceOf returns how many tokens addr holds.
func (l *Ledger) BalanceOf(addr chain.Address) (uint64, error) {
	if addr.IsZero() {
		return 0, ErrZeroAddress
	}
	return l.balances[addr], nil
}

// Exists reports whether token id has been minted.
func (l *Ledger) Exists(id uint64) bool {
	_, ok := l.owners[id]
	return ok
}

// TotalSupply returns the number of minted tokens.
func (l *Ledger) TotalSupply() uint64 {
	return uint64(len(l.owners))
}

// Snapshot returns a copy of the owner table.
func (l *Ledger) Snapshot() map[uint64]chain.Address {
	out := make(map[uint64]chain.Address, len(l.owners))
	for id, owner := range l.owners {
		out[id] = owner
	}
	return out
}

// Restore replaces the ledger contents with owners, recomputing balances.
func (l *Ledger) Restore(owners map[uint64]chain.Address) error {
	next := New()
	for id, owner := range owners {
		if err := next.Mint(owner, id); err != nil {
			return err
		}
	}

	l.owners = next.owners
	l.balances = next.balances
	return nil
}
