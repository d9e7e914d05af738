package main

import (
	"fmt"
)

// LedgerEntry is one vehicle's authoritative resources
type LedgerEntry struct {
	Ammo      int
	Health    int
	Unlimited bool
}

// AuthorityLedger holds the only authoritative resource counters. It lives on the authority.
type AuthorityLedger struct {
	entries map[string]*LedgerEntry
}

// NewAuthorityLedger creates an empty ledger
func NewAuthorityLedger() *AuthorityLedger {
	return &AuthorityLedger{entries: make(map[string]*LedgerEntry)}
}

// Register opens an entry for a newly spawned vehicle
func (l *AuthorityLedger) Register(id string, s Settings) LedgerEntry {
	e := &LedgerEntry{Ammo: s.StartAmmo, Health: s.StartHealth, Unlimited: s.UnlimitedAmmo}
	l.entries[id] = e
	return *e
}

// Remove drops a despawned vehicle's entry
func (l *AuthorityLedger) Remove(id string) {
	delete(l.entries, id)
}

// Entry returns a copy of a vehicle's counters
func (l *AuthorityLedger) Entry(id string) (LedgerEntry, bool) {
	e, ok := l.entries[id]
	if !ok {
		return LedgerEntry{}, false
	}
	return *e, true
}

func (l *AuthorityLedger) entry(id string) (*LedgerEntry, error) {
	e, ok := l.entries[id]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", id, ErrUnknownVehicle)
	}
	return e, nil
}

// GrantPickup adds quantity of kind and returns the broadcast carrying the new total
func (l *AuthorityLedger) GrantPickup(id string, kind ItemKind, quantity int) (Command, error) {
	e, err := l.entry(id)
	if err != nil {
		return Command{}, err
	}
	switch kind {
	case ItemHealth:
		e.Health += quantity
		return Command{Kind: CmdHealthUpdate, Vehicle: id, Health: e.Health}, nil
	case ItemRocket:
		e.Ammo += quantity
		return Command{Kind: CmdAmountUpdate, Vehicle: id, Item: ItemRocket, Amount: e.Ammo}, nil
	default:
		return Command{}, fmt.Errorf("grant %s to %s: %w", kind, id, ErrUnknownItem)
	}
}

// DebitAmmunition takes one rocket and returns what is left.
// Unlimited vehicles are never debited.
func (l *AuthorityLedger) DebitAmmunition(id string) (int, error) {
	e, err := l.entry(id)
	if err != nil {
		return 0, err
	}
	if e.Unlimited {
		return e.Ammo, nil
	}
	if e.Ammo < 1 {
		return e.Ammo, ErrInsufficientAmmunition
	}
	e.Ammo--
	return e.Ammo, nil
}

// ApplyDamage subtracts amount from health and returns the health broadcast
func (l *AuthorityLedger) ApplyDamage(id string, amount int) (Command, error) {
	e, err := l.entry(id)
	if err != nil {
		return Command{}, err
	}
	e.Health -= amount
	return Command{Kind: CmdHealthUpdate, Vehicle: id, Health: e.Health}, nil
}
