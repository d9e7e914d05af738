package main

import (
	"errors"
	"fmt"
)

// FacingView exposes the authority's own view of where a vehicle points
type FacingView interface {
	AuthorityFacing(id string) (float64, bool)
}

// Authority validates server calls against the ledger. Handle only touches the ledger and
// pickup flags; everything it wants the world to see comes back as Outgoing.
type Authority struct {
	Ledger   *AuthorityLedger
	Pickups  map[string]*Pickup
	Settings *Settings
}

// NewAuthority creates the authority state for one session
func NewAuthority(s *Settings, pickups map[string]*Pickup) *Authority {
	return &Authority{Ledger: NewAuthorityLedger(), Pickups: pickups, Settings: s}
}

// CorrectedYaw moves the claimed facing half way toward the authority's view
func CorrectedYaw(claimed, authority float64) float64 {
	return NormalizeDegrees(claimed + DeltaAngleDegrees(claimed, authority)*0.5)
}

// Handle processes one discrete server call from participant from.
// Pose updates and pings are not ledger business and are handled by the replica.
func (a *Authority) Handle(from string, cmd Command, view FacingView) ([]Outgoing, error) {
	if cmd.Vehicle != from {
		return nil, fmt.Errorf("%s from %s for %s: %w", cmd.Kind, from, cmd.Vehicle, ErrNotOwner)
	}
	switch cmd.Kind {
	case CmdFireRequest:
		return a.handleFire(cmd, view)
	case CmdHitReport:
		return a.handleHit(cmd)
	case CmdPickupRequest:
		return a.handlePickup(cmd)
	case CmdCheat:
		if !a.Settings.AllowCheats {
			return nil, ErrCheatsDisabled
		}
		grant, err := a.Ledger.GrantPickup(cmd.Vehicle, ItemRocket, cmd.Amount)
		if err != nil {
			return nil, err
		}
		return []Outgoing{broadcast(grant, Reliable)}, nil
	default:
		return nil, fmt.Errorf("authority cannot handle %s", cmd.Kind)
	}
}

func (a *Authority) handleFire(cmd Command, view FacingView) ([]Outgoing, error) {
	if cmd.Slot < 0 || cmd.Slot >= a.Settings.PoolSize {
		return nil, fmt.Errorf("fire slot %d: %w", cmd.Slot, ErrBadSlot)
	}
	remaining, err := a.Ledger.DebitAmmunition(cmd.Vehicle)
	if errors.Is(err, ErrInsufficientAmmunition) {
		return []Outgoing{clientCall(cmd.Vehicle, Command{
			Kind:    CmdFireReject,
			Vehicle: cmd.Vehicle,
			Slot:    cmd.Slot,
			Amount:  remaining,
		})}, nil
	}
	if err != nil {
		return nil, err
	}

	yaw := NormalizeDegrees(cmd.Yaw)
	if facing, ok := view.AuthorityFacing(cmd.Vehicle); ok {
		yaw = CorrectedYaw(cmd.Yaw, facing)
	}
	return []Outgoing{broadcast(Command{
		Kind:     CmdFireActivate,
		Vehicle:  cmd.Vehicle,
		Slot:     cmd.Slot,
		Position: cmd.Position,
		Yaw:      yaw,
		Amount:   remaining,
	}, Reliable)}, nil
}

func (a *Authority) handleHit(cmd Command) ([]Outgoing, error) {
	upd, err := a.Ledger.ApplyDamage(cmd.Vehicle, a.Settings.RocketDamage)
	if err != nil {
		return nil, err
	}
	upd.Owner = cmd.Owner
	upd.Slot = cmd.Slot
	return []Outgoing{broadcast(upd, Reliable)}, nil
}

// ConsumePickup grants pickup id to vehicle and marks it taken. The first claim wins;
// later claims get ErrPickupTaken and change nothing.
func (a *Authority) ConsumePickup(vehicle, id string) (*Pickup, error) {
	p, ok := a.Pickups[id]
	if !ok {
		return nil, fmt.Errorf("pickup %q: %w", id, ErrUnknownPickup)
	}
	if p.PickedUp {
		return p, fmt.Errorf("pickup %q for %s: %w", id, vehicle, ErrPickupTaken)
	}
	if _, err := a.Ledger.GrantPickup(vehicle, p.Kind, p.Amount); err != nil {
		return nil, err
	}
	p.PickedUp = true
	return p, nil
}

// handlePickup answers a claim with one frame carrying the claimant's new totals, so a
// predicting client never sees the grant and the consumption apart
func (a *Authority) handlePickup(cmd Command) ([]Outgoing, error) {
	p, err := a.ConsumePickup(cmd.Vehicle, cmd.Pickup)
	taken := errors.Is(err, ErrPickupTaken)
	if err != nil && !taken {
		return nil, err
	}
	e, ok := a.Ledger.Entry(cmd.Vehicle)
	if !ok {
		return nil, fmt.Errorf("pickup %q for %s: %w", cmd.Pickup, cmd.Vehicle, ErrUnknownVehicle)
	}
	if taken {
		return []Outgoing{clientCall(cmd.Vehicle, Command{
			Kind:    CmdPickupDenied,
			Vehicle: cmd.Vehicle,
			Pickup:  p.ID,
			Amount:  e.Ammo,
			Health:  e.Health,
		})}, nil
	}
	return []Outgoing{broadcast(Command{
		Kind:    CmdPickupConsumed,
		Vehicle: cmd.Vehicle,
		Pickup:  p.ID,
		Item:    p.Kind,
		Amount:  e.Ammo,
		Health:  e.Health,
	}, Reliable)}, nil
}
