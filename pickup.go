package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ItemKind identifies what a pickup grants
type ItemKind uint8

const (
	ItemHealth ItemKind = 1
	ItemRocket ItemKind = 2
)

func (k ItemKind) String() string {
	switch k {
	case ItemHealth:
		return "health"
	case ItemRocket:
		return "rocket"
	default:
		return fmt.Sprintf("item(%d)", uint8(k))
	}
}

// UnmarshalText lets level files name kinds as "health" or "rocket"
func (k *ItemKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "health":
		*k = ItemHealth
	case "rocket":
		*k = ItemRocket
	default:
		return fmt.Errorf("unknown item kind %q", b)
	}
	return nil
}

func (k ItemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Pickup is a world-placed, single-use resource grant
type Pickup struct {
	ID       string
	Kind     ItemKind
	Amount   int
	Position mgl64.Vec3
	Radius   float64

	// PickedUp is set once the authority has granted the item
	PickedUp bool
	// Predicted is set when the local vehicle has claimed it ahead of the authority
	Predicted bool
}

// NewPickup places a pickup from its level description
func NewPickup(spec PickupSpec) *Pickup {
	r := spec.Radius
	if r <= 0 {
		r = PickupRadius
	}
	return &Pickup{
		ID:       spec.ID,
		Kind:     spec.Kind,
		Amount:   spec.Amount,
		Position: spec.Position,
		Radius:   r,
	}
}

// Visible reports whether the item should still be drawn on this process
func (p *Pickup) Visible() bool {
	return !p.PickedUp && !p.Predicted
}

// Overlaps reports whether a vehicle sphere touches the pickup
func (p *Pickup) Overlaps(pos mgl64.Vec3, radius float64) bool {
	r := p.Radius + radius
	return pos.Sub(p.Position).LenSqr() <= r*r
}

// ToState converts to protocol state
func (p *Pickup) ToState() PickupState {
	return PickupState{ID: p.ID, PickedUp: p.PickedUp}
}
