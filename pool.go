package main

import "fmt"

// ProjectilePool owns a vehicle's fixed set of rockets
type ProjectilePool struct {
	slots []*Projectile
}

// NewProjectilePool pre-allocates size free rockets for owner
func NewProjectilePool(owner *Vehicle, size int) *ProjectilePool {
	pp := &ProjectilePool{slots: make([]*Projectile, size)}
	for i := range pp.slots {
		pp.slots[i] = &Projectile{Slot: i, Owner: owner}
	}
	return pp
}

// Len returns the pool capacity
func (pp *ProjectilePool) Len() int { return len(pp.slots) }

// Free returns the first free rocket in pool order, or nil if all are in flight
func (pp *ProjectilePool) Free() *Projectile {
	for _, p := range pp.slots {
		if !p.InFlight() {
			return p
		}
	}
	return nil
}

// ActiveCount returns how many rockets are in flight
func (pp *ProjectilePool) ActiveCount() int {
	n := 0
	for _, p := range pp.slots {
		if p.InFlight() {
			n++
		}
	}
	return n
}

// Slot returns the rocket at index i
func (pp *ProjectilePool) Slot(i int) (*Projectile, error) {
	if i < 0 || i >= len(pp.slots) {
		return nil, fmt.Errorf("slot %d of %d: %w", i, len(pp.slots), ErrBadSlot)
	}
	return pp.slots[i], nil
}

// InFlight returns the rockets currently simulating
func (pp *ProjectilePool) InFlight() []*Projectile {
	var out []*Projectile
	for _, p := range pp.slots {
		if p.InFlight() {
			out = append(out, p)
		}
	}
	return out
}

// Tick advances every in-flight rocket
func (pp *ProjectilePool) Tick(dt float64, f Flight) {
	for _, p := range pp.slots {
		p.Tick(dt, f)
	}
}
