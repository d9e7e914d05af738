package main

import "errors"

var (
	ErrUnknownVehicle         = errors.New("unknown vehicle")
	ErrUnknownPickup          = errors.New("unknown pickup")
	ErrBadSlot                = errors.New("projectile slot out of range")
	ErrNotOwner               = errors.New("sender does not control vehicle")
	ErrInsufficientAmmunition = errors.New("insufficient ammunition")
	ErrPickupTaken            = errors.New("pickup already taken")
	ErrUnknownItem            = errors.New("unknown item kind")
	ErrCheatsDisabled         = errors.New("cheats disabled")

	ErrUnknownSession  = errors.New("unknown session")
	ErrTooManySessions = errors.New("session limit reached")
	ErrSessionFull     = errors.New("session is full")
	ErrGameStopped     = errors.New("game stopped")
)
