package main

import (
	"github.com/go-gl/mathgl/mgl64"
)

const (
	PickupRadius   = 40.0
	ObstacleRadius = 150.0
)

// PickupSpec places one pickup in the level
type PickupSpec struct {
	ID       string     `toml:"id"`
	Kind     ItemKind   `toml:"kind"`
	Amount   int        `toml:"amount"`
	Position mgl64.Vec3 `toml:"position"`
	Radius   float64    `toml:"radius"`
}

// ObstacleSpec places one static blocking sphere
type ObstacleSpec struct {
	ID       string     `toml:"id"`
	Position mgl64.Vec3 `toml:"position"`
	Radius   float64    `toml:"radius"`
}

// LevelLayout is the static content loaded with a session
type LevelLayout struct {
	SpawnPoints []mgl64.Vec3   `toml:"spawn_points"`
	Pickups     []PickupSpec   `toml:"pickups"`
	Obstacles   []ObstacleSpec `toml:"obstacles"`
}

// DefaultLevel is a small arena with four spawns, a ring of pickups and a few rocks
func DefaultLevel() LevelLayout {
	return LevelLayout{
		SpawnPoints: []mgl64.Vec3{
			{-2000, -2000, 0},
			{2000, -2000, 0},
			{2000, 2000, 0},
			{-2000, 2000, 0},
		},
		Pickups: []PickupSpec{
			{ID: "rocket-n", Kind: ItemRocket, Amount: 5, Position: mgl64.Vec3{0, 1200, 0}},
			{ID: "rocket-s", Kind: ItemRocket, Amount: 5, Position: mgl64.Vec3{0, -1200, 0}},
			{ID: "rocket-e", Kind: ItemRocket, Amount: 5, Position: mgl64.Vec3{1200, 0, 0}},
			{ID: "rocket-w", Kind: ItemRocket, Amount: 5, Position: mgl64.Vec3{-1200, 0, 0}},
			{ID: "health-c", Kind: ItemHealth, Amount: 25, Position: mgl64.Vec3{0, 0, 0}},
		},
		Obstacles: []ObstacleSpec{
			{ID: "rock-1", Position: mgl64.Vec3{800, 800, 0}},
			{ID: "rock-2", Position: mgl64.Vec3{-800, -800, 0}},
			{ID: "rock-3", Position: mgl64.Vec3{800, -800, 0}, Radius: 200},
		},
	}
}

// SpawnPoint picks the spawn slot for the n-th joining vehicle
func (l LevelLayout) SpawnPoint(n int) mgl64.Vec3 {
	if len(l.SpawnPoints) == 0 {
		return mgl64.Vec3{}
	}
	return l.SpawnPoints[n%len(l.SpawnPoints)]
}

// SpawnYaw faces a spawn point toward the arena center
func SpawnYaw(pos mgl64.Vec3) float64 {
	if pos.X() == 0 && pos.Y() == 0 {
		return 0
	}
	return ForwardToYaw(pos.Mul(-1))
}
