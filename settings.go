package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// CorrectionBlend selects how in-flight projectiles re-aim toward an authority correction
type CorrectionBlend string

const (
	// BlendLinear uses rate*dt as the slerp factor every tick
	BlendLinear CorrectionBlend = "linear"
	// BlendExponential uses 1-exp(-rate*dt), which is frame-rate independent
	BlendExponential CorrectionBlend = "exponential"
)

// Settings holds the vehicle, weapon and replication tunables shared by every process
type Settings struct {
	// movement
	MaxSpeed         float64 `toml:"max_speed"`
	Acceleration     float64 `toml:"acceleration"`
	Friction         float64 `toml:"friction"`
	BrakingFriction  float64 `toml:"braking_friction"`
	TurnSpeedDefault float64 `toml:"turn_speed"` // degrees/s at full turning authority
	TurnEaseExponent float64 `toml:"turn_ease_exponent"`
	FacingBlendRate  float64 `toml:"facing_blend_rate"`
	Gravity          float64 `toml:"gravity"`
	VehicleRadius    float64 `toml:"vehicle_radius"`

	// weapon
	PoolSize            int             `toml:"pool_size"`
	MaxActiveRockets    int             `toml:"max_active_rockets"`
	FireCooldown        float64         `toml:"fire_cooldown"`
	RocketSpeed         float64         `toml:"rocket_speed"`
	RocketLifetime      float64         `toml:"rocket_lifetime"`
	RocketProbeLength   float64         `toml:"rocket_probe_length"`
	RocketSpawnOffset   float64         `toml:"rocket_spawn_offset"`
	RocketDamage        int             `toml:"rocket_damage"`
	CorrectionBlend     CorrectionBlend `toml:"correction_blend"`
	CorrectionBlendRate float64         `toml:"correction_blend_rate"`

	// resources
	StartHealth   int  `toml:"start_health"`
	StartAmmo     int  `toml:"start_ammo"`
	UnlimitedAmmo bool `toml:"unlimited_ammo"`

	// replication
	ObserverInterpSpeed float64 `toml:"observer_interp_speed"`
	ReconcileAmmo       bool    `toml:"reconcile_ammo"`
	AllowCheats         bool    `toml:"allow_cheats"`

	Level LevelLayout `toml:"level"`
}

// DefaultSettings returns the stock tuning
func DefaultSettings() Settings {
	return Settings{
		MaxSpeed:         1200,
		Acceleration:     900,
		Friction:         0.6,
		BrakingFriction:  0.02,
		TurnSpeedDefault: 120,
		TurnEaseExponent: 5,
		FacingBlendRate:  10.5,
		Gravity:          980,
		VehicleRadius:    60,

		PoolSize:            8,
		MaxActiveRockets:    3,
		FireCooldown:        0.5,
		RocketSpeed:         2000,
		RocketLifetime:      5,
		RocketProbeLength:   100,
		RocketSpawnOffset:   100,
		RocketDamage:        10,
		CorrectionBlend:     BlendLinear,
		CorrectionBlendRate: 0.9,

		StartHealth: 100,
		StartAmmo:   0,

		ObserverInterpSpeed: 1.0,
		ReconcileAmmo:       true,

		Level: DefaultLevel(),
	}
}

// Validate rejects tunings the simulation cannot run with
func (s Settings) Validate() error {
	switch {
	case s.PoolSize <= 0:
		return fmt.Errorf("pool_size must be positive, got %d", s.PoolSize)
	case s.MaxActiveRockets <= 0 || s.MaxActiveRockets > s.PoolSize:
		return fmt.Errorf("max_active_rockets must be in [1, %d], got %d", s.PoolSize, s.MaxActiveRockets)
	case s.MaxSpeed <= 0:
		return fmt.Errorf("max_speed must be positive")
	case s.Friction <= 0 || s.Friction > 1 || s.BrakingFriction <= 0 || s.BrakingFriction > 1:
		return fmt.Errorf("friction coefficients must be in (0, 1]")
	case s.RocketLifetime <= 0:
		return fmt.Errorf("rocket_lifetime must be positive")
	}
	switch s.CorrectionBlend {
	case BlendLinear, BlendExponential:
	default:
		return fmt.Errorf("unknown correction_blend %q", s.CorrectionBlend)
	}
	return nil
}

// LoadSettings reads a TOML tuning file on top of the defaults.
// An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}
