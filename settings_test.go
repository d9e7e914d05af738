package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsEmptyPathGivesDefaults(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.NoError(t, s.Validate())
}

func TestLoadSettingsOverridesFromToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	data := `
max_active_rockets = 5
start_ammo = 12
correction_blend = "exponential"
reconcile_ammo = false

[level]
spawn_points = [[0.0, 0.0, 0.0], [500.0, 0.0, 0.0]]

[[level.pickups]]
id = "med"
kind = "health"
amount = 40
position = [10.0, 20.0, 0.0]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.MaxActiveRockets)
	assert.Equal(t, 12, s.StartAmmo)
	assert.Equal(t, BlendExponential, s.CorrectionBlend)
	assert.False(t, s.ReconcileAmmo)
	assert.Equal(t, DefaultSettings().RocketSpeed, s.RocketSpeed, "unset keys keep their defaults")

	assert.Contains(t, s.Level.SpawnPoints, mgl64.Vec3{500, 0, 0})
	var med *PickupSpec
	for i := range s.Level.Pickups {
		if s.Level.Pickups[i].ID == "med" {
			med = &s.Level.Pickups[i]
		}
	}
	require.NotNil(t, med)
	assert.Equal(t, ItemHealth, med.Kind)
	assert.Equal(t, 40, med.Amount)
	assert.InDelta(t, 20, med.Position.Y(), 1e-9)
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_active_rockets = 20\n"), 0o644))
	_, err := LoadSettings(path)
	assert.Error(t, err)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero pool", func(s *Settings) { s.PoolSize = 0 }},
		{"cap above pool", func(s *Settings) { s.MaxActiveRockets = s.PoolSize + 1 }},
		{"zero cap", func(s *Settings) { s.MaxActiveRockets = 0 }},
		{"no speed", func(s *Settings) { s.MaxSpeed = 0 }},
		{"friction above one", func(s *Settings) { s.Friction = 1.5 }},
		{"no lifetime", func(s *Settings) { s.RocketLifetime = 0 }},
		{"unknown blend", func(s *Settings) { s.CorrectionBlend = "cubic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSpawnPointWrapsAndFacesCenter(t *testing.T) {
	l := DefaultLevel()
	assert.Equal(t, l.SpawnPoints[0], l.SpawnPoint(len(l.SpawnPoints)))
	assert.InDelta(t, 45, SpawnYaw(l.SpawnPoints[0]), 1e-9)
	assert.Equal(t, 0.0, SpawnYaw(l.SpawnPoint(0).Mul(0)))

	var empty LevelLayout
	assert.Equal(t, 0.0, empty.SpawnPoint(3).Len())
}
