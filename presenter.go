package main

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// Presenter receives fire-and-forget presentation events
type Presenter interface {
	SetVisible(p *Projectile, visible bool)
	SpawnExplosion(at mgl64.Vec3)
	DebugText(v *Vehicle, text string)
}

// NopPresenter discards everything, used by the dedicated server
type NopPresenter struct{}

func (NopPresenter) SetVisible(*Projectile, bool) {}
func (NopPresenter) SpawnExplosion(mgl64.Vec3)    {}
func (NopPresenter) DebugText(*Vehicle, string)   {}

// LogPresenter writes presentation events to a logger at debug level, used by the bot client
type LogPresenter struct {
	Log zerolog.Logger
}

func (lp LogPresenter) SetVisible(p *Projectile, visible bool) {
	lp.Log.Debug().Str("rocket", p.CollisionID()).Bool("visible", visible).Msg("rocket visibility")
}

func (lp LogPresenter) SpawnExplosion(at mgl64.Vec3) {
	lp.Log.Debug().Floats64("at", at[:]).Msg("explosion")
}

func (lp LogPresenter) DebugText(v *Vehicle, text string) {
	lp.Log.Debug().Str("vehicle", v.ID).Msg(text)
}
