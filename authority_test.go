package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedFacing map[string]float64

func (f fixedFacing) AuthorityFacing(id string) (float64, bool) {
	y, ok := f[id]
	return y, ok
}

func newTestAuthority(s *Settings) *Authority {
	pickups := map[string]*Pickup{}
	for _, spec := range s.Level.Pickups {
		p := NewPickup(spec)
		pickups[p.ID] = p
	}
	a := NewAuthority(s, pickups)
	a.Ledger.Register("a", *s)
	a.Ledger.Register("b", *s)
	return a
}

func TestLedgerDebitAmmunition(t *testing.T) {
	s := DefaultSettings()
	s.StartAmmo = 1
	l := NewAuthorityLedger()
	l.Register("a", s)

	left, err := l.DebitAmmunition("a")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	left, err = l.DebitAmmunition("a")
	assert.ErrorIs(t, err, ErrInsufficientAmmunition)
	assert.Equal(t, 0, left)

	_, err = l.DebitAmmunition("ghost")
	assert.ErrorIs(t, err, ErrUnknownVehicle)
}

func TestLedgerUnlimitedNeverDebits(t *testing.T) {
	s := DefaultSettings()
	s.UnlimitedAmmo = true
	l := NewAuthorityLedger()
	l.Register("a", s)
	for i := 0; i < 5; i++ {
		_, err := l.DebitAmmunition("a")
		require.NoError(t, err)
	}
	e, _ := l.Entry("a")
	assert.Equal(t, 0, e.Ammo)
}

func TestLedgerGrantPickup(t *testing.T) {
	s := DefaultSettings()
	l := NewAuthorityLedger()
	l.Register("a", s)

	cmd, err := l.GrantPickup("a", ItemRocket, 5)
	require.NoError(t, err)
	assert.Equal(t, CmdAmountUpdate, cmd.Kind)
	assert.Equal(t, 5, cmd.Amount)

	cmd, err = l.GrantPickup("a", ItemHealth, 25)
	require.NoError(t, err)
	assert.Equal(t, CmdHealthUpdate, cmd.Kind)
	assert.Equal(t, s.StartHealth+25, cmd.Health)

	_, err = l.GrantPickup("a", ItemKind(9), 1)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestLedgerApplyDamageTwice(t *testing.T) {
	s := DefaultSettings()
	l := NewAuthorityLedger()
	l.Register("a", s)
	_, err := l.ApplyDamage("a", 10)
	require.NoError(t, err)
	cmd, err := l.ApplyDamage("a", 10)
	require.NoError(t, err)
	assert.Equal(t, s.StartHealth-20, cmd.Health)
}

func TestHandleFireDebitsAndBroadcasts(t *testing.T) {
	s := DefaultSettings()
	s.StartAmmo = 2
	a := newTestAuthority(&s)

	outs, err := a.Handle("a", Command{Kind: CmdFireRequest, Vehicle: "a", Slot: 2, Position: mgl64.Vec3{1, 2, 0}, Yaw: 10}, fixedFacing{"a": 10})
	require.NoError(t, err)
	require.Len(t, outs, 1, "the new total rides on the activation, never in a frame of its own")
	assert.Empty(t, outs[0].To)

	act := outs[0].Cmd
	assert.Equal(t, CmdFireActivate, act.Kind)
	assert.Equal(t, 2, act.Slot)
	assert.Equal(t, 1, act.Amount)
	assert.Equal(t, mgl64.Vec3{1, 2, 0}, act.Position)
	assert.InDelta(t, 10, act.Yaw, 1e-9)
	assert.Equal(t, Reliable, outs[0].Delivery)
}

func TestHandleFireCorrectsYawHalfway(t *testing.T) {
	s := DefaultSettings()
	s.StartAmmo = 1
	a := newTestAuthority(&s)

	outs, err := a.Handle("a", Command{Kind: CmdFireRequest, Vehicle: "a", Yaw: 170}, fixedFacing{"a": -170})
	require.NoError(t, err)
	assert.InDelta(t, 180, outs[0].Cmd.Yaw, 1e-9)
}

func TestHandleFireRejectsWithoutAmmo(t *testing.T) {
	s := DefaultSettings()
	a := newTestAuthority(&s)

	outs, err := a.Handle("a", Command{Kind: CmdFireRequest, Vehicle: "a", Slot: 1}, fixedFacing{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, CmdFireReject, outs[0].Cmd.Kind)
	assert.Equal(t, "a", outs[0].To)
	assert.Equal(t, 1, outs[0].Cmd.Slot)
	assert.Equal(t, 0, outs[0].Cmd.Amount)
}

func TestHandleRefusesForeignVehicle(t *testing.T) {
	s := DefaultSettings()
	s.StartAmmo = 3
	a := newTestAuthority(&s)

	_, err := a.Handle("b", Command{Kind: CmdFireRequest, Vehicle: "a"}, fixedFacing{})
	assert.ErrorIs(t, err, ErrNotOwner)
	e, _ := a.Ledger.Entry("a")
	assert.Equal(t, 3, e.Ammo, "refused request must not touch the ledger")
}

func TestHandleFireBadSlot(t *testing.T) {
	s := DefaultSettings()
	s.StartAmmo = 3
	a := newTestAuthority(&s)
	_, err := a.Handle("a", Command{Kind: CmdFireRequest, Vehicle: "a", Slot: s.PoolSize}, fixedFacing{})
	assert.ErrorIs(t, err, ErrBadSlot)
	e, _ := a.Ledger.Entry("a")
	assert.Equal(t, 3, e.Ammo)
}

func TestHandleHitBroadcastsHealthWithShooter(t *testing.T) {
	s := DefaultSettings()
	a := newTestAuthority(&s)
	outs, err := a.Handle("a", Command{Kind: CmdHitReport, Vehicle: "a", Owner: "b", Slot: 4}, fixedFacing{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	upd := outs[0].Cmd
	assert.Equal(t, CmdHealthUpdate, upd.Kind)
	assert.Equal(t, s.StartHealth-s.RocketDamage, upd.Health)
	assert.Equal(t, "b", upd.Owner)
	assert.Equal(t, 4, upd.Slot)
}

func TestHandlePickupOnce(t *testing.T) {
	s := DefaultSettings()
	a := newTestAuthority(&s)

	outs, err := a.Handle("a", Command{Kind: CmdPickupRequest, Vehicle: "a", Pickup: "rocket-n"}, fixedFacing{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	grant := outs[0].Cmd
	assert.Equal(t, CmdPickupConsumed, grant.Kind)
	assert.Empty(t, outs[0].To)
	assert.Equal(t, "rocket-n", grant.Pickup)
	assert.Equal(t, ItemRocket, grant.Item)
	assert.Equal(t, s.StartAmmo+5, grant.Amount)
	assert.Equal(t, s.StartHealth, grant.Health)
	assert.True(t, a.Pickups["rocket-n"].PickedUp)

	outs, err = a.Handle("b", Command{Kind: CmdPickupRequest, Vehicle: "b", Pickup: "rocket-n"}, fixedFacing{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, CmdPickupDenied, outs[0].Cmd.Kind)
	assert.Equal(t, "b", outs[0].To)
	assert.Equal(t, s.StartAmmo, outs[0].Cmd.Amount)
	assert.Equal(t, s.StartHealth, outs[0].Cmd.Health)

	eb, _ := a.Ledger.Entry("b")
	assert.Equal(t, s.StartAmmo, eb.Ammo, "denied pickup grants nothing")

	_, err = a.Handle("a", Command{Kind: CmdPickupRequest, Vehicle: "a", Pickup: "nope"}, fixedFacing{})
	assert.ErrorIs(t, err, ErrUnknownPickup)
}

func TestConsumePickupFirstClaimWins(t *testing.T) {
	s := DefaultSettings()
	a := newTestAuthority(&s)

	p, err := a.ConsumePickup("a", "rocket-n")
	require.NoError(t, err)
	assert.True(t, p.PickedUp)

	_, err = a.ConsumePickup("b", "rocket-n")
	assert.ErrorIs(t, err, ErrPickupTaken)
	eb, _ := a.Ledger.Entry("b")
	assert.Equal(t, s.StartAmmo, eb.Ammo)

	_, err = a.ConsumePickup("a", "nope")
	assert.ErrorIs(t, err, ErrUnknownPickup)
	_, err = a.ConsumePickup("ghost", "health-c")
	assert.ErrorIs(t, err, ErrUnknownVehicle)
	assert.False(t, a.Pickups["health-c"].PickedUp, "a failed grant leaves the pickup in place")
}

func TestHandleCheat(t *testing.T) {
	s := DefaultSettings()
	a := newTestAuthority(&s)
	_, err := a.Handle("a", Command{Kind: CmdCheat, Vehicle: "a", Amount: 10}, fixedFacing{})
	assert.ErrorIs(t, err, ErrCheatsDisabled)

	s.AllowCheats = true
	outs, err := a.Handle("a", Command{Kind: CmdCheat, Vehicle: "a", Amount: 10}, fixedFacing{})
	require.NoError(t, err)
	assert.Equal(t, 10, outs[0].Cmd.Amount)
}

func TestCorrectedYaw(t *testing.T) {
	assert.InDelta(t, 20, CorrectedYaw(0, 40), 1e-9)
	assert.InDelta(t, -20, CorrectedYaw(0, -40), 1e-9)
	assert.InDelta(t, 180, CorrectedYaw(170, -170), 1e-9)
}
