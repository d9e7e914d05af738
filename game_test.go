package main

import (
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeer decodes and keeps every frame it is sent
type fakePeer struct {
	mu     sync.Mutex
	frames []Command
	closed bool
}

func (p *fakePeer) SendFrame(data []byte, _ Delivery) bool {
	cmd, err := DecodeCommand(data)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, cmd)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) ofKind(k CommandKind) []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Command
	for _, c := range p.frames {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

func startTestGame(t *testing.T, s Settings) *Game {
	t.Helper()
	g := NewGame(GameConfig{
		SessionID: "sess",
		Settings:  s,
		TickRate:  120,
		Log:       zerolog.Nop(),
		Auth:      NewAuth(nil, "secret", zerolog.Nop()),
	})
	go g.Run()
	t.Cleanup(func() {
		g.Stop()
		<-g.Done()
	})
	return g
}

func TestGameJoinSendsWelcome(t *testing.T) {
	g := startTestGame(t, openLevel(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3000, 0}))
	p1, p2 := &fakePeer{}, &fakePeer{}

	id1, err := g.Join("alpha", p1, "")
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	welcomes := p1.ofKind(CmdWelcome)
	require.Len(t, welcomes, 1)
	assert.Equal(t, id1, welcomes[0].Vehicle)
	seat, err := g.auth.ValidateSeat(welcomes[0].Token)
	require.NoError(t, err)
	assert.Equal(t, Seat{SessionID: "sess", VehicleID: id1}, seat)

	id2, err := g.Join("beta", p2, "")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	spawns := p1.ofKind(CmdSpawn)
	require.Len(t, spawns, 1, "earlier peers hear about the newcomer")
	assert.Equal(t, id2, spawns[0].Vehicles[0].ID)
	assert.Equal(t, "beta", spawns[0].Vehicles[0].Name)
	assert.Empty(t, p2.ofKind(CmdSpawn), "the newcomer gets a welcome instead")
	require.Len(t, p2.ofKind(CmdWelcome), 1)
	assert.Len(t, p2.ofKind(CmdWelcome)[0].Vehicles, 2)
	assert.Equal(t, 2, g.VehicleCount())

	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 2)
}

func TestGameFireReachesEveryPeer(t *testing.T) {
	s := openLevel(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3000, 0})
	s.StartAmmo = 1
	g := startTestGame(t, s)
	p1, p2 := &fakePeer{}, &fakePeer{}
	id1, err := g.Join("alpha", p1, "")
	require.NoError(t, err)
	_, err = g.Join("beta", p2, "")
	require.NoError(t, err)

	require.True(t, g.Submit(id1, Command{Kind: CmdFireRequest, Vehicle: id1, Slot: 0, Yaw: 0}, Reliable))
	require.Eventually(t, func() bool {
		return len(p1.ofKind(CmdFireActivate)) == 1 && len(p2.ofKind(CmdFireActivate)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p2.ofKind(CmdFireActivate)[0].Amount)

	// second fire is out of ammo and only the shooter hears about it
	require.True(t, g.Submit(id1, Command{Kind: CmdFireRequest, Vehicle: id1, Slot: 1}, Reliable))
	require.Eventually(t, func() bool { return len(p1.ofKind(CmdFireReject)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, p2.ofKind(CmdFireReject))
}

func TestGamePosesFlowToPeers(t *testing.T) {
	g := startTestGame(t, openLevel(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3000, 0}))
	p1, p2 := &fakePeer{}, &fakePeer{}
	id1, err := g.Join("alpha", p1, "")
	require.NoError(t, err)
	_, err = g.Join("beta", p2, "")
	require.NoError(t, err)

	g.Submit(id1, Command{Kind: CmdSendLocation, Vehicle: id1, Position: mgl64.Vec3{42, 0, 0}}, Unreliable)
	require.Eventually(t, func() bool {
		for _, c := range p2.ofKind(CmdPose) {
			if c.Vehicle == id1 && c.Position.X() == 42 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestGameLeaveDespawns(t *testing.T) {
	g := startTestGame(t, openLevel(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3000, 0}))
	p1, p2 := &fakePeer{}, &fakePeer{}
	id1, err := g.Join("alpha", p1, "")
	require.NoError(t, err)
	_, err = g.Join("beta", p2, "")
	require.NoError(t, err)

	g.Leave(id1, p2) // not the driver
	assert.Equal(t, 2, g.VehicleCount())

	g.Leave(id1, p1)
	assert.Equal(t, 1, g.VehicleCount())
	despawns := p2.ofKind(CmdDespawn)
	require.Len(t, despawns, 1)
	assert.Equal(t, id1, despawns[0].Vehicle)
}

func TestGameReclaimReplacesPeer(t *testing.T) {
	g := startTestGame(t, openLevel(mgl64.Vec3{0, 0, 0}))
	old, fresh := &fakePeer{}, &fakePeer{}
	id, err := g.Join("alpha", old, "")
	require.NoError(t, err)

	got, err := g.Join("alpha", fresh, id)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, old.isClosed())
	assert.Equal(t, 1, g.VehicleCount())

	// the stale connection's cleanup must not remove the reclaimed vehicle
	g.Leave(id, old)
	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestGameSessionFull(t *testing.T) {
	g := startTestGame(t, openLevel(mgl64.Vec3{0, 0, 0}))
	for i := 0; i < maxVehiclesPerSession; i++ {
		_, err := g.Join("p", &fakePeer{}, "")
		require.NoError(t, err)
	}
	_, err := g.Join("late", &fakePeer{}, "")
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestGameStopped(t *testing.T) {
	g := NewGame(GameConfig{SessionID: "s", Settings: DefaultSettings(), Log: zerolog.Nop()})
	go g.Run()
	g.Stop()
	<-g.Done()
	g.Stop()

	_, err := g.Join("x", &fakePeer{}, "")
	assert.ErrorIs(t, err, ErrGameStopped)
	_, err = g.Snapshot()
	assert.ErrorIs(t, err, ErrGameStopped)
}
