package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTickRate       = 60 // authority ticks per second
	maxVehiclesPerSession = 16
	inboxSize             = 512
)

// Peer is a connected participant's outbound side
type Peer interface {
	// SendFrame queues an encoded command; false means it was not queued
	SendFrame(data []byte, d Delivery) bool
	Close()
}

// GameConfig configures one session's authority loop
type GameConfig struct {
	SessionID string
	Settings  Settings
	TickRate  int
	Log       zerolog.Logger
	Metrics   *Metrics
	Events    EventSink
	Auth      *Auth
}

type inbound struct {
	from string
	cmd  Command
}

// Game runs one session's authority replica on a fixed tick and fans its output out to peers.
// The replica is only touched from the Run goroutine; other goroutines talk to it through
// the inbox and ctrl channels.
type Game struct {
	sessionID string
	replica   *Replica
	log       zerolog.Logger
	metrics   *Metrics
	events    EventSink
	auth      *Auth
	tickRate  int

	mu    sync.RWMutex
	peers map[string]Peer

	inbox    chan inbound
	ctrl     chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewGame creates a Game; call Run to start ticking
func NewGame(cfg GameConfig) *Game {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	g := &Game{
		sessionID: cfg.SessionID,
		log:       cfg.Log.With().Str("component", "game").Str("session", cfg.SessionID).Logger(),
		metrics:   cfg.Metrics,
		events:    cfg.Events,
		auth:      cfg.Auth,
		tickRate:  cfg.TickRate,
		peers:     make(map[string]Peer),
		inbox:     make(chan inbound, inboxSize),
		ctrl:      make(chan func()),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	g.replica = NewReplica(ReplicaConfig{
		Settings:  cfg.Settings,
		Authority: true,
		SessionID: cfg.SessionID,
		Log:       cfg.Log,
		FX:        LogPresenter{Log: g.log},
		Metrics:   cfg.Metrics,
		Events:    cfg.Events,
	})
	g.replica.SetTransport(g)
	return g
}

// Run starts the game loop and returns after Stop
func (g *Game) Run() {
	defer close(g.done)

	dt := 1.0 / float64(g.tickRate)
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.replica.Tick(dt)
		case in := <-g.inbox:
			g.replica.Deliver(in.from, in.cmd)
		case fn := <-g.ctrl:
			fn()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Done is closed once Run has returned
func (g *Game) Done() <-chan struct{} { return g.done }

// do runs fn on the game goroutine and waits for it
func (g *Game) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case g.ctrl <- func() { fn(); close(finished) }:
	case <-g.stop:
		return ErrGameStopped
	}
	<-finished
	return nil
}

// Submit queues a command from participant from. Unreliable commands are dropped when
// the inbox is full; reliable ones wait for room.
func (g *Game) Submit(from string, cmd Command, d Delivery) bool {
	in := inbound{from: from, cmd: cmd}
	if d == Unreliable {
		select {
		case g.inbox <- in:
			return true
		default:
			g.metrics.RecordDropped()
			return false
		}
	}
	select {
	case g.inbox <- in:
		return true
	case <-g.stop:
		return false
	}
}

// Join spawns a vehicle for peer and sends it the welcome snapshot. A non-empty reclaim
// id from a valid seat token keeps the participant's previous vehicle id.
func (g *Game) Join(name string, peer Peer, reclaim string) (string, error) {
	var (
		id  string
		err error
	)
	doErr := g.do(func() {
		id = reclaim
		if id != "" {
			if old, ok := g.peer(id); ok && old != peer {
				old.Close()
			}
		} else {
			id = GenerateID(4)
		}
		if _, exists := g.replica.Vehicle(id); !exists && len(g.replica.Vehicles()) >= maxVehiclesPerSession {
			err = ErrSessionFull
			return
		}
		if _, err = g.replica.SpawnVehicle(id, name); err != nil {
			return
		}
		g.setPeer(id, peer)

		token := ""
		if g.auth != nil {
			if token, err = g.auth.IssueSeat(g.sessionID, id); err != nil {
				g.log.Error().Err(err).Str("vehicle", id).Msg("issue seat token")
				token, err = "", nil
			}
		}
		g.replica.SendWelcome(id, token)
		g.track(EvtVehicleJoin, id, fmt.Sprintf(`{"name":%q,"reclaim":%t}`, name, reclaim != ""))
	})
	if doErr != nil {
		return "", doErr
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Leave despawns id if peer is still the one driving it
func (g *Game) Leave(id string, peer Peer) {
	err := g.do(func() {
		cur, ok := g.peer(id)
		if !ok || cur != peer {
			return
		}
		g.mu.Lock()
		delete(g.peers, id)
		g.mu.Unlock()
		g.replica.DespawnVehicle(id)
		g.track(EvtVehicleLeave, id, "")
	})
	if err != nil {
		g.log.Debug().Str("vehicle", id).Msg("leave after stop")
	}
}

// Snapshot returns every vehicle's current state
func (g *Game) Snapshot() ([]VehicleState, error) {
	var out []VehicleState
	err := g.do(func() {
		for _, v := range g.replica.Vehicles() {
			out = append(out, v.ToState())
		}
	})
	return out, err
}

// VehicleCount returns the number of connected participants
func (g *Game) VehicleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.peers)
}

func (g *Game) peer(id string) (Peer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.peers[id]
	return p, ok
}

func (g *Game) setPeer(id string, p Peer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peers[id] = p
}

func (g *Game) track(evt, vehicle, data string) {
	if g.events != nil {
		g.events.Track(evt, g.sessionID, vehicle, data)
	}
}

// ServerCall implements Transport. The authority handles its own requests in place.
func (g *Game) ServerCall(cmd Command, _ Delivery) {
	g.log.Warn().Stringer("kind", cmd.Kind).Msg("authority tried to send a server call")
}

// Broadcast implements Transport: encode once, send to every peer
func (g *Game) Broadcast(cmd Command, d Delivery) {
	data, err := EncodeCommand(cmd)
	if err != nil {
		g.log.Error().Err(err).Stringer("kind", cmd.Kind).Msg("encode broadcast")
		return
	}
	g.mu.RLock()
	peers := make([]Peer, 0, len(g.peers))
	for _, p := range g.peers {
		peers = append(peers, p)
	}
	g.mu.RUnlock()

	for _, p := range peers {
		g.send(p, data, d)
	}
}

// ClientCall implements Transport
func (g *Game) ClientCall(to string, cmd Command, d Delivery) {
	p, ok := g.peer(to)
	if !ok {
		g.log.Debug().Str("to", to).Stringer("kind", cmd.Kind).Msg("client call to unknown peer")
		return
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		g.log.Error().Err(err).Stringer("kind", cmd.Kind).Msg("encode client call")
		return
	}
	g.send(p, data, d)
}

func (g *Game) send(p Peer, data []byte, d Delivery) {
	if p.SendFrame(data, d) {
		return
	}
	if d == Unreliable {
		g.metrics.RecordDropped()
	}
}
