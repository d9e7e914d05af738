package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const PingInterval = 2.0 // seconds between client pings

// ReplicaConfig configures one process's view of a session
type ReplicaConfig struct {
	Settings  Settings
	Authority bool
	SessionID string
	Log       zerolog.Logger
	FX        Presenter
	Input     InputSource
	Metrics   *Metrics
	Events    EventSink
	Clock     func() time.Time
}

// Replica is one process's view of a session: every vehicle, pickup and rocket, plus the
// authority state when this process is the authority. It is stepped from a single goroutine.
type Replica struct {
	settings  Settings
	sessionID string
	log       zerolog.Logger
	transport Transport
	world     *SphereWorld
	fx        Presenter
	input     InputSource
	sim       MovementSimulator
	metrics   *Metrics
	events    EventSink
	now       func() time.Time

	authority *Authority

	localID   string
	localBody MovementBody
	token     string

	vehicles    map[string]*Vehicle
	order       []string
	pickups     map[string]*Pickup
	pickupOrder []string
	spawned     int

	selfQueue []Command
	draining  bool

	pingTimer float64
	rtt       time.Duration
}

// NewReplica builds a replica with the level's pickups and obstacles in place
func NewReplica(cfg ReplicaConfig) *Replica {
	r := &Replica{
		settings:  cfg.Settings,
		sessionID: cfg.SessionID,
		log:       cfg.Log.With().Str("component", "replica").Str("session", cfg.SessionID).Logger(),
		world:     NewSphereWorld(),
		fx:        cfg.FX,
		input:     cfg.Input,
		sim:       MovementSimulator{Settings: cfg.Settings},
		metrics:   cfg.Metrics,
		events:    cfg.Events,
		now:       cfg.Clock,
		vehicles:  make(map[string]*Vehicle),
		pickups:   make(map[string]*Pickup),
	}
	if r.fx == nil {
		r.fx = NopPresenter{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	for _, spec := range cfg.Settings.Level.Pickups {
		p := NewPickup(spec)
		r.pickups[p.ID] = p
		r.pickupOrder = append(r.pickupOrder, p.ID)
	}
	for _, spec := range cfg.Settings.Level.Obstacles {
		r.world.AddObstacle(NewObstacle(spec))
	}
	if cfg.Authority {
		r.authority = NewAuthority(&r.settings, r.pickups)
	}
	return r
}

// SetTransport wires the replica to the network
func (r *Replica) SetTransport(t Transport) { r.transport = t }

// SetInput replaces the local input source
func (r *Replica) SetInput(in InputSource) { r.input = in }

// IsAuthority reports whether this process owns the ledger
func (r *Replica) IsAuthority() bool { return r.authority != nil }

// Authority returns the authority state, nil on clients
func (r *Replica) Authority() *Authority { return r.authority }

// LocalID returns the id of the locally controlled vehicle, empty if none
func (r *Replica) LocalID() string { return r.localID }

// Token returns the seat token the authority handed out in the welcome
func (r *Replica) Token() string { return r.token }

// RTT returns the last measured round trip to the authority
func (r *Replica) RTT() time.Duration { return r.rtt }

// Settings returns the tuning this replica simulates with
func (r *Replica) Settings() Settings { return r.settings }

// Vehicle looks up a vehicle by id
func (r *Replica) Vehicle(id string) (*Vehicle, bool) {
	v, ok := r.vehicles[id]
	return v, ok
}

// Vehicles returns every vehicle in join order
func (r *Replica) Vehicles() []*Vehicle {
	out := make([]*Vehicle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.vehicles[id])
	}
	return out
}

// Pickup looks up a pickup by id
func (r *Replica) Pickup(id string) (*Pickup, bool) {
	p, ok := r.pickups[id]
	return p, ok
}

// Local returns the locally controlled vehicle, or nil
func (r *Replica) Local() *Vehicle {
	if r.localID == "" {
		return nil
	}
	return r.vehicles[r.localID]
}

// IsLocallyControlled reports whether v is driven by this process
func (r *Replica) IsLocallyControlled(v *Vehicle) bool {
	return v != nil && r.localID != "" && v.ID == r.localID
}

// isPredictor reports whether v's weapon state on this process runs ahead of the authority
func (r *Replica) isPredictor(v *Vehicle) bool {
	return r.authority == nil && r.IsLocallyControlled(v)
}

// AuthorityFacing implements FacingView
func (r *Replica) AuthorityFacing(id string) (float64, bool) {
	v, ok := r.vehicles[id]
	if !ok {
		return 0, false
	}
	return v.Facing(), true
}

func (r *Replica) flight() Flight {
	return Flight{
		Settings: &r.settings,
		World:    r.world,
		FX:       r.fx,
		OnHit:    r.onRocketHit,
	}
}

// Possess makes this process drive vehicle id
func (r *Replica) Possess(id string) error {
	v, ok := r.vehicles[id]
	if !ok {
		return fmt.Errorf("possess %s: %w", id, ErrUnknownVehicle)
	}
	r.localID = id
	r.localBody = NewGroundBody(v.Transform.Position, v.Transform.Yaw, r.settings.Gravity)
	return nil
}

// Tick advances the whole replica by dt seconds
func (r *Replica) Tick(dt float64) {
	vehicles := r.Vehicles()
	for _, v := range vehicles {
		v.TickCooldown(dt)
	}
	if local := r.Local(); local != nil {
		r.stepLocal(local, dt)
	}
	for _, v := range vehicles {
		if !r.IsLocallyControlled(v) {
			r.sim.Interpolate(v, dt)
		}
	}

	r.syncWorld(vehicles)
	f := r.flight()
	for _, v := range vehicles {
		v.Pool.Tick(dt, f)
	}

	if r.authority != nil {
		r.broadcastPoses()
	} else {
		r.tickPing(dt)
	}
}

func (r *Replica) syncWorld(vehicles []*Vehicle) {
	bodies := make([]SphereBody, len(vehicles))
	for i, v := range vehicles {
		bodies[i] = v
	}
	r.world.Sync(bodies)
}

func (r *Replica) stepLocal(v *Vehicle, dt float64) {
	var in Input
	if r.input != nil {
		in = r.input.Poll(v, dt)
	}
	r.sim.Step(v, r.localBody, in, dt)

	if r.authority != nil {
		v.SetRemotePose(v.Transform.Position, v.Facing())
	} else if r.transport != nil {
		r.transport.ServerCall(Command{Kind: CmdSendLocation, Vehicle: v.ID, Position: v.Transform.Position}, Unreliable)
		r.transport.ServerCall(Command{Kind: CmdSendYaw, Vehicle: v.ID, Yaw: v.Facing()}, Unreliable)
	}

	if in.Fire {
		r.FireRocket()
	}
	if in.Cheat > 0 {
		r.RequestCheat(in.Cheat)
	}
	r.checkPickups(v)
}

func (r *Replica) broadcastPoses() {
	if r.transport == nil {
		return
	}
	for _, v := range r.Vehicles() {
		r.transport.Broadcast(Command{
			Kind:     CmdPose,
			Vehicle:  v.ID,
			Position: v.Remote.Position,
			Yaw:      v.Remote.Yaw,
		}, Unreliable)
	}
}

func (r *Replica) tickPing(dt float64) {
	if r.transport == nil || r.localID == "" {
		return
	}
	r.pingTimer += dt
	if r.pingTimer < PingInterval {
		return
	}
	r.pingTimer = 0
	r.transport.ServerCall(Command{Kind: CmdPing, Vehicle: r.localID, Stamp: r.now().UnixNano()}, Unreliable)
}

// FireRocket tries to fire the local vehicle's weapon. It returns false when a
// precondition fails; nothing is sent in that case.
func (r *Replica) FireRocket() bool {
	v := r.Local()
	if v == nil {
		return false
	}
	w := &v.Weapon
	if w.Cooldown > 0 {
		return false
	}
	if w.Ammo <= 0 && !w.Unlimited {
		return false
	}
	if v.Pool.ActiveCount() >= r.settings.MaxActiveRockets {
		return false
	}
	p := v.Pool.Free()
	if p == nil {
		r.log.Error().Str("vehicle", v.ID).Msg("no free rocket below the in-flight cap")
		return false
	}
	w.Cooldown = r.settings.FireCooldown

	req := Command{
		Kind:     CmdFireRequest,
		Vehicle:  v.ID,
		Slot:     p.Slot,
		Position: v.RocketOrigin(r.settings),
		Yaw:      v.Facing(),
	}
	if r.authority != nil {
		r.handleServerCall(v.ID, req)
		return true
	}

	if !w.Unlimited {
		w.Ammo--
	}
	w.pendingFires++
	p.StartMoving(v.Transform.Forward, req.Position, r.flight())
	if r.transport != nil {
		r.transport.ServerCall(req, Reliable)
	}
	r.log.Debug().Str("vehicle", v.ID).Int("slot", p.Slot).Int("ammo", w.Ammo).Msg("fire predicted")
	return true
}

// RequestCheat asks the authority for extra rockets
func (r *Replica) RequestCheat(amount int) {
	v := r.Local()
	if v == nil {
		return
	}
	cmd := Command{Kind: CmdCheat, Vehicle: v.ID, Amount: amount}
	if r.authority != nil {
		r.handleServerCall(v.ID, cmd)
		return
	}
	if r.transport != nil {
		r.transport.ServerCall(cmd, Reliable)
	}
}

func (r *Replica) checkPickups(v *Vehicle) {
	for _, id := range r.pickupOrder {
		p := r.pickups[id]
		if !p.Visible() || !p.Overlaps(v.Transform.Position, v.Radius) {
			continue
		}
		r.OnPickup(v, p)
	}
}

// OnPickup claims p for the local vehicle v, predicting the grant on clients
func (r *Replica) OnPickup(v *Vehicle, p *Pickup) {
	if !r.IsLocallyControlled(v) || !p.Visible() {
		return
	}
	req := Command{Kind: CmdPickupRequest, Vehicle: v.ID, Pickup: p.ID}
	if r.authority != nil {
		r.handleServerCall(v.ID, req)
		return
	}
	p.Predicted = true
	switch p.Kind {
	case ItemHealth:
		v.Health += p.Amount
	case ItemRocket:
		v.Weapon.Ammo += p.Amount
	}
	if r.transport != nil {
		r.transport.ServerCall(req, Reliable)
	}
}

func (r *Replica) onRocketHit(p *Projectile, victim *Vehicle) {
	if !r.IsLocallyControlled(victim) {
		return
	}
	report := Command{Kind: CmdHitReport, Vehicle: victim.ID, Slot: p.Slot}
	if p.Owner != nil {
		report.Owner = p.Owner.ID
	}
	if r.authority != nil {
		r.handleServerCall(victim.ID, report)
		return
	}
	if r.transport != nil {
		r.transport.ServerCall(report, Reliable)
	}
}

// Deliver implements Receiver
func (r *Replica) Deliver(from string, cmd Command) {
	if cmd.Kind.IsServerCall() {
		if r.authority == nil {
			r.log.Warn().Stringer("kind", cmd.Kind).Msg("server call delivered to a client")
			return
		}
		r.handleServerCall(from, cmd)
		return
	}
	if r.authority != nil {
		r.log.Warn().Stringer("kind", cmd.Kind).Str("from", from).Msg("authority ignores inbound broadcast")
		return
	}
	r.apply(cmd)
}

func (r *Replica) handleServerCall(from string, cmd Command) {
	switch cmd.Kind {
	case CmdSendLocation, CmdSendYaw:
		v, ok := r.vehicles[cmd.Vehicle]
		if !ok || cmd.Vehicle != from || r.IsLocallyControlled(v) {
			return
		}
		if cmd.Kind == CmdSendLocation {
			v.SetRemoteLocation(cmd.Position)
		} else {
			v.SetRemoteYaw(cmd.Yaw)
		}
	case CmdPing:
		if r.transport != nil && from != "" {
			r.transport.ClientCall(from, Command{Kind: CmdPong, Vehicle: from, Stamp: cmd.Stamp}, Unreliable)
		}
	default:
		outs, err := r.authority.Handle(from, cmd, r)
		if err != nil {
			r.log.Warn().Err(err).Str("from", from).Stringer("kind", cmd.Kind).Msg("server call refused")
			return
		}
		r.emit(outs)
	}
}

// emit sends authority output and applies anything addressed to this process
func (r *Replica) emit(outs []Outgoing) {
	for _, o := range outs {
		r.record(o.Cmd)
		switch {
		case o.To == "":
			if r.transport != nil {
				r.transport.Broadcast(o.Cmd, o.Delivery)
			}
			r.selfQueue = append(r.selfQueue, o.Cmd)
		case o.To == r.localID:
			r.selfQueue = append(r.selfQueue, o.Cmd)
		default:
			if r.transport != nil {
				r.transport.ClientCall(o.To, o.Cmd, o.Delivery)
			}
		}
	}
	r.drainSelf()
}

func (r *Replica) drainSelf() {
	if r.draining {
		return
	}
	r.draining = true
	for len(r.selfQueue) > 0 {
		cmd := r.selfQueue[0]
		r.selfQueue = r.selfQueue[1:]
		r.apply(cmd)
	}
	r.draining = false
}

func (r *Replica) record(cmd Command) {
	switch cmd.Kind {
	case CmdFireActivate:
		r.metrics.RecordFire(r.sessionID)
		r.track(EvtRocketFired, cmd.Vehicle, fmt.Sprintf(`{"slot":%d,"yaw":%.2f}`, cmd.Slot, cmd.Yaw))
	case CmdFireReject:
		r.metrics.RecordReject(r.sessionID)
		r.track(EvtRocketRejected, cmd.Vehicle, fmt.Sprintf(`{"slot":%d}`, cmd.Slot))
		r.log.Info().Str("vehicle", cmd.Vehicle).Int("slot", cmd.Slot).Msg("fire rejected")
	case CmdHealthUpdate:
		if cmd.Owner != "" {
			r.metrics.RecordHit(r.sessionID)
			r.track(EvtRocketHit, cmd.Vehicle, fmt.Sprintf(`{"owner":%q,"health":%d}`, cmd.Owner, cmd.Health))
		}
	case CmdPickupConsumed:
		if p, ok := r.pickups[cmd.Pickup]; ok {
			r.metrics.RecordPickup(r.sessionID, p.Kind)
		}
		r.track(EvtPickup, cmd.Vehicle, fmt.Sprintf(`{"pickup":%q}`, cmd.Pickup))
	}
}

func (r *Replica) track(evt, vehicle, data string) {
	if r.events != nil {
		r.events.Track(evt, r.sessionID, vehicle, data)
	}
}

func (r *Replica) apply(cmd Command) {
	switch cmd.Kind {
	case CmdPose:
		if v, ok := r.vehicles[cmd.Vehicle]; ok && !r.IsLocallyControlled(v) {
			v.SetRemotePose(cmd.Position, cmd.Yaw)
		}
	case CmdFireActivate:
		r.applyFireActivate(cmd)
	case CmdFireReject:
		r.applyFireReject(cmd)
	case CmdAmountUpdate:
		r.applyAmount(cmd)
	case CmdHealthUpdate:
		if v, ok := r.vehicles[cmd.Vehicle]; ok {
			r.setHealth(v, cmd.Health)
		}
	case CmdPickupConsumed:
		r.applyPickupConsumed(cmd)
	case CmdPickupDenied:
		r.applyPickupDenied(cmd)
	case CmdSpawn:
		for _, st := range cmd.Vehicles {
			r.addFromState(st)
		}
	case CmdDespawn:
		r.removeVehicle(cmd.Vehicle)
	case CmdWelcome:
		r.applyWelcome(cmd)
	case CmdPong:
		r.rtt = r.now().Sub(time.Unix(0, cmd.Stamp))
		if v := r.Local(); v != nil {
			r.fx.DebugText(v, fmt.Sprintf("ping %dms ammo %d health %d", r.rtt.Milliseconds(), v.Weapon.Ammo, v.Health))
		}
	default:
		r.log.Warn().Stringer("kind", cmd.Kind).Msg("unhandled command")
	}
}

func (r *Replica) rocket(cmd Command) (*Vehicle, *Projectile, bool) {
	v, ok := r.vehicles[cmd.Vehicle]
	if !ok {
		r.log.Warn().Str("vehicle", cmd.Vehicle).Stringer("kind", cmd.Kind).Msg("command for unknown vehicle")
		return nil, nil, false
	}
	p, err := v.Pool.Slot(cmd.Slot)
	if err != nil {
		r.log.Warn().Err(err).Str("vehicle", cmd.Vehicle).Msg("command for bad rocket slot")
		return nil, nil, false
	}
	return v, p, true
}

// pendingGrant sums the predicted pickups of kind the authority has not answered yet
func (r *Replica) pendingGrant(kind ItemKind) int {
	n := 0
	for _, p := range r.pickups {
		if p.Predicted && p.Kind == kind {
			n += p.Amount
		}
	}
	return n
}

// reconcileAmmo sets the predictor's ammo to the authoritative count minus fires and plus
// rocket pickups the authority has not answered yet
func (r *Replica) reconcileAmmo(v *Vehicle, authoritative int) {
	if !r.settings.ReconcileAmmo {
		return
	}
	ammo := authoritative + r.pendingGrant(ItemRocket)
	if !v.Weapon.Unlimited {
		ammo -= v.Weapon.pendingFires
	}
	if ammo < 0 {
		ammo = 0
	}
	v.Weapon.Ammo = ammo
}

func (r *Replica) applyFireActivate(cmd Command) {
	v, p, ok := r.rocket(cmd)
	if !ok {
		return
	}
	dir := YawToForward(cmd.Yaw)
	if r.isPredictor(v) {
		if v.Weapon.pendingFires > 0 {
			v.Weapon.pendingFires--
		}
		if p.InFlight() {
			p.ApplyCorrection(dir)
		}
		r.reconcileAmmo(v, cmd.Amount)
		return
	}
	if !v.Weapon.Unlimited {
		v.Weapon.Ammo = cmd.Amount
	}
	p.StartMoving(dir, cmd.Position, r.flight())
}

func (r *Replica) applyFireReject(cmd Command) {
	v, p, ok := r.rocket(cmd)
	if !ok {
		return
	}
	if !r.isPredictor(v) {
		r.log.Warn().Str("vehicle", v.ID).Msg("fire rejection for a vehicle this process does not drive")
		return
	}
	p.MakeFree(r.fx)
	if v.Weapon.pendingFires > 0 {
		v.Weapon.pendingFires--
	}
	r.reconcileAmmo(v, cmd.Amount)
}

func (r *Replica) applyAmount(cmd Command) {
	v, ok := r.vehicles[cmd.Vehicle]
	if !ok {
		return
	}
	switch cmd.Item {
	case ItemRocket:
		if r.isPredictor(v) {
			r.reconcileAmmo(v, cmd.Amount)
			return
		}
		v.Weapon.Ammo = cmd.Amount
	case ItemHealth:
		r.setHealth(v, cmd.Amount)
	}
}

// setHealth applies an authoritative health value; on the predictor, health pickups still
// waiting for an answer stay on top of it
func (r *Replica) setHealth(v *Vehicle, health int) {
	if r.isPredictor(v) {
		health += r.pendingGrant(ItemHealth)
	}
	v.Health = health
}

func (r *Replica) applyPickupConsumed(cmd Command) {
	if p, ok := r.pickups[cmd.Pickup]; ok {
		p.PickedUp = true
		p.Predicted = false
	}
	v, ok := r.vehicles[cmd.Vehicle]
	if !ok {
		return
	}
	r.setHealth(v, cmd.Health)
	if r.isPredictor(v) {
		r.reconcileAmmo(v, cmd.Amount)
		return
	}
	if !v.Weapon.Unlimited {
		v.Weapon.Ammo = cmd.Amount
	}
}

func (r *Replica) applyPickupDenied(cmd Command) {
	if p, ok := r.pickups[cmd.Pickup]; ok {
		p.Predicted = false
		p.PickedUp = true
	}
	v, ok := r.vehicles[cmd.Vehicle]
	if !ok || !r.IsLocallyControlled(v) {
		return
	}
	r.setHealth(v, cmd.Health)
	r.reconcileAmmo(v, cmd.Amount)
}

func (r *Replica) applyWelcome(cmd Command) {
	for _, st := range cmd.Vehicles {
		r.addFromState(st)
	}
	for _, ps := range cmd.Pickups {
		if p, ok := r.pickups[ps.ID]; ok {
			p.PickedUp = ps.PickedUp
		}
	}
	r.token = cmd.Token
	if err := r.Possess(cmd.Vehicle); err != nil {
		r.log.Error().Err(err).Msg("welcome names a vehicle missing from its snapshot")
		return
	}
	r.log.Info().Str("vehicle", cmd.Vehicle).Int("vehicles", len(r.vehicles)).Msg("joined session")
}

func (r *Replica) addVehicle(v *Vehicle) {
	if _, ok := r.vehicles[v.ID]; !ok {
		r.order = append(r.order, v.ID)
	}
	r.vehicles[v.ID] = v
}

func (r *Replica) addFromState(st VehicleState) *Vehicle {
	if v, ok := r.vehicles[st.ID]; ok {
		return v
	}
	v := NewVehicle(st.ID, st.Name, st.Position, st.Yaw, r.settings)
	v.Weapon.Ammo = st.Ammo
	v.Weapon.Unlimited = st.Unlimited
	v.Health = st.Health
	v.SetRemotePose(st.Position, st.Yaw)
	f := r.flight()
	for _, snap := range st.Rockets {
		p, err := v.Pool.Slot(snap.Slot)
		if err != nil {
			continue
		}
		p.StartMoving(snap.Direction, snap.Origin, f)
		p.Distance = snap.Distance
		p.LifeRemaining = snap.Life
		p.Position = snap.Origin.Add(p.Direction.Mul(snap.Distance))
	}
	r.addVehicle(v)
	return v
}

func (r *Replica) removeVehicle(id string) {
	v, ok := r.vehicles[id]
	if !ok {
		return
	}
	for _, p := range v.Pool.InFlight() {
		p.MakeFree(r.fx)
	}
	delete(r.vehicles, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.authority != nil {
		r.authority.Ledger.Remove(id)
	}
	if id == r.localID {
		r.localID = ""
		r.localBody = nil
	}
}

// SpawnVehicle creates a vehicle for a joining participant and announces it. Authority only.
func (r *Replica) SpawnVehicle(id, name string) (*Vehicle, error) {
	if r.authority == nil {
		return nil, fmt.Errorf("spawn %s: only the authority spawns vehicles", id)
	}
	if v, ok := r.vehicles[id]; ok {
		return v, nil
	}
	pos := r.settings.Level.SpawnPoint(r.spawned)
	r.spawned++
	yaw := SpawnYaw(pos)
	v := NewVehicle(id, name, pos, yaw, r.settings)
	v.SetRemotePose(pos, yaw)
	e := r.authority.Ledger.Register(id, r.settings)
	v.Weapon.Ammo = e.Ammo
	v.Health = e.Health
	r.addVehicle(v)

	if r.transport != nil {
		r.transport.Broadcast(Command{Kind: CmdSpawn, Vehicles: []VehicleState{v.ToState()}}, Reliable)
	}
	r.log.Info().Str("vehicle", id).Str("name", name).Floats64("at", pos[:]).Msg("vehicle spawned")
	return v, nil
}

// DespawnVehicle removes a leaving participant's vehicle everywhere. Authority only.
func (r *Replica) DespawnVehicle(id string) {
	if r.authority == nil {
		return
	}
	if _, ok := r.vehicles[id]; !ok {
		return
	}
	r.removeVehicle(id)
	if r.transport != nil {
		r.transport.Broadcast(Command{Kind: CmdDespawn, Vehicle: id}, Reliable)
	}
	r.log.Info().Str("vehicle", id).Msg("vehicle despawned")
}

// WelcomeCommand builds the snapshot a newly joined participant needs
func (r *Replica) WelcomeCommand(id, token string) Command {
	cmd := Command{Kind: CmdWelcome, Vehicle: id, Token: token}
	for _, v := range r.Vehicles() {
		cmd.Vehicles = append(cmd.Vehicles, v.ToState())
	}
	for _, pid := range r.pickupOrder {
		cmd.Pickups = append(cmd.Pickups, r.pickups[pid].ToState())
	}
	return cmd
}

// SendWelcome delivers the welcome snapshot to participant id
func (r *Replica) SendWelcome(id, token string) {
	if r.transport != nil {
		r.transport.ClientCall(id, r.WelcomeCommand(id, token), Reliable)
	}
}
