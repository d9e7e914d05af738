package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"
)

// CommandKind identifies a replicated command
type CommandKind uint8

// Client -> authority (server calls)
const (
	CmdSendLocation CommandKind = iota + 1
	CmdSendYaw
	CmdFireRequest
	CmdHitReport
	CmdPickupRequest
	CmdCheat
	CmdPing
)

// Authority -> everyone (broadcasts)
const (
	CmdPose CommandKind = iota + 32
	CmdFireActivate
	CmdAmountUpdate
	CmdHealthUpdate
	CmdPickupConsumed
	CmdSpawn
	CmdDespawn
)

// Authority -> one participant (client calls)
const (
	CmdFireReject CommandKind = iota + 64
	CmdPickupDenied
	CmdWelcome
	CmdPong
)

var commandNames = map[CommandKind]string{
	CmdSendLocation:   "send_location",
	CmdSendYaw:        "send_yaw",
	CmdFireRequest:    "fire_request",
	CmdHitReport:      "hit_report",
	CmdPickupRequest:  "pickup_request",
	CmdCheat:          "cheat",
	CmdPing:           "ping",
	CmdPose:           "pose",
	CmdFireActivate:   "fire_activate",
	CmdAmountUpdate:   "amount_update",
	CmdHealthUpdate:   "health_update",
	CmdPickupConsumed: "pickup_consumed",
	CmdSpawn:          "spawn",
	CmdDespawn:        "despawn",
	CmdFireReject:     "fire_reject",
	CmdPickupDenied:   "pickup_denied",
	CmdWelcome:        "welcome",
	CmdPong:           "pong",
}

func (k CommandKind) String() string {
	if n, ok := commandNames[k]; ok {
		return n
	}
	return fmt.Sprintf("cmd(%d)", uint8(k))
}

// IsServerCall reports whether k travels from a participant to the authority
func (k CommandKind) IsServerCall() bool { return k >= CmdSendLocation && k < CmdPose }

// Delivery is the channel class a command is sent on
type Delivery uint8

const (
	Reliable Delivery = iota
	Unreliable
)

// DefaultDelivery is the channel a frame of kind k travels on when the wire does not say
func (k CommandKind) DefaultDelivery() Delivery {
	switch k {
	case CmdSendLocation, CmdSendYaw, CmdPing, CmdPose, CmdPong:
		return Unreliable
	}
	return Reliable
}

func (d Delivery) String() string {
	if d == Unreliable {
		return "unreliable"
	}
	return "reliable"
}

// Command is the single wire message. Fields are used per kind:
//
//	send_location   Vehicle Position
//	send_yaw        Vehicle Yaw
//	fire_request    Vehicle Slot Position(origin) Yaw(claimed facing)
//	fire_activate   Vehicle Slot Position(origin) Yaw(corrected) Amount(authority ammo)
//	fire_reject     Vehicle Slot Amount(authority ammo)
//	hit_report      Vehicle(victim) Owner Slot
//	health_update   Vehicle Health Owner Slot
//	amount_update   Vehicle Item Amount
//	pickup_request  Vehicle Pickup
//	pickup_consumed Vehicle Pickup Item Amount(authority ammo) Health
//	pickup_denied   Vehicle Pickup Amount Health
//	pose            Vehicle Position Yaw
//	spawn           Vehicles[0]
//	welcome         Vehicle Token Vehicles Pickups
//	cheat           Vehicle Amount
//	ping/pong       Stamp
type Command struct {
	Kind     CommandKind    `msgpack:"k"`
	Vehicle  string         `msgpack:"v,omitempty"`
	Owner    string         `msgpack:"o,omitempty"`
	Slot     int            `msgpack:"s,omitempty"`
	Position mgl64.Vec3     `msgpack:"p"`
	Yaw      float64        `msgpack:"y,omitempty"`
	Item     ItemKind       `msgpack:"i,omitempty"`
	Amount   int            `msgpack:"a,omitempty"`
	Health   int            `msgpack:"h,omitempty"`
	Pickup   string         `msgpack:"pk,omitempty"`
	Stamp    int64          `msgpack:"t,omitempty"`
	Token    string         `msgpack:"tok,omitempty"`
	Vehicles []VehicleState `msgpack:"vs,omitempty"`
	Pickups  []PickupState  `msgpack:"ps,omitempty"`
}

// Outgoing is a command the authority wants delivered.
// An empty To means broadcast to every participant.
type Outgoing struct {
	Cmd      Command
	Delivery Delivery
	To       string
}

func broadcast(cmd Command, d Delivery) Outgoing { return Outgoing{Cmd: cmd, Delivery: d} }

func clientCall(to string, cmd Command) Outgoing {
	return Outgoing{Cmd: cmd, Delivery: Reliable, To: to}
}

// VehicleState is a vehicle in a spawn or welcome snapshot
type VehicleState struct {
	ID        string               `msgpack:"id"`
	Name      string               `msgpack:"n"`
	Position  mgl64.Vec3           `msgpack:"p"`
	Yaw       float64              `msgpack:"y"`
	Ammo      int                  `msgpack:"a"`
	Health    int                  `msgpack:"h"`
	Unlimited bool                 `msgpack:"u,omitempty"`
	Rockets   []ProjectileSnapshot `msgpack:"r,omitempty"`
}

// ProjectileSnapshot lets a late joiner pick up rockets already in flight
type ProjectileSnapshot struct {
	Slot      int        `msgpack:"s"`
	Origin    mgl64.Vec3 `msgpack:"o"`
	Direction mgl64.Vec3 `msgpack:"d"`
	Distance  float64    `msgpack:"x"`
	Life      float64    `msgpack:"l"`
}

// PickupState is a pickup in a welcome snapshot
type PickupState struct {
	ID       string `msgpack:"id"`
	PickedUp bool   `msgpack:"u"`
}

// EncodeCommand serializes a command for a binary frame
func EncodeCommand(cmd Command) ([]byte, error) {
	return msgpack.Marshal(&cmd)
}

// DecodeCommand parses a binary frame
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := msgpack.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if _, ok := commandNames[cmd.Kind]; !ok {
		return cmd, fmt.Errorf("decode command: unknown kind %d", cmd.Kind)
	}
	return cmd, nil
}

// ErrorMsg is the JSON body of a failed HTTP call
type ErrorMsg struct {
	Msg string `json:"msg"`
}
