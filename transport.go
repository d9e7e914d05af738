package main

import (
	"github.com/rs/zerolog"
)

// Transport moves commands between processes. Sends never block the caller's tick.
//
// Broadcast reaches every remote participant; the authority applies its own broadcasts
// locally, so implementations must not echo them back to the sender.
type Transport interface {
	ServerCall(cmd Command, d Delivery)
	Broadcast(cmd Command, d Delivery)
	ClientCall(to string, cmd Command, d Delivery)
}

// Receiver consumes delivered commands. from is the participant id of the sender, or
// empty when the authority sent it.
type Receiver interface {
	Deliver(from string, cmd Command)
}

type packet struct {
	from     string
	to       string // empty = authority
	data     []byte
	delivery Delivery
}

// LoopbackNetwork is an in-process network for tests and local simulation. Messages
// are encoded on send and queued until Flush, so delivery is asynchronous relative
// to the sender's tick and per-sender order is preserved.
type LoopbackNetwork struct {
	log       zerolog.Logger
	authority Receiver
	clients   map[string]Receiver
	order     []string
	queue     []packet

	// DropUnreliable, when set, decides whether an unreliable packet is lost
	DropUnreliable func(cmd Command) bool
}

// NewLoopbackNetwork creates an empty network
func NewLoopbackNetwork(log zerolog.Logger) *LoopbackNetwork {
	return &LoopbackNetwork{log: log, clients: make(map[string]Receiver)}
}

// AttachAuthority registers the authority receiver and returns its transport
func (n *LoopbackNetwork) AttachAuthority(r Receiver) Transport {
	n.authority = r
	return loopbackEndpoint{net: n}
}

// AttachClient registers participant id and returns its transport
func (n *LoopbackNetwork) AttachClient(id string, r Receiver) Transport {
	if _, ok := n.clients[id]; !ok {
		n.order = append(n.order, id)
	}
	n.clients[id] = r
	return loopbackEndpoint{net: n, id: id}
}

// Detach removes a participant; queued packets for it are discarded on flush
func (n *LoopbackNetwork) Detach(id string) {
	delete(n.clients, id)
	for i, o := range n.order {
		if o == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Pending returns the number of queued packets
func (n *LoopbackNetwork) Pending() int { return len(n.queue) }

func (n *LoopbackNetwork) enqueue(from, to string, cmd Command, d Delivery) {
	if d == Unreliable && n.DropUnreliable != nil && n.DropUnreliable(cmd) {
		return
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		n.log.Error().Err(err).Stringer("kind", cmd.Kind).Msg("loopback encode failed")
		return
	}
	n.queue = append(n.queue, packet{from: from, to: to, data: data, delivery: d})
}

// Flush delivers queued packets in send order, including any generated while
// delivering, until the queue is empty or maxRounds batches have run.
func (n *LoopbackNetwork) Flush() int {
	const maxRounds = 64
	delivered := 0
	for round := 0; round < maxRounds && len(n.queue) > 0; round++ {
		batch := n.queue
		n.queue = nil
		for _, p := range batch {
			cmd, err := DecodeCommand(p.data)
			if err != nil {
				n.log.Error().Err(err).Msg("loopback decode failed")
				continue
			}
			var r Receiver
			if p.to == "" {
				r = n.authority
			} else {
				r = n.clients[p.to]
			}
			if r == nil {
				continue
			}
			r.Deliver(p.from, cmd)
			delivered++
		}
	}
	return delivered
}

type loopbackEndpoint struct {
	net *LoopbackNetwork
	id  string // empty for the authority
}

func (e loopbackEndpoint) ServerCall(cmd Command, d Delivery) {
	e.net.enqueue(e.id, "", cmd, d)
}

func (e loopbackEndpoint) Broadcast(cmd Command, d Delivery) {
	for _, id := range e.net.order {
		if id == e.id {
			continue
		}
		e.net.enqueue(e.id, id, cmd, d)
	}
}

func (e loopbackEndpoint) ClientCall(to string, cmd Command, d Delivery) {
	e.net.enqueue(e.id, to, cmd, d)
}
