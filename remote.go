package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	remoteSendBuf  = 256
	remoteInboxBuf = 512
)

// JoinParams names the session a remote client dials into
type JoinParams struct {
	Server  string // ws://host:port
	Session string
	Name    string
	Pass    string
	Token   string // seat token from an earlier welcome, to reclaim the same vehicle
}

// RemoteClient connects a non-authority Replica to a server over WebSocket. Frames are
// read and written on their own goroutines; the replica is only touched by the tick loop.
type RemoteClient struct {
	conn    *websocket.Conn
	replica *Replica
	log     zerolog.Logger
	metrics *Metrics

	send  chan []byte
	inbox chan Command
}

func (p JoinParams) url() (string, error) {
	u, err := url.Parse(p.Server)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := url.Values{"sid": {p.Session}, "name": {p.Name}}
	if p.Pass != "" {
		q.Set("pass", p.Pass)
	}
	if p.Token != "" {
		q.Set("token", p.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialSession connects replica to a running session
func DialSession(ctx context.Context, p JoinParams, replica *Replica, log zerolog.Logger, metrics *Metrics) (*RemoteClient, error) {
	target, err := p.url()
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", p.Server, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", p.Server, err)
	}
	rc := &RemoteClient{
		conn:    conn,
		replica: replica,
		log:     log.With().Str("component", "remote").Str("session", p.Session).Logger(),
		metrics: metrics,
		send:    make(chan []byte, remoteSendBuf),
		inbox:   make(chan Command, remoteInboxBuf),
	}
	replica.SetTransport(rc)
	return rc, nil
}

// ServerCall implements Transport
func (rc *RemoteClient) ServerCall(cmd Command, d Delivery) {
	data, err := EncodeCommand(cmd)
	if err != nil {
		rc.log.Error().Err(err).Stringer("kind", cmd.Kind).Msg("encode server call")
		return
	}
	select {
	case rc.send <- data:
		return
	default:
	}
	if d == Unreliable {
		rc.metrics.RecordDropped()
		return
	}
	rc.log.Error().Stringer("kind", cmd.Kind).Msg("send buffer full on reliable frame, disconnecting")
	rc.conn.Close()
}

// Broadcast implements Transport; only the authority broadcasts
func (rc *RemoteClient) Broadcast(cmd Command, _ Delivery) {
	rc.log.Warn().Stringer("kind", cmd.Kind).Msg("client tried to broadcast")
}

// ClientCall implements Transport; only the authority makes client calls
func (rc *RemoteClient) ClientCall(to string, cmd Command, _ Delivery) {
	rc.log.Warn().Stringer("kind", cmd.Kind).Str("to", to).Msg("client tried a client call")
}

// Run pumps frames and ticks the replica until ctx is done or the connection drops
func (rc *RemoteClient) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		rc.conn.Close()
		return nil
	})
	g.Go(func() error { return rc.readLoop(ctx) })
	g.Go(func() error { return rc.writeLoop(ctx) })
	g.Go(func() error { return rc.tickLoop(ctx, tickRate) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (rc *RemoteClient) readLoop(ctx context.Context) error {
	for {
		msgType, data, err := rc.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		cmd, err := DecodeCommand(data)
		if err != nil {
			rc.log.Debug().Err(err).Msg("bad frame")
			continue
		}
		select {
		case rc.inbox <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rc *RemoteClient) writeLoop(ctx context.Context) error {
	for {
		select {
		case data := <-rc.send:
			rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			rc.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		}
	}
}

func (rc *RemoteClient) tickLoop(ctx context.Context, tickRate int) error {
	dt := 1.0 / float64(tickRate)
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rc.drain()
			rc.replica.Tick(dt)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain delivers everything received since the last tick, in arrival order
func (rc *RemoteClient) drain() {
	for {
		select {
		case cmd := <-rc.inbox:
			rc.replica.Deliver("", cmd)
		default:
			return
		}
	}
}
