package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const sessionReapInterval = 15 * time.Second

// HubConfig holds the connection limits and shared services of a server
type HubConfig struct {
	MaxConnsPerIP int
	MaxTotalConns int
	Sessions      SessionManagerConfig
	Analytics     *Analytics
}

// Hub manages all connected clients and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	sessions   *SessionManager
	log        zerolog.Logger

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int
	maxTotalConns int

	db        *DB
	auth      *Auth
	analytics *Analytics
}

// NewHub creates a new Hub
func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		done:          make(chan struct{}),
		sessions:      NewSessionManager(cfg.Sessions),
		log:           cfg.Sessions.Log.With().Str("component", "hub").Logger(),
		ipConns:       make(map[string]int),
		maxConnsPerIP: cfg.MaxConnsPerIP,
		maxTotalConns: cfg.MaxTotalConns,
		db:            cfg.Sessions.DB,
		auth:          cfg.Sessions.Auth,
		analytics:     cfg.Analytics,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.maxTotalConns > 0 && h.totalConns >= h.maxTotalConns {
		return false
	}
	if h.maxConnsPerIP > 0 && h.ipConns[ip] >= h.maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	reap := time.NewTicker(sessionReapInterval)
	defer reap.Stop()
	for {
		select {
		case now := <-reap.C:
			h.sessions.ReapIdle(now)

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			h.mu.Unlock()
			if ok && client.vehicleID != "" {
				h.sessions.Leave(client.session.ID, client.vehicleID, client)
			}

		case <-ctx.Done():
			h.mu.RLock()
			for c := range h.clients {
				c.Close()
			}
			h.mu.RUnlock()
			h.sessions.StopAll()
			return nil
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
