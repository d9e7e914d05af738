package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxSessionNameLen = 32

	// DefaultSessionIdleTimeout is how long a session may sit with nobody in it
	DefaultSessionIdleTimeout = 2 * time.Minute
)

// Session is one running match that participants can join
type Session struct {
	ID      string
	Name    string
	MatchID string
	Created time.Time
	Game    *Game

	passHash []byte
}

// Private reports whether joining needs a passphrase
func (s *Session) Private() bool { return s.passHash != nil }

// SessionInfo is a session as listed over HTTP
type SessionInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Vehicles int    `json:"vehicles"`
	Private  bool   `json:"private"`
}

// SessionManagerConfig holds what every new session's game is built with
type SessionManagerConfig struct {
	MaxSessions int
	IdleTimeout time.Duration // zero uses DefaultSessionIdleTimeout
	Settings    Settings
	TickRate    int
	Log         zerolog.Logger
	Metrics     *Metrics
	Events      EventSink
	Auth        *Auth
	DB          *DB
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	cfg SessionManagerConfig
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		log:      cfg.Log.With().Str("component", "sessions").Logger(),
		sessions: make(map[string]*Session),
	}
}

// CreateSession starts a new session. An empty pass makes it public.
func (sm *SessionManager) CreateSession(name, pass string) (*Session, error) {
	if len(name) > maxSessionNameLen {
		name = name[:maxSessionNameLen]
	}
	var hash []byte
	if pass != "" {
		h, err := HashPassphrase(pass)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.cfg.MaxSessions > 0 && len(sm.sessions) >= sm.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	sess := &Session{
		ID:       id,
		Name:     name,
		Created:  time.Now(),
		passHash: hash,
		Game: NewGame(GameConfig{
			SessionID: id,
			Settings:  sm.cfg.Settings,
			TickRate:  sm.cfg.TickRate,
			Log:       sm.cfg.Log,
			Metrics:   sm.cfg.Metrics,
			Events:    sm.cfg.Events,
			Auth:      sm.cfg.Auth,
		}),
	}
	if sm.cfg.DB != nil {
		matchID, err := sm.cfg.DB.StartMatch(id, name)
		if err != nil {
			sm.log.Warn().Err(err).Str("session", id).Msg("match row not recorded")
		}
		sess.MatchID = matchID
	}
	sm.sessions[id] = sess
	go sess.Game.Run()

	sm.cfg.Metrics.SessionOpened()
	if sm.cfg.Events != nil {
		sm.cfg.Events.Track(EvtSessionStart, id, "", fmt.Sprintf(`{"name":%q,"private":%t}`, name, hash != nil))
	}
	sm.log.Info().Str("session", id).Str("name", name).Bool("private", hash != nil).Msg("session created")
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	return sess, nil
}

// Leave removes a participant and ends the session once it is empty
func (sm *SessionManager) Leave(sessionID, vehicleID string, peer Peer) {
	sess, err := sm.GetSession(sessionID)
	if err != nil {
		return
	}
	sess.Game.Leave(vehicleID, peer)
	if sess.Game.VehicleCount() == 0 {
		sm.endSession(sess)
	}
}

func (sm *SessionManager) endSession(sess *Session) {
	sm.mu.Lock()
	if _, ok := sm.sessions[sess.ID]; !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, sess.ID)
	sm.mu.Unlock()

	sess.Game.Stop()
	if sm.cfg.DB != nil && sess.MatchID != "" {
		if err := sm.cfg.DB.EndMatch(sess.MatchID); err != nil {
			sm.log.Warn().Err(err).Str("session", sess.ID).Msg("match end not recorded")
		}
	}
	sm.cfg.Metrics.SessionClosed()
	if sm.cfg.Events != nil {
		sm.cfg.Events.Track(EvtSessionEnd, sess.ID, "", "")
	}
	sm.log.Info().Str("session", sess.ID).Msg("session ended")
}

// ReapIdle ends sessions that have had nobody in them since before the idle timeout and
// returns how many it ended. A session whose last participant left is already gone, so
// this catches sessions created over HTTP that nobody ever joined.
func (sm *SessionManager) ReapIdle(now time.Time) int {
	timeout := sm.cfg.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultSessionIdleTimeout
	}
	sm.mu.RLock()
	var stale []*Session
	for _, s := range sm.sessions {
		if now.Sub(s.Created) >= timeout {
			stale = append(stale, s)
		}
	}
	sm.mu.RUnlock()

	reaped := 0
	for _, s := range stale {
		if s.Game.VehicleCount() > 0 {
			continue
		}
		sm.log.Info().Str("session", s.ID).Dur("idle", now.Sub(s.Created)).Msg("reaping idle session")
		sm.endSession(s)
		reaped++
	}
	return reaped
}

// StopAll ends every session, used on shutdown
func (sm *SessionManager) StopAll() {
	sm.mu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		all = append(all, s)
	}
	sm.mu.RUnlock()
	for _, s := range all {
		sm.endSession(s)
	}
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		all = append(all, s)
	}
	sm.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Created.Before(all[j].Created) })
	list := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		list = append(list, SessionInfo{
			ID:       s.ID,
			Name:     s.Name,
			Vehicles: s.Game.VehicleCount(),
			Private:  s.Private(),
		})
	}
	return list
}
