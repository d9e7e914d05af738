package main

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T, max int, idle time.Duration) *SessionManager {
	t.Helper()
	sm := NewSessionManager(SessionManagerConfig{
		MaxSessions: max,
		IdleTimeout: idle,
		Settings:    openLevel(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3000, 0}),
		TickRate:    60,
		Log:         zerolog.Nop(),
	})
	t.Cleanup(sm.StopAll)
	return sm
}

func TestReapIdleEndsUnjoinedSessions(t *testing.T) {
	sm := newTestSessionManager(t, 2, time.Minute)

	idle, err := sm.CreateSession("idle", "")
	require.NoError(t, err)
	busy, err := sm.CreateSession("busy", "")
	require.NoError(t, err)
	_, err = busy.Game.Join("alpha", &fakePeer{}, "")
	require.NoError(t, err)

	_, err = sm.CreateSession("third", "")
	assert.ErrorIs(t, err, ErrTooManySessions)

	assert.Zero(t, sm.ReapIdle(time.Now()), "nothing is old enough yet")
	assert.Equal(t, 1, sm.ReapIdle(time.Now().Add(2*time.Minute)))
	<-idle.Game.Done()

	_, err = sm.GetSession(idle.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = sm.GetSession(busy.ID)
	assert.NoError(t, err, "a session with someone in it stays")

	_, err = sm.CreateSession("third", "")
	assert.NoError(t, err, "the reaped session no longer counts against the limit")
}

func TestReapIdleDefaultTimeout(t *testing.T) {
	sm := newTestSessionManager(t, 0, 0)
	sess, err := sm.CreateSession("s", "")
	require.NoError(t, err)

	assert.Zero(t, sm.ReapIdle(sess.Created.Add(DefaultSessionIdleTimeout-time.Second)))
	assert.Equal(t, 1, sm.ReapIdle(sess.Created.Add(DefaultSessionIdleTimeout)))
	assert.Empty(t, sm.ListSessions())
}
