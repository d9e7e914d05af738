package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize               = 256
	recentMatchesDefault = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorMsg{Msg: msg})
}

// joinURL is the WebSocket address a participant dials to join sess
func joinURL(r *http.Request, sessionID string) string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/ws", RawQuery: url.Values{"sid": {sessionID}}.Encode()}
	return u.String()
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{
			"sessions": len(hub.sessions.ListSessions()),
			"clients":  hub.ClientCount(),
		})
	})

	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.sessions.ListSessions())
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
			Pass string `json:"pass"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		sess, err := hub.sessions.CreateSession(req.Name, req.Pass)
		switch {
		case errors.Is(err, ErrTooManySessions):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id":      sess.ID,
			"name":    sess.Name,
			"match":   sess.MatchID,
			"private": sess.Private(),
			"join":    joinURL(r, sess.ID),
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sess, err := hub.sessions.GetSession(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		vehicles, err := sess.Game.Snapshot()
		if err != nil {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		type vehicleInfo struct {
			ID     string  `json:"id"`
			Name   string  `json:"name"`
			Ammo   int     `json:"ammo"`
			Health int     `json:"health"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Yaw    float64 `json:"yaw"`
		}
		out := make([]vehicleInfo, 0, len(vehicles))
		for _, v := range vehicles {
			out = append(out, vehicleInfo{v.ID, v.Name, v.Ammo, v.Health, v.Position.X(), v.Position.Y(), v.Yaw})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       sess.ID,
			"name":     sess.Name,
			"private":  sess.Private(),
			"vehicles": out,
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}/qr", func(w http.ResponseWriter, r *http.Request) {
		sess, err := hub.sessions.GetSession(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		png, err := qrcode.Encode(joinURL(r, sess.ID), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr encode failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("GET /api/sessions/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		id := r.PathValue("id")
		stats, err := hub.db.SessionStats(id)
		if err != nil {
			hub.log.Error().Err(err).Str("session", id).Msg("session stats")
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		counts, err := hub.analytics.EventCounts(id)
		if err != nil {
			hub.log.Error().Err(err).Str("session", id).Msg("event counts")
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session":  id,
			"vehicles": stats,
			"events":   counts,
		})
	})

	mux.HandleFunc("GET /api/matches", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence disabled")
			return
		}
		limit := recentMatchesDefault
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
			limit = n
		}
		rows, err := hub.db.RecentMatches(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "matches unavailable")
			return
		}
		type matchInfo struct {
			ID      string `json:"id"`
			Session string `json:"session"`
			Name    string `json:"name"`
			Started string `json:"started"`
			Ended   string `json:"ended,omitempty"`
		}
		out := make([]matchInfo, 0, len(rows))
		for _, m := range rows {
			mi := matchInfo{ID: m.ID, Session: m.SessionID, Name: m.Name, Started: m.StartedAt.Format(time.RFC3339)}
			if m.EndedAt.Valid {
				mi.Ended = m.EndedAt.Time.Format(time.RFC3339)
			}
			out = append(out, mi)
		}
		writeJSON(w, http.StatusOK, out)
	})

	// WebSocket endpoint: /ws?sid=<session>&name=<display name>[&token=<seat>][&pass=<passphrase>]
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sess, err := hub.sessions.GetSession(q.Get("sid"))
		if err != nil {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		if err := CheckPassphrase(sess.passHash, q.Get("pass")); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		reclaim := ""
		if tok := q.Get("token"); tok != "" && hub.auth != nil {
			seat, err := hub.auth.ValidateSeat(tok)
			if err != nil || seat.SessionID != sess.ID {
				http.Error(w, "invalid seat token", http.StatusUnauthorized)
				return
			}
			reclaim = seat.VehicleID
		}

		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Info().Err(err).Msg("upgrade error")
			return
		}
		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip, sess)
		id, err := sess.Game.Join(sanitizeName(q.Get("name")), client, reclaim)
		if err != nil {
			hub.log.Info().Err(err).Str("session", sess.ID).Msg("join refused")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, fmt.Sprintf("join: %v", err)),
				time.Now().Add(writeWait))
			hub.TrackDisconnect(ip)
			client.Close()
			return
		}
		client.vehicleID = id

		select {
		case hub.register <- client:
		case <-hub.done:
			client.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}
