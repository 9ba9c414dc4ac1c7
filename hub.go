package main

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"skyhunt/server/internal/arena"
	"skyhunt/server/internal/engine"
	"skyhunt/server/internal/persist"
	"skyhunt/server/internal/policy"
	"skyhunt/server/internal/statstore"
	"skyhunt/server/internal/telemetry"
	"skyhunt/server/logging"
)

const (
	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	sessionLinger     = 30 * time.Second
)

var errUnknownMode = errors.New("unknown mode")

// Hub owns the live sessions and their subscribers. One subscriber per
// session: this is a single-shooter game.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	bounds    arena.Config
	catalog   *policy.Catalog
	library   *engine.Library
	publisher logging.Publisher
	metrics   *telemetry.CounterSet
	store     *persist.Store
	stats     *statstore.Store
}

type sessionEntry struct {
	session       *Session
	sub           *subscriber
	lastHeartbeat time.Time
	endedAt       time.Time
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// HubConfig wires the hub's collaborators.
type HubConfig struct {
	Bounds    arena.Config
	Catalog   *policy.Catalog
	Library   *engine.Library
	Publisher logging.Publisher
	Metrics   *telemetry.CounterSet
	Store     *persist.Store
	Stats     *statstore.Store
}

func newHub(cfg HubConfig) *Hub {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = policy.GlobalCatalog
	}
	library := cfg.Library
	if library == nil {
		library = engine.GlobalLibrary
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewCounterSet()
	}
	return &Hub{
		sessions:  make(map[string]*sessionEntry),
		bounds:    cfg.Bounds.Normalized(),
		catalog:   catalog,
		library:   library,
		publisher: publisher,
		metrics:   metrics,
		store:     cfg.Store,
		stats:     cfg.Stats,
	}
}

// Join creates a session for the named mode and seed. The persisted shared
// memory is restored into the fresh session so the flock keeps what it
// learned about this player.
func (h *Hub) Join(modeName, seed string) (joinResponse, error) {
	mode, ok := h.catalog.Mode(modeName)
	if !ok {
		return joinResponse{}, errUnknownMode
	}

	bounds := h.bounds
	if seed != "" {
		bounds.Seed = seed
	}

	restored := engine.SavedMemory{}
	if saved, err := h.store.LoadMemory(); err != nil {
		log.Printf("continuing without persisted memory: %v", err)
	} else {
		restored = saved
	}

	session, err := NewSession(SessionConfig{
		Bounds:    bounds,
		Mode:      mode,
		Library:   h.library,
		Publisher: h.publisher,
		Metrics:   h.metrics,
		Restored:  restored,
		OnEnd:     h.finalizeSession,
	})
	if err != nil {
		return joinResponse{}, err
	}

	if h.stats != nil {
		if err := h.stats.CreateSession(session.ID(), bounds.Seed, mode.Name); err != nil {
			log.Printf("failed to record session %s: %v", session.ID(), err)
		}
	}

	h.mu.Lock()
	h.sessions[session.ID()] = &sessionEntry{session: session, lastHeartbeat: time.Now()}
	h.metrics.Store("sessions_active", uint64(len(h.sessions)))
	h.mu.Unlock()

	return joinResponse{
		Session: session.ID(),
		Mode:    mode.Name,
		Seed:    bounds.Seed,
		Width:   bounds.Width,
		Height:  bounds.Height,
	}, nil
}

// finalizeSession persists the learned memory and the final tallies. Runs
// on its own goroutine via Session.onEnd.
func (h *Hub) finalizeSession(summary Summary) {
	if err := h.store.SaveMemory(summary.Memory); err != nil {
		log.Printf("failed to persist memory for %s: %v", summary.ID, err)
	}
	if h.stats != nil {
		err := h.stats.EndSession(statstore.Session{
			ID:             summary.ID,
			Score:          summary.Score,
			Shots:          summary.Shots,
			Hits:           summary.Hits,
			TargetsDowned:  summary.TargetsDowned,
			TargetsEscaped: summary.TargetsEscaped,
			BestLevel:      summary.BestLevel,
			TotalTicks:     int(summary.TotalTicks),
		})
		if err != nil {
			log.Printf("failed to finalize stats for %s: %v", summary.ID, err)
		}
	}
	h.mu.Lock()
	if entry, ok := h.sessions[summary.ID]; ok {
		entry.endedAt = time.Now()
	}
	h.mu.Unlock()
}

// Subscribe attaches a websocket to a session, replacing any previous one.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) (*subscriber, *Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.sessions[sessionID]
	if !ok {
		return nil, nil, false
	}
	entry.lastHeartbeat = time.Now()
	if entry.sub != nil {
		entry.sub.conn.Close()
	}
	sub := &subscriber{conn: conn}
	entry.sub = sub
	return sub, entry.session, true
}

// Disconnect detaches the subscriber; the session keeps ticking until its
// heartbeat window lapses, so a reconnect resumes in place.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	entry, ok := h.sessions[sessionID]
	var sub *subscriber
	if ok && entry.sub != nil {
		sub = entry.sub
		entry.sub = nil
	}
	h.mu.Unlock()
	if sub != nil {
		sub.conn.Close()
	}
}

// Heartbeat refreshes a session's liveness window.
func (h *Hub) Heartbeat(sessionID string, at time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	entry.lastHeartbeat = at
	return true
}

// Session resolves a live session by ID.
func (h *Hub) Session(sessionID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// RunSimulation drives every session at the tick rate until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			h.shutdown()
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(tickRate)
			}
			last = now
			h.advanceAll(now, dt)
		}
	}
}

func (h *Hub) advanceAll(now time.Time, dt float64) {
	h.mu.Lock()
	entries := make(map[string]*sessionEntry, len(h.sessions))
	for id, entry := range h.sessions {
		entries[id] = entry
	}
	h.mu.Unlock()

	for id, entry := range entries {
		if h.reapIfStale(id, entry, now) {
			continue
		}
		state := entry.session.Advance(dt)
		h.broadcast(id, entry, state)
	}
}

// reapIfStale abandons sessions whose client stopped heartbeating, and
// removes finished sessions after their linger window. entry.sub is only
// touched under h.mu; handler goroutines swap it concurrently.
func (h *Hub) reapIfStale(id string, entry *sessionEntry, now time.Time) bool {
	h.mu.Lock()
	stale := now.Sub(entry.lastHeartbeat) > disconnectAfter
	lingered := !entry.endedAt.IsZero() && now.Sub(entry.endedAt) > sessionLinger
	var sub *subscriber
	if lingered {
		delete(h.sessions, id)
		h.metrics.Store("sessions_active", uint64(len(h.sessions)))
		sub = entry.sub
		entry.sub = nil
	}
	h.mu.Unlock()

	if lingered {
		if sub != nil {
			sub.conn.Close()
		}
		return true
	}
	if stale && !entry.session.Over() {
		entry.session.End("abandoned")
	}
	return false
}

func (h *Hub) broadcast(id string, entry *sessionEntry, state StateMessage) {
	h.mu.Lock()
	sub := entry.sub
	h.mu.Unlock()
	if sub == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("failed to marshal state for %s: %v", id, err)
		return
	}
	sub.mu.Lock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = sub.conn.WriteMessage(websocket.TextMessage, data)
	sub.mu.Unlock()
	if err != nil {
		log.Printf("failed to send update to %s: %v", id, err)
		h.Disconnect(id)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	entries := make([]*sessionEntry, 0, len(h.sessions))
	subs := make([]*subscriber, 0, len(h.sessions))
	for _, entry := range h.sessions {
		entries = append(entries, entry)
		if entry.sub != nil {
			subs = append(subs, entry.sub)
			entry.sub = nil
		}
	}
	h.mu.Unlock()

	for _, entry := range entries {
		if !entry.session.Over() {
			entry.session.End("server_shutdown")
		}
	}
	// The final memory save runs on the session's finalizer goroutine; the
	// process must not exit from under it.
	for _, entry := range entries {
		entry.session.Wait()
	}
	for _, sub := range subs {
		sub.conn.Close()
	}
}

// DiagnosticsSnapshot summarises live sessions for the diagnostics endpoint.
type DiagnosticsSession struct {
	ID            string `json:"id"`
	Mode          string `json:"mode"`
	Tick          uint64 `json:"tick"`
	Over          bool   `json:"over"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
}

func (h *Hub) DiagnosticsSnapshot() []DiagnosticsSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]DiagnosticsSession, 0, len(h.sessions))
	for id, entry := range h.sessions {
		state := entry.session.State()
		out = append(out, DiagnosticsSession{
			ID:            id,
			Mode:          entry.session.Mode().Name,
			Tick:          state.Tick,
			Over:          state.Over,
			LastHeartbeat: entry.lastHeartbeat.UnixMilli(),
		})
	}
	return out
}
