package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"skyhunt/server/internal/arena"
	"skyhunt/server/internal/engine"
	"skyhunt/server/internal/persist"
	"skyhunt/server/internal/policy"
	"skyhunt/server/internal/statstore"
	"skyhunt/server/internal/telemetry"
	"skyhunt/server/logging"
	"skyhunt/server/logging/sinks"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		seed     = flag.String("seed", arena.DefaultSeed, "root seed for deterministic sessions")
		width    = flag.Float64("width", arena.DefaultWidth, "playfield width in pixels")
		height   = flag.Float64("height", arena.DefaultHeight, "playfield height in pixels")
		statsDB  = flag.String("stats-db", "skyhunt-stats.db", "path to the session stats database")
		logJSON  = flag.String("log-json", "", "path for newline-delimited JSON event log (empty disables)")
		logDebug = flag.Bool("log-debug", false, "include debug-severity events")
	)
	flag.Parse()

	bounds := arena.Config{Seed: *seed, Width: *width, Height: *height}.Normalized()

	logCfg := logging.DefaultConfig()
	if *logDebug {
		logCfg.MinimumSeverity = logging.SeverityDebug
	}
	named := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	if *logJSON != "" {
		file, err := os.OpenFile(*logJSON, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open json log: %v", err)
		}
		named = append(named, logging.NamedSink{Name: "json", Sink: sinks.NewJSON(file, logCfg.JSON.FlushInterval)})
	}
	router, err := logging.NewRouter(nil, logCfg, named)
	if err != nil {
		log.Fatalf("logging router: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		router.Close(ctx)
	}()

	store, err := persist.Open()
	if err != nil {
		log.Printf("persistence unavailable, learning resets each run: %v", err)
		store = persist.NewStore(nil)
	}

	stats, err := statstore.Open(*statsDB)
	if err != nil {
		log.Fatalf("stats database: %v", err)
	}
	defer stats.Close()

	metrics := telemetry.NewCounterSet()
	hub := newHub(HubConfig{
		Bounds:    bounds,
		Catalog:   policy.GlobalCatalog,
		Library:   engine.GlobalLibrary,
		Publisher: router,
		Metrics:   metrics,
		Store:     store,
		Stats:     stats,
	})

	stop := make(chan struct{})
	go hub.RunSimulation(stop)

	mux := http.NewServeMux()
	registerRoutes(mux, hub, stats, metrics, router)

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Printf("server listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func registerRoutes(mux *http.ServeMux, hub *Hub, stats *statstore.Store, metrics *telemetry.CounterSet, router *logging.Router) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/modes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"modes": policy.GlobalCatalog.Names()})
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":          "ok",
			"serverTime":      time.Now().UnixMilli(),
			"tickRate":        tickRate,
			"heartbeatMillis": heartbeatInterval.Milliseconds(),
			"sessions":        hub.DiagnosticsSnapshot(),
			"counters":        metrics.Snapshot(),
			"logging":         router.Stats(),
		})
	})

	mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = policy.DefaultModeName
		}
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}
		board, err := stats.Leaderboard(mode, limit)
		if err != nil {
			http.Error(w, "failed to query", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"mode": mode, "sessions": board})
	})

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		join, err := hub.Join(r.URL.Query().Get("mode"), r.URL.Query().Get("seed"))
		if err != nil {
			if errors.Is(err, errUnknownMode) {
				http.Error(w, "unknown mode", http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, join)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed for %s: %v", sessionID, err)
			return
		}
		sub, session, ok := hub.Subscribe(sessionID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}
		serveSocket(hub, session, sub, sessionID)
	})
}

// serveSocket pumps client messages into the session until the connection
// drops. Broadcast back to the client happens from the simulation loop.
func serveSocket(hub *Hub, session *Session, sub *subscriber, sessionID string) {
	conn := sub.conn
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			hub.Disconnect(sessionID)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("discarding malformed message from %s: %v", sessionID, err)
			continue
		}

		switch msg.Type {
		case "pointer":
			session.PointerMoved(arena.Vec2{X: msg.X, Y: msg.Y}, time.Now())
		case "shot":
			if !session.ShotFired(arena.Vec2{X: msg.X, Y: msg.Y}) {
				sendJSON(sub, errorMessage{Type: "error", Reason: "out_of_ammo"})
			}
		case "freeze":
			session.SetFrozen(true)
		case "resume":
			session.SetFrozen(false)
		case "heartbeat":
			now := time.Now()
			if !hub.Heartbeat(sessionID, now) {
				continue
			}
			sendJSON(sub, heartbeatMessage{
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rttMillis(now, msg.SentAt),
			})
		default:
			log.Printf("unknown message type %q from %s", msg.Type, sessionID)
		}
	}
}

func rttMillis(now time.Time, clientSent int64) int64 {
	if clientSent <= 0 {
		return 0
	}
	rtt := now.Sub(time.UnixMilli(clientSent))
	if rtt < 0 || rtt > 5*time.Second {
		return 0
	}
	return rtt.Milliseconds()
}

func sendJSON(sub *subscriber, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	sub.mu.Lock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub.conn.WriteMessage(websocket.TextMessage, data)
	sub.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
