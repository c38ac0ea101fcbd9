// Package ws serves the player's stats feed, diagnostics, and control socket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/config"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/sequence"
)

// Control operations accepted on /control.
const (
	OpNext        = "next"
	OpPrevious    = "previous"
	OpPause       = "pause"
	OpResume      = "resume"
	OpSkip        = "skip"
	OpMode        = "mode"
	OpAmbientTest = "ambient_test"
)

// Command is a control request. It is applied on the render loop, which
// owns the GPU context the player draws with.
type Command struct {
	Op      string  `json:"op"`
	Seconds float64 `json:"seconds,omitempty"`
	Mode    string  `json:"mode,omitempty"`
	Pattern string  `json:"pattern,omitempty"`
}

func (c Command) Validate() error {
	switch c.Op {
	case OpNext, OpPrevious, OpPause, OpResume:
		return nil
	case OpSkip:
		if c.Seconds <= 0 {
			return errors.New("skip needs seconds > 0")
		}
		return nil
	case OpMode:
		_, err := config.ParseDisplayMode(c.Mode)
		return err
	case OpAmbientTest:
		if c.Pattern == "" {
			return errors.New("ambient_test needs a pattern")
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", c.Op)
	}
}

type reply struct {
	OK    bool   `json:"ok"`
	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"`
}

type State struct {
	mu          sync.RWMutex
	wmu         sync.Mutex // one writer per connection at a time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	player  *sequence.SafePlayer
	store   *config.Store
	hub     *diag.Hub
	metrics *metrics.Metrics

	commands  chan Command
	frameID   atomic.Uint64
	startTime time.Time
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

func NewState(p *sequence.SafePlayer, store *config.Store, hub *diag.Hub, m *metrics.Metrics, log zerolog.Logger) *State {
	s := &State{
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		player:      p,
		store:       store,
		hub:         hub,
		metrics:     m,
		commands:    make(chan Command, 16),
		startTime:   time.Now(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:         log.With().Str("component", "ws").Logger(),
	}
	if hub != nil {
		hub.Subscribe(s.pushDiag)
	}
	return s
}

// Commands delivers validated control requests.
func (s *State) Commands() <-chan Command { return s.commands }

// FrameDone counts a presented frame for /health.
func (s *State) FrameDone() { s.frameID.Add(1) }

// Routes returns the HTTP mux for all endpoints.
func (s *State) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.HandleStatsWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Serve listens on addr until ctx is done.
func (s *State) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("stats server listening")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeAll()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *State) HandleStatsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.writeJSON(conn, s.snapshot())
	go s.drain(conn, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	if s.hub != nil {
		for _, d := range s.hub.Recent() {
			s.writeJSON(conn, d)
		}
	}
	go s.drain(conn, s.diagClients)
}

// drain reads until the client goes away, then unregisters it.
func (s *State) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.writeJSON(conn, reply{Error: "bad json: " + err.Error()})
			continue
		}
		cmd.Op = strings.ToLower(strings.TrimSpace(cmd.Op))
		if err := cmd.Validate(); err != nil {
			s.writeJSON(conn, reply{Op: cmd.Op, Error: err.Error()})
			continue
		}
		select {
		case s.commands <- cmd:
			s.log.Debug().Str("op", cmd.Op).Msg("control command queued")
			s.writeJSON(conn, reply{OK: true, Op: cmd.Op})
		default:
			s.writeJSON(conn, reply{Op: cmd.Op, Error: "busy"})
		}
	}
}

type health struct {
	FrameID uint64            `json:"frame_id"`
	Uptime  float64           `json:"uptime_s"`
	Mode    string            `json:"mode"`
	Player  sequence.Stats    `json:"player"`
	Recent  []diag.Diagnostic `json:"recent_diagnostics,omitempty"`
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		FrameID: s.frameID.Load(),
		Uptime:  time.Since(s.startTime).Seconds(),
		Player:  s.snapshot(),
	}
	if s.store != nil {
		h.Mode = s.store.DisplayMode().String()
	}
	if s.hub != nil {
		h.Recent = s.hub.Recent()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

func (s *State) snapshot() sequence.Stats {
	var st sequence.Stats
	if s.player != nil {
		s.player.With(func(p *sequence.Player) { st = p.Stats() })
	}
	return st
}

// BroadcastStats sends a player snapshot to every stats client.
func (s *State) BroadcastStats() {
	s.mu.RLock()
	n := len(s.clients)
	s.mu.RUnlock()
	if n == 0 {
		return
	}
	b, err := json.Marshal(s.snapshot())
	if err != nil {
		s.log.Debug().Err(err).Msg("marshal stats")
		return
	}
	s.broadcast(s.clients, b)
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	s.broadcast(s.diagClients, b)
}

func (s *State) broadcast(set map[*websocket.Conn]bool, b []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for c := range set {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write stats")
		}
	}
}

func (s *State) writeJSON(conn *websocket.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *State) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range []map[*websocket.Conn]bool{s.clients, s.diagClients} {
		for c := range set {
			c.Close()
		}
	}
}
