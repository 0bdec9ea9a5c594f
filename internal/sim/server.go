package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lumenvid/recap/internal/realtime"
	"github.com/lumenvid/recap/pkg/api"
)

// Server plays a scenario back as the analysis event stream.
type Server struct {
	scenario *Scenario
	hub      *realtime.Hub
	log      *slog.Logger
	// token, when set, is the only accepted bearer credential.
	token string

	mu       sync.Mutex
	attempts map[string]int
}

type Option func(*Server)

// WithToken enforces bearer authentication on the stream endpoint.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

func NewServer(scenario *Scenario, opts ...Option) *Server {
	if scenario == nil {
		scenario = DefaultScenario()
	}
	s := &Server{
		scenario: scenario,
		hub:      realtime.NewHub(),
		log:      slog.Default(),
		attempts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/v1/videos/{videoID}/analysis/stream", s.handleStream)
	r.Get("/ws/monitor", s.handleMonitor)
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		writeError(w, http.StatusUnauthorized, "invalid or missing bearer token", "UNAUTHORIZED")
		return
	}

	if s.failAttempt(videoID) {
		writeError(w, http.StatusServiceUnavailable, "analysis backend warming up", "UNAVAILABLE")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.hub.BeginStream()
	s.log.Info("stream opened", "video_id", videoID, "scenario", s.scenario.Name)

	ctx := r.Context()
	for _, ev := range s.scenario.Events {
		select {
		case <-ctx.Done():
			s.log.Debug("client went away", "video_id", videoID)
			return
		case <-time.After(time.Duration(ev.DelayMS) * time.Millisecond):
		}

		if ev.Disconnect {
			// Abrupt drop, no terminator. The client should treat this
			// as a transient failure and reconnect.
			s.log.Info("scripted disconnect", "video_id", videoID)
			return
		}

		if err := s.writeEvent(w, ev); err != nil {
			return
		}
		flusher.Flush()
	}
}

// failAttempt counts connection attempts per video and reports whether
// this one should be rejected per the scenario's failure budget.
func (s *Server) failAttempt(videoID string) bool {
	if s.scenario.Failures <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[videoID]++
	return s.attempts[videoID] <= s.scenario.Failures
}

// writeEvent serialises one scripted event in the SSE wire format:
//
//	event: <type>\n
//	data: <json>\n
//	\n
func (s *Server) writeEvent(w http.ResponseWriter, ev ScriptEvent) error {
	var data []byte
	if ev.Data != nil {
		var err error
		data, err = json.Marshal(ev.Data)
		if err != nil {
			return err
		}
	}

	var err error
	if data != nil {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	} else {
		_, err = fmt.Fprintf(w, "event: %s\ndata:\n\n", ev.Type)
	}
	if err != nil {
		return err
	}

	s.hub.Broadcast(api.MonitorEvent{
		Type: api.EventType(ev.Type),
		Data: json.RawMessage(data),
		At:   time.Now(),
	})
	return nil
}

var monitorUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := monitorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	detach := s.hub.Attach(conn)
	defer detach()

	// The monitor feed is one-way; read only to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message, Code: code})
}
