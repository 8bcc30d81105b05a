// Package httpapi implements the serve daemon's control plane: a minimal
// JSON API over the recordings it is currently running or has finished,
// each source's health, and cache statistics, built on go-chi.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jmylchreest/streamvault/internal/cache"
	"github.com/jmylchreest/streamvault/internal/recorder"
	"github.com/jmylchreest/streamvault/internal/source"
	"github.com/jmylchreest/streamvault/internal/store"
)

// RecorderFunc runs one recording to completion, the same signature as
// recorder.Run, so Server can be unit tested against a fake.
type RecorderFunc func(ctx context.Context, opts recorder.Options) recorder.Result

// StartRequest is the body of a POST /recordings request.
type StartRequest struct {
	Sources  []string `json:"sources"`
	Strategy string   `json:"strategy,omitempty"`
}

// RecordingStatus is one entry returned by the recordings endpoints.
type RecordingStatus struct {
	ID          string    `json:"id"`
	SourceURL   string    `json:"source_url"`
	State       string    `json:"state"` // running, completed, failed
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	OutputFiles []string  `json:"output_files,omitempty"`
	TotalBytes  int64     `json:"total_bytes"`
	Error       string    `json:"error,omitempty"`
}

type trackedRecording struct {
	status RecordingStatus
	cancel context.CancelFunc
	mgr    *source.Manager
}

// Server drives the control plane: it owns the in-memory recordings
// registry and a template recorder.Options that each started recording
// specializes with its own sources and strategy.
type Server struct {
	run         RecorderFunc
	template    recorder.Options
	store       *store.Store
	cache       cache.Provider
	logger      *slog.Logger
	router      chi.Router
	recordings  map[string]*trackedRecording
	recordingMu chan struct{} // binary semaphore; avoids importing sync for one lock
}

// Option configures optional Server fields.
type Option func(*Server)

// WithStore attaches a store for recording/source-health persistence.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithCache attaches the cache provider /cache/stats reports on.
func WithCache(c cache.Provider) Option {
	return func(s *Server) { s.cache = c }
}

// WithLogger sets the logger used for request-handling errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds a control-plane server. template supplies every
// recorder.Options field a started recording does not override (the
// acquisition client, repair/writer configuration, reconnect policy).
func NewServer(run RecorderFunc, template recorder.Options, opts ...Option) *Server {
	s := &Server{
		run:         run,
		template:    template,
		logger:      slog.Default(),
		recordings:  make(map[string]*trackedRecording),
		recordingMu: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recordingMu <- struct{}{}
	s.router = s.newRouter()
	return s
}

// Handler returns the server's http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/recordings", s.handleStartRecording)
	r.Get("/recordings", s.handleListRecordings)
	r.Get("/recordings/{id}", s.handleGetRecording)
	r.Post("/recordings/{id}/stop", s.handleStopRecording)
	r.Get("/recordings/{id}/sources", s.handleRecordingSources)
	r.Get("/cache/stats", s.handleCacheStats)
	return r
}

func (s *Server) lock()   { <-s.recordingMu }
func (s *Server) unlock() { s.recordingMu <- struct{}{} }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "sources must not be empty")
		return
	}

	strategy := source.Priority
	if req.Strategy != "" {
		parsed, err := source.ParseStrategy(req.Strategy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = parsed
	}

	sources := make([]source.Source, len(req.Sources))
	for i, url := range req.Sources {
		sources[i] = source.Source{URL: url, Priority: i}
	}

	id := uuid.NewString()

	opts := s.template
	opts.Sources = sources
	opts.Strategy = strategy
	opts.Kind = recorder.ParseKind(sources[0].URL)
	opts.Store = s.store
	opts.Cache = s.cache
	opts.ID = id

	ctx, cancel := context.WithCancel(context.Background())
	tracked := &trackedRecording{
		status: RecordingStatus{ID: id, SourceURL: sources[0].URL, State: "running", StartedAt: time.Now()},
		cancel: cancel,
	}
	opts.OnStart = func(_ string, mgr *source.Manager) {
		s.lock()
		tracked.mgr = mgr
		s.unlock()
	}

	s.lock()
	s.recordings[id] = tracked
	s.unlock()

	go func() {
		result := s.run(ctx, opts)
		s.lock()
		defer s.unlock()
		tracked.status.EndedAt = time.Now()
		tracked.status.OutputFiles = result.OutputFiles
		tracked.status.TotalBytes = result.TotalBytes
		if result.Err != nil {
			tracked.status.State = "failed"
			tracked.status.Error = result.Err.Error()
			s.logger.Warn("recording failed", slog.String("id", id), slog.String("error", result.Err.Error()))
		} else {
			tracked.status.State = "completed"
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	s.lock()
	out := make([]RecordingStatus, 0, len(s.recordings))
	for _, t := range s.recordings {
		out = append(out, t.status)
	}
	s.unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.lock()
	t, ok := s.recordings[id]
	var status RecordingStatus
	if ok {
		status = t.status
	}
	s.unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "recording not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.lock()
	t, ok := s.recordings[id]
	s.unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "recording not found: "+id)
		return
	}
	t.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": "stopping"})
}

func (s *Server) handleRecordingSources(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.lock()
	t, ok := s.recordings[id]
	s.unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "recording not found: "+id)
		return
	}
	if t.mgr == nil {
		writeJSON(w, http.StatusOK, map[string]source.Health{})
		return
	}
	writeJSON(w, http.StatusOK, t.mgr.AllHealth())
}

// sizeReporter is implemented by cache.MemoryProvider; other providers
// don't track a running size total.
type sizeReporter interface {
	SizeUsed() int64
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"provider": "none"})
		return
	}
	stats := map[string]any{"provider": fmt.Sprintf("%T", s.cache)}
	if sized, ok := s.cache.(sizeReporter); ok {
		stats["size_used_bytes"] = sized.SizeUsed()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
