package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/shutter"
	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// Bridge is the part of the screenshot bridge exposed over HTTP.
type Bridge interface {
	Status() domain.SessionStatus
	Capture(ctx context.Context, url string, req domain.CaptureRequest, wait domain.WaitStrategy) ([]byte, error)
}

// Server serves the state store and direct captures.
type Server struct {
	Store   ports.StateStore
	Bridge  Bridge
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h (typically promhttp.Handler()) on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP API. bridge may be nil, in which case
// /capture answers 503.
func NewHandler(store ports.StateStore, bridge Bridge, opts ...Option) http.Handler {
	server := &Server{
		Store:  store,
		Bridge: bridge,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Route("/states", func(r chi.Router) {
		r.Get("/", server.ListStates)
		r.Get("/{key}", server.GetState)
		r.Put("/{key}", server.PutState)
		r.Get("/{key}/events", server.SubscribeState)
	})
	r.Post("/capture", server.Capture)
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.Bridge != nil {
		resp["session"] = string(s.Bridge.Status())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "shutter",
		"version": strings.TrimSpace(shutter.Version),
	})
}

// ListStates handles GET /states when the store can enumerate its keys.
func (s *Server) ListStates(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.Store.(ports.StateLister)
	if !ok {
		http.Error(w, "State listing not supported by this store", http.StatusNotImplemented)
		return
	}
	keys, err := lister.List(r.Context())
	if err != nil {
		s.fail(w, "List", err, http.StatusInternalServerError)
		return
	}
	sort.Strings(keys)
	writeJSON(w, http.StatusOK, keys)
}

// GetState handles GET /states/{key}.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	state, err := s.Store.GetState(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			http.Error(w, fmt.Sprintf("State %q not found", key), http.StatusNotFound)
			return
		}
		s.fail(w, "GetState", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PutStateRequest is the body of PUT /states/{key}.
type PutStateRequest struct {
	Val any  `json:"val"`
	Ack bool `json:"ack"`
}

// PutState handles PUT /states/{key}. Writing the url key with ack=false
// requests a capture.
func (s *Server) PutState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body PutStateRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutState: Invalid request body", "error", err)
		return
	}

	state := domain.NewState(body.Val, body.Ack)
	state.From = "http"
	if err := s.Store.SetState(r.Context(), key, state); err != nil {
		s.fail(w, "SetState", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SubscribeState handles GET /states/{key}/events (SSE).
func (s *Server) SubscribeState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	key := chi.URLParam(r, "key")
	changes, err := s.Store.Subscribe(r.Context(), key)
	if err != nil {
		s.fail(w, "Subscribe", err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				s.logger.Warn("SSE: Failed to encode change", "key", key, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// CaptureRequest is the body of POST /capture.
type CaptureRequest struct {
	URL             string             `json:"url"`
	Path            string             `json:"path,omitempty"`
	FullPage        bool               `json:"full_page,omitempty"`
	Clip            *domain.ClipRegion `json:"clip,omitempty"`
	WaitForSelector string             `json:"wait_for_selector,omitempty"`
	RenderTime      float64            `json:"render_time,omitempty"`
}

// CaptureResponse is returned when the image was written to Path.
type CaptureResponse struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// Capture handles POST /capture. Without a path the PNG is returned as the body.
func (s *Server) Capture(w http.ResponseWriter, r *http.Request) {
	if s.Bridge == nil {
		http.Error(w, "Capture not available", http.StatusServiceUnavailable)
		return
	}

	var body CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Capture: Invalid request body", "error", err)
		return
	}
	if body.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	req := domain.CaptureRequest{TargetPath: body.Path, FullPage: body.FullPage, Clip: body.Clip}
	data, err := s.Bridge.Capture(r.Context(), body.URL, req, domain.ExplicitWait(body.WaitForSelector, body.RenderTime))
	if err != nil {
		s.fail(w, "Capture", err, captureStatus(err))
		return
	}

	if body.Path == "" {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{Path: body.Path, Bytes: len(data)})
}

// captureStatus maps capture error kinds onto HTTP statuses.
func captureStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNavigation):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrWait):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error, status int) {
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), status)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
		return
	}
	s.logger.Warn(op+" rejected", "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
