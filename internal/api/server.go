package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
	"github.com/MikeSquared-Agency/pitchcoach/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Analyzer runs and records full analyses.
type Analyzer interface {
	Analyze(ctx context.Context, turns []conversation.Turn, simulate bool) (*store.Analysis, error)
}

// History reads back persisted analyses.
type History interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*store.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]store.Summary, error)
}

// EventBus reports the state of the event connection.
type EventBus interface {
	Connected() bool
}

// Deps are the collaborators behind the HTTP surface. History, Events,
// Metrics and Gatherer are optional.
type Deps struct {
	Coach    *coach.Coach
	Analyzer Analyzer
	History  History
	Events   EventBus
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
	http   *http.Server
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}

	router.Get("/health", s.health)
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Use(s.observe)
		r.Get("/pitchcoach/status", s.status)
		r.Post("/analyze", s.analyze)
		r.Post("/simulate", s.simulate)
		r.Post("/metrics", s.metrics)
		r.Post("/advice", s.advice)
		r.Post("/chat", s.chat)
		r.Post("/transcript/parse", s.parseTranscript)
		r.Get("/analyses", s.listAnalyses)
		r.Get("/analyses/{id}", s.getAnalysis)
	})

	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.deps.Logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the configured bearer token.
// An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.ObserveRequest(route, status, time.Since(start).Seconds())
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	opts := s.deps.Coach.Options()
	mode := coach.ModeModel
	if s.deps.Coach.Simulating() {
		mode = coach.ModeSimulate
	}
	events := "disabled"
	if s.deps.Events != nil {
		events = "disconnected"
		if s.deps.Events.Connected() {
			events = "connected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":                "pitchcoach",
		"provider":             opts.Provider,
		"mode":                 mode,
		"metrics_source":       opts.MetricsSource,
		"per_turn_suggestions": opts.PerTurnSuggestions,
		"history":              s.deps.History != nil,
		"events":               events,
	})
}

// conversationRequest accepts either structured turns or a pasted transcript.
type conversationRequest struct {
	Conversation []conversation.Turn `json:"conversation"`
	Transcript   string              `json:"transcript,omitempty"`
}

func (req conversationRequest) turns() []conversation.Turn {
	if len(req.Conversation) == 0 && strings.TrimSpace(req.Transcript) != "" {
		return conversation.ParseTranscript(req.Transcript)
	}
	return req.Conversation
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	s.runAnalysis(w, r, false)
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	s.runAnalysis(w, r, true)
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request, simulate bool) {
	var req conversationRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.deps.Analyzer.Analyze(r.Context(), req.turns(), simulate)
	if err != nil {
		s.writeFailure(w, "analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if !decode(w, r, &req) {
		return
	}
	recs, err := s.deps.Coach.Metrics(r.Context(), req.turns())
	if err != nil {
		s.writeFailure(w, "metrics failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": recs})
}

func (s *Server) advice(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if !decode(w, r, &req) {
		return
	}
	points, err := s.deps.Coach.Advice(r.Context(), req.turns())
	if err != nil {
		s.writeFailure(w, "advice failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	reply, err := s.deps.Coach.Chat(r.Context(), req.Message, req.Context)
	if err != nil {
		s.writeFailure(w, "chat failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) parseTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
	}
	if !decode(w, r, &req) {
		return
	}
	turns := conversation.ParseTranscript(req.Transcript)
	if len(turns) == 0 {
		writeError(w, http.StatusBadRequest, "transcript has no lines")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": turns})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis history is not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %v", err))
			return
		}
		limit = n
	}
	items, err := s.deps.History.ListAnalyses(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, "list analyses failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": items, "count": len(items)})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis history is not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}
	a, err := s.deps.History.GetAnalysis(r.Context(), id)
	if err != nil {
		s.writeFailure(w, "get analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// writeFailure maps pipeline errors onto HTTP status codes.
func (s *Server) writeFailure(w http.ResponseWriter, msg string, err error) {
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, conversation.ErrEmptyConversation), errors.Is(err, conversation.ErrInvalidTurn):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "analysis not found")
	case errors.As(err, &upstream):
		s.deps.Logger.Error(msg, "provider", upstream.Provider, "op", upstream.Op, "error", err)
		writeError(w, http.StatusBadGateway, "upstream model unavailable")
	default:
		s.deps.Logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
