package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/heuristic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/processor"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
	"github.com/MikeSquared-Agency/pitchcoach/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	items map[uuid.UUID]*store.Analysis
	limit int
}

func (f *fakeHistory) GetAnalysis(_ context.Context, id uuid.UUID) (*store.Analysis, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeHistory) ListAnalyses(_ context.Context, limit int) ([]store.Summary, error) {
	f.limit = limit
	out := []store.Summary{}
	for _, a := range f.items {
		out = append(out, store.Summary{ID: a.ID, CreatedAt: a.CreatedAt, Provider: a.Provider, Mode: a.Mode, TurnCount: len(a.Records)})
	}
	return out, nil
}

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newTestServer(t *testing.T, completer llm.Completer, token string, history History) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	c := coach.New(completer, heuristic.New(fixedSource(0.5)), coach.Options{Provider: "fake", MetricsSource: coach.MetricsFromHeuristic}, metrics, discardLogger())
	deps := Deps{
		Coach:    c,
		Analyzer: processor.New(c, nil, nil, discardLogger()),
		Metrics:  metrics,
		Gatherer: reg,
		Logger:   discardLogger(),
	}
	if history != nil {
		deps.History = history
	}
	return NewServer(8760, token, deps), reg
}

func do(srv *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

const threeTurnBody = `{"conversation":[
	{"speaker":"Sales Rep","text":"Hi, what are you using for CRM today?"},
	{"speaker":"Customer","text":"A spreadsheet, and it is getting expensive."},
	{"speaker":"Sales Rep","text":"Could we schedule a demo Thursday?"}
]}`

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "GET", "/api/v1/pitchcoach/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "pitchcoach" {
		t.Errorf("expected agent pitchcoach, got %v", body["agent"])
	}
	if body["mode"] != coach.ModeSimulate {
		t.Errorf("expected simulate mode without a model, got %v", body["mode"])
	}
	if body["metrics_source"] != coach.MetricsFromHeuristic {
		t.Errorf("expected heuristic metrics source, got %v", body["metrics_source"])
	}
}

type fakeBus struct{ up bool }

func (b fakeBus) Connected() bool { return b.up }

func TestStatusEndpoint_Events(t *testing.T) {
	tests := []struct {
		name string
		bus  EventBus
		want string
	}{
		{"no bus", nil, "disabled"},
		{"connected", fakeBus{up: true}, "connected"},
		{"reconnecting", fakeBus{up: false}, "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, nil, "", nil)
			srv.deps.Events = tt.bus

			w := do(srv, "GET", "/api/v1/pitchcoach/status", "")
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["events"] != tt.want {
				t.Errorf("expected events %q, got %v", tt.want, body["events"])
			}
		})
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "GET", "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil, "coach-secret", nil)

	if w := do(srv, "GET", "/api/v1/pitchcoach/status", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/pitchcoach/status", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/pitchcoach/status", "", "Authorization", "Bearer coach-secret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
	if w := do(srv, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("expected health to stay open, got %d", w.Code)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "POST", "/api/v1/simulate", threeTurnBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body store.Analysis
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID == uuid.Nil {
		t.Error("expected analysis id")
	}
	if body.Mode != coach.ModeSimulate {
		t.Errorf("expected simulate mode, got %q", body.Mode)
	}
	if len(body.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(body.Records))
	}
	for _, rec := range body.Records {
		if conversation.Classify(rec.Speaker) == conversation.SalesRole && rec.Suggestion == "" {
			t.Errorf("expected suggestion for sales turn %d", rec.Turn)
		}
	}
	if len(body.Advice) == 0 {
		t.Error("expected overall advice")
	}
}

func TestAnalyzeEndpoint_Transcript(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "POST", "/api/v1/analyze", `{"transcript":"Sales Rep: Hello there.\nCustomer: Hi, we need better reporting."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body store.Analysis
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Conversation) != 2 || body.Conversation[1].Speaker != "Customer" {
		t.Errorf("expected transcript parsed into 2 turns, got %+v", body.Conversation)
	}
}

func TestAnalyzeEndpoint_InvalidInput(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	cases := map[string]string{
		"bad json":        `{"conversation":`,
		"empty":           `{"conversation":[]}`,
		"missing speaker": `{"conversation":[{"speaker":"","text":"hello"}]}`,
		"missing text":    `{"conversation":[{"speaker":"Sales Rep","text":" "}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(srv, "POST", "/api/v1/analyze", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestAnalyzeEndpoint_UpstreamFailure(t *testing.T) {
	failing := llm.Func(func(context.Context, string) (string, error) {
		return "", &llm.StatusError{Code: http.StatusServiceUnavailable, Message: "overloaded"}
	})
	srv, _ := newTestServer(t, failing, "", nil)
	srv.deps.Coach = coach.New(failing, nil, coach.Options{Provider: "fake"}, nil, discardLogger())
	srv.deps.Analyzer = processor.New(srv.deps.Coach, nil, nil, discardLogger())

	w := do(srv, "POST", "/api/v1/analyze", threeTurnBody)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "POST", "/api/v1/metrics", threeTurnBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Metrics []map[string]any `json:"metrics"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Metrics) != 3 {
		t.Fatalf("expected 3 metric records, got %d", len(body.Metrics))
	}
	if body.Metrics[1]["objectionRaised"] != true {
		t.Errorf("expected objection on the pricing turn, got %v", body.Metrics[1]["objectionRaised"])
	}
}

func TestAdviceEndpoint(t *testing.T) {
	reply := llm.Func(func(context.Context, string) (string, error) {
		return `{"points":["Lead with the cost of the spreadsheet process.","Confirm the demo attendees before hanging up."]}`, nil
	})
	srv, _ := newTestServer(t, reply, "", nil)

	w := do(srv, "POST", "/api/v1/advice", threeTurnBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Points []string `json:"points"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Points) != 2 {
		t.Errorf("expected 2 points, got %v", body.Points)
	}
}

func TestChatEndpoint(t *testing.T) {
	var seen string
	reply := llm.Func(func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return "  Anchor the price to the hours saved.  ", nil
	})
	srv, _ := newTestServer(t, reply, "", nil)

	w := do(srv, "POST", "/api/v1/chat", `{"message":"How do I handle a price objection?","context":"Customer: too expensive"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["reply"] != "Anchor the price to the hours saved." {
		t.Errorf("expected trimmed reply, got %q", body["reply"])
	}
	if !strings.Contains(seen, "too expensive") {
		t.Error("expected context to reach the prompt")
	}

	if w := do(srv, "POST", "/api/v1/chat", `{"message":"  "}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", w.Code)
	}
}

func TestTranscriptParseEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	w := do(srv, "POST", "/api/v1/transcript/parse", `{"transcript":"Hello, thanks for the time.\nHappy to chat.\n\nCustomer: What does it cost?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Conversation []conversation.Turn `json:"conversation"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Conversation) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(body.Conversation))
	}
	if body.Conversation[0].Speaker != "Sales Rep" || body.Conversation[1].Speaker != "Customer" {
		t.Errorf("expected alternating speakers, got %+v", body.Conversation)
	}

	if w := do(srv, "POST", "/api/v1/transcript/parse", `{"transcript":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty transcript, got %d", w.Code)
	}
}

func TestAnalysesEndpoints(t *testing.T) {
	id := uuid.New()
	history := &fakeHistory{items: map[uuid.UUID]*store.Analysis{
		id: {ID: id, CreatedAt: time.Now().UTC(), Provider: "gemini", Mode: coach.ModeModel},
	}}
	srv, _ := newTestServer(t, nil, "", history)

	w := do(srv, "GET", "/api/v1/analyses/"+id.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got store.Analysis
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != id || got.Provider != "gemini" {
		t.Errorf("unexpected analysis %+v", got)
	}

	if w := do(srv, "GET", "/api/v1/analyses/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing analysis, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/analyses/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}

	w = do(srv, "GET", "/api/v1/analyses?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if history.limit != 5 {
		t.Errorf("expected limit 5 passed through, got %d", history.limit)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("expected 1 analysis, got %d", list.Count)
	}

	if w := do(srv, "GET", "/api/v1/analyses?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestAnalysesEndpoints_NoStore(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	if w := do(srv, "GET", "/api/v1/analyses/"+uuid.NewString(), ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/analyses", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	do(srv, "POST", "/api/v1/simulate", threeTurnBody)

	w := do(srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "pitchcoach_http_request_seconds") {
		t.Error("expected request latency histogram in exposition")
	}
	if !strings.Contains(body, `route="/api/v1/simulate"`) {
		t.Error("expected route pattern label")
	}
	if !strings.Contains(body, `pitchcoach_analysis_completed_total{mode="simulate"} 1`) {
		t.Error("expected one simulated analysis counted")
	}
}

func TestWriteFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil, "", nil)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"empty", conversation.ErrEmptyConversation, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"upstream", &llm.UpstreamError{Provider: "gemini", Op: "content", Err: errors.New("boom")}, http.StatusBadGateway},
		{"joined upstream", errors.Join(&llm.UpstreamError{Op: "content", Err: errors.New("a")}, &llm.UpstreamError{Op: "metrics", Err: errors.New("b")}), http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.writeFailure(w, "failed", tc.err)
			if w.Code != tc.code {
				t.Errorf("expected %d, got %d", tc.code, w.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %q", w.Body.String())
			}
		})
	}
}
