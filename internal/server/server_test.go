package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopewell/scope-copilot/internal/config"
	"github.com/scopewell/scope-copilot/internal/extract"
	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/retrieval"
	"github.com/scopewell/scope-copilot/internal/schema"
	"github.com/scopewell/scope-copilot/internal/scope"
	"github.com/scopewell/scope-copilot/internal/store"
)

type stubExtractor struct {
	result *model.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, req extract.Request) (*model.ExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &model.ExtractionResult{}, nil
}

func newTestServer(t *testing.T, ext extract.Extractor) *Server {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "scope.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	engine := scope.NewEngine(config.EngineConfig{
		DefaultPlatform:        schema.PlatformTopcoderDevelopment,
		MaxIterations:          10,
		CompletionThreshold:    0.6,
		RetrievalMinConfidence: 0.6,
		RetrievalK:             3,
		ExtractionTimeoutSecs:  5,
		RetrievalTimeoutSecs:   2,
	}, schema.Default(), ext, retrieval.NewAdapter(nil, 2*time.Second), st)

	return New(engine)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestChat(t *testing.T) {
	s := newTestServer(t, &stubExtractor{result: &model.ExtractionResult{
		Candidates: []model.Candidate{
			{Field: "title", Value: "Inventory Tracker", Confidence: 0.9},
		},
	}})

	rec := doRequest(t, s, http.MethodPost, "/chat", chatRequest{
		ThreadID: "t1",
		Message:  "I want to build an inventory tracker",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	reply := decodeBody[scope.Reply](t, rec)
	assert.Equal(t, model.StateCollecting, reply.State)
	assert.Equal(t, 1, reply.TurnID)
	assert.NotEmpty(t, reply.Text)
}

func TestChat_BadRequests(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	tests := []struct {
		name string
		body any
	}{
		{"missing thread_id", chatRequest{Message: "hello"}},
		{"missing message", chatRequest{ThreadID: "t1"}},
		{"garbage body", "not json at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChat_UnknownPlatform(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	rec := doRequest(t, s, http.MethodPost, "/chat", chatRequest{
		ThreadID: "t1",
		Platform: "freelancer",
		Message:  "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["error"], "freelancer")
}

func TestGetSession(t *testing.T) {
	s := newTestServer(t, &stubExtractor{result: &model.ExtractionResult{
		Candidates: []model.Candidate{
			{Field: "title", Value: "Inventory Tracker", Confidence: 0.9},
		},
	}})

	rec := doRequest(t, s, http.MethodPost, "/chat", chatRequest{ThreadID: "t1", Message: "inventory tracker"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/sessions/t1/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[model.SessionSnapshot](t, rec)
	assert.Equal(t, "t1", snap.ThreadID)
	assert.Equal(t, model.StateCollecting, snap.State)
	assert.Contains(t, snap.Fields, "title")
	assert.Contains(t, snap.Missing, "category")
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	rec := doRequest(t, s, http.MethodGet, "/sessions/ghost/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrace(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	rec := doRequest(t, s, http.MethodPost, "/chat", chatRequest{ThreadID: "t1", Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, s, http.MethodPost, "/chat", chatRequest{ThreadID: "t1", Message: "more detail"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/sessions/t1/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ThreadID string              `json:"thread_id"`
		Traces   []model.TraceRecord `json:"traces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "t1", body.ThreadID)
	require.Len(t, body.Traces, 2)
	assert.Equal(t, 1, body.Traces[0].TurnID)
	assert.Equal(t, 2, body.Traces[1].TurnID)
}

func TestFeedback(t *testing.T) {
	s := newTestServer(t, &stubExtractor{result: &model.ExtractionResult{
		Candidates: []model.Candidate{
			{Field: "title", Value: "Inventory Tracker", Confidence: 0.9},
		},
	}})

	rec := doRequest(t, s, http.MethodPost, "/chat", chatRequest{ThreadID: "t1", Message: "inventory tracker"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/sessions/t1/feedback", feedbackRequest{
		Field:  "title",
		Action: model.FeedbackAccept,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Field string      `json:"field"`
		Entry model.Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "title", body.Field)
	assert.Equal(t, model.ProvenanceConfirmed, body.Entry.Provenance)
	assert.Equal(t, 1.0, body.Entry.Confidence)
}

func TestFeedback_ErrorMapping(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})

	// No session yet.
	rec := doRequest(t, s, http.MethodPost, "/sessions/ghost/feedback", feedbackRequest{
		Field:  "title",
		Action: model.FeedbackAccept,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/chat", chatRequest{ThreadID: "t1", Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name string
		req  feedbackRequest
		want int
	}{
		{"missing action", feedbackRequest{Field: "title"}, http.StatusBadRequest},
		{"unknown field", feedbackRequest{Field: "sprint_velocity", Action: model.FeedbackOverride, Value: "x"}, http.StatusBadRequest},
		{"value out of range", feedbackRequest{Field: "timeline_days", Action: model.FeedbackOverride, Value: 100}, http.StatusUnprocessableEntity},
		{"bad enum value", feedbackRequest{Field: "category", Action: model.FeedbackOverride, Value: "quantum computing"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/sessions/t1/feedback", tt.req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
