package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/synthpanel/internal/application"
	appagg "github.com/bryanwahyu/synthpanel/internal/application/aggregate"
	appruns "github.com/bryanwahyu/synthpanel/internal/application/runs"
	appvariants "github.com/bryanwahyu/synthpanel/internal/application/variants"
	domai "github.com/bryanwahyu/synthpanel/internal/domain/ai"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/infra/db/memory"
	"github.com/bryanwahyu/synthpanel/internal/infra/progress"
	"github.com/bryanwahyu/synthpanel/internal/infra/storage"
	"github.com/bryanwahyu/synthpanel/internal/middleware"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubVariants struct{}

func (stubVariants) GenerateVariants(_ context.Context, p *variants.Persona, count int, _ variants.DiversityConfig) (*variants.Batch, error) {
	b := &variants.Batch{Requested: count, Model: "stub"}
	for i := 0; i < count; i++ {
		b.Variants = append(b.Variants, &variants.VariantProfile{
			PersonaID:       p.ID,
			Name:            fmt.Sprintf("v%d", i),
			Age:             20 + 5*i,
			AttitudeScore:   6,
			PrimaryPlatform: "TikTok",
			EngagementTier:  variants.TierModerate,
		})
	}
	return b, nil
}

type stubReactions struct{}

func (stubReactions) GenerateReaction(_ context.Context, _ runs.ReactionRequest) (runs.ReactionResult, error) {
	return runs.ReactionResult{
		Reaction: runs.ParseReaction("Cute idea.\n---SCORES---\n{\"sentiment\":8,\"engagement\":6,\"share\":5,\"comprehension\":9,\"tags\":[\"amused\"]}"),
		Model:    "stub",
	}, nil
}

type server struct {
	handler http.Handler
	metrics *middleware.Metrics
}

func newServer(t *testing.T, keys map[string]string) *server {
	t.Helper()
	store := memory.NewStore()
	prog := progress.NewMemory()
	sup := application.NewSupervisor(nil)
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })
	clock := application.SystemClock{}
	metrics := middleware.NewMetrics()

	engine := &appagg.Engine{
		Responses: store.Responses(),
		Variants:  store.Variants(),
		Repo:      store.Aggregates(),
		Failures:  store.Failures(),
		Clock:     clock,
	}
	runsSvc := &appruns.Service{
		Repo:        store.Runs(),
		Responses:   store.Responses(),
		Variants:    store.Variants(),
		Personas:    store.Personas(),
		Generator:   stubReactions{},
		Progress:    prog,
		Attachments: storage.NewMemory(),
		Failures:    store.Failures(),
		Aggregator:  engine,
		Tasks:       sup,
		Clock:       clock,
		Metrics:     metrics,
		BatchSize:   2,
		BatchDelay:  -1,
	}
	variantsSvc := &appvariants.Service{
		Personas:    store.Personas(),
		Repo:        store.Variants(),
		Generator:   stubVariants{},
		Clock:       clock,
		MaxVariants: 50,
	}
	return &server{
		handler: NewRouter(Options{
			Variants:     variantsSvc,
			Runs:         runsSvc,
			Progress:     prog,
			PollInterval: 5 * time.Millisecond,
			APIKeys:      keys,
			Metrics:      metrics,
		}),
		metrics: metrics,
	}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/acme/personas", map[string]any{"name": "Student", "profile": "College student on a budget"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var persona variants.Persona
	decodeBody(t, rec, &persona)

	rec = s.do(t, http.MethodPost, "/v1/acme/personas/"+string(persona.ID)+"/variants", map[string]any{"count": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gen appvariants.GenerateResult
	decodeBody(t, rec, &gen)
	require.Len(t, gen.Variants, 5)
	assert.Equal(t, 0, gen.Shortfall)

	ids := make([]string, 0, len(gen.Variants))
	for _, v := range gen.Variants {
		ids = append(ids, string(v.ID))
	}
	rec = s.do(t, http.MethodPost, "/v1/acme/runs", map[string]any{"concept_text": "Summer drink launch", "variant_ids": ids})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var run runs.TestRun
	decodeBody(t, rec, &run)
	assert.Equal(t, runs.StatusDraft, run.Status)
	assert.Equal(t, 5, run.Total)

	base := "/v1/acme/runs/" + string(run.ID)
	rec = s.do(t, http.MethodGet, base+"/aggregate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		var p runs.Progress
		if err := json.Unmarshal(s.do(t, http.MethodGet, base+"/progress", nil).Body.Bytes(), &p); err != nil {
			return false
		}
		return p.Status == runs.StatusComplete && p.Completed == 5
	}, 2*time.Second, 5*time.Millisecond)

	rec = s.do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a finished run can't restart")

	rec = s.do(t, http.MethodGet, base+"/aggregate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var agg map[string]any
	decodeBody(t, rec, &agg)
	summary := agg["summary"].(map[string]any)
	assert.EqualValues(t, 5, summary["total_responses"])
	assert.Contains(t, agg, "benchmark_score")

	rec = s.do(t, http.MethodGet, base+"/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/progress/stream", nil)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: progress\ndata: {\"completed\":5,\"total\":5,\"status\":\"complete\"}")

	rec = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.EqualValues(t, 1, s.metrics.RunsCompleted.Load())
	assert.EqualValues(t, 5, s.metrics.ResponsesTotal.Load())
}

func TestRequestValidation(t *testing.T) {
	s := newServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"missing persona fields", http.MethodPost, "/v1/acme/personas", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"run without variants", http.MethodPost, "/v1/acme/runs", map[string]any{"concept_text": "x"}, http.StatusBadRequest},
		{"unknown variants", http.MethodPost, "/v1/acme/runs", map[string]any{"concept_text": "x", "variant_ids": []string{"nope"}}, http.StatusBadRequest},
		{"bad attachment kind", http.MethodPost, "/v1/acme/runs", map[string]any{
			"concept_text": "x", "variant_ids": []string{"a"},
			"attachments": []map[string]any{{"kind": "video", "name": "a.mp4"}},
		}, http.StatusBadRequest},
		{"malformed run id", http.MethodGet, "/v1/acme/runs/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/v1/acme/runs/0f8fad5b-d9cb-469f-a165-70867728950e", nil, http.StatusNotFound},
		{"unknown persona", http.MethodPost, "/v1/acme/personas/0f8fad5b-d9cb-469f-a165-70867728950e/variants", map[string]any{"count": 3}, http.StatusNotFound},
		{"count too large", http.MethodPost, "/v1/acme/personas/0f8fad5b-d9cb-469f-a165-70867728950e/variants", map[string]any{"count": 500}, http.StatusBadRequest},
		{"bad project", http.MethodGet, "/v1/a.b/runs/0f8fad5b-d9cb-469f-a165-70867728950e", nil, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/acme/personas", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthScopesProjects(t *testing.T) {
	s := newServer(t, map[string]string{"acme": "k1"})

	call := func(path, key string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec.Code
	}
	id := "/runs/0f8fad5b-d9cb-469f-a165-70867728950e"
	assert.Equal(t, http.StatusUnauthorized, call("/v1/acme"+id, ""))
	assert.Equal(t, http.StatusForbidden, call("/v1/other"+id, "k1"))
	assert.Equal(t, http.StatusNotFound, call("/v1/acme"+id, "k1"))
	assert.Equal(t, http.StatusOK, call("/health/live", ""))
	assert.Equal(t, http.StatusOK, call("/metrics", ""))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", application.ErrInvalidInput), http.StatusBadRequest},
		{runs.ErrNotFound, http.StatusNotFound},
		{variants.ErrPersonaNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: draft -> complete", runs.ErrInvalidTransition), http.StatusConflict},
		{runs.ErrNotComplete, http.StatusConflict},
		{fmt.Errorf("reaction: %w", domai.ErrQuotaExceeded), http.StatusTooManyRequests},
		{&variants.GenerationError{Kind: variants.KindEmpty}, http.StatusBadGateway},
		{&variants.GenerationError{Kind: variants.KindNotConfigured}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.code, statusFor(tc.err), tc.err.Error())
	}
}
