package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/synthpanel/internal/application"
	appruns "github.com/bryanwahyu/synthpanel/internal/application/runs"
	appvariants "github.com/bryanwahyu/synthpanel/internal/application/variants"
	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	domai "github.com/bryanwahyu/synthpanel/internal/domain/ai"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/logger"
	"github.com/bryanwahyu/synthpanel/internal/middleware"
)

// maxBodyBytes covers base64 image attachments.
const maxBodyBytes = 32 << 20

type Options struct {
	Variants     *appvariants.Service
	Runs         *appruns.Service
	Progress     runs.ProgressStore
	PollInterval time.Duration
	Log          *logger.Logger

	APIKeys      map[string]string
	RateLimiter  *middleware.RateLimiter
	Metrics      *middleware.Metrics
	HealthChecks map[string]middleware.HealthChecker
	CORSOrigins  []string
}

type Router struct {
	variantsSvc *appvariants.Service
	runsSvc     *appruns.Service
	progress    runs.ProgressStore
	poll        time.Duration
	log         *logger.Logger
}

func NewRouter(opt Options) http.Handler {
	log := opt.Log
	if log == nil {
		log = logger.Nop()
	}
	r := &Router{
		variantsSvc: opt.Variants,
		runsSvc:     opt.Runs,
		progress:    opt.Progress,
		poll:        opt.PollInterval,
		log:         log,
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	origins := opt.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opt.APIKeys))
	if opt.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opt.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opt.HealthChecks))
	mux.Get("/health/ready", middleware.ReadinessHandler)
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1/{project}", func(rt chi.Router) {
		rt.Use(middleware.RequireProject)

		rt.Post("/personas", r.wrap(r.handleSavePersona))
		rt.Get("/personas/{personaID}", r.wrap(r.handleGetPersona))
		rt.Post("/personas/{personaID}/variants", r.wrap(r.handleGenerateVariants))
		rt.Get("/personas/{personaID}/variants", r.wrap(r.handleListVariants))

		rt.Post("/runs", r.wrap(r.handleCreateRun))
		rt.Route("/runs/{runID}", func(run chi.Router) {
			run.Get("/", r.wrap(r.handleGetRun))
			run.Delete("/", r.wrap(r.handleDeleteRun))
			run.Post("/start", r.wrap(r.handleStartRun))
			run.Get("/progress", r.wrap(r.handleProgress))
			run.Get("/progress/stream", r.wrap(r.handleProgressStream))
			run.Get("/live", r.wrap(r.handleLive))
			run.Get("/aggregate", r.wrap(r.handleAggregate))
			run.Get("/failures", r.wrap(r.handleFailures))
			run.Post("/reconcile", r.wrap(r.handleReconcile))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client errors found while decoding a request.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		code := statusFor(err)
		if code >= 500 {
			r.log.Error("request failed", "path", req.URL.Path, "status", code, "error", err)
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
	}
}

func statusFor(err error) int {
	var (
		br     badRequest
		genErr *variants.GenerationError
	)
	switch {
	case errors.As(err, &br), errors.Is(err, application.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, runs.ErrNotFound),
		errors.Is(err, variants.ErrPersonaNotFound),
		errors.Is(err, aggregate.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrInvalidTransition), errors.Is(err, runs.ErrNotComplete):
		return http.StatusConflict
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domai.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &genErr):
		if genErr.Kind == variants.KindNotConfigured {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body and runs its validate tags.
func decode(w http.ResponseWriter, req *http.Request, dst any) error {
	body := http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest{errors.New("request body is empty")}
		}
		return badRequest{fmt.Errorf("invalid json body: %w", err)}
	}
	return middleware.ValidateStruct(dst)
}

func project(req *http.Request) string { return chi.URLParam(req, "project") }

func runID(req *http.Request) (runs.RunID, error) {
	id := chi.URLParam(req, "runID")
	if err := middleware.ValidateID("run", id); err != nil {
		return "", err
	}
	return runs.RunID(id), nil
}

func personaID(req *http.Request) (variants.PersonaID, error) {
	id := chi.URLParam(req, "personaID")
	if err := middleware.ValidateID("persona", id); err != nil {
		return "", err
	}
	return variants.PersonaID(id), nil
}

// POST /v1/{project}/personas
func (r *Router) handleSavePersona(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name        string `json:"name" validate:"required,max=255"`
		Profile     string `json:"profile" validate:"required"`
		VoiceSample string `json:"voice_sample"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	p, err := r.variantsSvc.SavePersona(req.Context(), appvariants.SavePersonaCommand{
		ProjectID:   project(req),
		Name:        middleware.SanitizeString(body.Name),
		Profile:     body.Profile,
		VoiceSample: body.VoiceSample,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}

// GET /v1/{project}/personas/{personaID}
func (r *Router) handleGetPersona(w http.ResponseWriter, req *http.Request) error {
	id, err := personaID(req)
	if err != nil {
		return err
	}
	p, err := r.variantsSvc.GetPersona(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// POST /v1/{project}/personas/{personaID}/variants
// Body: {"count": 20, "diversity": {"age_spread": 10, "attitude_distribution": "normal", "platforms": [...]}}
// Replaces every existing variant of the persona.
func (r *Router) handleGenerateVariants(w http.ResponseWriter, req *http.Request) error {
	id, err := personaID(req)
	if err != nil {
		return err
	}
	var body struct {
		Count     int                      `json:"count" validate:"required,min=1"`
		Diversity variants.DiversityConfig `json:"diversity"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.variantsSvc.GenerateForPersona(req.Context(), appvariants.GenerateCommand{
		ProjectID: project(req),
		PersonaID: id,
		Count:     body.Count,
		Diversity: body.Diversity,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// GET /v1/{project}/personas/{personaID}/variants
func (r *Router) handleListVariants(w http.ResponseWriter, req *http.Request) error {
	id, err := personaID(req)
	if err != nil {
		return err
	}
	list, err := r.variantsSvc.ListVariants(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*variants.VariantProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"variants": list})
	return nil
}

type attachmentBody struct {
	Kind       string `json:"kind" validate:"required,oneof=image pdf_text"`
	Name       string `json:"name" validate:"required,max=255"`
	MimeType   string `json:"mime_type"`
	DataBase64 string `json:"data_base64" validate:"required_if=Kind image"`
	Text       string `json:"text" validate:"required_if=Kind pdf_text"`
}

// POST /v1/{project}/runs
func (r *Router) handleCreateRun(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ConceptText   string           `json:"concept_text" validate:"required"`
		FocusModifier string           `json:"focus_modifier"`
		VariantIDs    []string         `json:"variant_ids" validate:"required,min=1,dive,required"`
		Attachments   []attachmentBody `json:"attachments" validate:"dive"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	cmd := appruns.CreateRunCommand{
		ProjectID:     project(req),
		ConceptText:   body.ConceptText,
		FocusModifier: body.FocusModifier,
	}
	for _, id := range body.VariantIDs {
		cmd.VariantIDs = append(cmd.VariantIDs, variants.VariantID(id))
	}
	for _, a := range body.Attachments {
		cmd.Attachments = append(cmd.Attachments, appruns.AttachmentUpload{
			Kind:       runs.AttachmentKind(a.Kind),
			Name:       middleware.SanitizeString(a.Name),
			MimeType:   a.MimeType,
			DataBase64: a.DataBase64,
			Text:       a.Text,
		})
	}
	run, err := r.runsSvc.CreateRun(req.Context(), cmd)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, run)
	return nil
}

// GET /v1/{project}/runs/{runID}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	run, err := r.runsSvc.GetRun(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, run)
	return nil
}

// POST /v1/{project}/runs/{runID}/start
// Returns as soon as the run is accepted; batches execute in the background.
func (r *Router) handleStartRun(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	if err := r.runsSvc.StartRun(req.Context(), project(req), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "run_id": id})
	return nil
}

// GET /v1/{project}/runs/{runID}/progress
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	p, err := r.runsSvc.GetProgress(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// GET /v1/{project}/runs/{runID}/live
func (r *Router) handleLive(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	live, err := r.runsSvc.Live(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, live)
	return nil
}

// GET /v1/{project}/runs/{runID}/aggregate
func (r *Router) handleAggregate(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	view, err := r.runsSvc.GetAggregate(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

// GET /v1/{project}/runs/{runID}/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.runsSvc.ListFailures(req.Context(), project(req), id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": list})
	return nil
}

// POST /v1/{project}/runs/{runID}/reconcile
func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	run, err := r.runsSvc.Reconcile(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, run)
	return nil
}

// DELETE /v1/{project}/runs/{runID}
func (r *Router) handleDeleteRun(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	if err := r.runsSvc.DeleteRun(req.Context(), project(req), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
