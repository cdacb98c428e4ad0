package runs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/synthpanel/internal/application"
	appagg "github.com/bryanwahyu/synthpanel/internal/application/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/logger"
)

const (
	DefaultBatchSize  = 3
	DefaultBatchDelay = time.Second
)

// TaskRunner runs background work detached from the request.
// application.Supervisor satisfies it.
type TaskRunner interface {
	Go(name string, task func(ctx context.Context) error) error
}

// Metrics receives run lifecycle counters.
type Metrics interface {
	RunStarted()
	RunCompleted()
	RunFailed()
	ResponsePersisted()
}

type nopMetrics struct{}

func (nopMetrics) RunStarted()        {}
func (nopMetrics) RunCompleted()      {}
func (nopMetrics) RunFailed()         {}
func (nopMetrics) ResponsePersisted() {}

// Service implements use-cases untuk TestRun.
// Service is safe for concurrent use.
type Service struct {
	Repo        domain.Repository
	Responses   domain.ResponseRepository
	Variants    variants.Repository
	Personas    variants.PersonaRepository
	Generator   domain.ReactionGenerator
	Progress    domain.ProgressStore
	Attachments domain.AttachmentStore
	Failures    runfailures.Repository
	Aggregator  *appagg.Engine
	Tasks       TaskRunner
	Clock       application.Clock
	Log         *logger.Logger
	Metrics     Metrics

	BatchSize int
	// BatchDelay pauses between batches. Zero means DefaultBatchDelay,
	// negative disables the pause.
	BatchDelay time.Duration

	mu     sync.Mutex
	active map[domain.RunID]bool
}

type AttachmentUpload struct {
	Kind     domain.AttachmentKind
	Name     string
	MimeType string
	// DataBase64 carries image bytes, Text carries pre-extracted PDF text.
	DataBase64 string
	Text       string
}

type CreateRunCommand struct {
	ProjectID     string
	ConceptText   string
	FocusModifier string
	VariantIDs    []variants.VariantID
	Attachments   []AttachmentUpload
}

// CreateRun stores a draft run. Attachment payloads go to the attachment
// store and only their keys are kept on the run.
func (s *Service) CreateRun(ctx context.Context, cmd CreateRunCommand) (*domain.TestRun, error) {
	if strings.TrimSpace(cmd.ConceptText) == "" {
		return nil, fmt.Errorf("%w: concept_text is required", application.ErrInvalidInput)
	}
	ids := dedupe(cmd.VariantIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one variant is required", application.ErrInvalidInput)
	}
	found, err := s.Variants.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	if len(found) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d variants not found", application.ErrInvalidInput, len(ids)-len(found), len(ids))
	}
	if err := s.checkOwnership(ctx, cmd.ProjectID, found); err != nil {
		return nil, err
	}

	run := &domain.TestRun{
		ID:         domain.RunID(uuid.NewString()),
		ProjectID:  cmd.ProjectID,
		VariantIDs: ids,
		Status:     domain.StatusDraft,
		Total:      len(ids),
		CreatedAt:  s.Clock.Now().UTC(),
		Concept: domain.Concept{
			Text:          cmd.ConceptText,
			FocusModifier: cmd.FocusModifier,
		},
	}
	for i, up := range cmd.Attachments {
		att, err := s.storeAttachment(ctx, run, i, up)
		if err != nil {
			return nil, err
		}
		run.Concept.Attachments = append(run.Concept.Attachments, att)
	}

	if err := s.Repo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// checkOwnership makes sure every variant belongs to a persona of the project.
func (s *Service) checkOwnership(ctx context.Context, project string, vs []*variants.VariantProfile) error {
	seen := map[variants.PersonaID]bool{}
	for _, v := range vs {
		if seen[v.PersonaID] {
			continue
		}
		seen[v.PersonaID] = true
		if _, err := s.Personas.Get(ctx, project, v.PersonaID); err != nil {
			if errors.Is(err, variants.ErrPersonaNotFound) {
				return fmt.Errorf("%w: variant %s belongs to another project", application.ErrInvalidInput, v.ID)
			}
			return err
		}
	}
	return nil
}

func (s *Service) storeAttachment(ctx context.Context, run *domain.TestRun, i int, up AttachmentUpload) (domain.Attachment, error) {
	if s.Attachments == nil {
		return domain.Attachment{}, fmt.Errorf("%w: attachments are disabled", application.ErrInvalidInput)
	}
	att := domain.Attachment{Kind: up.Kind, Name: up.Name, MimeType: up.MimeType}
	var data []byte
	switch up.Kind {
	case domain.AttachmentImage:
		raw, err := base64.StdEncoding.DecodeString(up.DataBase64)
		if err != nil || len(raw) == 0 {
			return att, fmt.Errorf("%w: attachment %d: image data must be base64", application.ErrInvalidInput, i)
		}
		if att.MimeType == "" {
			att.MimeType = "image/png"
		}
		data = raw
	case domain.AttachmentPDFText:
		if strings.TrimSpace(up.Text) == "" {
			return att, fmt.Errorf("%w: attachment %d: text is required", application.ErrInvalidInput, i)
		}
		att.MimeType = "text/plain; charset=utf-8"
		data = []byte(up.Text)
	default:
		return att, fmt.Errorf("%w: attachment %d: unknown kind %q", application.ErrInvalidInput, i, up.Kind)
	}
	name := path.Base(strings.TrimSpace(up.Name))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	att.Key = fmt.Sprintf("%s/runs/%s/%02d-%s", run.ProjectID, run.ID, i, name)
	if err := s.Attachments.Put(ctx, att.Key, att.MimeType, data); err != nil {
		return att, fmt.Errorf("store attachment: %w", err)
	}
	return att, nil
}

// StartRun flips a draft run to running and hands the batches to the task
// runner. It returns as soon as the work is accepted.
func (s *Service) StartRun(ctx context.Context, project string, id domain.RunID) error {
	run, err := s.Repo.Get(ctx, project, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.active == nil {
		s.active = map[domain.RunID]bool{}
	}
	if s.active[id] {
		s.mu.Unlock()
		return fmt.Errorf("%w: run %s already started", domain.ErrInvalidTransition, id)
	}
	if err := run.Transition(domain.StatusRunning, s.Clock.Now().UTC()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.active[id] = true
	s.mu.Unlock()

	if err := s.Repo.UpdateStatus(ctx, run); err != nil {
		s.release(id)
		return fmt.Errorf("mark running: %w", err)
	}
	s.setProgress(ctx, run.ID, run.Progress())
	s.metrics().RunStarted()

	err = s.Tasks.Go("run:"+string(id), func(taskCtx context.Context) (err error) {
		defer s.release(id)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("run %s panicked: %v", id, r)
				s.fail(taskCtx, run, err, "batch")
			}
		}()
		return s.execute(taskCtx, run)
	})
	if err != nil {
		s.release(id)
		s.fail(ctx, run, err, "start")
		return err
	}
	return nil
}

func (s *Service) release(id domain.RunID) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *Service) isActive(id domain.RunID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id]
}

func (s *Service) GetRun(ctx context.Context, project string, id domain.RunID) (*domain.TestRun, error) {
	return s.Repo.Get(ctx, project, id)
}

// GetProgress prefers the live progress entry and falls back to the
// persisted counters when the entry is gone (restart, deleted entry).
func (s *Service) GetProgress(ctx context.Context, project string, id domain.RunID) (domain.Progress, error) {
	run, err := s.Repo.Get(ctx, project, id)
	if err != nil {
		return domain.Progress{}, err
	}
	if s.Progress != nil {
		p, ok, err := s.Progress.Get(ctx, id)
		if err != nil {
			s.log().Warn("progress store read failed", "run_id", id, "error", err)
		} else if ok {
			return p, nil
		}
	}
	return run.Progress(), nil
}

// Live summarizes the responses persisted so far.
func (s *Service) Live(ctx context.Context, project string, id domain.RunID) (appagg.Live, error) {
	run, err := s.Repo.Get(ctx, project, id)
	if err != nil {
		return appagg.Live{}, err
	}
	return s.Aggregator.Live(ctx, run)
}

// AggregateView is the stored aggregate plus its benchmark score.
type AggregateView struct {
	*aggregate.Result
	Score int `json:"benchmark_score"`
}

// GetAggregate returns the run's aggregate; ErrNotComplete until the run
// completes. A complete run whose aggregate is missing gets it computed now.
func (s *Service) GetAggregate(ctx context.Context, project string, id domain.RunID) (AggregateView, error) {
	run, err := s.Repo.Get(ctx, project, id)
	if err != nil {
		return AggregateView{}, err
	}
	if run.Status != domain.StatusComplete {
		return AggregateView{}, fmt.Errorf("%w: status is %s", domain.ErrNotComplete, run.Status)
	}
	res, err := s.Aggregator.Get(ctx, id)
	if errors.Is(err, aggregate.ErrNotFound) {
		res, err = s.Aggregator.Aggregate(ctx, run)
	}
	if err != nil {
		return AggregateView{}, err
	}
	return AggregateView{Result: res, Score: aggregate.BenchmarkScore(res.Summary)}, nil
}

func (s *Service) ListFailures(ctx context.Context, project string, id domain.RunID, limit int) ([]*runfailures.Failure, error) {
	if _, err := s.Repo.Get(ctx, project, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Failures.ListByRun(ctx, string(id), limit)
}

// Reconcile rewrites the run's completed counter from the actual number of
// response rows. The counter only moves up.
func (s *Service) Reconcile(ctx context.Context, project string, id domain.RunID) (*domain.TestRun, error) {
	if _, err := s.Repo.Get(ctx, project, id); err != nil {
		return nil, err
	}
	if _, err := s.reconcile(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.Get(ctx, project, id)
}

func (s *Service) reconcile(ctx context.Context, id domain.RunID) (int, error) {
	n, err := s.Responses.CountByRun(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	if err := s.Repo.UpdateCompleted(ctx, id, n); err != nil {
		return 0, fmt.Errorf("update completed: %w", err)
	}
	return n, nil
}

// DeleteRun removes the run with its responses, aggregate and progress entry.
// A run still executing in this process can't be deleted.
func (s *Service) DeleteRun(ctx context.Context, project string, id domain.RunID) error {
	if _, err := s.Repo.Get(ctx, project, id); err != nil {
		return err
	}
	if s.isActive(id) {
		return fmt.Errorf("%w: run %s is still running", domain.ErrInvalidTransition, id)
	}
	if err := s.Responses.DeleteByRun(ctx, id); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	if err := s.Aggregator.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete aggregate: %w", err)
	}
	if err := s.Repo.Delete(ctx, project, id); err != nil {
		return err
	}
	if s.Progress != nil {
		if err := s.Progress.Remove(ctx, id); err != nil {
			s.log().Warn("progress remove failed", "run_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) setProgress(ctx context.Context, id domain.RunID, p domain.Progress) {
	if s.Progress == nil {
		return
	}
	if err := s.Progress.Set(ctx, id, p); err != nil {
		s.log().Warn("progress update failed", "run_id", id, "error", err)
	}
}

func (s *Service) metrics() Metrics {
	if s.Metrics == nil {
		return nopMetrics{}
	}
	return s.Metrics
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func dedupe(ids []variants.VariantID) []variants.VariantID {
	seen := make(map[variants.VariantID]bool, len(ids))
	out := make([]variants.VariantID, 0, len(ids))
	for _, id := range ids {
		id = variants.VariantID(strings.TrimSpace(string(id)))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
