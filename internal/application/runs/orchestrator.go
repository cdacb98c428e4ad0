package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	domain "github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

// storageError marks failures of the record or attachment store so they are
// classified apart from provider failures.
type storageError struct{ err error }

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

func asStorage(format string, err error) error {
	return &storageError{err: fmt.Errorf(format, err)}
}

// variantError names the variant whose call failed.
type variantError struct {
	variant variants.VariantID
	err     error
}

func (e *variantError) Error() string { return fmt.Sprintf("variant %s: %v", e.variant, e.err) }
func (e *variantError) Unwrap() error { return e.err }

// execute drains the run's variants in batches. Calls within a batch run
// concurrently; the next batch starts only after the previous one resolved
// and the inter-batch delay elapsed. Any call error fails the run.
func (s *Service) execute(ctx context.Context, run *domain.TestRun) error {
	log := s.log().With("run_id", run.ID)

	work, err := s.prepare(ctx, run)
	if err != nil {
		s.fail(ctx, run, err, "start")
		return err
	}

	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := s.BatchDelay
	if delay == 0 {
		delay = DefaultBatchDelay
	}

	completed := 0
	batches := (len(work) + size - 1) / size
	for b := 0; b < batches; b++ {
		if b > 0 && delay > 0 {
			if err := s.Clock.Sleep(ctx, delay); err != nil {
				s.fail(ctx, run, err, "batch")
				return err
			}
		}
		lo, hi := b*size, min((b+1)*size, len(work))
		log.Debug("batch start", "batch", b+1, "of", batches, "size", hi-lo)

		done, err := s.runBatch(ctx, run, work[lo:hi])
		completed += done
		if err != nil {
			log.Error("batch failed", "batch", b+1, "completed", completed, "error", err)
			s.fail(ctx, run, err, "batch")
			return err
		}

		run.Completed = completed
		if err := s.Repo.UpdateCompleted(ctx, run.ID, completed); err != nil {
			err = asStorage("update completed: %w", err)
			s.fail(ctx, run, err, "batch")
			return err
		}
		s.setProgress(ctx, run.ID, run.Progress())
		log.Debug("batch done", "batch", b+1, "completed", completed, "total", run.Total)
	}

	return s.complete(ctx, run)
}

// prepare resolves attachments and builds one request per variant, in the
// run's variant order.
func (s *Service) prepare(ctx context.Context, run *domain.TestRun) ([]domain.ReactionRequest, error) {
	atts, err := s.resolveAttachments(ctx, run.Concept.Attachments)
	if err != nil {
		return nil, err
	}
	concept := run.Concept
	concept.Attachments = atts

	vs, err := s.Variants.GetMany(ctx, run.VariantIDs)
	if err != nil {
		return nil, asStorage("load variants: %w", err)
	}
	if len(vs) != len(run.VariantIDs) {
		return nil, asStorage("load variants: %w", fmt.Errorf("%d of %d variants no longer exist", len(run.VariantIDs)-len(vs), len(run.VariantIDs)))
	}

	var pids []variants.PersonaID
	seen := map[variants.PersonaID]bool{}
	for _, v := range vs {
		if !seen[v.PersonaID] {
			seen[v.PersonaID] = true
			pids = append(pids, v.PersonaID)
		}
	}
	ps, err := s.Personas.GetMany(ctx, pids)
	if err != nil {
		return nil, asStorage("load personas: %w", err)
	}
	byID := make(map[variants.PersonaID]*variants.Persona, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
	}

	out := make([]domain.ReactionRequest, 0, len(vs))
	for _, v := range vs {
		p, ok := byID[v.PersonaID]
		if !ok {
			return nil, asStorage("load personas: %w", fmt.Errorf("persona %s of variant %s not found", v.PersonaID, v.ID))
		}
		out = append(out, domain.ReactionRequest{Variant: v, Persona: p, Concept: concept, Attachments: atts})
	}
	return out, nil
}

func (s *Service) resolveAttachments(ctx context.Context, in []domain.Attachment) ([]domain.Attachment, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if s.Attachments == nil {
		return nil, asStorage("resolve attachments: %w", errors.New("attachment store is not configured"))
	}
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		data, err := s.Attachments.Fetch(ctx, a.Key)
		if err != nil {
			return nil, asStorage("fetch attachment "+a.Key+": %w", err)
		}
		switch a.Kind {
		case domain.AttachmentPDFText:
			a.Text = string(data)
		default:
			a.Data = data
		}
		out = append(out, a)
	}
	return out, nil
}

// runBatch issues every call of the batch concurrently and persists each
// response as it arrives. The first error cancels the rest of the batch.
func (s *Service) runBatch(ctx context.Context, run *domain.TestRun, batch []domain.ReactionRequest) (int, error) {
	var persisted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, req := range batch {
		g.Go(func() error {
			res, err := s.Generator.GenerateReaction(gctx, req)
			if err != nil {
				return &variantError{variant: req.Variant.ID, err: err}
			}
			resp := &domain.VariantResponse{
				ID:        uuid.NewString(),
				RunID:     run.ID,
				VariantID: req.Variant.ID,
				Text:      res.Reaction.Text,
				Scores:    res.Reaction.Scores,
				Tags:      res.Reaction.Tags,
				LatencyMS: res.LatencyMS,
				Model:     res.Model,
				CreatedAt: s.Clock.Now().UTC(),
			}
			if err := s.Responses.Insert(ctx, resp); err != nil {
				return &variantError{variant: req.Variant.ID, err: asStorage("insert response: %w", err)}
			}
			persisted.Add(1)
			s.metrics().ResponsePersisted()
			return nil
		})
	}
	err := g.Wait()
	return int(persisted.Load()), err
}

// complete marks the run complete, stores its aggregate and only then marks
// the progress entry terminal so observers see the aggregate on detach.
func (s *Service) complete(ctx context.Context, run *domain.TestRun) error {
	if err := run.Transition(domain.StatusComplete, s.Clock.Now().UTC()); err != nil {
		return err
	}
	if err := s.Repo.UpdateStatus(ctx, run); err != nil {
		err = asStorage("mark complete: %w", err)
		run.Status, run.CompletedAt = domain.StatusRunning, nil
		s.fail(ctx, run, err, "complete")
		return err
	}
	s.metrics().RunCompleted()

	if _, err := s.Aggregator.Aggregate(ctx, run); err != nil {
		// The run stays complete; GetAggregate retries on read.
		s.log().Error("aggregate failed", "run_id", run.ID, "error", err)
		s.recordFailure(ctx, run, asStorage("aggregate: %w", err), "aggregate")
	}
	// terminal progress means the run is no longer active here
	s.release(run.ID)
	s.setProgress(ctx, run.ID, run.Progress())
	s.log().Info("run complete", "run_id", run.ID, "completed", run.Completed, "total", run.Total)
	return nil
}

// fail flips the run to failed, reconciles the counter against the rows
// that were actually written and stores the failure context.
func (s *Service) fail(ctx context.Context, run *domain.TestRun, cause error, phase string) {
	// The task context may already be cancelled; the bookkeeping must land.
	ctx = context.WithoutCancel(ctx)

	if err := run.Transition(domain.StatusFailed, s.Clock.Now().UTC()); err != nil {
		s.log().Error("mark failed", "run_id", run.ID, "error", err)
		return
	}
	if err := s.Repo.UpdateStatus(ctx, run); err != nil {
		s.log().Error("persist failed status", "run_id", run.ID, "error", err)
	}
	if n, err := s.reconcile(ctx, run.ID); err != nil {
		s.log().Error("reconcile after failure", "run_id", run.ID, "error", err)
	} else if n > run.Completed {
		run.Completed = n
	}
	s.recordFailure(ctx, run, cause, phase)
	s.metrics().RunFailed()
	s.release(run.ID)
	s.setProgress(ctx, run.ID, run.Progress())
}

func (s *Service) recordFailure(ctx context.Context, run *domain.TestRun, cause error, phase string) {
	class := Classify(cause)
	s.log().Warn("run failure recorded", "run_id", run.ID, "class", class, "phase", phase, "error", cause)
	if s.Failures == nil {
		return
	}
	details := map[string]any{"completed": run.Completed, "total": run.Total}
	var ve *variantError
	if errors.As(cause, &ve) {
		details["variant_id"] = ve.variant
	}
	raw, _ := json.Marshal(details)
	f := &runfailures.Failure{
		RunID:       string(run.ID),
		Class:       class,
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: string(raw),
		CreatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.Failures.Save(context.WithoutCancel(ctx), f); err != nil {
		s.log().Error("save run failure", "run_id", run.ID, "error", err)
	}
}

// Classify maps an error to its failure cause class.
func Classify(err error) runfailures.Class {
	var se *storageError
	var ge *variants.GenerationError
	switch {
	case errors.As(err, &se):
		return runfailures.ClassStorage
	case errors.As(err, &ge):
		switch ge.Kind {
		case variants.KindMalformed, variants.KindWrongShape:
			return runfailures.ClassMalformedOutput
		case variants.KindEmpty:
			return runfailures.ClassEmptyGeneration
		}
	}
	return runfailures.ClassProvider
}
