// Package memory is an in-process Record Store used by the "memory" database
// driver and by tests. Every read returns copies so callers can't mutate
// stored rows.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
)

type Store struct {
	mu         sync.RWMutex
	personas   map[variants.PersonaID]variants.Persona
	variants   map[variants.PersonaID][]variants.VariantProfile
	runs       map[runs.RunID]runs.TestRun
	responses  map[runs.RunID][]runs.VariantResponse
	aggregates map[runs.RunID]aggregate.Result
	failures   []runfailures.Failure
	nextFailID int64
}

func NewStore() *Store {
	return &Store{
		personas:   map[variants.PersonaID]variants.Persona{},
		variants:   map[variants.PersonaID][]variants.VariantProfile{},
		runs:       map[runs.RunID]runs.TestRun{},
		responses:  map[runs.RunID][]runs.VariantResponse{},
		aggregates: map[runs.RunID]aggregate.Result{},
	}
}

func (s *Store) Personas() *PersonaRepo     { return &PersonaRepo{s} }
func (s *Store) Variants() *VariantRepo     { return &VariantRepo{s} }
func (s *Store) Runs() *RunRepo             { return &RunRepo{s} }
func (s *Store) Responses() *ResponseRepo   { return &ResponseRepo{s} }
func (s *Store) Aggregates() *AggregateRepo { return &AggregateRepo{s} }
func (s *Store) Failures() *FailureRepo     { return &FailureRepo{s} }

// ===== personas =====

type PersonaRepo struct{ s *Store }

func (r *PersonaRepo) Save(_ context.Context, p *variants.Persona) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.personas[p.ID] = *p
	return nil
}

func (r *PersonaRepo) Get(_ context.Context, project string, id variants.PersonaID) (*variants.Persona, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.personas[id]
	if !ok || p.ProjectID != project {
		return nil, variants.ErrPersonaNotFound
	}
	return &p, nil
}

func (r *PersonaRepo) GetMany(_ context.Context, ids []variants.PersonaID) ([]*variants.Persona, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*variants.Persona, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.personas[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

// ===== variants =====

type VariantRepo struct{ s *Store }

func (r *VariantRepo) ReplaceForPersona(_ context.Context, persona variants.PersonaID, vs []*variants.VariantProfile) error {
	cp := make([]variants.VariantProfile, 0, len(vs))
	for _, v := range vs {
		cp = append(cp, *v)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.variants[persona] = cp
	return nil
}

func (r *VariantRepo) ListByPersona(ctx context.Context, persona variants.PersonaID) ([]*variants.VariantProfile, error) {
	return r.ListByPersonas(ctx, []variants.PersonaID{persona})
}

func (r *VariantRepo) ListByPersonas(_ context.Context, personas []variants.PersonaID) ([]*variants.VariantProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*variants.VariantProfile
	for _, p := range personas {
		for _, v := range r.s.variants[p] {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r *VariantRepo) GetMany(_ context.Context, ids []variants.VariantID) ([]*variants.VariantProfile, error) {
	want := make(map[variants.VariantID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byID := map[variants.VariantID]variants.VariantProfile{}
	for _, list := range r.s.variants {
		for _, v := range list {
			if want[v.ID] {
				byID[v.ID] = v
			}
		}
	}
	out := make([]*variants.VariantProfile, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, &v)
		}
	}
	return out, nil
}

// ===== runs =====

type RunRepo struct{ s *Store }

func copyRun(r runs.TestRun) *runs.TestRun {
	r.VariantIDs = append([]variants.VariantID(nil), r.VariantIDs...)
	r.Concept.Attachments = append([]runs.Attachment(nil), r.Concept.Attachments...)
	return &r
}

func (r *RunRepo) Save(_ context.Context, run *runs.TestRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runs[run.ID] = *copyRun(*run)
	return nil
}

func (r *RunRepo) Get(_ context.Context, project string, id runs.RunID) (*runs.TestRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.runs[id]
	if !ok || run.ProjectID != project {
		return nil, runs.ErrNotFound
	}
	return copyRun(run), nil
}

func (r *RunRepo) UpdateStatus(_ context.Context, run *runs.TestRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.runs[run.ID]
	if !ok {
		return runs.ErrNotFound
	}
	cur.Status = run.Status
	cur.StartedAt = run.StartedAt
	cur.CompletedAt = run.CompletedAt
	r.s.runs[run.ID] = cur
	return nil
}

func (r *RunRepo) UpdateCompleted(_ context.Context, id runs.RunID, completed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.runs[id]
	if !ok {
		return runs.ErrNotFound
	}
	if completed > cur.Completed {
		cur.Completed = completed
		r.s.runs[id] = cur
	}
	return nil
}

func (r *RunRepo) Delete(_ context.Context, project string, id runs.RunID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok || run.ProjectID != project {
		return runs.ErrNotFound
	}
	delete(r.s.runs, id)
	return nil
}

// ===== responses =====

type ResponseRepo struct{ s *Store }

func (r *ResponseRepo) Insert(_ context.Context, resp *runs.VariantResponse) error {
	cp := *resp
	cp.Tags = append([]runs.Tag(nil), resp.Tags...)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.responses[resp.RunID] = append(r.s.responses[resp.RunID], cp)
	return nil
}

func (r *ResponseRepo) ListByRun(_ context.Context, id runs.RunID) ([]*runs.VariantResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := r.s.responses[id]
	out := make([]*runs.VariantResponse, 0, len(list))
	for _, v := range list {
		v := v
		v.Tags = append([]runs.Tag(nil), v.Tags...)
		out = append(out, &v)
	}
	return out, nil
}

func (r *ResponseRepo) CountByRun(_ context.Context, id runs.RunID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.responses[id]), nil
}

func (r *ResponseRepo) DeleteByRun(_ context.Context, id runs.RunID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.responses, id)
	return nil
}

// ===== aggregates =====

type AggregateRepo struct{ s *Store }

func (r *AggregateRepo) Insert(_ context.Context, res *aggregate.Result) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.aggregates[res.RunID]; ok {
		return aggregate.ErrAlreadyExists
	}
	r.s.aggregates[res.RunID] = *res
	return nil
}

func (r *AggregateRepo) Get(_ context.Context, id runs.RunID) (*aggregate.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.aggregates[id]
	if !ok {
		return nil, aggregate.ErrNotFound
	}
	return &res, nil
}

func (r *AggregateRepo) DeleteByRun(_ context.Context, id runs.RunID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.aggregates, id)
	return nil
}

// ===== failures =====

type FailureRepo struct{ s *Store }

func (r *FailureRepo) Save(_ context.Context, f *runfailures.Failure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextFailID++
	f.ID = r.s.nextFailID
	r.s.failures = append(r.s.failures, *f)
	return nil
}

// ListByRun returns newest first.
func (r *FailureRepo) ListByRun(_ context.Context, runID string, limit int) ([]*runfailures.Failure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*runfailures.Failure
	for _, f := range r.s.failures {
		if f.RunID == runID {
			f := f
			out = append(out, &f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ variants.PersonaRepository = (*PersonaRepo)(nil)
	_ variants.Repository        = (*VariantRepo)(nil)
	_ runs.Repository            = (*RunRepo)(nil)
	_ runs.ResponseRepository    = (*ResponseRepo)(nil)
	_ aggregate.Repository       = (*AggregateRepo)(nil)
	_ runfailures.Repository     = (*FailureRepo)(nil)
)
