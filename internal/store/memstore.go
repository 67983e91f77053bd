package store

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore implements Store in memory. Used by tests and by callers that do
// not want a ledger on disk.
type MemStore struct {
	mu       sync.Mutex
	runs     map[string]*Run
	order    []string
	outcomes map[string][]*CaseOutcome
	digests  map[string]map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:     make(map[string]*Run),
		outcomes: make(map[string][]*CaseOutcome),
		digests:  make(map[string]map[string]string),
	}
}

func (s *MemStore) CreateRun(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("create run: run %s already exists", r.ID)
	}
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	cp := *r
	s.runs[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemStore) FinishRun(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.runs[r.ID]
	if !ok {
		return fmt.Errorf("finish run: run %s not found", r.ID)
	}
	if r.EndedAt == "" {
		r.EndedAt = nowUTC()
	}
	cur.Status, cur.Cases, cur.Failed = r.Status, r.Cases, r.Failed
	cur.Archive, cur.Error, cur.EndedAt = r.Archive, r.Error, r.EndedAt
	return nil
}

func (s *MemStore) GetRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make(map[string]int, len(s.order))
	for i, id := range s.order {
		idx[id] = i
	}
	out := make([]*Run, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.runs[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return idx[out[i].ID] > idx[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) AddOutcome(o *CaseOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[o.RunID]; !ok {
		return fmt.Errorf("add outcome %s/%s: run not found", o.RunID, o.Case)
	}
	for _, prev := range s.outcomes[o.RunID] {
		if prev.Seq == o.Seq || prev.Case == o.Case {
			return fmt.Errorf("add outcome %s/%s: duplicate", o.RunID, o.Case)
		}
	}
	cp := *o
	s.outcomes[o.RunID] = append(s.outcomes[o.RunID], &cp)
	return nil
}

func (s *MemStore) ListOutcomes(runID string) ([]*CaseOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CaseOutcome
	for _, o := range s.outcomes[runID] {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemStore) SaveArchiveDigest(runID string, sums map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("save digest: run %s not found", runID)
	}
	m := make(map[string]string, len(sums))
	for k, v := range sums {
		m[k] = v
	}
	s.digests[runID] = m
	return nil
}

func (s *MemStore) ArchiveDigest(runID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]string, len(s.digests[runID]))
	for k, v := range s.digests[runID] {
		m[k] = v
	}
	return m, nil
}

func (s *MemStore) Close() error { return nil }
