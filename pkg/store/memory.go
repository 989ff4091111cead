package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anomi-sec/anomi/pkg/model"
)

// MemoryStore keeps jobs and attacks in process memory. It is the
// default backend and the one the tests run against.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	attacks []model.Attack
	agents  map[string]model.Agent
	nextID  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]model.Job),
		agents: make(map[string]model.Agent),
		nextID: 1,
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return nil
}

func (s *MemoryStore) FinalizeJob(_ context.Context, jobID string, total, attacks int, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = model.JobCompleted
	job.TotalRecords = total
	job.AttacksDetected = attacks
	job.NormalTraffic = total - attacks
	job.AttackPercentage = AttackPercentage(total, attacks)
	job.CompletedAt = completedAt
	s.jobs[jobID] = job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) ListJobs(_ context.Context) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID > out[j].JobID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AddAttack(_ context.Context, atk model.Attack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	atk.ID = s.nextID
	s.nextID++
	s.attacks = append(s.attacks, atk)
	return nil
}

func (s *MemoryStore) AttacksForJob(_ context.Context, jobID string, limit int) ([]model.Attack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Attack
	for _, atk := range s.attacks {
		if atk.JobID == jobID {
			out = append(out, atk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordIndex < out[j].RecordIndex })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecentAttacks(_ context.Context, limit int) ([]model.Attack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Attack, len(s.attacks))
	copy(out, s.attacks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Totals(_ context.Context) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Totals
	for _, job := range s.jobs {
		if job.Status != model.JobCompleted {
			continue
		}
		t.Jobs++
		t.Records += job.TotalRecords
		t.Attacks += job.AttacksDetected
		t.Normal += job.NormalTraffic
	}
	return t, nil
}

func (s *MemoryStore) UpsertAgent(_ context.Context, agent model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.Hostname] = agent
	return nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}

func (s *MemoryStore) Close() {}
