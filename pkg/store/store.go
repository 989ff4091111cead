// Package store persists jobs and attack findings. Two backends share
// one interface: a process-local map store used by default and in
// tests, and a Postgres store selected when a database URL is
// configured.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/anomi-sec/anomi/pkg/model"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("store: not found")

// Totals aggregates counts across every completed job.
type Totals struct {
	Jobs    int `json:"total_jobs"`
	Records int `json:"total_logs"`
	Attacks int `json:"total_attacks"`
	Normal  int `json:"total_normal"`
}

// Store is the persistence boundary for jobs and attacks. All methods
// are safe for concurrent use.
type Store interface {
	// CreateJob registers a pending job before classification starts.
	CreateJob(ctx context.Context, job model.Job) error

	// FinalizeJob stores the aggregate counts and marks the job
	// completed. The attack percentage is derived here so every
	// backend computes it the same way.
	FinalizeJob(ctx context.Context, jobID string, total, attacks int, completedAt time.Time) error

	// GetJob returns one job or ErrNotFound.
	GetJob(ctx context.Context, jobID string) (model.Job, error)

	// ListJobs returns all jobs, newest first.
	ListJobs(ctx context.Context) ([]model.Job, error)

	// AddAttack appends a finding to its job.
	AddAttack(ctx context.Context, atk model.Attack) error

	// AttacksForJob returns a job's findings ordered by record index.
	// limit <= 0 means no limit.
	AttacksForJob(ctx context.Context, jobID string, limit int) ([]model.Attack, error)

	// RecentAttacks returns the latest findings across all jobs,
	// newest first.
	RecentAttacks(ctx context.Context, limit int) ([]model.Attack, error)

	// Totals aggregates counts across all jobs.
	Totals(ctx context.Context) (Totals, error)

	// UpsertAgent records an agent sighting so the registry survives
	// restarts.
	UpsertAgent(ctx context.Context, agent model.Agent) error

	// ListAgents returns every persisted agent.
	ListAgents(ctx context.Context) ([]model.Agent, error)

	// Close releases backend resources.
	Close()
}

// AttackPercentage computes the flagged share of a batch, rounded to
// two decimals the way the dashboard displays it.
func AttackPercentage(total, attacks int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(attacks) / float64(total) * 100
	return float64(int(pct*100+0.5)) / 100
}
