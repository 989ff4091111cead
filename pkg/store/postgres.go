package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anomi-sec/anomi/pkg/model"
)

// PostgresStore persists jobs and attacks in Postgres via a pgx pool.
// Selected when a database URL is configured; the schema is applied on
// startup so a fresh database works out of the box.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id            TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	status            TEXT NOT NULL,
	total_records     INTEGER NOT NULL DEFAULT 0,
	attacks_detected  INTEGER NOT NULL DEFAULT 0,
	normal_traffic    INTEGER NOT NULL DEFAULT 0,
	attack_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS attacks (
	id             BIGSERIAL PRIMARY KEY,
	job_id         TEXT NOT NULL REFERENCES jobs(job_id),
	record_index   INTEGER NOT NULL,
	probability    DOUBLE PRECISION NOT NULL,
	attack_type    TEXT NOT NULL,
	dataset_source TEXT NOT NULL,
	winning_model  TEXT NOT NULL,
	raw_log_data   TEXT NOT NULL,
	detected_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attacks_job ON attacks (job_id, record_index);
CREATE INDEX IF NOT EXISTS idx_attacks_detected ON attacks (detected_at DESC);

CREATE TABLE IF NOT EXISTS agents (
	hostname  TEXT PRIMARY KEY,
	ip        TEXT NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to databaseURL and applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job model.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (job_id, filename, status, created_at) VALUES ($1, $2, $3, $4)`,
		job.JobID, job.Filename, job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinalizeJob(ctx context.Context, jobID string, total, attacks int, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $2, total_records = $3, attacks_detected = $4,
		     normal_traffic = $5, attack_percentage = $6, completed_at = $7
		 WHERE job_id = $1`,
		jobID, model.JobCompleted, total, attacks, total-attacks,
		AttackPercentage(total, attacks), completedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT job_id, filename, status, total_records, attacks_detected,
		        normal_traffic, attack_percentage, created_at,
		        COALESCE(completed_at, 'epoch'::timestamptz)
		 FROM jobs WHERE job_id = $1`, jobID)

	var job model.Job
	err := row.Scan(&job.JobID, &job.Filename, &job.Status, &job.TotalRecords,
		&job.AttacksDetected, &job.NormalTraffic, &job.AttackPercentage,
		&job.CreatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, filename, status, total_records, attacks_detected,
		        normal_traffic, attack_percentage, created_at,
		        COALESCE(completed_at, 'epoch'::timestamptz)
		 FROM jobs ORDER BY created_at DESC, job_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var job model.Job
		if err := rows.Scan(&job.JobID, &job.Filename, &job.Status, &job.TotalRecords,
			&job.AttacksDetected, &job.NormalTraffic, &job.AttackPercentage,
			&job.CreatedAt, &job.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) AddAttack(ctx context.Context, atk model.Attack) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attacks (job_id, record_index, probability, attack_type,
		                      dataset_source, winning_model, raw_log_data, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		atk.JobID, atk.RecordIndex, atk.Probability, atk.AttackType,
		atk.DatasetSource, atk.WinningModel, atk.RawLogData, atk.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attack: %w", err)
	}
	return nil
}

func (s *PostgresStore) AttacksForJob(ctx context.Context, jobID string, limit int) ([]model.Attack, error) {
	q := `SELECT id, job_id, record_index, probability, attack_type,
	             dataset_source, winning_model, raw_log_data, detected_at
	      FROM attacks WHERE job_id = $1 ORDER BY record_index ASC`
	args := []any{jobID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryAttacks(ctx, q, args...)
}

func (s *PostgresStore) RecentAttacks(ctx context.Context, limit int) ([]model.Attack, error) {
	q := `SELECT id, job_id, record_index, probability, attack_type,
	             dataset_source, winning_model, raw_log_data, detected_at
	      FROM attacks ORDER BY detected_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryAttacks(ctx, q, args...)
}

func (s *PostgresStore) queryAttacks(ctx context.Context, q string, args ...any) ([]model.Attack, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attacks: %w", err)
	}
	defer rows.Close()

	var out []model.Attack
	for rows.Next() {
		var atk model.Attack
		if err := rows.Scan(&atk.ID, &atk.JobID, &atk.RecordIndex, &atk.Probability,
			&atk.AttackType, &atk.DatasetSource, &atk.WinningModel,
			&atk.RawLogData, &atk.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attack: %w", err)
		}
		out = append(out, atk)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Totals(ctx context.Context) (Totals, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(total_records), 0),
		        COALESCE(SUM(attacks_detected), 0),
		        COALESCE(SUM(normal_traffic), 0)
		 FROM jobs WHERE status = $1`, model.JobCompleted)

	var t Totals
	if err := row.Scan(&t.Jobs, &t.Records, &t.Attacks, &t.Normal); err != nil {
		return Totals{}, fmt.Errorf("failed to aggregate totals: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpsertAgent(ctx context.Context, agent model.Agent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (hostname, ip, last_seen) VALUES ($1, $2, $3)
		 ON CONFLICT (hostname) DO UPDATE SET ip = $2, last_seen = $3`,
		agent.Hostname, agent.IP, agent.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAgents(ctx context.Context) ([]model.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hostname, ip, last_seen FROM agents ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		var a model.Agent
		if err := rows.Scan(&a.Hostname, &a.IP, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
