package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anomi-sec/anomi/pkg/model"
)

func TestMemoryStore_JobLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created := time.Now().UTC()

	err := s.CreateJob(ctx, model.Job{JobID: "job-1", Filename: "fw.csv", Status: model.JobPending, CreatedAt: created})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	job, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != model.JobPending {
		t.Errorf("New job status = %q, want pending", job.Status)
	}

	done := created.Add(time.Second)
	if err := s.FinalizeJob(ctx, "job-1", 200, 30, done); err != nil {
		t.Fatalf("FinalizeJob failed: %v", err)
	}

	job, _ = s.GetJob(ctx, "job-1")
	if job.Status != model.JobCompleted {
		t.Errorf("Finalized job status = %q, want completed", job.Status)
	}
	if job.NormalTraffic != 170 {
		t.Errorf("NormalTraffic = %d, want 170", job.NormalTraffic)
	}
	if job.AttackPercentage != 15.0 {
		t.Errorf("AttackPercentage = %v, want 15.0", job.AttackPercentage)
	}
	if !job.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", job.CompletedAt, done)
	}
}

func TestMemoryStore_GetJobNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetJob(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob on unknown id = %v, want ErrNotFound", err)
	}
	if err := s.FinalizeJob(context.Background(), "nope", 1, 0, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinalizeJob on unknown id = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListJobsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		s.CreateJob(ctx, model.Job{JobID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	want := []string{"job-c", "job-b", "job-a"}
	for i, job := range jobs {
		if job.JobID != want[i] {
			t.Errorf("jobs[%d] = %q, want %q", i, job.JobID, want[i])
		}
	}
}

func TestMemoryStore_AttacksForJob(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// Inserted out of record order on purpose.
	for _, idx := range []int{5, 1, 3} {
		s.AddAttack(ctx, model.Attack{JobID: "job-1", RecordIndex: idx, AttackType: "Denial of Service", DetectedAt: now})
	}
	s.AddAttack(ctx, model.Attack{JobID: "job-2", RecordIndex: 0, DetectedAt: now})

	attacks, err := s.AttacksForJob(ctx, "job-1", 0)
	if err != nil {
		t.Fatalf("AttacksForJob failed: %v", err)
	}
	if len(attacks) != 3 {
		t.Fatalf("Got %d attacks, want 3", len(attacks))
	}
	for i, want := range []int{1, 3, 5} {
		if attacks[i].RecordIndex != want {
			t.Errorf("attacks[%d].RecordIndex = %d, want %d", i, attacks[i].RecordIndex, want)
		}
	}

	limited, _ := s.AttacksForJob(ctx, "job-1", 2)
	if len(limited) != 2 {
		t.Errorf("Limit 2 returned %d attacks", len(limited))
	}
}

func TestMemoryStore_RecentAttacks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 15; i++ {
		s.AddAttack(ctx, model.Attack{JobID: "job-1", RecordIndex: i, DetectedAt: base.Add(time.Duration(i) * time.Second)})
	}

	recent, err := s.RecentAttacks(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAttacks failed: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("Got %d attacks, want 10", len(recent))
	}
	if recent[0].RecordIndex != 14 {
		t.Errorf("Newest attack first, got index %d", recent[0].RecordIndex)
	}
}

func TestMemoryStore_Totals(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	s.CreateJob(ctx, model.Job{JobID: "job-1", CreatedAt: now})
	s.FinalizeJob(ctx, "job-1", 100, 20, now)
	s.CreateJob(ctx, model.Job{JobID: "job-2", CreatedAt: now})
	s.FinalizeJob(ctx, "job-2", 50, 5, now)
	// Pending jobs do not count.
	s.CreateJob(ctx, model.Job{JobID: "job-3", Status: model.JobPending, CreatedAt: now})

	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.Jobs != 2 {
		t.Errorf("Jobs = %d, want 2", totals.Jobs)
	}
	if totals.Records != 150 || totals.Attacks != 25 || totals.Normal != 125 {
		t.Errorf("Totals = %+v, want 150/25/125", totals)
	}
}

func TestMemoryStore_AgentUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	s.UpsertAgent(ctx, model.Agent{Hostname: "edge-02", IP: "10.0.0.6", LastSeen: now})
	s.UpsertAgent(ctx, model.Agent{Hostname: "edge-01", IP: "10.0.0.5", LastSeen: now})
	// Same host again with a new address replaces, never duplicates.
	s.UpsertAgent(ctx, model.Agent{Hostname: "edge-01", IP: "10.0.0.9", LastSeen: now.Add(time.Minute)})

	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Got %d agents, want 2", len(agents))
	}
	if agents[0].Hostname != "edge-01" || agents[1].Hostname != "edge-02" {
		t.Errorf("Agents not sorted by hostname: %+v", agents)
	}
	if agents[0].IP != "10.0.0.9" {
		t.Errorf("Upsert must replace the address, got %q", agents[0].IP)
	}
}

func TestAttackPercentage(t *testing.T) {
	cases := []struct {
		total, attacks int
		want           float64
	}{
		{0, 0, 0},
		{100, 0, 0},
		{100, 33, 33},
		{3, 1, 33.33},
		{200, 30, 15},
	}
	for _, c := range cases {
		if got := AttackPercentage(c.total, c.attacks); got != c.want {
			t.Errorf("AttackPercentage(%d, %d) = %v, want %v", c.total, c.attacks, got, c.want)
		}
	}
}
