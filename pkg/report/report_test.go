package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/anomi-sec/anomi/pkg/live"
	"github.com/anomi-sec/anomi/pkg/model"
	"github.com/anomi-sec/anomi/pkg/registry"
	"github.com/anomi-sec/anomi/pkg/store"
)

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.CreateJob(ctx, model.Job{JobID: "job-1", CreatedAt: base})
	s.FinalizeJob(ctx, "job-1", 100, 1, base.Add(time.Minute))
	s.AddAttack(ctx, model.Attack{JobID: "job-1", RecordIndex: 7, AttackType: "Denial of Service", DetectedAt: base.Add(30 * time.Second)})

	s.CreateJob(ctx, model.Job{JobID: "job-2", CreatedAt: base.Add(time.Hour)})
	s.FinalizeJob(ctx, "job-2", 50, 3, base.Add(time.Hour+time.Minute))
	for i := 0; i < 3; i++ {
		s.AddAttack(ctx, model.Attack{
			JobID:       "job-2",
			RecordIndex: i,
			AttackType:  "Brute Force Attack",
			DetectedAt:  base.Add(time.Hour + time.Duration(i)*time.Second),
		})
	}
	return s
}

func TestAggregator_Totals(t *testing.T) {
	s := seedStore(t)
	reg := registry.New()
	reg.RecordHeartbeat("host-a", "10.0.0.1")
	a := NewAggregator(s, live.New(500, 16), reg, 5*time.Minute)

	sum, err := a.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if sum.Jobs != 2 || sum.Records != 150 || sum.Attacks != 4 {
		t.Errorf("Totals = %+v, want 2 jobs / 150 records / 4 attacks", sum.Totals)
	}
	if len(sum.RecentAlerts) != 4 {
		t.Fatalf("RecentAlerts = %d, want 4", len(sum.RecentAlerts))
	}
	// Newest first across jobs.
	if sum.RecentAlerts[0].JobID != "job-2" || sum.RecentAlerts[0].RecordIndex != 2 {
		t.Errorf("Newest alert = %+v", sum.RecentAlerts[0])
	}
	if sum.RecentAlerts[3].JobID != "job-1" {
		t.Errorf("Oldest alert = %+v", sum.RecentAlerts[3])
	}
	if sum.ActiveAgents != 1 {
		t.Errorf("ActiveAgents = %d, want 1", sum.ActiveAgents)
	}
}

func TestAggregator_ExportOrderedAcrossJobs(t *testing.T) {
	s := seedStore(t)
	a := NewAggregator(s, live.New(500, 16), registry.New(), 5*time.Minute)

	attacks, err := a.ExportAttacks(context.Background())
	if err != nil {
		t.Fatalf("ExportAttacks failed: %v", err)
	}
	if len(attacks) != 4 {
		t.Fatalf("Got %d rows, want 4", len(attacks))
	}
	for i := 1; i < len(attacks); i++ {
		if attacks[i].DetectedAt.After(attacks[i-1].DetectedAt) {
			t.Errorf("Rows not ordered by detection time descending at %d", i)
		}
	}
}

func TestAggregator_WriteAttacksCSV(t *testing.T) {
	s := seedStore(t)
	a := NewAggregator(s, live.New(500, 16), registry.New(), 5*time.Minute)

	var buf bytes.Buffer
	if err := a.WriteAttacksCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteAttacksCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Export is not valid CSV: %v", err)
	}
	if len(rows) != 5 { // header + 4 attacks
		t.Fatalf("Got %d rows, want 5", len(rows))
	}
	if rows[0][3] != "attack_type" {
		t.Errorf("Header = %v", rows[0])
	}
	if rows[1][3] != "Brute Force Attack" {
		t.Errorf("First data row attack_type = %q", rows[1][3])
	}
}

func TestAggregator_WriteLiveCSV(t *testing.T) {
	bc := live.New(500, 16)
	bc.Publish(model.LiveEvent{
		ID:        "ev-1",
		Timestamp: time.Now().UTC(),
		Source:    "host-a",
		Content:   "flood detected",
		Analysis:  model.Verdict{IsAttack: true, Decision: "Denial of Service", Confidence: 0.92, WinningModel: "signature"},
	})
	a := NewAggregator(store.NewMemoryStore(), bc, registry.New(), 5*time.Minute)

	var buf bytes.Buffer
	if err := a.WriteLiveCSV(&buf); err != nil {
		t.Fatalf("WriteLiveCSV failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "flood detected") || !strings.Contains(out, "Denial of Service") {
		t.Errorf("Export missing event data:\n%s", out)
	}
}
