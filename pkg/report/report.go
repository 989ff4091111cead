// Package report derives read-only views over the job store and live
// ring: dashboard totals, recent alerts, and tabular exports. Each
// call reflects store state at call time.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/anomi-sec/anomi/pkg/live"
	"github.com/anomi-sec/anomi/pkg/model"
	"github.com/anomi-sec/anomi/pkg/registry"
	"github.com/anomi-sec/anomi/pkg/store"
)

// recentAlertCount caps the alert strip on the dashboard overview.
const recentAlertCount = 10

// Aggregator assembles cross-job statistics.
type Aggregator struct {
	store    store.Store
	live     *live.Broadcaster
	registry *registry.Registry
	window   time.Duration // active-agent window for the overview
}

func NewAggregator(st store.Store, bc *live.Broadcaster, reg *registry.Registry, activeWindow time.Duration) *Aggregator {
	return &Aggregator{store: st, live: bc, registry: reg, window: activeWindow}
}

// Summary is the dashboard overview payload.
type Summary struct {
	store.Totals
	RecentAlerts []model.Attack `json:"recent_alerts"`
	ActiveAgents int            `json:"active_agents"`
}

// Totals sums job counts and attaches the newest attacks.
func (a *Aggregator) Totals(ctx context.Context) (Summary, error) {
	totals, err := a.store.Totals(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to aggregate totals: %w", err)
	}
	recent, err := a.store.RecentAttacks(ctx, recentAlertCount)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load recent attacks: %w", err)
	}
	if recent == nil {
		recent = []model.Attack{}
	}
	return Summary{
		Totals:       totals,
		RecentAlerts: recent,
		ActiveAgents: a.registry.CountActive(a.window),
	}, nil
}

// ExportAttacks returns every attack across all jobs, newest first.
func (a *Aggregator) ExportAttacks(ctx context.Context) ([]model.Attack, error) {
	return a.store.RecentAttacks(ctx, 0)
}

// WriteAttacksCSV streams the attack table as CSV.
func (a *Aggregator) WriteAttacksCSV(ctx context.Context, w io.Writer) error {
	attacks, err := a.ExportAttacks(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "job_id", "record_index", "attack_type", "probability", "dataset_source", "winning_model", "detected_at", "raw_log_data"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, atk := range attacks {
		row := []string{
			strconv.Itoa(atk.ID),
			atk.JobID,
			strconv.Itoa(atk.RecordIndex),
			atk.AttackType,
			strconv.FormatFloat(atk.Probability, 'f', 4, 64),
			atk.DatasetSource,
			atk.WinningModel,
			atk.DetectedAt.UTC().Format(time.RFC3339),
			atk.RawLogData,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLiveCSV streams the current live ring as CSV, newest first.
func (a *Aggregator) WriteLiveCSV(w io.Writer) error {
	events := a.live.Snapshot(0)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "timestamp", "source", "content", "is_attack", "attack_type", "confidence", "winning_model"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, ev := range events {
		row := []string{
			ev.ID,
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.Source,
			ev.Content,
			strconv.FormatBool(ev.Analysis.IsAttack),
			ev.Analysis.Decision,
			strconv.FormatFloat(ev.Analysis.Confidence, 'f', 4, 64),
			ev.Analysis.WinningModel,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
