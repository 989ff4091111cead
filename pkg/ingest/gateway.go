package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anomi-sec/anomi/pkg/audit"
	"github.com/anomi-sec/anomi/pkg/ensemble"
	"github.com/anomi-sec/anomi/pkg/httputil"
	"github.com/anomi-sec/anomi/pkg/live"
	"github.com/anomi-sec/anomi/pkg/model"
	"github.com/anomi-sec/anomi/pkg/registry"
	"github.com/anomi-sec/anomi/pkg/store"
)

const (
	// Detailed per-record results returned for a batch are capped so
	// huge uploads keep a bounded response body.
	maxDetailedResults = 100

	// Raw record text persisted with an attack finding is truncated.
	maxRawLogChars = 1000
)

// Gateway is the single normalization and classification path shared
// by agent submissions and batch uploads.
type Gateway struct {
	classifier *ensemble.Classifier
	store      store.Store
	registry   *registry.Registry
	live       *live.Broadcaster
	audit      *audit.Logger
	workers    *httputil.Semaphore
}

// NewGateway wires the gateway. workers caps concurrent record
// classification within one batch pass.
func NewGateway(classifier *ensemble.Classifier, st store.Store, reg *registry.Registry, bc *live.Broadcaster, auditLog *audit.Logger, workers int) *Gateway {
	if workers <= 0 {
		workers = 8
	}
	return &Gateway{
		classifier: classifier,
		store:      st,
		registry:   reg,
		live:       bc,
		audit:      auditLog,
		workers:    httputil.NewSemaphore(workers),
	}
}

// IngestSingle classifies one agent-submitted line, refreshes the
// agent's heartbeat and pushes the result to the live stream. It never
// touches the job store: the live path stays up when persistence is
// down.
func (g *Gateway) IngestSingle(ctx context.Context, line, source, ip string) (model.LiveEvent, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.LiveEvent{}, &ValidationError{Msg: "log line is empty"}
	}

	rec := model.NewTextRecord(line)
	verdict, err := g.classifier.Classify(ctx, rec, ProfileLive)
	if err != nil {
		return model.LiveEvent{}, fmt.Errorf("classification failed: %w", err)
	}

	g.registry.RecordHeartbeat(source, ip)

	event := model.LiveEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Content:   line,
		Analysis:  verdict,
	}
	g.live.Publish(event)

	if verdict.IsAttack {
		if err := g.audit.Record(audit.Event{
			Timestamp:  event.Timestamp,
			Source:     source,
			AttackType: verdict.Decision,
			Confidence: verdict.Confidence,
			Model:      verdict.WinningModel,
			Content:    truncate(line, maxRawLogChars),
		}); err != nil {
			log.Printf("[WARN] Audit write failed: %v", err)
		}
	}
	return event, nil
}

// RecordResult is one record's verdict within a batch response.
type RecordResult struct {
	Index   int           `json:"index"`
	Content string        `json:"content"`
	Verdict model.Verdict `json:"verdict"`
}

// BatchResult summarizes one completed batch pass.
type BatchResult struct {
	Job      model.Job      `json:"job"`
	Profile  string         `json:"dataset_source"`
	Detailed []RecordResult `json:"detailed_logs"`
}

// IngestBatch parses an uploaded file, classifies every record in one
// bounded-concurrency pass, persists the attack findings and returns
// the finalized job summary. Counts are only written when the whole
// pass completes.
func (g *Gateway) IngestBatch(ctx context.Context, filename string, data []byte) (BatchResult, error) {
	batch, err := ParseBatch(filename, data)
	if err != nil {
		return BatchResult{}, err
	}

	job := model.Job{
		JobID:     uuid.NewString(),
		Filename:  filename,
		Status:    model.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.CreateJob(ctx, job); err != nil {
		return BatchResult{}, fmt.Errorf("failed to create job: %w", err)
	}

	verdicts := make([]model.Verdict, len(batch.Records))
	errs := make([]error, len(batch.Records))

	var wg sync.WaitGroup
	for i, rec := range batch.Records {
		if err := g.workers.Acquire(ctx); err != nil {
			return BatchResult{}, fmt.Errorf("batch pass cancelled: %w", err)
		}
		wg.Add(1)
		go func(i int, rec model.Record) {
			defer wg.Done()
			defer g.workers.Release()
			verdicts[i], errs[i] = g.classifier.Classify(ctx, rec, batch.Profile)
		}(i, rec)
	}
	wg.Wait()

	now := time.Now().UTC()
	attacks := 0
	for i, rec := range batch.Records {
		if errs[i] != nil {
			// Unscorable records pass as normal rather than failing
			// the whole batch.
			log.Printf("[WARN] Record %d unscorable, counted normal: %v", i, errs[i])
			verdicts[i] = model.Verdict{Decision: "Normal Traffic"}
			continue
		}
		if !verdicts[i].IsAttack {
			continue
		}
		attacks++
		atk := model.Attack{
			JobID:         job.JobID,
			RecordIndex:   i,
			Probability:   verdicts[i].Confidence,
			AttackType:    verdicts[i].Decision,
			DatasetSource: batch.Profile,
			WinningModel:  verdicts[i].WinningModel,
			RawLogData:    truncate(serializeRecord(rec), maxRawLogChars),
			DetectedAt:    now,
		}
		if err := g.store.AddAttack(ctx, atk); err != nil {
			return BatchResult{}, fmt.Errorf("failed to store attack: %w", err)
		}
	}

	if err := g.store.FinalizeJob(ctx, job.JobID, len(batch.Records), attacks, now); err != nil {
		return BatchResult{}, fmt.Errorf("failed to finalize job: %w", err)
	}
	finalized, err := g.store.GetJob(ctx, job.JobID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load job: %w", err)
	}

	detailed := make([]RecordResult, 0, min(len(batch.Records), maxDetailedResults))
	for i, rec := range batch.Records {
		if i >= maxDetailedResults {
			break
		}
		detailed = append(detailed, RecordResult{
			Index:   i,
			Content: truncate(rec.Content(), maxRawLogChars),
			Verdict: verdicts[i],
		})
	}

	return BatchResult{Job: finalized, Profile: batch.Profile, Detailed: detailed}, nil
}

// serializeRecord renders a record for the attack table: the field map
// as JSON when structured, else the raw line.
func serializeRecord(rec model.Record) string {
	if len(rec.Fields) > 2 {
		if data, err := json.Marshal(rec.Fields); err == nil {
			return string(data)
		}
	}
	return rec.Raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
