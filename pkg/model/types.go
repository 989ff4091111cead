// Package model defines the core data types shared by the ingestion,
// classification, storage and streaming layers.
package model

import "time"

// Record is one normalized log record: an opaque field bag plus the raw
// text form. The minimal required field is the log content string.
// Records are immutable once classified.
type Record struct {
	Fields map[string]string `json:"fields"`
	Raw    string            `json:"raw"`
}

// NewTextRecord wraps a freeform log line in a one-field record.
// Both "message" and "detail" carry the line so that members keyed on
// either field see the content.
func NewTextRecord(line string) Record {
	return Record{
		Fields: map[string]string{"message": line, "detail": line},
		Raw:    line,
	}
}

// Content returns the best-effort text content of the record: the
// "message" field, then "detail", then the raw form.
func (r Record) Content() string {
	if v, ok := r.Fields["message"]; ok && v != "" {
		return v
	}
	if v, ok := r.Fields["detail"]; ok && v != "" {
		return v
	}
	return r.Raw
}

// Verdict is the ensemble's decision for one record. Produced exactly
// once per record and never mutated afterward.
type Verdict struct {
	IsAttack     bool    `json:"is_attack"`
	Confidence   float64 `json:"confidence"`
	WinningModel string  `json:"winning_model"`
	Decision     string  `json:"decision"`
	Reason       string  `json:"reason,omitempty"`
}

// Agent identifies a remote log forwarder. Status is derived at read
// time from LastSeen age; agents are never deleted, only reported stale.
type Agent struct {
	Hostname string    `json:"hostname"`
	IP       string    `json:"ip"`
	LastSeen time.Time `json:"last_seen"`
	Status   string    `json:"status"`
}

// Agent status values.
const (
	AgentOnline = "online"
	AgentStale  = "stale"
)

// Job is one batch-upload analysis unit with aggregate counts.
// Mutated only by the classification pass that produced its counts.
type Job struct {
	JobID            string    `json:"job_id"`
	Filename         string    `json:"filename"`
	Status           string    `json:"status"`
	TotalRecords     int       `json:"total_records"`
	AttacksDetected  int       `json:"attacks_detected"`
	NormalTraffic    int       `json:"normal_traffic"`
	AttackPercentage float64   `json:"attack_percentage"`
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Job status values.
const (
	JobPending   = "pending"
	JobCompleted = "completed"
)

// Attack is a per-record finding belonging to a job, created only for
// records whose verdict flagged an attack.
type Attack struct {
	ID            int       `json:"id"`
	JobID         string    `json:"job_id"`
	RecordIndex   int       `json:"record_index"`
	Probability   float64   `json:"probability"`
	AttackType    string    `json:"attack_type"`
	DatasetSource string    `json:"dataset_source"`
	WinningModel  string    `json:"winning_model"`
	RawLogData    string    `json:"raw_log_data"`
	DetectedAt    time.Time `json:"detected_at"`
}

// LiveEvent is a classified record pushed to connected dashboard
// sessions. Held only in the in-memory live ring, never persisted.
type LiveEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Analysis  Verdict   `json:"analysis"`
}
