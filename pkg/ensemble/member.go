// Package ensemble implements the multi-model anomaly classifier: a
// council of member models that each score a log record, joined by a
// majority vote with conservative tie-breaking.
package ensemble

import (
	"context"

	"github.com/anomi-sec/anomi/pkg/model"
)

// Label is a member's per-record classification.
type Label string

const (
	LabelAttack Label = "attack"
	LabelNormal Label = "normal"
)

// Score is one member's opinion about a record.
type Score struct {
	Label      Label
	Confidence float64 // 0.0 - 1.0
	Reason     string  // optional human explanation
}

// Member is one scoring model participating in the vote. Members must
// be safe for concurrent use; a failing member is excluded from the
// vote for that record, never aborting classification.
type Member interface {
	Name() string
	Score(ctx context.Context, rec model.Record) (Score, error)
}
