package ensemble

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/anomi-sec/anomi/pkg/model"
)

// Classifier runs a record through every member and resolves the
// verdict by majority vote. Members that fail are excluded from the
// vote so a degraded roster still produces verdicts.
type Classifier struct {
	members   []Member
	threshold int // votes required beyond this count flag an attack; 0 means simple majority
}

// NewClassifier builds a classifier over members. threshold > 0
// switches from simple majority to an explicit vote floor: a record is
// flagged only when attack votes exceed threshold.
func NewClassifier(members []Member, threshold int) (*Classifier, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("classifier requires at least one member")
	}
	return &Classifier{members: members, threshold: threshold}, nil
}

// MemberNames returns the roster in configuration order.
func (c *Classifier) MemberNames() []string {
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.Name()
	}
	return names
}

type memberScore struct {
	name  string
	score Score
	err   error
}

// Classify scores rec with all members concurrently and resolves the
// majority verdict. profile selects the attack-type vocabulary used
// when the record is flagged (e.g. "ids-log", "sensor").
//
// Resolution rules:
//   - a tie is not an attack
//   - confidence is the highest score among members voting with the
//     majority
//   - the winning model is the first member, in configuration order,
//     holding that highest score
func (c *Classifier) Classify(ctx context.Context, rec model.Record, profile string) (model.Verdict, error) {
	results := make([]memberScore, len(c.members))

	var wg sync.WaitGroup
	for i, m := range c.members {
		wg.Add(1)
		go func(i int, m Member) {
			defer wg.Done()
			score, err := m.Score(ctx, rec)
			results[i] = memberScore{name: m.Name(), score: score, err: err}
		}(i, m)
	}
	wg.Wait()

	scored := results[:0:0]
	for _, r := range results {
		if r.err != nil {
			log.Printf("[WARN] Member %s failed, excluded from vote: %v", r.name, r.err)
			continue
		}
		scored = append(scored, r)
	}
	if len(scored) == 0 {
		return model.Verdict{}, fmt.Errorf("all %d members failed to score record", len(c.members))
	}

	attackVotes := 0
	for _, r := range scored {
		if r.score.Label == LabelAttack {
			attackVotes++
		}
	}

	var flagged bool
	if c.threshold > 0 {
		flagged = attackVotes > c.threshold
	} else {
		flagged = attackVotes*2 > len(scored)
	}

	majority := LabelNormal
	if flagged {
		majority = LabelAttack
	}

	var winner memberScore
	found := false
	for _, r := range scored {
		if r.score.Label != majority {
			continue
		}
		if !found || r.score.Confidence > winner.score.Confidence {
			winner = r
			found = true
		}
	}
	if !found {
		// Possible only when threshold voting flags without any attack
		// votes, which the threshold check above rules out; and the
		// unanimous-attack case under threshold voting where nobody
		// voted normal yet flagged is false.
		winner = scored[0]
		for _, r := range scored[1:] {
			if r.score.Confidence > winner.score.Confidence {
				winner = r
			}
		}
	}

	verdict := model.Verdict{
		IsAttack:     flagged,
		Confidence:   clamp01(winner.score.Confidence),
		WinningModel: winner.name,
		Reason:       winner.score.Reason,
	}
	if flagged {
		verdict.Decision = ClassifyAttack(rec.Content(), profile)
	} else {
		verdict.Decision = "Normal Traffic"
	}
	return verdict, nil
}
