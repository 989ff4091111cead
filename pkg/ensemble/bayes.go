package ensemble

import (
	"context"
	"math"
	"strings"

	"github.com/anomi-sec/anomi/pkg/model"
)

// BayesMember is a naive Bayes token model trained on the labelled seed
// corpus at construction time. A lightweight pure-Go member that still
// generalizes past exact keyword matches.
type BayesMember struct {
	attackCounts map[string]float64
	normalCounts map[string]float64
	attackTotal  float64
	normalTotal  float64
	vocab        int
}

// NewBayesMember trains the token model from the seed corpus.
func NewBayesMember(corpus *SeedCorpus) *BayesMember {
	if corpus == nil {
		corpus = defaultSeedCorpus()
	}
	m := &BayesMember{
		attackCounts: make(map[string]float64),
		normalCounts: make(map[string]float64),
	}
	for _, line := range corpus.AttackLines {
		for _, tok := range tokenize(line) {
			m.attackCounts[tok]++
			m.attackTotal++
		}
	}
	for _, line := range corpus.NormalLines {
		for _, tok := range tokenize(line) {
			m.normalCounts[tok]++
			m.normalTotal++
		}
	}
	seen := make(map[string]struct{}, len(m.attackCounts)+len(m.normalCounts))
	for tok := range m.attackCounts {
		seen[tok] = struct{}{}
	}
	for tok := range m.normalCounts {
		seen[tok] = struct{}{}
	}
	m.vocab = len(seen)
	if m.vocab == 0 {
		m.vocab = 1
	}
	return m
}

func (m *BayesMember) Name() string { return "bayes" }

func (m *BayesMember) Score(_ context.Context, rec model.Record) (Score, error) {
	tokens := tokenize(rec.Content())
	if len(tokens) == 0 {
		return Score{Label: LabelNormal, Confidence: 0.5}, nil
	}

	// Log-likelihood with Laplace smoothing; equal class priors.
	v := float64(m.vocab)
	logAttack, logNormal := 0.0, 0.0
	for _, tok := range tokens {
		logAttack += math.Log((m.attackCounts[tok] + 1) / (m.attackTotal + v))
		logNormal += math.Log((m.normalCounts[tok] + 1) / (m.normalTotal + v))
	}

	// P(attack | tokens) via the log-sum trick to avoid underflow.
	pAttack := 1.0 / (1.0 + math.Exp(logNormal-logAttack))
	if pAttack > 0.5 {
		return Score{
			Label:      LabelAttack,
			Confidence: clamp01(pAttack),
			Reason:     "Token model: content resembles known attack traffic",
		}, nil
	}
	return Score{Label: LabelNormal, Confidence: clamp01(1 - pAttack)}, nil
}

func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, text)
	var tokens []string
	for _, f := range strings.Fields(cleaned) {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
