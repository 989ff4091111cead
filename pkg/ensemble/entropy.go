package ensemble

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/anomi-sec/anomi/pkg/model"
)

// EntropyMember scores records statistically: Shannon entropy of the
// text (obfuscated or encrypted payloads read as near-random) plus
// simple magnitude checks on numeric fields. Like the signature member
// it is pure and never fails.
type EntropyMember struct {
	// Entropy above this (bits per character) flags the record.
	threshold float64
}

func NewEntropyMember() *EntropyMember {
	return &EntropyMember{threshold: 5.8}
}

func (m *EntropyMember) Name() string { return "entropy" }

func (m *EntropyMember) Score(_ context.Context, rec model.Record) (Score, error) {
	text := rec.Content()

	if len(text) > 50 {
		if e := ShannonEntropy(text); e > m.threshold {
			return Score{
				Label:      LabelAttack,
				Confidence: clamp01(0.80 + (e-m.threshold)*0.1),
				Reason:     "Statistical anomaly: high-entropy payload",
			}, nil
		}
	}

	// Numeric outliers: any field that parses as a number wildly out of
	// the normal operating range for metered values.
	for k, v := range rec.Fields {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		if math.Abs(f) >= 1e6 || (strings.Contains(k, "kw") && math.Abs(f) > 1000) {
			return Score{
				Label:      LabelAttack,
				Confidence: 0.78,
				Reason:     "Statistical anomaly: numeric field out of range",
			}, nil
		}
	}

	// Extremely long single-token lines are another obfuscation tell.
	if tok := longestToken(text); tok > 120 {
		return Score{
			Label:      LabelAttack,
			Confidence: 0.70,
			Reason:     "Statistical anomaly: oversized token",
		}, nil
	}

	return Score{Label: LabelNormal, Confidence: 0.65}, nil
}

// ShannonEntropy returns the entropy of the text in bits per character.
// Values above ~5.5-6.0 usually indicate randomized, encrypted, or
// compressed data.
func ShannonEntropy(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	counts := make(map[rune]float64)
	for _, r := range text {
		counts[r]++
	}
	total := float64(len(text))
	entropy := 0.0
	for _, count := range counts {
		p := count / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func longestToken(text string) int {
	longest := 0
	for _, f := range strings.Fields(text) {
		if len(f) > longest {
			longest = len(f)
		}
	}
	return longest
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
