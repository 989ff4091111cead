package ensemble

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anomi-sec/anomi/pkg/model"
)

// Pre-compiled patterns for structural attack shapes that plain keyword
// matching misses.
var (
	reSQLMeta   = regexp.MustCompile(`(?i)('\s*or\s+'?1'?\s*=\s*'?1|union\s+select|;\s*drop\s+table|--\s*$)`)
	rePathTrav  = regexp.MustCompile(`\.\./\.\./|\.\.\\\.\.\\`)
	reShellMeta = regexp.MustCompile(`(?i)(;\s*(rm|curl|wget|nc|bash|sh)\s|\|\s*(sh|bash)\b|\$\(.*\))`)
	reHexBlob   = regexp.MustCompile(`(0x[0-9a-fA-F]{16,})`)
)

// SignatureMember is the always-available member: whitelist first, then
// attack keywords and structural patterns. It is a pure function of the
// record text and never returns an error.
type SignatureMember struct {
	safe     []string
	keywords []string
}

// NewSignatureMember builds the signature member from the seed corpus.
func NewSignatureMember(corpus *SeedCorpus) *SignatureMember {
	if corpus == nil {
		corpus = defaultSeedCorpus()
	}
	safe := make([]string, len(corpus.SafePatterns))
	for i, p := range corpus.SafePatterns {
		safe[i] = strings.ToLower(p)
	}
	keywords := make([]string, len(corpus.AttackKeywords))
	for i, k := range corpus.AttackKeywords {
		keywords[i] = strings.ToLower(k)
	}
	return &SignatureMember{safe: safe, keywords: keywords}
}

func (m *SignatureMember) Name() string { return "signature" }

func (m *SignatureMember) Score(_ context.Context, rec model.Record) (Score, error) {
	text := recordText(rec)

	// Whitelist wins over everything: routine operational lines must
	// never be flagged, whatever the other indicators say.
	for _, safe := range m.safe {
		if strings.Contains(text, safe) {
			return Score{
				Label:      LabelNormal,
				Confidence: 0.99,
				Reason:     "Whitelist match: known normal behavior pattern",
			}, nil
		}
	}

	for _, kw := range m.keywords {
		if strings.Contains(text, kw) {
			return Score{
				Label:      LabelAttack,
				Confidence: 0.92,
				Reason:     fmt.Sprintf("Signature match: suspicious term %q found", kw),
			}, nil
		}
	}

	for _, re := range []*regexp.Regexp{reSQLMeta, rePathTrav, reShellMeta} {
		if re.MatchString(text) {
			return Score{
				Label:      LabelAttack,
				Confidence: 0.90,
				Reason:     "Signature match: structural attack pattern found",
			}, nil
		}
	}

	// Long hex blobs in otherwise short lines usually mean injected
	// binary payloads on the CAN/OCPP datasets.
	if reHexBlob.MatchString(text) && len(text) < 200 {
		return Score{
			Label:      LabelAttack,
			Confidence: 0.75,
			Reason:     "Signature match: embedded hex payload",
		}, nil
	}

	return Score{Label: LabelNormal, Confidence: 0.60}, nil
}

// recordText flattens a record's fields into lowercase text for
// matching, skipping meta-columns that would leak labels into the vote.
func recordText(rec model.Record) string {
	var sb strings.Builder
	sb.WriteString(rec.Raw)
	for k, v := range rec.Fields {
		switch k {
		case "label", "attack_type", "decision", "is_attack", "winning_model", "confidence_score", "job_id":
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(v)
	}
	return strings.ToLower(sb.String())
}
