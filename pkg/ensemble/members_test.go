package ensemble

import (
	"context"
	"strings"
	"testing"

	"github.com/anomi-sec/anomi/pkg/model"
)

func TestSignatureMember_Whitelist(t *testing.T) {
	m := NewSignatureMember(nil)

	// The whitelist must override keyword hits on the same line.
	s, err := m.Score(context.Background(), model.NewTextRecord("scheduled scan of /health endpoint completed"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelNormal {
		t.Errorf("Whitelisted line scored %s, want normal", s.Label)
	}
	if s.Confidence != 0.99 {
		t.Errorf("Whitelist confidence = %v, want 0.99", s.Confidence)
	}
}

func TestSignatureMember_Keywords(t *testing.T) {
	m := NewSignatureMember(nil)

	cases := []string{
		"possible brute_force on ssh port 22",
		"DDoS traffic spike detected on meter gateway",
		"malware beacon to 10.0.0.66",
	}
	for _, line := range cases {
		s, err := m.Score(context.Background(), model.NewTextRecord(line))
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if s.Label != LabelAttack {
			t.Errorf("Line %q scored %s, want attack", line, s.Label)
		}
		if !strings.HasPrefix(s.Reason, "Signature match") {
			t.Errorf("Unexpected reason %q", s.Reason)
		}
	}
}

func TestSignatureMember_StructuralPatterns(t *testing.T) {
	m := NewSignatureMember(nil)

	s, err := m.Score(context.Background(), model.NewTextRecord("id=1' OR '1'='1"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelAttack {
		t.Error("SQL tautology must score as attack")
	}

	s, err = m.Score(context.Background(), model.NewTextRecord("GET /files/../../etc/passwd"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelAttack {
		t.Error("Path traversal must score as attack")
	}
}

func TestEntropyMember_HighEntropyPayload(t *testing.T) {
	m := NewEntropyMember()

	// Near-uniform character distribution pushes entropy past 5.8 bits.
	payload := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789+/!@"
	s, err := m.Score(context.Background(), model.NewTextRecord(payload))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelAttack {
		t.Errorf("High-entropy payload scored %s, want attack", s.Label)
	}
	if s.Confidence < 0.8 || s.Confidence > 1.0 {
		t.Errorf("Confidence %v out of expected range", s.Confidence)
	}
}

func TestEntropyMember_PlainTextNormal(t *testing.T) {
	m := NewEntropyMember()

	s, err := m.Score(context.Background(), model.NewTextRecord("user admin logged in from the office network"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelNormal {
		t.Errorf("Plain text scored %s, want normal", s.Label)
	}
}

func TestEntropyMember_NumericOutlier(t *testing.T) {
	m := NewEntropyMember()

	rec := model.Record{Fields: map[string]string{"power_kw": "99999"}}
	s, err := m.Score(context.Background(), rec)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelAttack {
		t.Error("Out-of-range metered value must score as attack")
	}
}

func TestShannonEntropy(t *testing.T) {
	if e := ShannonEntropy(""); e != 0 {
		t.Errorf("Entropy of empty string = %v, want 0", e)
	}
	if e := ShannonEntropy("aaaa"); e != 0 {
		t.Errorf("Entropy of uniform string = %v, want 0", e)
	}
	if e := ShannonEntropy("ab"); e != 1 {
		t.Errorf("Entropy of two-symbol string = %v, want 1", e)
	}
}

func TestBayesMember_SeparatesCorpusClasses(t *testing.T) {
	m := NewBayesMember(nil)

	s, err := m.Score(context.Background(), model.NewTextRecord("brute force login attempt with dictionary passwords"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelAttack {
		t.Errorf("Attack-like line scored %s, want attack", s.Label)
	}

	s, err = m.Score(context.Background(), model.NewTextRecord("scheduled meter reading uploaded successfully"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if s.Label != LabelNormal {
		t.Errorf("Routine line scored %s, want normal", s.Label)
	}
}

func TestClassifyAttack(t *testing.T) {
	cases := []struct {
		text    string
		profile string
		want    string
	}{
		{"sql injection on login", "service-log", "SQL Injection Attempt"},
		{"brute force on admin panel", "ids-log", "Brute Force Attack"},
		{"ddos amplification traffic", "live", "Denial of Service"},
		{"nothing recognizable here", "sensor", ""},
	}
	for _, c := range cases {
		got := ClassifyAttack(c.text, c.profile)
		if c.want != "" && got != c.want {
			t.Errorf("ClassifyAttack(%q) = %q, want %q", c.text, got, c.want)
		}
		if got == "" {
			t.Errorf("ClassifyAttack(%q) returned empty type", c.text)
		}
	}
}
