package ensemble

// transformer.go - Local transformer-based log classification using Hugot/ONNX.
//
// Runs fully local once a model is present. Gracefully degrades: when no
// ONNX model is found the member simply stays out of the roster.

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/anomi-sec/anomi/pkg/model"
)

// TransformerMember scores records with a local text classification
// model via Hugot. It expects a binary-label model whose attack class
// uses one of the conventional threat labels.
type TransformerMember struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	mu       sync.RWMutex
	ready    bool
}

// TransformerConfig configures the transformer member.
type TransformerConfig struct {
	// ModelPath is the local path to the ONNX model directory.
	ModelPath string

	// OnnxLibraryPath is the path to libonnxruntime.so. Empty means
	// the pure Go backend.
	OnnxLibraryPath string
}

// AutoDetectTransformerConfig looks for a usable model and returns nil
// when none is found.
func AutoDetectTransformerConfig() *TransformerConfig {
	candidates := []string{
		os.Getenv("ANOMI_MODEL_PATH"),
		"./models/log-classifier",
	}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "model.onnx")); err == nil {
			return &TransformerConfig{
				ModelPath:       dir,
				OnnxLibraryPath: defaultOnnxPath(),
			}
		}
	}
	return nil
}

func defaultOnnxPath() string {
	paths := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Dir(p)
		}
	}
	return ""
}

// NewTransformerMember creates a transformer member from cfg.
func NewTransformerMember(cfg TransformerConfig) (*TransformerMember, error) {
	m := &TransformerMember{}

	session, err := m.createSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.session = session

	pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: cfg.ModelPath,
		Name:      "log-attack-classifier",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	m.pipeline = pipeline
	m.ready = true
	return m, nil
}

func (m *TransformerMember) createSession(cfg TransformerConfig) (*hugot.Session, error) {
	if cfg.OnnxLibraryPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(cfg.OnnxLibraryPath))
		if err == nil {
			return session, nil
		}
		log.Printf("[WARN] ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Go session: %w", err)
	}
	return session, nil
}

// IsReady reports whether the pipeline is initialized.
func (m *TransformerMember) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *TransformerMember) Name() string { return "transformer" }

func (m *TransformerMember) Score(ctx context.Context, rec model.Record) (Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready || m.pipeline == nil {
		return Score{}, fmt.Errorf("transformer member not ready")
	}

	result, err := m.pipeline.RunPipeline([]string{rec.Content()})
	if err != nil {
		return Score{}, fmt.Errorf("classification failed: %w", err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return Score{}, fmt.Errorf("no classification output")
	}

	out := result.ClassificationOutputs[0][0]
	if isThreatLabel(out.Label) {
		return Score{
			Label:      LabelAttack,
			Confidence: clamp01(float64(out.Score)),
			Reason:     fmt.Sprintf("Transformer model: classified as %s", out.Label),
		}, nil
	}
	return Score{Label: LabelNormal, Confidence: clamp01(float64(out.Score))}, nil
}

// isThreatLabel maps the label conventions of common binary
// classification models to the attack class.
func isThreatLabel(label string) bool {
	switch label {
	case "attack", "ATTACK", "malicious", "INJECTION", "LABEL_1":
		return true
	default:
		return false
	}
}

// Close releases the ONNX session.
func (m *TransformerMember) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready = false
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}
