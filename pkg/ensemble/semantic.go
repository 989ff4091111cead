package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/anomi-sec/anomi/pkg/httputil"
	"github.com/anomi-sec/anomi/pkg/model"
)

// SemanticMember scores records by embedding similarity against the
// labelled seed exemplars, using an in-memory chromem-go collection.
// It is optional: construction succeeds offline, but the member only
// joins the roster after LoadExemplars manages to embed the corpus
// (which requires a reachable embedding endpoint such as Ollama).
type SemanticMember struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float32
	mu         sync.RWMutex
	ready      bool
}

// NewSemanticMember creates a semantic member backed by Ollama
// embeddings at baseURL.
func NewSemanticMember(baseURL string) (*SemanticMember, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("log_exemplars", nil, newOllamaEmbeddingFunc("embeddinggemma", baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &SemanticMember{
		db:         db,
		collection: collection,
		threshold:  0.65,
	}, nil
}

// newOllamaEmbeddingFunc adapts Ollama's /api/embeddings endpoint to a
// chromem embedding function.
func newOllamaEmbeddingFunc(embedModel, baseURL string) chromem.EmbeddingFunc {
	client := httputil.Client(httputil.TierMedium)

	return func(ctx context.Context, text string) ([]float32, error) {
		reqBody, err := json.Marshal(map[string]string{"model": embedModel, "prompt": text})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
		return result.Embedding, nil
	}
}

// LoadExemplars embeds the seed corpus into the vector collection.
// One worker keeps the embedding endpoint comfortable.
func (m *SemanticMember) LoadExemplars(ctx context.Context, corpus *SeedCorpus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if corpus == nil {
		corpus = defaultSeedCorpus()
	}

	var docs []chromem.Document
	for i, line := range corpus.AttackLines {
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("attack_%d", i),
			Content:  line,
			Metadata: map[string]string{"label": string(LabelAttack)},
		})
	}
	for i, line := range corpus.NormalLines {
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("normal_%d", i),
			Content:  line,
			Metadata: map[string]string{"label": string(LabelNormal)},
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add exemplars: %w", err)
	}
	m.ready = true
	return nil
}

// IsReady reports whether the exemplar collection has been embedded.
func (m *SemanticMember) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *SemanticMember) Name() string { return "semantic" }

func (m *SemanticMember) Score(ctx context.Context, rec model.Record) (Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return Score{}, fmt.Errorf("semantic member not initialized - call LoadExemplars first")
	}

	results, err := m.collection.Query(ctx, strings.ToLower(rec.Content()), 1, nil, nil)
	if err != nil {
		return Score{}, fmt.Errorf("exemplar query failed: %w", err)
	}
	if len(results) == 0 {
		return Score{Label: LabelNormal, Confidence: 0.5}, nil
	}

	best := results[0]
	similarity := float64(best.Similarity)
	if best.Metadata["label"] == string(LabelAttack) && best.Similarity >= m.threshold {
		return Score{
			Label:      LabelAttack,
			Confidence: clamp01(similarity),
			Reason:     fmt.Sprintf("Semantic match: resembles %q", best.Content),
		}, nil
	}
	return Score{Label: LabelNormal, Confidence: clamp01(similarity)}, nil
}
