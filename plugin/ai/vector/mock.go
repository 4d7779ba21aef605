package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MockStore is an in-memory Store for tests and credential-less development.
type MockStore struct {
	mu         sync.RWMutex
	docs       map[string]Document
	embeddings map[string][]float32
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		docs:       make(map[string]Document),
		embeddings: make(map[string][]float32),
	}
}

// Upsert stores a document with its embedding.
func (m *MockStore) Upsert(_ context.Context, doc Document, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	m.embeddings[doc.ID] = append([]float32(nil), embedding...)
	return nil
}

// Search returns the top-k documents by cosine similarity.
func (m *MockStore) Search(_ context.Context, embedding []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.docs))
	for id, doc := range m.docs {
		results = append(results, Result{
			Document: doc,
			Score:    cosineSimilarity(embedding, m.embeddings[id]),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored documents.
func (m *MockStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ Store = (*MockStore)(nil)
