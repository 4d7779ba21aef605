// Package rag provides retrieval-augmented answers over the salon knowledge
// base: services, stylists, policies, FAQs, and locations.
package rag

import (
	"context"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/velora-ai/velora/plugin/ai/vector"
)

// DefaultTopK is the number of snippets returned when the caller does not ask
// for a specific count.
const DefaultTopK = 3

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Snippet is one ranked knowledge base hit.
type Snippet struct {
	Content        string  `json:"content"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Retriever answers free-form questions from the vector-indexed knowledge
// base and serves direct lookups from the raw data.
type Retriever struct {
	embedder Embedder
	store    vector.Store
	kb       *KnowledgeBase
}

// NewRetriever creates a retriever over the given knowledge base and index.
func NewRetriever(embedder Embedder, store vector.Store, kb *KnowledgeBase) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		kb:       kb,
	}
}

// Index embeds and upserts every knowledge base document. Safe to call on
// startup; an already-populated index is refreshed in place.
func (r *Retriever) Index(ctx context.Context) error {
	docs := r.kb.Documents()
	for _, doc := range docs {
		embedding, err := r.embedder.Embedding(ctx, doc.Content)
		if err != nil {
			return errors.Wrapf(err, "failed to embed document %s", doc.ID)
		}
		if err := r.store.Upsert(ctx, doc, embedding); err != nil {
			return errors.Wrapf(err, "failed to index document %s", doc.ID)
		}
	}
	slog.Info("knowledge base indexed", "documents", len(docs))
	return nil
}

// Query returns the top-k most relevant snippets for the question. An empty
// result set is a valid answer, not an error.
func (r *Retriever) Query(ctx context.Context, question string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := r.embedder.Embedding(ctx, question)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}

	results, err := r.store.Search(ctx, embedding, topK)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search knowledge base")
	}

	snippets := make([]Snippet, 0, len(results))
	for _, res := range results {
		snippets = append(snippets, Snippet{
			Content:        res.Document.Content,
			Source:         res.Document.Source,
			RelevanceScore: roundScore(float64(res.Score)),
		})
	}
	return snippets, nil
}

// ServiceByName looks up a service definition by name.
func (r *Retriever) ServiceByName(name string) (*Service, bool) {
	return r.kb.ServiceByName(name)
}

// StylistByName looks up a stylist by name.
func (r *Retriever) StylistByName(name string) (*Stylist, bool) {
	return r.kb.StylistByName(name)
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}
