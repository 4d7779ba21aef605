// Package vector provides the vector index behind the knowledge retriever.
package vector

import "context"

// Document is an indexed knowledge snippet with its embedding metadata.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is a similarity search hit.
type Result struct {
	Document Document `json:"document"`
	// Score is cosine similarity in [0, 1]; higher is more relevant.
	Score float32 `json:"score"`
}

// Store defines the vector index operations used by the retriever.
type Store interface {
	// Upsert stores a document with its embedding, replacing any existing
	// entry with the same ID.
	Upsert(ctx context.Context, doc Document, embedding []float32) error

	// Search returns the top-k most similar documents, best first.
	Search(ctx context.Context, embedding []float32, topK int) ([]Result, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
}
