package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

// pgStore implements Store on PostgreSQL with the pgvector extension.
type pgStore struct {
	db        *sql.DB
	dimension int
}

// NewPGStore opens the Postgres-backed vector store and ensures the schema
// exists. The dimension must match the embedding model's output size.
func NewPGStore(dsn string, dimension int) (Store, error) {
	if dimension <= 0 {
		dimension = 1536
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	s := &pgStore{db: db, dimension: dimension}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pgStore) migrate() error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_document (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(` + strconv.Itoa(s.dimension) + `) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "failed to migrate vector schema")
		}
	}
	return nil
}

// Upsert stores a document with its embedding.
func (s *pgStore) Upsert(ctx context.Context, doc Document, embedding []float32) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	stmt := `
		INSERT INTO knowledge_document (id, content, source, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`
	_, err = s.db.ExecContext(ctx, stmt,
		doc.ID, doc.Content, doc.Source, metadata, pgvector.NewVector(embedding))
	if err != nil {
		return errors.Wrap(err, "failed to upsert document")
	}
	return nil
}

// Search returns the top-k nearest documents by cosine distance.
func (s *pgStore) Search(ctx context.Context, embedding []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}

	query := `
		SELECT id, content, source, metadata, 1 - (embedding <=> $1) AS score
		FROM knowledge_document
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search documents")
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc      Document
			metadata []byte
			score    float32
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &metadata, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				doc.Metadata = nil
			}
		}
		results = append(results, Result{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate documents")
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (s *pgStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_document`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count documents")
	}
	return count, nil
}

var _ Store = (*pgStore)(nil)
