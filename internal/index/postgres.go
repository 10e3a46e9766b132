package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Postgres is an Index backed by a relational table with a pgvector column.
// Similarity search uses the cosine-distance operator; metadata filters map
// to ordinary WHERE clauses. The relational store provides the external
// synchronization the concurrency model relies on.
type Postgres struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgres connects to the store and registers the vector column type on
// every pooled connection.
func NewPostgres(ctx context.Context, dsn string, dimensions int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Postgres{pool: pool, dimensions: dimensions}, nil
}

// EnsureSchema creates the evidence_chunks table and its vector index if
// they do not exist. Requires the pgvector extension.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS evidence_chunks (
			chunk_id      text PRIMARY KEY,
			document_id   text NOT NULL,
			assessment_id text NOT NULL DEFAULT '',
			control_ids   text[] NOT NULL DEFAULT '{}',
			method        text NOT NULL DEFAULT '',
			chunk_text    text NOT NULL,
			embedding     vector(%d) NOT NULL
		)`, p.dimensions),
		`CREATE INDEX IF NOT EXISTS evidence_chunks_document_idx ON evidence_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS evidence_chunks_embedding_idx
			ON evidence_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Dimensions returns the fixed vector length.
func (p *Postgres) Dimensions() int { return p.dimensions }

// Upsert stores or replaces entries keyed by chunk ID.
func (p *Postgres) Upsert(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if len(e.Vector) != p.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index is fixed at %d",
				ErrDimensionMismatch, e.ChunkID, len(e.Vector), p.dimensions)
		}
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO evidence_chunks
				(chunk_id, document_id, assessment_id, control_ids, method, chunk_text, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chunk_id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				assessment_id = EXCLUDED.assessment_id,
				control_ids = EXCLUDED.control_ids,
				method = EXCLUDED.method,
				chunk_text = EXCLUDED.chunk_text,
				embedding = EXCLUDED.embedding`,
			e.ChunkID, e.DocumentID, e.AssessmentID, e.ControlIDs, string(e.Method),
			e.Text, pgvector.NewVector(e.Vector))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunk: %w", err)
		}
	}
	return nil
}

// Query returns up to topK candidates ordered by ascending cosine distance.
// Similarity is reported as 1 - distance.
func (p *Postgres) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error) {
	if len(vector) != p.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index is fixed at %d",
			ErrDimensionMismatch, len(vector), p.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT chunk_id, document_id, chunk_text, embedding,
		       1 - (embedding <=> $1) AS similarity
		FROM evidence_chunks
		WHERE ($2 = '' OR $2 = ANY(control_ids))
		  AND ($3 = '' OR document_id = $3)
		  AND ($4 = '' OR assessment_id = $4)
		  AND ($5 = '' OR method = $5)
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $6`,
		pgvector.NewVector(vector), filter.ControlID, filter.DocumentID,
		filter.AssessmentID, string(filter.Method), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &embedding, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Vector = embedding.Slice()
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	return candidates, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
