package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/grounder/internal/models"
	"github.com/xhad/grounder/internal/types"
)

// Config for the pgvector-backed store.
type Config struct {
	ConnString string
	VectorDim  int
}

// VectorStore persists documents and their embedded chunks in Postgres with
// the pgvector extension, and answers thresholded nearest-neighbour queries.
type VectorStore struct {
	cfg  Config
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*VectorStore, error) {
	if cfg.VectorDim == 0 {
		cfg.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &VectorStore{cfg: cfg, pool: pool}, nil
}

// Init creates the schema. Chunk rows are dropped with their document via
// the foreign key cascade.
func (vs *VectorStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source_url TEXT,
		document_type TEXT,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source_url ON documents(source_url);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d)
	);

	CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks(document_id);

	CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks
	USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);
	`, vs.cfg.VectorDim)

	if _, err := vs.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (vs *VectorStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	query := `
	INSERT INTO documents (id, title, content, source_url, document_type, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		content = EXCLUDED.content,
		source_url = EXCLUDED.source_url,
		document_type = EXCLUDED.document_type,
		metadata = EXCLUDED.metadata,
		updated_at = EXCLUDED.updated_at
	`
	_, err := vs.pool.Exec(ctx, query,
		doc.ID, doc.Title, doc.Content, doc.SourceURL, doc.DocumentType,
		doc.Metadata, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

func (vs *VectorStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	row := vs.pool.QueryRow(ctx, `
		SELECT id, title, content, source_url, document_type, metadata, created_at, updated_at
		FROM documents WHERE id = $1`, id)
	return scanDocument(row, id.String())
}

func (vs *VectorStore) GetDocumentBySourceURL(ctx context.Context, sourceURL string) (*models.Document, error) {
	row := vs.pool.QueryRow(ctx, `
		SELECT id, title, content, source_url, document_type, metadata, created_at, updated_at
		FROM documents WHERE source_url = $1`, sourceURL)
	return scanDocument(row, sourceURL)
}

func scanDocument(row pgx.Row, key string) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.SourceURL, &doc.DocumentType,
		&doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document %s: %w", key, err)
	}
	return doc, nil
}

func (vs *VectorStore) SearchDocumentsByTitle(ctx context.Context, title string) ([]models.Document, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT id, title, content, source_url, document_type, metadata, created_at, updated_at
		FROM documents WHERE title ILIKE '%' || $1 || '%'
		ORDER BY created_at`, title)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc := models.Document{}
		if err := rows.Scan(
			&doc.ID, &doc.Title, &doc.Content, &doc.SourceURL, &doc.DocumentType,
			&doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (vs *VectorStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := vs.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	log.Printf("[STORE] deleted document %s and its chunks", id)
	return nil
}

// SaveChunks inserts a batch of chunks in one transaction so a persisted
// batch is never half-written.
func (vs *VectorStore) SaveChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
	VALUES ($1, $2, $3, $4, $5)
	`
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, query,
			c.ID, c.DocumentID, c.Index, c.Content, pgvector.NewVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d of document %s: %w", c.Index, c.DocumentID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

func (vs *VectorStore) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	if _, err := vs.pool.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

// SearchChunks returns chunks within maxDistance of the query vector,
// closest first, at most limit rows, joined with the owning document for
// attribution.
func (vs *VectorStore) SearchChunks(ctx context.Context, embedding []float32, maxDistance float64, limit int) ([]models.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	query := `
	SELECT dc.id, dc.document_id, d.title, dc.chunk_index, dc.content,
	       dc.embedding <=> $1 AS distance
	FROM document_chunks dc
	JOIN documents d ON d.id = dc.document_id
	WHERE dc.embedding IS NOT NULL
	  AND dc.embedding <=> $1 < $2
	ORDER BY dc.embedding <=> $1
	LIMIT $3
	`
	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity query: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		r := models.SearchResult{}
		if err := rows.Scan(
			&r.ChunkID, &r.DocumentID, &r.DocumentTitle, &r.ChunkIndex, &r.Content, &r.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
