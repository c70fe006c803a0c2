package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a unit of source text. SourceURL, when non-empty, makes
// ingestion idempotent: a second create with the same URL returns the
// existing document untouched.
type Document struct {
	ID           uuid.UUID
	Title        string
	Content      string
	SourceURL    string
	DocumentType string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentChunk is a contiguous slice of a document's content plus its
// embedding. Index values for one document are contiguous from 0 and follow
// left-to-right order in the source text.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Content    string
	Embedding  []float32
}

// ChunkRef is the minimal handle returned by ingestion once a chunk row has
// been persisted.
type ChunkRef struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
}

// SearchResult is one row of a similarity query, joined with the owning
// document for attribution. Distance is cosine distance: lower is more
// similar.
type SearchResult struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	ChunkIndex    int
	Content       string
	Distance      float64
}
