package types

import (
	"context"

	"github.com/google/uuid"
	"github.com/xhad/grounder/internal/models"
)

// Embedder turns text into fixed-length vectors by calling the external
// provider. EmbedBatch always returns exactly one vector per input, in input
// order; entries that could not be embedded after retries come back as the
// all-zero vector of Dimensions() length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Generator produces an answer from a system instruction and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ChunkSearcher answers "nearest by distance, thresholded, top-K" queries.
// maxDistance is cosine distance, lower means more similar.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, maxDistance float64, limit int) ([]models.SearchResult, error)
}

// DocumentStore is the persistence contract required by ingestion. Chunk
// lifetime is bounded by document lifetime: DeleteDocument cascades to the
// document's chunks.
type DocumentStore interface {
	ChunkSearcher

	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetDocumentBySourceURL(ctx context.Context, sourceURL string) (*models.Document, error)
	SearchDocumentsByTitle(ctx context.Context, title string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	SaveChunks(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteChunks(ctx context.Context, documentID uuid.UUID) error
}
