package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/grounder/internal/models"
	"github.com/xhad/grounder/internal/types"
	"github.com/xhad/grounder/pkg/breaker"
	"github.com/xhad/grounder/pkg/chunker"
)

// Config tunes the ingestion strategy.
type Config struct {
	// LargeDocThreshold selects the streaming path for documents above this
	// many characters.
	LargeDocThreshold int
	// StreamBatchSize is how many chunks are embedded and persisted per
	// streaming batch.
	StreamBatchSize int
	// BatchPause is the cooperative pause between streaming batches. It
	// blocks only the worker processing that document.
	BatchPause time.Duration
	// Workers bounds concurrent embedding work across all in-flight
	// ingestions.
	Workers int
}

const (
	DefaultLargeDocThreshold = 50000
	DefaultStreamBatchSize   = 10
	DefaultBatchPause        = 100 * time.Millisecond
	DefaultWorkers           = 3
)

// Orchestrator owns the document lifecycle: chunk, embed in bounded batches,
// persist incrementally, and degrade rather than fail. From the caller's
// point of view ingestion never errors outright unless even the last-resort
// fallback cannot persist.
type Orchestrator struct {
	cfg      Config
	chunker  *chunker.Chunker
	embedder types.Embedder
	store    types.DocumentStore
	breaker  *breaker.Breaker

	// slots is the shared worker semaphore for async ingestion.
	slots chan struct{}
}

// Result is delivered on the handle returned by IngestAsync.
type Result struct {
	Refs []models.ChunkRef
	Err  error
}

func New(cfg Config, ck *chunker.Chunker, embedder types.Embedder, store types.DocumentStore, cb *breaker.Breaker) *Orchestrator {
	if cfg.LargeDocThreshold <= 0 {
		cfg.LargeDocThreshold = DefaultLargeDocThreshold
	}
	if cfg.StreamBatchSize <= 0 {
		cfg.StreamBatchSize = DefaultStreamBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	return &Orchestrator{
		cfg:      cfg,
		chunker:  ck,
		embedder: embedder,
		store:    store,
		breaker:  cb,
		slots:    make(chan struct{}, cfg.Workers),
	}
}

// CreateDocument validates and persists a new document, then ingests its
// chunks in the background, returning the document and a result handle.
// A non-empty source URL that already exists short-circuits to the stored
// document: no duplicate row, no second embedding pass, nil handle.
func (o *Orchestrator) CreateDocument(ctx context.Context, title, content, sourceURL, docType string) (*models.Document, <-chan Result, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil, types.Errorf(types.KindValidation, "document title cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil, types.Errorf(types.KindValidation, "document content cannot be empty")
	}

	if sourceURL != "" {
		existing, err := o.store.GetDocumentBySourceURL(ctx, sourceURL)
		if err == nil {
			log.Printf("[INGEST] document with source URL %s already exists, returning unchanged", sourceURL)
			return existing, nil, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return nil, nil, err
		}
	}

	now := time.Now()
	doc := &models.Document{
		ID:           uuid.New(),
		Title:        title,
		Content:      content,
		SourceURL:    sourceURL,
		DocumentType: docType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.SaveDocument(ctx, doc); err != nil {
		return nil, nil, err
	}

	return doc, o.IngestAsync(ctx, doc), nil
}

// IngestAsync runs Ingest on a bounded worker and returns a handle for the
// result. Abandoning the handle does not cancel the work; the background
// ingestion outlives the caller, so a request-scoped context must not be
// able to cancel it after the handle is returned.
func (o *Orchestrator) IngestAsync(ctx context.Context, doc *models.Document) <-chan Result {
	ctx = context.WithoutCancel(ctx)
	out := make(chan Result, 1)
	go func() {
		o.slots <- struct{}{}
		defer func() { <-o.slots }()

		refs, err := o.Ingest(ctx, doc)
		out <- Result{Refs: refs, Err: err}
		close(out)
	}()
	return out
}

// Ingest chunks and embeds one document under circuit-breaker protection.
// The operation is the real attempt (streaming or direct by size); the
// fallback stores the whole content as a single zero-vector chunk so the
// document is present even when unsearchable. Only a fallback failure is
// returned as an error.
func (o *Orchestrator) Ingest(ctx context.Context, doc *models.Document) ([]models.ChunkRef, error) {
	var refs []models.ChunkRef

	err := o.breaker.Execute(
		func() error {
			var opErr error
			if len(doc.Content) > o.cfg.LargeDocThreshold {
				log.Printf("[INGEST] using streaming path for document %s (%d chars)", doc.ID, len(doc.Content))
				refs, opErr = o.ingestStreaming(ctx, doc)
			} else {
				refs, opErr = o.ingestDirect(ctx, doc)
			}
			return opErr
		},
		func(reason breaker.Reason) error {
			log.Printf("[INGEST] falling back to zero-vector chunk for document %s: %s", doc.ID, reason)
			var fbErr error
			refs, fbErr = o.storeFallbackChunk(ctx, doc)
			return fbErr
		},
	)
	if err != nil {
		return nil, types.NewError(types.KindFatal,
			fmt.Errorf("document %s failed even fallback ingestion: %w", doc.ID, err))
	}
	return refs, nil
}

// ingestDirect handles documents below the streaming threshold: chunk,
// embed, persist in one pass.
func (o *Orchestrator) ingestDirect(ctx context.Context, doc *models.Document) ([]models.ChunkRef, error) {
	texts := o.chunker.Split(doc.Content)
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
	}

	chunks := buildChunks(doc.ID, texts, vectors, 0)
	if err := o.store.SaveChunks(ctx, chunks); err != nil {
		return nil, err
	}

	log.Printf("[INGEST] stored %d chunks for document %s", len(chunks), doc.ID)
	return refsOf(chunks), nil
}

// ingestStreaming processes chunk texts in fixed-size batches, persisting
// each batch before the next so memory for processed batches can be
// released. A failed batch is logged and skipped; partial ingestion is an
// accepted outcome of best-effort streaming.
func (o *Orchestrator) ingestStreaming(ctx context.Context, doc *models.Document) ([]models.ChunkRef, error) {
	texts := o.chunker.Split(doc.Content)
	log.Printf("[INGEST] document %s split into %d chunks", doc.ID, len(texts))

	var refs []models.ChunkRef
	batches := (len(texts) + o.cfg.StreamBatchSize - 1) / o.cfg.StreamBatchSize
	for i := 0; i < len(texts); i += o.cfg.StreamBatchSize {
		end := min(i+o.cfg.StreamBatchSize, len(texts))

		vectors, err := o.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			log.Printf("[INGEST] batch %d/%d failed for document %s, continuing: %v",
				i/o.cfg.StreamBatchSize+1, batches, doc.ID, err)
			continue
		}

		chunks := buildChunks(doc.ID, texts[i:end], vectors, i)
		if err := o.store.SaveChunks(ctx, chunks); err != nil {
			log.Printf("[INGEST] failed to persist batch %d/%d for document %s, continuing: %v",
				i/o.cfg.StreamBatchSize+1, batches, doc.ID, err)
			continue
		}
		refs = append(refs, refsOf(chunks)...)

		if end < len(texts) {
			time.Sleep(o.cfg.BatchPause)
		}
	}

	log.Printf("[INGEST] streaming ingestion stored %d/%d chunks for document %s", len(refs), len(texts), doc.ID)
	return refs, nil
}

// storeFallbackChunk is the last resort: the entire document as one chunk
// with a zero vector, present but unsearchable.
func (o *Orchestrator) storeFallbackChunk(ctx context.Context, doc *models.Document) ([]models.ChunkRef, error) {
	chunk := models.DocumentChunk{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Index:      0,
		Content:    doc.Content,
		Embedding:  make([]float32, o.embedder.Dimensions()),
	}
	if err := o.store.SaveChunks(ctx, []models.DocumentChunk{chunk}); err != nil {
		return nil, err
	}
	return refsOf([]models.DocumentChunk{chunk}), nil
}

// UpdateDocument replaces the document's fields and its full chunk set as a
// unit: delete old chunks, then re-ingest. Last writer wins; there is no
// version check on concurrent updates to the same document.
func (o *Orchestrator) UpdateDocument(ctx context.Context, id uuid.UUID, title, content, sourceURL, docType string) (*models.Document, []models.ChunkRef, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil, types.Errorf(types.KindValidation, "document title cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil, types.Errorf(types.KindValidation, "document content cannot be empty")
	}

	doc, err := o.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	doc.Title = title
	doc.Content = content
	doc.SourceURL = sourceURL
	doc.DocumentType = docType
	doc.UpdatedAt = time.Now()

	if err := o.store.SaveDocument(ctx, doc); err != nil {
		return nil, nil, err
	}
	if err := o.store.DeleteChunks(ctx, id); err != nil {
		return nil, nil, err
	}

	refs, err := o.Ingest(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[INGEST] updated document %s with %d chunks", id, len(refs))
	return doc, refs, nil
}

// DeleteDocument removes the document; chunks go with it.
func (o *Orchestrator) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return o.store.DeleteDocument(ctx, id)
}

func (o *Orchestrator) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return o.store.GetDocument(ctx, id)
}

func (o *Orchestrator) SearchDocumentsByTitle(ctx context.Context, title string) ([]models.Document, error) {
	return o.store.SearchDocumentsByTitle(ctx, title)
}

func buildChunks(docID uuid.UUID, texts []string, vectors [][]float32, startIndex int) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, len(texts))
	for i := range texts {
		chunks[i] = models.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: docID,
			Index:      startIndex + i,
			Content:    texts[i],
			Embedding:  vectors[i],
		}
	}
	return chunks
}

func refsOf(chunks []models.DocumentChunk) []models.ChunkRef {
	refs := make([]models.ChunkRef, len(chunks))
	for i, c := range chunks {
		refs[i] = models.ChunkRef{ID: c.ID, DocumentID: c.DocumentID, Index: c.Index}
	}
	return refs
}
