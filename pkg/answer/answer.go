package answer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/grounder/internal/models"
	"github.com/xhad/grounder/internal/types"
)

// NoContextAnswer is the designed terminal response when no chunk clears the
// similarity threshold. It is not an error.
const NoContextAnswer = "I don't have enough information in my knowledge base to answer this question."

const systemPrompt = `You are a helpful assistant that answers questions based on the provided context.
If the answer is not in the context, say so.
Always cite the source of your information from the context.`

const userPromptTemplate = `Context information is below.
---------------------
%s
---------------------

Given the context information and not prior knowledge, answer the question: %s`

// Config carries the retrieval defaults. Threshold is a cosine distance:
// lower means more similar, and only chunks strictly below it qualify.
type Config struct {
	TopK      int
	Threshold float64
}

const (
	DefaultTopK      = 3
	DefaultThreshold = 0.7
)

// Service answers questions grounded in stored chunks. Unlike ingestion it
// has no degrade path: a provider failure here surfaces to the caller,
// because an ungrounded answer is worse than an explicit error.
type Service struct {
	cfg       Config
	embedder  types.Embedder
	searcher  types.ChunkSearcher
	generator types.Generator
}

func New(cfg Config, embedder types.Embedder, searcher types.ChunkSearcher, generator types.Generator) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Service{cfg: cfg, embedder: embedder, searcher: searcher, generator: generator}
}

// Answer uses the configured retrieval defaults.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	return s.AnswerWithParams(ctx, question, s.cfg.TopK, s.cfg.Threshold)
}

// AnswerWithParams embeds the question, retrieves the closest qualifying
// chunks, and delegates to the generation provider with the assembled
// context.
func (s *Service) AnswerWithParams(ctx context.Context, question string, topK int, threshold float64) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", types.Errorf(types.KindValidation, "question cannot be empty")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", types.NewError(types.KindTransient, fmt.Errorf("failed to embed question: %w", err))
	}

	results, err := s.searcher.SearchChunks(ctx, embedding, threshold, topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	if len(results) == 0 {
		log.Printf("[ANSWER] no relevant chunks found for question")
		return NoContextAnswer, nil
	}

	log.Printf("[ANSWER] found %d relevant chunks", len(results))
	user := fmt.Sprintf(userPromptTemplate, buildContext(results), question)

	answer, err := s.generator.Generate(ctx, systemPrompt, user)
	if err != nil {
		return "", types.NewError(types.KindTransient, fmt.Errorf("failed to generate answer: %w", err))
	}
	return answer, nil
}

// buildContext concatenates an attribution line and the chunk content per
// result, blank-line separated, in the order returned by the store (closest
// first).
func buildContext(results []models.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Document: %s (ID: %s)\n%s", r.DocumentTitle, r.DocumentID, r.Content))
	}
	return sb.String()
}
