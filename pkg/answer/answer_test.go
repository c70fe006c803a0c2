package answer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/grounder/internal/models"
	"github.com/xhad/grounder/internal/types"
	"github.com/xhad/grounder/pkg/answer"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeSearcher struct {
	results     []models.SearchResult
	err         error
	maxDistance float64
	limit       int
}

func (f *fakeSearcher) SearchChunks(ctx context.Context, embedding []float32, maxDistance float64, limit int) ([]models.SearchResult, error) {
	f.maxDistance = maxDistance
	f.limit = limit
	return f.results, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.answer, f.err
}

func newService(cfg answer.Config, emb *fakeEmbedder, search *fakeSearcher, gen *fakeGenerator) *answer.Service {
	return answer.New(cfg, emb, search, gen)
}

func TestAnswer_RejectsBlankQuestion(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	gen := &fakeGenerator{}
	svc := newService(answer.Config{}, emb, &fakeSearcher{}, gen)

	_, err := svc.Answer(context.Background(), "   ")

	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Zero(t, emb.calls)
	assert.Zero(t, gen.calls)
}

func TestAnswer_NoMatchingChunks(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(answer.Config{}, &fakeEmbedder{vector: []float32{1}}, &fakeSearcher{}, gen)

	resp, err := svc.Answer(context.Background(), "what is the airspeed of an unladen swallow?")

	assert.NoError(t, err)
	assert.Equal(t, answer.NoContextAnswer, resp)
	assert.Zero(t, gen.calls, "no generation without retrieved context")
}

func TestAnswer_UsesConfiguredDefaults(t *testing.T) {
	search := &fakeSearcher{}
	svc := newService(answer.Config{TopK: 5, Threshold: 0.4}, &fakeEmbedder{vector: []float32{1}}, search, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, 0.4, search.maxDistance)
	assert.Equal(t, 5, search.limit)
}

func TestAnswerWithParams_OverridesDefaults(t *testing.T) {
	search := &fakeSearcher{}
	svc := newService(answer.Config{}, &fakeEmbedder{vector: []float32{1}}, search, &fakeGenerator{})

	_, err := svc.AnswerWithParams(context.Background(), "question", 7, 0.9)

	require.NoError(t, err)
	assert.Equal(t, 0.9, search.maxDistance)
	assert.Equal(t, 7, search.limit)

	// Non-positive overrides fall back to the built-in defaults.
	_, err = svc.AnswerWithParams(context.Background(), "question", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, answer.DefaultThreshold, search.maxDistance)
	assert.Equal(t, answer.DefaultTopK, search.limit)
}

func TestAnswer_AssemblesContextForGeneration(t *testing.T) {
	docID := uuid.New()
	search := &fakeSearcher{results: []models.SearchResult{
		{DocumentID: docID, DocumentTitle: "Handbook", Content: "first chunk", Distance: 0.1},
		{DocumentID: docID, DocumentTitle: "Handbook", Content: "second chunk", Distance: 0.2},
	}}
	gen := &fakeGenerator{answer: "grounded answer"}
	svc := newService(answer.Config{}, &fakeEmbedder{vector: []float32{1}}, search, gen)

	resp, err := svc.Answer(context.Background(), "what do the docs say?")

	require.NoError(t, err)
	assert.Equal(t, "grounded answer", resp)
	require.Equal(t, 1, gen.calls)

	assert.Contains(t, gen.system, "helpful assistant")
	assert.Contains(t, gen.user, fmt.Sprintf("Document: Handbook (ID: %s)\nfirst chunk", docID))
	assert.Contains(t, gen.user, fmt.Sprintf("Document: Handbook (ID: %s)\nsecond chunk", docID))
	assert.Contains(t, gen.user, "what do the docs say?")
}

func TestAnswer_EmbeddingFailureIsTransient(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("provider down")}
	svc := newService(answer.Config{}, emb, &fakeSearcher{}, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "question")

	require.Error(t, err)
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}

func TestAnswer_GenerationFailureIsTransient(t *testing.T) {
	search := &fakeSearcher{results: []models.SearchResult{
		{DocumentID: uuid.New(), DocumentTitle: "Doc", Content: "chunk"},
	}}
	gen := &fakeGenerator{err: errors.New("model timeout")}
	svc := newService(answer.Config{}, &fakeEmbedder{vector: []float32{1}}, search, gen)

	_, err := svc.Answer(context.Background(), "question")

	require.Error(t, err)
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}

func TestAnswer_SearchFailurePropagates(t *testing.T) {
	errSearch := errors.New("connection reset")
	svc := newService(answer.Config{}, &fakeEmbedder{vector: []float32{1}}, &fakeSearcher{err: errSearch}, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "question")
	assert.ErrorIs(t, err, errSearch)
}
