package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/stores"
)

/*
stubEmbedder maps exact texts to fixed vectors so tests control the
geometry of every query and candidate.
*/
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := s.vectors[text]; ok {
		return vector, nil
	}

	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, text := range texts {
		vector, err := s.Embed(ctx, text)

		if err != nil {
			return nil, err
		}

		out[i] = vector
	}

	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestExpandSynapsesChainDecay(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "a", TargetID: "b", OwnerID: "owner-1", Weight: 1.0,
	}))
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "b", TargetID: "c", OwnerID: "owner-1", Weight: 1.0,
	}))

	pipeline := New(store, &stubEmbedder{})

	boosts, err := pipeline.expandSynapses(ctx, []string{"a"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, boosts["b"], 1e-12)
	assert.InDelta(t, 0.64, boosts["c"], 1e-12)

	shallow := New(store, &stubEmbedder{}, WithConfig(func() Config {
		config := DefaultConfig()
		config.SynapseDepth = 1
		return config
	}()))

	boosts, err = shallow.expandSynapses(ctx, []string{"a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, boosts["b"], 1e-12)
	assert.Zero(t, boosts["c"])
}

func TestExpandSynapsesSameLayerKeepsMaxBoost(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	// Two seeds reach the same node in the same layer with different
	// edge weights; the stronger path must win.
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "a", TargetID: "shared", OwnerID: "owner-1", Weight: 0.3,
	}))
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "b", TargetID: "shared", OwnerID: "owner-1", Weight: 0.9,
	}))

	pipeline := New(store, &stubEmbedder{})

	boosts, err := pipeline.expandSynapses(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9*0.8, boosts["shared"], 1e-12)
}

func TestExpandSynapsesBlocksCrossLayerRediscovery(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	// Depth-1 discovery at a weak weight, then a strong depth-2 path to
	// the same node; the earlier layer's boost must stand.
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "a", TargetID: "late", OwnerID: "owner-1", Weight: 0.2,
	}))
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "a", TargetID: "mid", OwnerID: "owner-1", Weight: 1.0,
	}))
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: "mid", TargetID: "late", OwnerID: "owner-1", Weight: 1.0,
	}))

	pipeline := New(store, &stubEmbedder{})

	boosts, err := pipeline.expandSynapses(ctx, []string{"a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.2*0.8, boosts["late"], 1e-12)
}

func TestSearchEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	pipeline := New(stores.NewInMemoryStore(), &stubEmbedder{})

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "anything",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Zero(t, result.Total)
	assert.Equal(t, "anything", result.Query)
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	pipeline := New(stores.NewInMemoryStore(), &stubEmbedder{})

	_, err := pipeline.Search(ctx, engram.SearchQuery{Query: "q"})
	assert.Error(t, err)

	_, err = pipeline.Search(ctx, engram.SearchQuery{OwnerID: "owner-1"})
	assert.Error(t, err)
}

func TestSearchSingleCandidateFlatChannels(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := stores.NewInMemoryStore(stores.WithClock(fixedClock(t0)))

	_, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "the only memory",
		Embedding: []float32{1, 0, 0},
		Signal:    0.5,
	})
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	pipeline := New(store, embedder, WithPipelineClock(fixedClock(t0)))

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "query",
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	trace := result.Hits[0].Trace

	// A single candidate means both normalized channels flatten to zero,
	// leaving only the recency and signal terms.
	assert.Zero(t, trace.VectorScore)
	assert.Zero(t, trace.KeywordScore)
	assert.InDelta(t, 0.10*1.0, trace.RecencyBoost, 1e-12)
	assert.InDelta(t, 0.15*0.5, trace.SignalBoost, 1e-12)
	assert.Zero(t, trace.SynapseBoost)
	assert.InDelta(t, 0.175, trace.FinalScore, 1e-12)
}

func TestSearchFutureAccessTimestampCapsRecencyBoost(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// The store stamps AccessedAt two days ahead of the query clock,
	// as happens under clock skew or after a snapshot restore.
	store := stores.NewInMemoryStore(stores.WithClock(fixedClock(t0.Add(48 * time.Hour))))

	_, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "from the future",
		Embedding: []float32{1, 0, 0},
		Signal:    0.5,
	})
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	pipeline := New(store, embedder, WithPipelineClock(fixedClock(t0)))

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "query",
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	trace := result.Hits[0].Trace

	// Negative elapsed time counts as fresh, never fresher than fresh.
	assert.InDelta(t, 0.10, trace.RecencyBoost, 1e-12)
	assert.LessOrEqual(t, trace.RecencyBoost, DefaultConfig().RecencyWeight)
}

func TestSearchRankingStableOnTies(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := stores.NewInMemoryStore(stores.WithClock(fixedClock(t0)))

	first, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "identical twin",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	second, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "identical twin",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	pipeline := New(store, embedder, WithPipelineClock(fixedClock(t0)))

	off := false

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID:        "owner-1",
		Query:          "query",
		ExpandSynapses: &off,
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	assert.Equal(t, result.Hits[0].Trace.FinalScore, result.Hits[1].Trace.FinalScore)
	assert.Equal(t, first.ID, result.Hits[0].Engram.ID)
	assert.Equal(t, second.ID, result.Hits[1].Engram.ID)
}

func TestSearchSynapseBoostSurfacesRelatedMemory(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := stores.NewInMemoryStore(stores.WithClock(fixedClock(t0)))

	work, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "Alice works at Acme",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	pizza, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "Alice likes pizza",
		Embedding: []float32{0, 1, 0},
	})
	require.NoError(t, err)

	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: work.ID, TargetID: pizza.ID, OwnerID: "owner-1", Weight: 0.5,
	}))
	require.NoError(t, store.PutSynapse(ctx, engram.Synapse{
		SourceID: pizza.ID, TargetID: work.ID, OwnerID: "owner-1", Weight: 0.5,
	}))

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"What does Alice do": {1, 0, 0},
	}}
	pipeline := New(store, embedder, WithPipelineClock(fixedClock(t0)))

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "What does Alice do",
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	var pizzaTrace *engram.RetrievalTrace

	for i := range result.Hits {
		if result.Hits[i].Engram.ID == pizza.ID {
			pizzaTrace = &result.Hits[i].Trace
		}

		assert.Nil(t, result.Hits[i].Engram.Embedding)
	}

	require.NotNil(t, pizzaTrace, "associated memory must appear in results")
	assert.InDelta(t, 0.15*(0.5*0.8), pizzaTrace.SynapseBoost, 1e-12)
}

func TestSearchRecordsAccessInBackground(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	created, err := store.CreateEngram(ctx, engram.Engram{
		OwnerID:   "owner-1",
		Content:   "remembered",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	pipeline := New(store, embedder)

	_, err = pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "query",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		eng, err := store.GetEngram(ctx, created.ID)
		return err == nil && eng.AccessCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSearchTrimsToLimit(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	for i := 0; i < 5; i++ {
		_, err := store.CreateEngram(ctx, engram.Engram{
			OwnerID:   "owner-1",
			Content:   "memory",
			Embedding: []float32{1, float32(i) * 0.01, 0},
		})
		require.NoError(t, err)
	}

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	pipeline := New(store, embedder)

	result, err := pipeline.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "query",
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Len(t, result.Hits, 2)
	assert.Equal(t, 2, result.Total)
}
