package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/provider"
	"github.com/theapemachine/neurostore/pkg/stores"
)

type stubCompletion struct {
	payload string
	err     error
}

func (s *stubCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	return s.payload, s.err
}

func (s *stubCompletion) CompleteJSON(ctx context.Context, system, user string, out any) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.payload), out)
}

/*
stubEmbedder returns fixed vectors per text and can be armed to fail on
one specific input, which is how the no-rollback path gets exercised.
*/
type stubEmbedder struct {
	vectors map[string][]float32
	failOn  string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failOn != "" && text == s.failOn {
		return nil, errors.ErrProvider.WithMessagef("embedder down")
	}

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

func twoFactCompletion() *stubCompletion {
	return &stubCompletion{
		payload: `{
			"facts": ["Alice likes pizza", "Alice works at Acme"],
			"strand": "factual"
		}`,
	}
}

func twoFactEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"Alice likes pizza":   {0, 1, 0},
		"Alice works at Acme": {1, 0, 0},
		"What does Alice do":  {1, 0, 0},
	}}
}

func TestAddMemoryTwoFactsFormSynapsePair(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()
	manager := New(store, twoFactEmbedder(), twoFactCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza. Alice works at Acme.",
	})
	require.NoError(t, err)
	require.Nil(t, result.FailedAt)
	require.Len(t, result.Engrams, 2)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Reinforced)

	first, second := result.Engrams[0], result.Engrams[1]
	assert.Equal(t, engram.StrandFactual, first.Strand)
	assert.NotEmpty(t, first.ContentHash)

	forward, err := store.GetSynapse(ctx, first.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, forward.Weight)

	backward, err := store.GetSynapse(ctx, second.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, backward.Weight)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Engrams)
	assert.Equal(t, 2, stats.Synapses)
}

func TestSearchReachesAssociatedMemory(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()
	manager := New(store, twoFactEmbedder(), twoFactCompletion())

	_, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza. Alice works at Acme.",
	})
	require.NoError(t, err)

	result, err := manager.Search(ctx, engram.SearchQuery{
		OwnerID: "owner-1",
		Query:   "What does Alice do",
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	var pizzaTrace *engram.RetrievalTrace

	for i := range result.Hits {
		if result.Hits[i].Engram.Content == "Alice likes pizza" {
			pizzaTrace = &result.Hits[i].Trace
		}
	}

	require.NotNil(t, pizzaTrace, "the associated fact must surface via expansion")
	assert.Positive(t, pizzaTrace.SynapseBoost)
}

func TestAddMemoryTwiceReinforcesInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	completion := &stubCompletion{
		payload: `{"facts": ["Alice likes pizza"], "strand": "factual"}`,
	}
	manager := New(store, twoFactEmbedder(), completion)

	first, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza",
	})
	require.NoError(t, err)
	require.Len(t, first.Engrams, 1)
	assert.Equal(t, 1, first.Created)

	second, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza",
	})
	require.NoError(t, err)
	require.Len(t, second.Engrams, 1)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Reinforced)
	assert.Equal(t, first.Engrams[0].ID, second.Engrams[0].ID)

	stored, err := store.GetEngram(ctx, first.Engrams[0].ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, stored.Signal, 1e-12)
	assert.Equal(t, 1, stored.AccessCount)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Engrams)

	// Sequential calls dedup correctly because each check runs after the
	// prior ingestion committed. Two concurrent calls with near-duplicate
	// content can both pass the check before either commits and store
	// twins; there is no cross-request lock, and that race is accepted.
}

func TestAddMemoryNoRollbackOnMidCallFailure(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	embedder := twoFactEmbedder()
	embedder.failOn = "Alice works at Acme"

	manager := New(store, embedder, twoFactCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza. Alice works at Acme.",
	})

	// The failure propagates; the partial result rides alongside it.
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProvider))
	require.NotNil(t, result)
	require.NotNil(t, result.FailedAt)
	assert.Equal(t, 1, *result.FailedAt)
	assert.NotEmpty(t, result.Failure)
	require.Len(t, result.Engrams, 1)

	// The first fact stays persisted.
	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Engrams)
}

func TestAddMemoryExplicitStrandWins(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()
	manager := New(store, twoFactEmbedder(), twoFactCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "Alice likes pizza. Alice works at Acme.",
		Strand:  engram.StrandPreferential,
	})
	require.NoError(t, err)

	for _, eng := range result.Engrams {
		assert.Equal(t, engram.StrandPreferential, eng.Strand)
	}
}

func TestAddMemoryStoresTemporalFactsInMetadata(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	completion := &stubCompletion{
		payload: `{
			"facts": ["John lives in Berlin"],
			"strand": "factual",
			"temporalFacts": [
				{"entity": "John", "attribute": "city", "value": "Berlin"}
			]
		}`,
	}
	manager := New(store, &stubEmbedder{}, completion)

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "John lives in Berlin",
	})
	require.NoError(t, err)
	require.Len(t, result.Engrams, 1)

	temporal, ok := result.Engrams[0].Metadata["temporal"].([]engram.TemporalFact)
	require.True(t, ok)
	require.Len(t, temporal, 1)
	assert.Equal(t, "John", temporal[0].Entity)
}

func TestAddMemoryValidation(t *testing.T) {
	ctx := context.Background()
	manager := New(stores.NewInMemoryStore(), &stubEmbedder{}, provider.NewNativeCompletion())

	_, err := manager.AddMemory(ctx, engram.CreateInput{Content: "no owner"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = manager.AddMemory(ctx, engram.CreateInput{OwnerID: "owner-1"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestGetEngramRecordsAccess(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()
	manager := New(store, &stubEmbedder{}, provider.NewNativeCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "remember me",
	})
	require.NoError(t, err)
	require.Len(t, result.Engrams, 1)

	got, err := manager.GetEngram(ctx, result.Engrams[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)

	_, err = manager.GetEngram(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateEngramContentChangeReembeds(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"old content": {1, 0, 0},
		"new content": {0, 1, 0},
	}}
	manager := New(store, embedder, provider.NewNativeCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "old content",
	})
	require.NoError(t, err)
	original := result.Engrams[0]

	content := "new content"
	updated, err := manager.UpdateEngram(ctx, original.ID, engram.UpdateInput{
		Content: &content,
	})
	require.NoError(t, err)

	assert.Equal(t, "new content", updated.Content)
	assert.NotEqual(t, original.ContentHash, updated.ContentHash)

	stored, err := store.GetEngram(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, stored.Embedding)
}

func TestDeleteAndListEngrams(t *testing.T) {
	ctx := context.Background()
	store := stores.NewInMemoryStore()
	manager := New(store, &stubEmbedder{}, provider.NewNativeCompletion())

	result, err := manager.AddMemory(ctx, engram.CreateInput{
		OwnerID: "owner-1",
		Content: "short lived",
	})
	require.NoError(t, err)

	engrams, total, err := manager.ListEngrams(ctx, "owner-1", stores.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, engrams, 1)

	deleted, err := manager.DeleteEngram(ctx, result.Engrams[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = manager.DeleteEngram(ctx, result.Engrams[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, total, err = manager.ListEngrams(ctx, "owner-1", stores.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
