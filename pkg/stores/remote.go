package stores

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/scoring"
	"github.com/theapemachine/neurostore/pkg/stores/neo4j"
	"github.com/theapemachine/neurostore/pkg/stores/qdrant"
)

/*
RemoteStore implements Store over two backends: engram points with
their vectors live in Qdrant, the synapse graph lives in Neo4j.  Access
bookkeeping and reinforcement are read-modify-write round trips, not
atomic; lost updates under concurrent access cost ranking precision,
never correctness of the stored content.
*/
type RemoteStore struct {
	vectors *qdrant.Client
	graph   *neo4j.Client
	clock   func() time.Time
}

type RemoteStoreOption func(*RemoteStore)

func NewRemoteStore(
	vectors *qdrant.Client, graph *neo4j.Client, options ...RemoteStoreOption,
) *RemoteStore {
	store := &RemoteStore{
		vectors: vectors,
		graph:   graph,
		clock:   time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

func WithRemoteClock(clock func() time.Time) RemoteStoreOption {
	return func(store *RemoteStore) {
		store.clock = clock
	}
}

func (store *RemoteStore) CreateEngram(
	ctx context.Context, eng engram.Engram,
) (*engram.Engram, error) {
	now := store.clock()

	if eng.ID == "" {
		eng.ID = uuid.NewString()
	}

	eng.CreatedAt = now
	eng.UpdatedAt = now
	eng.AccessedAt = now

	if err := store.putEngram(ctx, eng); err != nil {
		return nil, err
	}

	return &eng, nil
}

func (store *RemoteStore) GetEngram(
	ctx context.Context, id string,
) (*engram.Engram, error) {
	point, err := store.vectors.Get(ctx, id)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	if point == nil {
		return nil, errors.ErrNotFound.WithMessagef("engram %s not found", id)
	}

	eng, err := engramFromPoint(*point)

	if err != nil {
		return nil, err
	}

	return eng, nil
}

func (store *RemoteStore) UpdateEngram(
	ctx context.Context, id string, update UpdateFields,
) (*engram.Engram, error) {
	eng, err := store.GetEngram(ctx, id)

	if err != nil {
		return nil, err
	}

	if update.Content != nil {
		eng.Content = *update.Content
	}
	if update.ContentHash != nil {
		eng.ContentHash = *update.ContentHash
	}
	if update.Embedding != nil {
		eng.Embedding = update.Embedding
	}
	if update.Strand != nil {
		eng.Strand = *update.Strand
	}
	if update.Tags != nil {
		eng.Tags = update.Tags
	}
	if update.Metadata != nil {
		eng.Metadata = update.Metadata
	}
	if update.Signal != nil {
		eng.Signal = *update.Signal
	}

	eng.UpdatedAt = store.clock()

	if err := store.putEngram(ctx, *eng); err != nil {
		return nil, err
	}

	return eng, nil
}

func (store *RemoteStore) DeleteEngram(
	ctx context.Context, id string,
) (bool, error) {
	point, err := store.vectors.Get(ctx, id)

	if err != nil {
		return false, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	if point == nil {
		return false, nil
	}

	if err := store.vectors.Delete(ctx, []string{id}); err != nil {
		return false, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	if err := store.graph.DeleteNode(ctx, id); err != nil {
		return false, errors.ErrStore.WithMessagef("graph backend: %s", err)
	}

	return true, nil
}

func (store *RemoteStore) ListEngrams(
	ctx context.Context, ownerID string, opts ListOptions,
) ([]engram.Engram, int, error) {
	filter := qdrant.OwnerFilter(ownerID, strandCondition(opts.Strand))

	total, err := store.vectors.Count(ctx, filter)

	if err != nil {
		return nil, 0, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	if total == 0 {
		return []engram.Engram{}, 0, nil
	}

	points, err := store.vectors.Scroll(ctx, filter, total)

	if err != nil {
		return nil, 0, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	engrams := make([]engram.Engram, 0, len(points))

	for _, point := range points {
		eng, err := engramFromPoint(point)

		if err != nil {
			return nil, 0, err
		}

		engrams = append(engrams, *eng)
	}

	// Scroll pages in point-id order; creation order is the contract.
	sort.SliceStable(engrams, func(a, b int) bool {
		if engrams[a].CreatedAt.Equal(engrams[b].CreatedAt) {
			return engrams[a].ID < engrams[b].ID
		}

		return engrams[a].CreatedAt.Before(engrams[b].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(engrams) {
			return []engram.Engram{}, total, nil
		}

		engrams = engrams[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(engrams) {
		engrams = engrams[:opts.Limit]
	}

	return engrams, total, nil
}

func (store *RemoteStore) VectorSearch(
	ctx context.Context, ownerID string, embedding []float32, limit int, strand engram.Strand,
) ([]VectorMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	filter := qdrant.OwnerFilter(ownerID, strandCondition(strand))

	points, err := store.vectors.Search(ctx, embedding, limit, filter)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	matches := make([]VectorMatch, 0, len(points))

	for _, point := range points {
		if point.Score <= 0 {
			continue
		}

		eng, err := engramFromPoint(point.Point)

		if err != nil {
			return nil, err
		}

		matches = append(matches, VectorMatch{Engram: *eng, Score: point.Score})
	}

	return matches, nil
}

func (store *RemoteStore) FindByContentHash(
	ctx context.Context, ownerID, hash string,
) (*engram.Engram, error) {
	filter := qdrant.OwnerFilter(ownerID, map[string]any{"contentHash": hash})

	points, err := store.vectors.Scroll(ctx, filter, 1)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	if len(points) == 0 {
		return nil, errors.ErrNotFound.WithMessagef("no engram with hash %s", hash)
	}

	return engramFromPoint(points[0])
}

func (store *RemoteStore) GetSynapse(
	ctx context.Context, sourceID, targetID string,
) (*engram.Synapse, error) {
	syn, err := store.graph.GetSynapse(ctx, sourceID, targetID)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("graph backend: %s", err)
	}

	if syn == nil {
		return nil, errors.ErrNotFound.WithMessagef(
			"no synapse %s -> %s", sourceID, targetID,
		)
	}

	return syn, nil
}

func (store *RemoteStore) PutSynapse(
	ctx context.Context, syn engram.Synapse,
) error {
	if syn.CreatedAt.IsZero() {
		syn.CreatedAt = store.clock()
	}

	if err := store.graph.MergeSynapse(ctx, syn); err != nil {
		return errors.ErrStore.WithMessagef("graph backend: %s", err)
	}

	return nil
}

func (store *RemoteStore) GetSynapsesFrom(
	ctx context.Context, id string,
) ([]engram.Synapse, error) {
	synapses, err := store.graph.SynapsesFrom(ctx, id)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("graph backend: %s", err)
	}

	return synapses, nil
}

func (store *RemoteStore) RecordAccess(ctx context.Context, id string) error {
	eng, err := store.GetEngram(ctx, id)

	if err != nil {
		return err
	}

	eng.AccessCount++
	eng.AccessedAt = store.clock()

	return store.putEngram(ctx, *eng)
}

func (store *RemoteStore) ReinforceEngram(
	ctx context.Context, id string, boost float64,
) (*engram.Engram, error) {
	eng, err := store.GetEngram(ctx, id)

	if err != nil {
		return nil, err
	}

	eng.Signal = scoring.Clamp(eng.Signal+boost, 0, 1)
	eng.AccessCount++
	eng.AccessedAt = store.clock()

	if err := store.putEngram(ctx, *eng); err != nil {
		return nil, err
	}

	return eng, nil
}

func (store *RemoteStore) GetStats(ctx context.Context) (Stats, error) {
	engrams, err := store.vectors.Count(ctx, nil)

	if err != nil {
		return Stats{}, errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	synapses, err := store.graph.CountSynapses(ctx)

	if err != nil {
		return Stats{}, errors.ErrStore.WithMessagef("graph backend: %s", err)
	}

	return Stats{Engrams: engrams, Synapses: synapses}, nil
}

func (store *RemoteStore) HealthCheck(ctx context.Context) (Health, error) {
	if err := store.vectors.Ping(ctx); err != nil {
		return Health{OK: false, Type: "qdrant+neo4j"}, nil
	}

	if err := store.graph.Ping(ctx); err != nil {
		return Health{OK: false, Type: "qdrant+neo4j"}, nil
	}

	return Health{OK: true, Type: "qdrant+neo4j"}, nil
}

func (store *RemoteStore) putEngram(ctx context.Context, eng engram.Engram) error {
	payload, err := engramPayload(eng)

	if err != nil {
		return err
	}

	if err := store.vectors.Upsert(ctx, []qdrant.Point{{
		ID:      eng.ID,
		Vector:  eng.Embedding,
		Payload: payload,
	}}); err != nil {
		return errors.ErrStore.WithMessagef("vector backend: %s", err)
	}

	return nil
}

/*
engramPayload flattens an engram into a Qdrant payload.  The embedding
travels as the point vector, not in the payload; ownerId, contentHash
and strand stay top-level so filters can match them.
*/
func engramPayload(eng engram.Engram) (map[string]any, error) {
	eng.Embedding = nil

	raw, err := json.Marshal(eng)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("encode engram: %s", err)
	}

	var payload map[string]any

	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.ErrStore.WithMessagef("encode engram: %s", err)
	}

	return payload, nil
}

func engramFromPoint(point qdrant.Point) (*engram.Engram, error) {
	raw, err := json.Marshal(point.Payload)

	if err != nil {
		return nil, errors.ErrStore.WithMessagef("decode engram: %s", err)
	}

	var eng engram.Engram

	if err := json.Unmarshal(raw, &eng); err != nil {
		return nil, errors.ErrStore.WithMessagef("decode engram: %s", err)
	}

	eng.ID = point.ID
	eng.Embedding = point.Vector

	return &eng, nil
}

func strandCondition(strand engram.Strand) map[string]any {
	if strand == "" {
		return nil
	}

	return map[string]any{"strand": string(strand)}
}
