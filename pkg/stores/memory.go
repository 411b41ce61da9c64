package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/scoring"
)

/*
InMemoryStore keeps the whole corpus in mutex-guarded maps with a
brute-force cosine scan standing in for a vector index.  It is the
default backend for local runs and the fixture for every pipeline test;
production deployments swap in the Qdrant/Neo4j composite.
*/
type InMemoryStore struct {
	mu       sync.RWMutex
	engrams  map[string]*engram.Engram
	order    []string // insertion order, the deterministic tie-break
	synapses map[string]map[string]*engram.Synapse
	clock    func() time.Time
}

type InMemoryStoreOption func(*InMemoryStore)

func NewInMemoryStore(options ...InMemoryStoreOption) *InMemoryStore {
	store := &InMemoryStore{
		engrams:  make(map[string]*engram.Engram),
		synapses: make(map[string]map[string]*engram.Synapse),
		clock:    time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

/*
WithClock overrides the time source, which lets decay and recency tests
move time forward deterministically.
*/
func WithClock(clock func() time.Time) InMemoryStoreOption {
	return func(store *InMemoryStore) {
		store.clock = clock
	}
}

func (store *InMemoryStore) CreateEngram(
	ctx context.Context, eng engram.Engram,
) (*engram.Engram, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.clock()

	if eng.ID == "" {
		eng.ID = uuid.NewString()
	}

	eng.CreatedAt = now
	eng.UpdatedAt = now
	eng.AccessedAt = now

	_, existed := store.engrams[eng.ID]

	stored := eng
	store.engrams[stored.ID] = &stored

	if !existed {
		store.order = append(store.order, stored.ID)
	}

	out := stored
	return &out, nil
}

func (store *InMemoryStore) GetEngram(
	ctx context.Context, id string,
) (*engram.Engram, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	eng, ok := store.engrams[id]

	if !ok {
		return nil, errors.ErrNotFound.WithMessagef("engram %s not found", id)
	}

	out := *eng
	return &out, nil
}

func (store *InMemoryStore) UpdateEngram(
	ctx context.Context, id string, update UpdateFields,
) (*engram.Engram, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	eng, ok := store.engrams[id]

	if !ok {
		return nil, errors.ErrNotFound.WithMessagef("engram %s not found", id)
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

	out := *eng
	return &out, nil
}

func (store *InMemoryStore) DeleteEngram(
	ctx context.Context, id string,
) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.engrams[id]; !ok {
		return false, nil
	}

	delete(store.engrams, id)
	delete(store.synapses, id)

	for i, ordered := range store.order {
		if ordered == id {
			store.order = append(store.order[:i], store.order[i+1:]...)
			break
		}
	}

	for _, targets := range store.synapses {
		delete(targets, id)
	}

	return true, nil
}

func (store *InMemoryStore) ListEngrams(
	ctx context.Context, ownerID string, opts ListOptions,
) ([]engram.Engram, int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var owned []engram.Engram

	for _, id := range store.order {
		eng := store.engrams[id]

		if eng.OwnerID != ownerID {
			continue
		}
		if opts.Strand != "" && eng.Strand != opts.Strand {
			continue
		}

		owned = append(owned, *eng)
	}

	total := len(owned)

	if opts.Offset > 0 {
		if opts.Offset >= len(owned) {
			return nil, total, nil
		}
		owned = owned[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(owned) {
		owned = owned[:opts.Limit]
	}

	return owned, total, nil
}

func (store *InMemoryStore) VectorSearch(
	ctx context.Context, ownerID string, embedding []float32, limit int, strand engram.Strand,
) ([]VectorMatch, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var matches []VectorMatch

	for _, id := range store.order {
		eng := store.engrams[id]

		if eng.OwnerID != ownerID {
			continue
		}
		if strand != "" && eng.Strand != strand {
			continue
		}

		score := scoring.CosineSimilarity(embedding, eng.Embedding)

		// Orthogonal or opposed vectors are not matches; returning them
		// would let unrelated memories pad the candidate set.
		if score <= 0 {
			continue
		}

		matches = append(matches, VectorMatch{
			Engram: *eng,
			Score:  score,
		})
	}

	// Stable keeps insertion order for equal scores, which makes search
	// results reproducible across runs.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}

	return matches, nil
}

func (store *InMemoryStore) FindByContentHash(
	ctx context.Context, ownerID, hash string,
) (*engram.Engram, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, id := range store.order {
		eng := store.engrams[id]

		if eng.OwnerID == ownerID && eng.ContentHash == hash {
			out := *eng
			return &out, nil
		}
	}

	return nil, errors.ErrNotFound.WithMessagef("no engram with hash %s", hash)
}

func (store *InMemoryStore) GetSynapse(
	ctx context.Context, sourceID, targetID string,
) (*engram.Synapse, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if targets, ok := store.synapses[sourceID]; ok {
		if syn, ok := targets[targetID]; ok {
			out := *syn
			return &out, nil
		}
	}

	return nil, errors.ErrNotFound.WithMessagef(
		"no synapse %s -> %s", sourceID, targetID,
	)
}

func (store *InMemoryStore) PutSynapse(
	ctx context.Context, syn engram.Synapse,
) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if syn.CreatedAt.IsZero() {
		syn.CreatedAt = store.clock()
	}

	targets, ok := store.synapses[syn.SourceID]

	if !ok {
		targets = make(map[string]*engram.Synapse)
		store.synapses[syn.SourceID] = targets
	}

	stored := syn
	targets[syn.TargetID] = &stored

	return nil
}

func (store *InMemoryStore) GetSynapsesFrom(
	ctx context.Context, id string,
) ([]engram.Synapse, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	targets := store.synapses[id]
	out := make([]engram.Synapse, 0, len(targets))

	for _, syn := range targets {
		out = append(out, *syn)
	}

	// Map iteration is randomized; edge order must be deterministic for
	// the first-arrival-wins traversal to be reproducible.
	sort.Slice(out, func(i, j int) bool {
		return out[i].TargetID < out[j].TargetID
	})

	return out, nil
}

func (store *InMemoryStore) RecordAccess(
	ctx context.Context, id string,
) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	eng, ok := store.engrams[id]

	if !ok {
		return errors.ErrNotFound.WithMessagef("engram %s not found", id)
	}

	eng.AccessCount++
	eng.AccessedAt = store.clock()

	return nil
}

func (store *InMemoryStore) ReinforceEngram(
	ctx context.Context, id string, boost float64,
) (*engram.Engram, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	eng, ok := store.engrams[id]

	if !ok {
		return nil, errors.ErrNotFound.WithMessagef("engram %s not found", id)
	}

	eng.Signal = scoring.Clamp(eng.Signal+boost, 0, 1)
	eng.AccessCount++
	eng.AccessedAt = store.clock()

	out := *eng
	return &out, nil
}

func (store *InMemoryStore) GetStats(ctx context.Context) (Stats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	synapses := 0

	for _, targets := range store.synapses {
		synapses += len(targets)
	}

	return Stats{Engrams: len(store.engrams), Synapses: synapses}, nil
}

func (store *InMemoryStore) HealthCheck(ctx context.Context) (Health, error) {
	return Health{OK: true, Type: "memory"}, nil
}
