package memory

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/association"
	"github.com/theapemachine/neurostore/pkg/decay"
	"github.com/theapemachine/neurostore/pkg/dedup"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/extraction"
	"github.com/theapemachine/neurostore/pkg/provider"
	"github.com/theapemachine/neurostore/pkg/retrieval"
	"github.com/theapemachine/neurostore/pkg/stores"
	"github.com/theapemachine/neurostore/pkg/stores/s3"
)

/*
IngestResult reports what one AddMemory call stored.  Ingestion is not
transactional across facts: when a later fact fails, earlier engrams
stay persisted, FailedAt points at the fact that broke, and Engrams
holds everything processed before it.
*/
type IngestResult struct {
	Engrams    []engram.Engram `json:"engrams"`
	Created    int             `json:"created"`
	Reinforced int             `json:"reinforced"`
	FailedAt   *int            `json:"failedAt,omitempty"`
	Failure    string          `json:"failure,omitempty"`
}

/*
Manager coordinates the full memory pipeline: extraction, per-fact
dedup and storage, association forming, decay and retrieval.  It is the
single entry point the API layer talks to.
*/
type Manager struct {
	store     stores.Store
	embedder  provider.Embedder
	extractor *extraction.Extractor
	checker   *dedup.Checker
	former    *association.Former
	decay     *decay.Service
	retrieval *retrieval.Pipeline
	archive   *s3.Archive
}

type ManagerOption func(*Manager)

func New(
	store stores.Store,
	embedder provider.Embedder,
	completion provider.Completion,
	options ...ManagerOption,
) *Manager {
	manager := &Manager{
		store:     store,
		embedder:  embedder,
		extractor: extraction.New(completion),
		checker:   dedup.New(store),
		former:    association.New(store),
		decay:     decay.New(store),
		retrieval: retrieval.New(store, embedder),
	}

	for _, option := range options {
		option(manager)
	}

	return manager
}

func WithRetrieval(pipeline *retrieval.Pipeline) ManagerOption {
	return func(manager *Manager) {
		manager.retrieval = pipeline
	}
}

func WithDecay(service *decay.Service) ManagerOption {
	return func(manager *Manager) {
		manager.decay = service
	}
}

func WithArchive(archive *s3.Archive) ManagerOption {
	return func(manager *Manager) {
		manager.archive = archive
	}
}

/*
AddMemory ingests raw content.  Extraction runs once; each fact is then
embedded, checked for duplicates and either reinforced or stored, in
strict order so every dedup check sees the facts stored before it in
the same call.  Afterwards every unordered pair of resulting engrams is
associated at weight 0.5.  A mid-call failure never rolls back earlier
facts: the partial result names what was stored before the break and is
returned alongside the error, not instead of it.  Concurrent calls with
near-duplicate content can both pass dedup and store twins, which is an
accepted limitation.
*/
func (manager *Manager) AddMemory(
	ctx context.Context, input engram.CreateInput,
) (*IngestResult, error) {
	if input.OwnerID == "" {
		return nil, errors.ErrValidation.WithMessagef("ingestion requires an owner id")
	}

	if input.Content == "" {
		return nil, errors.ErrValidation.WithMessagef("ingestion requires content")
	}

	log.Info(
		"adding memory",
		"ownerId", input.OwnerID,
		"contentLength", len(input.Content),
	)

	extracted := manager.extractor.Extract(ctx, input.Content)

	effectiveStrand := extracted.Strand

	if input.Strand != "" {
		effectiveStrand = engram.ParseStrand(string(input.Strand))
	}

	result := &IngestResult{Engrams: []engram.Engram{}}

	for i, fact := range extracted.Facts {
		stored, created, err := manager.ingestFact(
			ctx, input, fact, effectiveStrand, extracted.TemporalFacts,
		)

		if err != nil {
			log.Error(
				"fact ingestion failed",
				"ownerId", input.OwnerID,
				"fact", i,
				"error", err,
			)

			failedAt := i
			result.FailedAt = &failedAt
			result.Failure = err.Error()

			return result, err
		}

		if created {
			result.Created++
		} else {
			result.Reinforced++
		}

		result.Engrams = append(result.Engrams, *stored)
	}

	manager.associatePairwise(ctx, input.OwnerID, result.Engrams)

	return result, nil
}

func (manager *Manager) ingestFact(
	ctx context.Context,
	input engram.CreateInput,
	fact string,
	strand engram.Strand,
	temporal []engram.TemporalFact,
) (*engram.Engram, bool, error) {
	embedding, err := manager.embedder.Embed(ctx, fact)

	if err != nil {
		return nil, false, errors.ErrProvider.WithMessagef(
			"failed to embed fact: %s", err,
		)
	}

	check, err := manager.checker.CheckDuplicate(ctx, input.OwnerID, fact, embedding)

	if err != nil {
		return nil, false, err
	}

	if check.IsDuplicate {
		log.Debug(
			"duplicate found, reinforcing",
			"engramId", check.Existing.ID,
			"similarity", check.Similarity,
		)

		reinforced, err := manager.decay.ReinforceAccess(
			ctx, check.Existing.ID, decay.DuplicateBoost,
		)

		if err != nil {
			return nil, false, err
		}

		return reinforced, false, nil
	}

	metadata := cloneMetadata(input.Metadata)

	if len(temporal) > 0 {
		metadata["temporal"] = temporal
	}

	created, err := manager.store.CreateEngram(ctx, engram.Engram{
		OwnerID:     input.OwnerID,
		Content:     fact,
		ContentHash: dedup.ComputeHash(fact),
		Embedding:   embedding,
		Strand:      strand,
		Tags:        input.Tags,
		Metadata:    metadata,
		Signal:      input.Signal,
		PulseRate:   input.PulseRate,
	})

	if err != nil {
		return nil, false, err
	}

	return created, true, nil
}

func (manager *Manager) associatePairwise(
	ctx context.Context, ownerID string, engrams []engram.Engram,
) {
	for i := 0; i < len(engrams); i++ {
		for j := i + 1; j < len(engrams); j++ {
			if engrams[i].ID == engrams[j].ID {
				continue
			}

			if err := manager.former.FormSynapse(
				ctx, engrams[i].ID, engrams[j].ID, ownerID, association.DefaultWeight,
			); err != nil {
				log.Warn(
					"synapse formation failed",
					"sourceId", engrams[i].ID,
					"targetId", engrams[j].ID,
					"error", err,
				)
			}
		}
	}
}

/*
Search delegates to the retrieval pipeline.
*/
func (manager *Manager) Search(
	ctx context.Context, query engram.SearchQuery,
) (*engram.SearchResult, error) {
	return manager.retrieval.Search(ctx, query)
}

/*
GetEngram fetches a memory by id and records the access, so reads feed
back into recency and access-count ranking.
*/
func (manager *Manager) GetEngram(
	ctx context.Context, id string,
) (*engram.Engram, error) {
	if err := manager.store.RecordAccess(ctx, id); err != nil {
		return nil, err
	}

	return manager.store.GetEngram(ctx, id)
}

/*
UpdateEngram applies a partial update.  A content change recomputes the
embedding and content hash so dedup and vector search stay consistent
with what is stored.
*/
func (manager *Manager) UpdateEngram(
	ctx context.Context, id string, input engram.UpdateInput,
) (*engram.Engram, error) {
	update := stores.UpdateFields{
		Content:  input.Content,
		Tags:     input.Tags,
		Metadata: input.Metadata,
		Signal:   input.Signal,
	}

	if input.Strand != nil {
		strand := engram.ParseStrand(string(*input.Strand))
		update.Strand = &strand
	}

	if input.Content != nil {
		embedding, err := manager.embedder.Embed(ctx, *input.Content)

		if err != nil {
			return nil, errors.ErrProvider.WithMessagef(
				"failed to re-embed content: %s", err,
			)
		}

		hash := dedup.ComputeHash(*input.Content)
		update.Embedding = embedding
		update.ContentHash = &hash
	}

	return manager.store.UpdateEngram(ctx, id, update)
}

func (manager *Manager) DeleteEngram(ctx context.Context, id string) (bool, error) {
	return manager.store.DeleteEngram(ctx, id)
}

func (manager *Manager) ListEngrams(
	ctx context.Context, ownerID string, opts stores.ListOptions,
) ([]engram.Engram, int, error) {
	return manager.store.ListEngrams(ctx, ownerID, opts)
}

/*
ReinforceEngram applies an explicit signal boost, clamped at 1.0.
*/
func (manager *Manager) ReinforceEngram(
	ctx context.Context, id string, boost float64,
) (*engram.Engram, error) {
	return manager.decay.ReinforceAccess(ctx, id, boost)
}

/*
RunDecay ages every engram the owner holds and reports how many signals
changed.
*/
func (manager *Manager) RunDecay(ctx context.Context, ownerID string) (int, error) {
	return manager.decay.RunDecay(ctx, ownerID)
}

/*
SnapshotOwner archives an owner's corpus to object storage and returns
the key it was written under.
*/
func (manager *Manager) SnapshotOwner(
	ctx context.Context, ownerID string,
) (string, error) {
	if manager.archive == nil {
		return "", errors.ErrStore.WithMessagef("no archive configured")
	}

	return manager.archive.SnapshotOwner(ctx, manager.store, ownerID)
}

/*
RestoreOwner loads a previously taken snapshot back into the live store.
*/
func (manager *Manager) RestoreOwner(
	ctx context.Context, ownerID, key string,
) (int, error) {
	if manager.archive == nil {
		return 0, errors.ErrStore.WithMessagef("no archive configured")
	}

	return manager.archive.RestoreOwner(ctx, manager.store, ownerID, key)
}

func (manager *Manager) GetStats(ctx context.Context) (stores.Stats, error) {
	return manager.store.GetStats(ctx)
}

func (manager *Manager) HealthCheck(ctx context.Context) (stores.Health, error) {
	return manager.store.HealthCheck(ctx)
}

func cloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)

	for key, value := range metadata {
		out[key] = value
	}

	return out
}
