package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/provider"
	"github.com/theapemachine/neurostore/pkg/scoring"
	"github.com/theapemachine/neurostore/pkg/stores"
)

// seedCount caps how many top vector candidates seed graph expansion.
const seedCount = 5

/*
Config tunes the fused ranking.  The five weights nominally sum to 1.0
but nothing enforces that; recency fades on a half-life curve and cuts
off entirely past the max window.
*/
type Config struct {
	VectorWeight        float64
	KeywordWeight       float64
	RecencyWeight       float64
	SignalWeight        float64
	SynapseWeight       float64
	RecencyHalfLifeDays float64
	RecencyMaxDays      float64
	SynapseDepth        int
	SynapseDecay        float64
}

func DefaultConfig() Config {
	return Config{
		VectorWeight:        0.40,
		KeywordWeight:       0.20,
		RecencyWeight:       0.10,
		SignalWeight:        0.15,
		SynapseWeight:       0.15,
		RecencyHalfLifeDays: 7,
		RecencyMaxDays:      90,
		SynapseDepth:        2,
		SynapseDecay:        0.8,
	}
}

/*
Pipeline executes retrieval end to end: embed the query, over-fetch
vector candidates, rescore them lexically, expand the synapse graph from
the strongest seeds, fuse the channels into one score per candidate, and
rank.  Access recording for returned hits happens in the background and
never delays the response.
*/
type Pipeline struct {
	store    stores.Store
	embedder provider.Embedder
	bm25     *scoring.BM25
	config   Config
	clock    func() time.Time
}

type PipelineOption func(*Pipeline)

func New(
	store stores.Store, embedder provider.Embedder, options ...PipelineOption,
) *Pipeline {
	pipeline := &Pipeline{
		store:    store,
		embedder: embedder,
		bm25:     scoring.NewBM25(),
		config:   DefaultConfig(),
		clock:    time.Now,
	}

	for _, option := range options {
		option(pipeline)
	}

	return pipeline
}

func WithConfig(config Config) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.config = config
	}
}

func WithPipelineClock(clock func() time.Time) PipelineOption {
	return func(pipeline *Pipeline) {
		pipeline.clock = clock
	}
}

func (pipeline *Pipeline) Search(
	ctx context.Context, query engram.SearchQuery,
) (*engram.SearchResult, error) {
	if query.OwnerID == "" {
		return nil, errors.ErrValidation.WithMessagef("search requires an owner id")
	}

	if query.Query == "" {
		return nil, errors.ErrValidation.WithMessagef("search requires query text")
	}

	started := pipeline.clock()
	limit := query.EffectiveLimit()

	queryEmbedding, err := pipeline.embedder.Embed(ctx, query.Query)

	if err != nil {
		return nil, errors.ErrProvider.WithMessagef(
			"failed to embed query: %s", err,
		)
	}

	// Over-fetch so the re-ranking channels have material beyond the
	// final page.
	candidates, err := pipeline.store.VectorSearch(
		ctx, query.OwnerID, queryEmbedding, limit*3, query.Strand,
	)

	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return &engram.SearchResult{
			Hits:  []engram.SearchHit{},
			Total: 0,
			Query: query.Query,
			Took:  pipeline.clock().Sub(started).Milliseconds(),
		}, nil
	}

	docs := make([]scoring.Document, len(candidates))

	for i, candidate := range candidates {
		docs[i] = scoring.Document{
			ID:      candidate.Engram.ID,
			Content: candidate.Engram.Content,
		}
	}

	keywordByID := pipeline.bm25.Score(query.Query, docs)

	vectorScores := make([]float64, len(candidates))
	keywordScores := make([]float64, len(candidates))

	for i, candidate := range candidates {
		vectorScores[i] = candidate.Score
		keywordScores[i] = keywordByID[candidate.Engram.ID]
	}

	normVector := scoring.MinMaxNormalize(vectorScores)
	normKeyword := scoring.MinMaxNormalize(keywordScores)

	boosts := map[string]float64{}

	if query.Expand() {
		seeds := make([]string, 0, seedCount)

		for i := 0; i < len(candidates) && i < seedCount; i++ {
			seeds = append(seeds, candidates[i].Engram.ID)
		}

		boosts, err = pipeline.expandSynapses(ctx, seeds)

		if err != nil {
			return nil, err
		}
	}

	// Expansion can reach memories the vector shortlist never saw; they
	// enter the scored set with empty vector and keyword channels so the
	// graph alone decides whether they make the page.
	expanded, err := pipeline.collectExpanded(ctx, query, candidates, boosts)

	if err != nil {
		return nil, err
	}

	now := pipeline.clock()
	hits := make([]engram.SearchHit, 0, len(candidates)+len(expanded))

	for i, candidate := range candidates {
		hits = append(hits, pipeline.scoreHit(
			candidate.Engram, normVector[i], normKeyword[i],
			boosts[candidate.Engram.ID], now,
		))
	}

	for _, eng := range expanded {
		hits = append(hits, pipeline.scoreHit(eng, 0, 0, boosts[eng.ID], now))
	}

	// Candidate order is the tie-break, which keeps equal scores in
	// vector-search order.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Trace.FinalScore > hits[b].Trace.FinalScore
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	accessed := make([]string, len(hits))

	for i, hit := range hits {
		accessed[i] = hit.Engram.ID
	}

	go pipeline.recordAccessed(accessed)

	return &engram.SearchResult{
		Hits:  hits,
		Total: len(hits),
		Query: query.Query,
		Took:  pipeline.clock().Sub(started).Milliseconds(),
	}, nil
}

func (pipeline *Pipeline) scoreHit(
	eng engram.Engram, normVector, normKeyword, boost float64, now time.Time,
) engram.SearchHit {
	days := now.Sub(eng.AccessedAt).Hours() / 24

	// A future access timestamp (clock skew, restored snapshot) counts as
	// fresh; it must not inflate the boost past RecencyWeight.
	if days < 0 {
		days = 0
	}

	recencyBoost := pipeline.config.RecencyWeight *
		math.Exp(-days/pipeline.config.RecencyHalfLifeDays) *
		scoring.Clamp(1-days/pipeline.config.RecencyMaxDays, 0, 1)

	signalBoost := pipeline.config.SignalWeight * eng.Signal
	synapseBoost := pipeline.config.SynapseWeight * boost

	finalScore := pipeline.config.VectorWeight*normVector +
		pipeline.config.KeywordWeight*normKeyword +
		recencyBoost + signalBoost + synapseBoost

	eng.Embedding = nil

	return engram.SearchHit{
		Engram: eng,
		Trace: engram.RetrievalTrace{
			VectorScore:  normVector,
			KeywordScore: normKeyword,
			RecencyBoost: recencyBoost,
			SignalBoost:  signalBoost,
			SynapseBoost: synapseBoost,
			FinalScore:   finalScore,
		},
	}
}

/*
collectExpanded resolves traversal-reached engrams that the vector
shortlist missed, in deterministic id order.  The query's strand filter
still applies; an engram deleted mid-query is skipped.
*/
func (pipeline *Pipeline) collectExpanded(
	ctx context.Context,
	query engram.SearchQuery,
	candidates []stores.VectorMatch,
	boosts map[string]float64,
) ([]engram.Engram, error) {
	shortlisted := make(map[string]bool, len(candidates))

	for _, candidate := range candidates {
		shortlisted[candidate.Engram.ID] = true
	}

	ids := make([]string, 0, len(boosts))

	for id := range boosts {
		if !shortlisted[id] {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	expanded := make([]engram.Engram, 0, len(ids))

	for _, id := range ids {
		eng, err := pipeline.store.GetEngram(ctx, id)

		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}

			return nil, err
		}

		if eng.OwnerID != query.OwnerID {
			continue
		}

		if query.Strand != "" && eng.Strand != query.Strand {
			continue
		}

		expanded = append(expanded, *eng)
	}

	return expanded, nil
}

/*
expandSynapses runs a depth-bounded breadth-first traversal from the
seed engrams.  Boost propagates as parent boost times edge weight times
the decay factor.  A node reached by several parents in the same layer
keeps the maximum boost among them; once a layer commits, the node is
visited and later layers cannot re-discover it.
*/
func (pipeline *Pipeline) expandSynapses(
	ctx context.Context, seedIDs []string,
) (map[string]float64, error) {
	boosts := map[string]float64{}
	visited := map[string]bool{}

	for _, id := range seedIDs {
		visited[id] = true
	}

	type frontierNode struct {
		id    string
		boost float64
	}

	frontier := make([]frontierNode, 0, len(seedIDs))

	for _, id := range seedIDs {
		frontier = append(frontier, frontierNode{id: id, boost: 1.0})
	}

	for depth := 0; depth < pipeline.config.SynapseDepth && len(frontier) > 0; depth++ {
		discovered := map[string]float64{}

		for _, node := range frontier {
			synapses, err := pipeline.store.GetSynapsesFrom(ctx, node.id)

			if err != nil {
				return nil, err
			}

			for _, synapse := range synapses {
				if visited[synapse.TargetID] {
					continue
				}

				boost := node.boost * synapse.Weight * pipeline.config.SynapseDecay

				if boost > discovered[synapse.TargetID] {
					discovered[synapse.TargetID] = boost
				}
			}
		}

		frontier = frontier[:0]

		for id, boost := range discovered {
			visited[id] = true
			boosts[id] = boost
			frontier = append(frontier, frontierNode{id: id, boost: boost})
		}

		// Map iteration order is random; sorting the next frontier keeps
		// the traversal reproducible for a given graph.
		sort.Slice(frontier, func(a, b int) bool {
			return frontier[a].id < frontier[b].id
		})
	}

	return boosts, nil
}

func (pipeline *Pipeline) recordAccessed(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, id := range ids {
		if err := pipeline.store.RecordAccess(ctx, id); err != nil {
			log.Warn("post-retrieval access recording failed", "engramId", id, "error", err)
		}
	}
}
