package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/scoring"
	"github.com/theapemachine/neurostore/pkg/stores"
)

// SimilarityThreshold is inclusive; a candidate at exactly this cosine
// similarity counts as a duplicate.
const SimilarityThreshold = 0.92

// candidateLimit bounds the near-duplicate probe.
const candidateLimit = 5

/*
Result reports whether incoming content duplicates an existing engram.
Similarity is 1.0 for exact content-hash matches, otherwise the cosine
similarity against the matched engram.
*/
type Result struct {
	IsDuplicate bool
	Existing    *engram.Engram
	Similarity  float64
}

/*
Checker detects duplicates in two passes: an exact content-hash lookup,
then a bounded vector probe against the nearest neighbors.
*/
type Checker struct {
	store stores.Store
}

func New(store stores.Store) *Checker {
	return &Checker{store: store}
}

/*
ComputeHash is the canonical content fingerprint: hex-encoded SHA-256 of
the exact content bytes.  No normalization happens here; the hash is the
identity contract for exact duplicates.
*/
func ComputeHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

/*
CheckDuplicate runs the exact-then-near probe for one owner.  The hash
lookup short-circuits the vector search entirely; near-duplicate checks
compare against at most the top candidates from the vector index.
*/
func (checker *Checker) CheckDuplicate(
	ctx context.Context, ownerID, content string, embedding []float32,
) (Result, error) {
	hash := ComputeHash(content)

	existing, err := checker.store.FindByContentHash(ctx, ownerID, hash)

	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return Result{}, err
	}

	if existing != nil {
		log.Debug("exact duplicate", "ownerId", ownerID, "engramId", existing.ID)

		return Result{
			IsDuplicate: true,
			Existing:    existing,
			Similarity:  1.0,
		}, nil
	}

	matches, err := checker.store.VectorSearch(
		ctx, ownerID, embedding, candidateLimit, "",
	)

	if err != nil {
		return Result{}, err
	}

	for _, match := range matches {
		similarity := scoring.CosineSimilarity(embedding, match.Engram.Embedding)

		if similarity >= SimilarityThreshold {
			log.Debug(
				"near duplicate",
				"ownerId", ownerID,
				"engramId", match.Engram.ID,
				"similarity", similarity,
			)

			eng := match.Engram

			return Result{
				IsDuplicate: true,
				Existing:    &eng,
				Similarity:  similarity,
			}, nil
		}
	}

	return Result{}, nil
}
