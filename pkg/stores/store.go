package stores

import (
	"context"

	"github.com/theapemachine/neurostore/pkg/engram"
)

/*
VectorMatch pairs an engram with its raw similarity score as reported by
the vector index, descending order.
*/
type VectorMatch struct {
	Engram engram.Engram
	Score  float64
}

/*
ListOptions narrows ListEngrams.  Limit 0 means no limit.
*/
type ListOptions struct {
	Limit  int
	Offset int
	Strand engram.Strand
}

/*
Stats reports corpus-level counts.
*/
type Stats struct {
	Engrams  int `json:"engrams"`
	Synapses int `json:"synapses"`
}

/*
Health is the store's liveness report.
*/
type Health struct {
	OK   bool   `json:"ok"`
	Type string `json:"type"`
}

/*
Store is the persistence contract the memory pipeline depends on.  The
pipeline never relies on storage-level uniqueness constraints; duplicate
suppression happens above this interface.
*/
type Store interface {
	CreateEngram(ctx context.Context, eng engram.Engram) (*engram.Engram, error)
	GetEngram(ctx context.Context, id string) (*engram.Engram, error)
	UpdateEngram(ctx context.Context, id string, update UpdateFields) (*engram.Engram, error)
	DeleteEngram(ctx context.Context, id string) (bool, error)
	ListEngrams(ctx context.Context, ownerID string, opts ListOptions) ([]engram.Engram, int, error)

	// VectorSearch returns up to limit matches for the owner, descending
	// by similarity, deterministically ordered.  Strand "" disables the
	// filter.
	VectorSearch(ctx context.Context, ownerID string, embedding []float32, limit int, strand engram.Strand) ([]VectorMatch, error)
	FindByContentHash(ctx context.Context, ownerID, hash string) (*engram.Engram, error)

	GetSynapse(ctx context.Context, sourceID, targetID string) (*engram.Synapse, error)
	PutSynapse(ctx context.Context, syn engram.Synapse) error
	GetSynapsesFrom(ctx context.Context, id string) ([]engram.Synapse, error)

	RecordAccess(ctx context.Context, id string) error
	ReinforceEngram(ctx context.Context, id string, boost float64) (*engram.Engram, error)

	GetStats(ctx context.Context) (Stats, error)
	HealthCheck(ctx context.Context) (Health, error)
}

/*
UpdateFields is the store-level partial update.  Nil leaves a field
untouched.  Signal may be lowered here, which is how decay writes back.
*/
type UpdateFields struct {
	Content     *string
	ContentHash *string
	Embedding   []float32
	Strand      *engram.Strand
	Tags        []string
	Metadata    map[string]any
	Signal      *float64
}
