package engram

import (
	"time"
)

/*
Strand classifies the nature of a memory.  The zero value is not valid;
unrecognized values normalize to StrandGeneral.
*/
type Strand string

const (
	StrandFactual      Strand = "factual"
	StrandExperiential Strand = "experiential"
	StrandProcedural   Strand = "procedural"
	StrandPreferential Strand = "preferential"
	StrandRelational   Strand = "relational"
	StrandGeneral      Strand = "general"
)

/*
Strands lists every valid strand, in the order the classifier prompt
presents them.
*/
var Strands = []Strand{
	StrandFactual,
	StrandExperiential,
	StrandProcedural,
	StrandPreferential,
	StrandRelational,
	StrandGeneral,
}

/*
ParseStrand normalizes a raw classification to a valid Strand, falling
back to StrandGeneral for anything unrecognized or empty.
*/
func ParseStrand(raw string) Strand {
	for _, s := range Strands {
		if string(s) == raw {
			return s
		}
	}

	return StrandGeneral
}

/*
Engram is a single atomic memory: content, its embedding, classification
and the dynamics that drive ranking (signal, access bookkeeping).
*/
type Engram struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"ownerId"`
	Content     string            `json:"content"`
	ContentHash string            `json:"contentHash"`
	Embedding   []float32         `json:"embedding,omitempty"`
	Strand      Strand            `json:"strand"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Signal      float64           `json:"signal"`
	PulseRate   float64           `json:"pulseRate,omitempty"`
	AccessCount int               `json:"accessCount"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	AccessedAt  time.Time         `json:"lastAccessedAt"`
}

/*
Synapse is a directed weighted association between two engrams owned by
the same owner.  Weight stays within (0, 1]; repeated formation between
the same pair strengthens the existing edge rather than duplicating it.
*/
type Synapse struct {
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	OwnerID   string    `json:"ownerId"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"createdAt"`
}

/*
CreateInput carries a raw ingestion request before fact extraction.
*/
type CreateInput struct {
	OwnerID   string         `json:"ownerId"`
	Content   string         `json:"content"`
	Strand    Strand         `json:"strand,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Signal    float64        `json:"signal,omitempty"`
	PulseRate float64        `json:"pulseRate,omitempty"`
}

/*
UpdateInput carries a partial engram update.  Nil pointers leave the
corresponding field untouched.  A content change implies the caller must
recompute the embedding and content hash before hitting the store.
*/
type UpdateInput struct {
	Content  *string        `json:"content,omitempty"`
	Strand   *Strand        `json:"strand,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Signal   *float64       `json:"signal,omitempty"`
}

/*
TemporalFact is an entity/attribute/value triple extracted from content
whose value may change over time ("John lives in Berlin").
*/
type TemporalFact struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}
