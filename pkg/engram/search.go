package engram

/*
SearchQuery carries everything the retrieval pipeline needs to execute
one query.  Limit defaults to 10; ExpandSynapses defaults to on (the
JSON shape uses a pointer so an absent field and an explicit false are
distinguishable).
*/
type SearchQuery struct {
	OwnerID        string `json:"ownerId"`
	Query          string `json:"query"`
	Limit          int    `json:"limit,omitempty"`
	Strand         Strand `json:"strand,omitempty"`
	ExpandSynapses *bool  `json:"expandSynapses,omitempty"`
}

/*
Expand reports whether synapse expansion is enabled for this query.
*/
func (q SearchQuery) Expand() bool {
	return q.ExpandSynapses == nil || *q.ExpandSynapses
}

/*
EffectiveLimit resolves the requested result limit against the default.
*/
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return 10
	}

	return q.Limit
}

/*
RetrievalTrace explains one hit's fused score.  VectorScore and
KeywordScore are the normalized channel values before weighting; the
three boosts are already weighted contributions.  Ephemeral, produced
fresh per query, never persisted.
*/
type RetrievalTrace struct {
	VectorScore  float64 `json:"vectorScore"`
	KeywordScore float64 `json:"keywordScore"`
	RecencyBoost float64 `json:"recencyBoost"`
	SignalBoost  float64 `json:"signalBoost"`
	SynapseBoost float64 `json:"synapseBoost"`
	FinalScore   float64 `json:"finalScore"`
}

/*
SearchHit pairs an engram with the trace of its score components.
*/
type SearchHit struct {
	Engram Engram         `json:"engram"`
	Trace  RetrievalTrace `json:"trace"`
}

/*
SearchResult is the ranked outcome of one retrieval call.  Took is wall
time in milliseconds.
*/
type SearchResult struct {
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
	Query string      `json:"query"`
	Took  int64       `json:"took"`
}
