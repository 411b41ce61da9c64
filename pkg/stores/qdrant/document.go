package qdrant

/*
Point is one stored vector plus its payload.  The payload carries the
engram's JSON fields so a point round-trips without a second store.
*/
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

/*
ScoredPoint pairs a point with the similarity score Qdrant reported.
*/
type ScoredPoint struct {
	Point
	Score float64
}
