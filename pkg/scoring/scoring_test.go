package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{
			name: "empty",
			in:   []float64{},
			want: []float64{},
		},
		{
			name: "single value is flat",
			in:   []float64{0.7},
			want: []float64{0},
		},
		{
			name: "all equal is flat",
			in:   []float64{3, 3, 3},
			want: []float64{0, 0, 0},
		},
		{
			name: "spread maps min to 0 and max to 1",
			in:   []float64{2, 4, 6},
			want: []float64{0, 0.5, 1},
		},
		{
			name: "negative values",
			in:   []float64{-1, 0, 1},
			want: []float64{0, 0.5, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMaxNormalize(tt.in)
			assert.Equal(t, len(tt.want), len(got))

			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}

			for _, v := range got {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity(
		[]float32{1, 2, 3}, []float32{1, 2, 3},
	), 1e-9)

	assert.InDelta(t, 0.0, CosineSimilarity(
		[]float32{1, 0}, []float32{0, 1},
	), 1e-9)

	assert.InDelta(t, -1.0, CosineSimilarity(
		[]float32{1, 0}, []float32{-1, 0},
	), 1e-9)

	// Mismatched lengths and zero vectors degrade to 0.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 1))
	assert.Equal(t, 1.0, Clamp(5, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestBM25RanksLexicalOverlap(t *testing.T) {
	bm := NewBM25()

	docs := []Document{
		{ID: "a", Content: "Alice works at Acme"},
		{ID: "b", Content: "Alice likes pizza"},
		{ID: "c", Content: "The weather is sunny"},
	}

	scores := bm.Score("where does Alice work", docs)

	assert.Greater(t, scores["a"], scores["c"])
	assert.Greater(t, scores["b"], scores["c"])
	assert.Equal(t, 0.0, scores["c"])
}

func TestBM25EmptyCandidates(t *testing.T) {
	bm := NewBM25()
	assert.Empty(t, bm.Score("anything", nil))
}

func TestBM25StatsAreCandidateLocal(t *testing.T) {
	bm := NewBM25()

	// "alice" appears in every candidate, so its document frequency
	// saturates and contributes near-zero discrimination; "pizza" is
	// rare within the set and dominates.
	docs := []Document{
		{ID: "a", Content: "alice pizza"},
		{ID: "b", Content: "alice acme"},
		{ID: "c", Content: "alice office"},
	}

	scores := bm.Score("alice pizza", docs)
	assert.Greater(t, scores["a"], scores["b"])
}
