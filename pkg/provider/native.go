package provider

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

/*
NativeCompletion is the offline passthrough: Complete echoes the user
prompt and CompleteJSON produces a fact-extraction-shaped response with
the prompt as the sole fact.  It establishes the minimal contract any
real provider must satisfy and keeps the engine usable without an LLM
key.
*/
type NativeCompletion struct{}

func NewNativeCompletion() *NativeCompletion {
	return &NativeCompletion{}
}

func (c *NativeCompletion) Complete(
	ctx context.Context, system, user string,
) (string, error) {
	return user, nil
}

func (c *NativeCompletion) CompleteJSON(
	ctx context.Context, system, user string, out any,
) error {
	if shaped, ok := out.(*ExtractionShape); ok {
		shaped.Facts = []string{user}
		shaped.Strand = "general"
		return nil
	}

	return nil
}

/*
ExtractionShape is the JSON shape the fact extractor requests from a
completion provider.  It lives here so NativeCompletion can fill it
without importing the extraction package.
*/
type ExtractionShape struct {
	Facts         []string `json:"facts"`
	Strand        string   `json:"strand"`
	TemporalFacts []struct {
		Entity    string `json:"entity"`
		Attribute string `json:"attribute"`
		Value     string `json:"value"`
	} `json:"temporalFacts"`
}

/*
NativeEmbedder produces deterministic pseudo-embeddings seeded from the
input text.  Identical text always maps to the identical unit vector, so
exact-duplicate behavior is testable offline; it carries no semantic
signal beyond that.
*/
type NativeEmbedder struct {
	Dimensions int
}

type NativeEmbedderOption func(*NativeEmbedder)

func NewNativeEmbedder(options ...NativeEmbedderOption) *NativeEmbedder {
	embedder := &NativeEmbedder{
		Dimensions: 128,
	}

	for _, option := range options {
		option(embedder)
	}

	return embedder
}

func (e *NativeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hasher := fnv.New64a()
	hasher.Write([]byte(text))

	rng := rand.New(rand.NewSource(int64(hasher.Sum64())))
	vector := make([]float32, e.Dimensions)

	var norm float64

	for i := range vector {
		vector[i] = float32(rng.NormFloat64())
		norm += float64(vector[i]) * float64(vector[i])
	}

	norm = math.Sqrt(norm)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}

	return vector, nil
}

func (e *NativeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, text := range texts {
		vector, err := e.Embed(ctx, text)

		if err != nil {
			return nil, err
		}

		out[i] = vector
	}

	return out, nil
}

func WithNativeEmbedderDimensions(dims int) NativeEmbedderOption {
	return func(e *NativeEmbedder) {
		if dims > 0 {
			e.Dimensions = dims
		}
	}
}
