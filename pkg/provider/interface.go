package provider

import (
	"context"
)

/*
Embedder turns text into a fixed-dimensionality vector.  EmbedBatch must
preserve input order in its output no matter how the backend batches or
reorders internally.
*/
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

/*
Completion is the text-generation capability the engine needs: plain
completion and a structured variant that unmarshals the model's JSON
response into out.
*/
type Completion interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteJSON(ctx context.Context, system, user string, out any) error
}
