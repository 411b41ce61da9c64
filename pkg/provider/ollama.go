package provider

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"github.com/theapemachine/neurostore/pkg/errors"
)

/*
OllamaEmbedder embeds text through a local Ollama instance.
*/
type OllamaEmbedder struct {
	api   *api.Client
	Model string
}

type OllamaEmbedderOption func(*OllamaEmbedder)

func NewOllamaEmbedder(options ...OllamaEmbedderOption) *OllamaEmbedder {
	embedder := &OllamaEmbedder{
		Model: "nomic-embed-text",
	}

	for _, option := range options {
		option(embedder)
	}

	return embedder
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})

	if err != nil {
		return nil, err
	}

	return out[0], nil
}

/*
EmbedBatch sends all texts in one request; Ollama returns embeddings in
input order.
*/
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.api.Embed(ctx, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})

	if err != nil {
		return nil, errors.ErrProvider.WithMessagef("ollama embed: %v", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errors.ErrProvider.WithMessagef(
			"ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts),
		)
	}

	return resp.Embeddings, nil
}

func WithOllamaEmbedderModel(model string) OllamaEmbedderOption {
	return func(e *OllamaEmbedder) {
		e.Model = model
	}
}

func WithOllamaEmbedderClient(client *api.Client) OllamaEmbedderOption {
	return func(e *OllamaEmbedder) {
		e.api = client
	}
}

/*
WithOllamaEmbedderFromEnvironment builds the client from OLLAMA_HOST.
*/
func WithOllamaEmbedderFromEnvironment() OllamaEmbedderOption {
	return func(e *OllamaEmbedder) {
		client, err := api.ClientFromEnvironment()

		if err != nil {
			log.Error("failed to create ollama client", "error", err)
			return
		}

		e.api = client
	}
}

/*
OllamaCompletion runs chat completions against a local Ollama instance.
*/
type OllamaCompletion struct {
	api   *api.Client
	Model string
}

type OllamaCompletionOption func(*OllamaCompletion)

func NewOllamaCompletion(options ...OllamaCompletionOption) *OllamaCompletion {
	completion := &OllamaCompletion{
		Model: "llama3.2",
	}

	for _, option := range options {
		option(completion)
	}

	return completion
}

func (c *OllamaCompletion) Complete(
	ctx context.Context, system, user string,
) (string, error) {
	return c.chat(ctx, system, user, nil)
}

func (c *OllamaCompletion) CompleteJSON(
	ctx context.Context, system, user string, out any,
) error {
	raw, err := c.chat(ctx, system, user, json.RawMessage(`"json"`))

	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return errors.ErrProvider.WithMessagef("ollama completion: malformed JSON: %v", err)
	}

	return nil
}

func (c *OllamaCompletion) chat(
	ctx context.Context, system, user string, format json.RawMessage,
) (string, error) {
	stream := false
	var content string

	err := c.api.Chat(ctx, &api.ChatRequest{
		Model: c.Model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
		Format: format,
	}, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})

	if err != nil {
		return "", errors.ErrProvider.WithMessagef("ollama completion: %v", err)
	}

	return content, nil
}

func WithOllamaCompletionModel(model string) OllamaCompletionOption {
	return func(c *OllamaCompletion) {
		c.Model = model
	}
}

func WithOllamaCompletionClient(client *api.Client) OllamaCompletionOption {
	return func(c *OllamaCompletion) {
		c.api = client
	}
}

func WithOllamaCompletionFromEnvironment() OllamaCompletionOption {
	return func(c *OllamaCompletion) {
		client, err := api.ClientFromEnvironment()

		if err != nil {
			log.Error("failed to create ollama client", "error", err)
			return
		}

		c.api = client
	}
}
