package provider

import (
	"context"
	"encoding/json"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/utils"
)

/*
OpenAIEmbedder wraps the OpenAI embeddings endpoint.
*/
type OpenAIEmbedder struct {
	api   openai.Client
	Model string
}

type OpenAIEmbedderOption func(*OpenAIEmbedder)

func NewOpenAIEmbedder(options ...OpenAIEmbedderOption) *OpenAIEmbedder {
	embedder := &OpenAIEmbedder{
		Model: "text-embedding-3-small",
	}

	for _, option := range options {
		option(embedder)
	}

	return embedder
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})

	if err != nil {
		return nil, err
	}

	return out[0], nil
}

/*
EmbedBatch embeds texts in a single request.  The API tags each result
with its input index; results are written back by that index so output
order always matches input order.
*/
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})

	if err != nil {
		return nil, errors.ErrProvider.WithMessagef("openai embed: %v", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.ErrProvider.WithMessagef(
			"openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts),
		)
	}

	out := make([][]float32, len(texts))

	for _, d := range resp.Data {
		out[d.Index] = utils.ConvertToFloat32(d.Embedding)
	}

	return out, nil
}

func WithOpenAIEmbedderModel(model string) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.Model = model
	}
}

func WithOpenAIEmbedderClient(client *openai.Client) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.api = *client
	}
}

/*
WithOpenAIEmbedderKey builds a client from the given API key, falling
back to the OPENAI_API_KEY environment variable.
*/
func WithOpenAIEmbedderKey(key string) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		e.api = openai.NewClient(option.WithAPIKey(key))
	}
}

/*
OpenAICompletion wraps the chat completions endpoint.  CompleteJSON uses
the JSON response format so the model is constrained to emit a single
JSON object.
*/
type OpenAICompletion struct {
	api   openai.Client
	Model string
}

type OpenAICompletionOption func(*OpenAICompletion)

func NewOpenAICompletion(options ...OpenAICompletionOption) *OpenAICompletion {
	completion := &OpenAICompletion{
		Model: "gpt-4o-mini",
	}

	for _, option := range options {
		option(completion)
	}

	return completion
}

func (c *OpenAICompletion) Complete(
	ctx context.Context, system, user string,
) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})

	if err != nil {
		return "", errors.ErrProvider.WithMessagef("openai completion: %v", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.ErrProvider.WithMessagef("openai completion: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompletion) CompleteJSON(
	ctx context.Context, system, user string, out any,
) error {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})

	if err != nil {
		return errors.ErrProvider.WithMessagef("openai completion: %v", err)
	}

	if len(resp.Choices) == 0 {
		return errors.ErrProvider.WithMessagef("openai completion: empty response")
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return errors.ErrProvider.WithMessagef("openai completion: malformed JSON: %v", err)
	}

	return nil
}

func WithOpenAICompletionModel(model string) OpenAICompletionOption {
	return func(c *OpenAICompletion) {
		c.Model = model
	}
}

func WithOpenAICompletionClient(client *openai.Client) OpenAICompletionOption {
	return func(c *OpenAICompletion) {
		c.api = *client
	}
}

func WithOpenAICompletionKey(key string) OpenAICompletionOption {
	return func(c *OpenAICompletion) {
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		c.api = openai.NewClient(option.WithAPIKey(key))
	}
}
