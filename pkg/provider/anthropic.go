package provider

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/theapemachine/neurostore/pkg/errors"
)

/*
AnthropicCompletion runs completions against the Anthropic API.  There
is no native JSON response mode, so CompleteJSON instructs the model in
the system prompt and strips any code fences before unmarshalling.
*/
type AnthropicCompletion struct {
	api       *anthropic.Client
	Model     string
	MaxTokens int64
}

type AnthropicCompletionOption func(*AnthropicCompletion)

func NewAnthropicCompletion(options ...AnthropicCompletionOption) *AnthropicCompletion {
	completion := &AnthropicCompletion{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 1024,
	}

	for _, option := range options {
		option(completion)
	}

	return completion
}

func (c *AnthropicCompletion) Complete(
	ctx context.Context, system, user string,
) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: c.MaxTokens,
		System: []anthropic.TextBlockParam{{
			Text: system,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})

	if err != nil {
		return "", errors.ErrProvider.WithMessagef("anthropic completion: %v", err)
	}

	builder := &strings.Builder{}

	for _, block := range msg.Content {
		builder.WriteString(block.Text)
	}

	return builder.String(), nil
}

func (c *AnthropicCompletion) CompleteJSON(
	ctx context.Context, system, user string, out any,
) error {
	raw, err := c.Complete(
		ctx, system+"\n\nRespond with a single JSON object and nothing else.", user,
	)

	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripFences(raw)), out); err != nil {
		return errors.ErrProvider.WithMessagef("anthropic completion: malformed JSON: %v", err)
	}

	return nil
}

/*
stripFences removes a surrounding markdown code fence if the model added
one despite instructions.
*/
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}

func WithAnthropicCompletionModel(model string) AnthropicCompletionOption {
	return func(c *AnthropicCompletion) {
		c.Model = model
	}
}

func WithAnthropicCompletionClient(client *anthropic.Client) AnthropicCompletionOption {
	return func(c *AnthropicCompletion) {
		c.api = client
	}
}

func WithAnthropicCompletionKey(key string) AnthropicCompletionOption {
	return func(c *AnthropicCompletion) {
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}

		client := anthropic.NewClient(option.WithAPIKey(key))
		c.api = &client
	}
}
