package provider

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/theapemachine/neurostore/pkg/errors"
)

/*
NewEmbedderFromConfig resolves the configured embedder exactly once at
process start.  Supported values for provider.embedder: openai, ollama,
native.
*/
func NewEmbedderFromConfig() (Embedder, error) {
	kind := viper.GetString("provider.embedder")

	switch kind {
	case "openai":
		return NewOpenAIEmbedder(
			WithOpenAIEmbedderKey(viper.GetString("provider.openai.api_key")),
			WithOpenAIEmbedderModel(viper.GetString("provider.openai.embedding_model")),
		), nil
	case "ollama":
		return NewOllamaEmbedder(
			WithOllamaEmbedderFromEnvironment(),
			WithOllamaEmbedderModel(viper.GetString("provider.ollama.embedding_model")),
		), nil
	case "native", "":
		log.Warn("using native embedder; vectors are deterministic but carry no semantics")
		return NewNativeEmbedder(
			WithNativeEmbedderDimensions(viper.GetInt("provider.native.dimensions")),
		), nil
	}

	return nil, errors.ErrValidation.WithMessagef("unknown embedder provider %q", kind)
}

/*
NewCompletionFromConfig resolves the configured completion provider.
Supported values for provider.completion: openai, ollama, anthropic,
native.
*/
func NewCompletionFromConfig() (Completion, error) {
	kind := viper.GetString("provider.completion")

	switch kind {
	case "openai":
		return NewOpenAICompletion(
			WithOpenAICompletionKey(viper.GetString("provider.openai.api_key")),
			WithOpenAICompletionModel(viper.GetString("provider.openai.completion_model")),
		), nil
	case "ollama":
		return NewOllamaCompletion(
			WithOllamaCompletionFromEnvironment(),
			WithOllamaCompletionModel(viper.GetString("provider.ollama.completion_model")),
		), nil
	case "anthropic":
		return NewAnthropicCompletion(
			WithAnthropicCompletionKey(viper.GetString("provider.anthropic.api_key")),
			WithAnthropicCompletionModel(viper.GetString("provider.anthropic.completion_model")),
		), nil
	case "native", "":
		log.Info("using native completion provider (passthrough, no LLM needed)")
		return NewNativeCompletion(), nil
	}

	return nil, errors.ErrValidation.WithMessagef("unknown completion provider %q", kind)
}
