// Package llmutil wires the built-in provider constructors into a factory.
package llmutil

import (
	"github.com/efebarandurmaz/twin/internal/llm"
	"github.com/efebarandurmaz/twin/internal/llm/agent"
	"github.com/efebarandurmaz/twin/internal/llm/openai"
)

// RegisterDefaultProviders registers the direct-HTTP Groq client and the
// OpenAI SDK agent into factory. Both `twin serve` and `twin ask` call this so
// the binaries build providers the same way.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("groq", func(c llm.ProviderConfig) (llm.Provider, error) {
		base := c.BaseURL
		if base == "" {
			base = llm.KnownProviders["groq"]
		}
		return openai.New("groq", c.APIKey, c.Model, base), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return agent.New(c.APIKey, c.Model, c.BaseURL, c.Instructions), nil
	})
}

// NewProvider builds the provider selected by cfg with the default
// constructors. It returns nil for llm.KindNone.
func NewProvider(cfg llm.ProviderConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	RegisterDefaultProviders(factory)
	return factory.Create(cfg)
}
