package llm

import (
	"fmt"
	"sort"
)

// Kind is the closed set of upstream integrations.
type Kind int

const (
	// KindNone means no credential is configured.
	KindNone Kind = iota
	// KindDirectHTTP posts chat-completion payloads straight to the upstream.
	KindDirectHTTP
	// KindAgentSDK delegates to an SDK agent carrying its own instructions.
	KindAgentSDK
)

func (k Kind) String() string {
	switch k {
	case KindDirectHTTP:
		return "direct-http"
	case KindAgentSDK:
		return "agent-sdk"
	default:
		return "none"
	}
}

// Default model identifiers.
const (
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultOpenAIModel = "gpt-4"
)

// ProviderConfig holds everything needed to build the selected provider.
type ProviderConfig struct {
	Kind     Kind
	Provider string // registered constructor name: "groq", "openai"
	APIKey   string
	Model    string
	BaseURL  string // override for self-hosted / test endpoints

	// Instructions is applied by agent-style providers as their system prompt.
	Instructions string
}

// Credentials are the raw provider settings read from configuration.
type Credentials struct {
	GroqAPIKey    string
	GroqModel     string
	GroqBaseURL   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Select applies the fixed precedence rule: a Groq credential wins and is
// used exclusively; otherwise an OpenAI credential selects the agent SDK;
// otherwise KindNone. The choice is made once, at startup.
func Select(c Credentials) ProviderConfig {
	switch {
	case c.GroqAPIKey != "":
		model := c.GroqModel
		if model == "" {
			model = DefaultGroqModel
		}
		return ProviderConfig{
			Kind:     KindDirectHTTP,
			Provider: "groq",
			APIKey:   c.GroqAPIKey,
			Model:    model,
			BaseURL:  c.GroqBaseURL,
		}
	case c.OpenAIAPIKey != "":
		model := c.OpenAIModel
		if model == "" {
			model = DefaultOpenAIModel
		}
		return ProviderConfig{
			Kind:     KindAgentSDK,
			Provider: "openai",
			APIKey:   c.OpenAIAPIKey,
			Model:    model,
			BaseURL:  c.OpenAIBaseURL,
		}
	default:
		return ProviderConfig{Kind: KindNone}
	}
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) for KindNone
// so callers can surface the missing-provider condition per request.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Kind == KindNone {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", cfg.Provider, f.names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", cfg.Provider, err)
	}
	return provider, nil
}

func (f *ProviderFactory) names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders lists the default base URL of each built-in provider.
//
//	groq   → https://api.groq.com/openai/v1
//	openai → https://api.openai.com/v1
var KnownProviders = map[string]string{
	"groq":   "https://api.groq.com/openai/v1",
	"openai": "https://api.openai.com/v1",
}
