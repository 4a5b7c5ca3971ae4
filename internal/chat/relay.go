// Package chat relays one user message to the selected upstream provider and
// returns the reply text.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/efebarandurmaz/twin/internal/llm"
	"github.com/efebarandurmaz/twin/internal/observability"
	"github.com/efebarandurmaz/twin/internal/persona"
)

// Temperature is the sampling temperature sent to direct-HTTP providers.
const Temperature = 0.7

var (
	// ErrEmptyMessage is returned for empty or whitespace-only input.
	ErrEmptyMessage = errors.New("Message is required")
	// ErrNoProvider is returned when no upstream credential is configured.
	ErrNoProvider = errors.New("No AI provider configured. Set GROQ_API_KEY or OPENAI_API_KEY in .env")
)

// Prompter is implemented by agent-style providers that apply their own
// instructions to every message.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

type modeler interface {
	Model() string
}

// Relay is stateless across turns. Its fields are fixed at construction and
// only read afterwards, so one Relay serves concurrent requests.
type Relay struct {
	provider llm.Provider
	preamble persona.Preamble
	logger   *slog.Logger
	metrics  *observability.ChatMetrics
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithMetrics records turn and upstream metrics into m.
func WithMetrics(m *observability.ChatMetrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay creates a relay. A nil provider yields ErrNoProvider on every
// non-empty message.
func NewRelay(provider llm.Provider, preamble persona.Preamble, opts ...Option) *Relay {
	r := &Relay{
		provider: provider,
		preamble: preamble,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProviderName returns the upstream name, or "none".
func (r *Relay) ProviderName() string {
	if r.provider == nil {
		return "none"
	}
	return r.provider.Name()
}

// Configured reports whether an upstream provider is available.
func (r *Relay) Configured() bool {
	return r.provider != nil
}

// Reply validates message, forwards it to exactly one upstream and returns
// the first completion's text. Upstream failures are returned unchanged so
// the status and body stay visible to the caller.
func (r *Relay) Reply(ctx context.Context, message string) (string, error) {
	if r.metrics != nil {
		r.metrics.ChatRequestsTotal.Inc()
	}
	if strings.TrimSpace(message) == "" {
		if r.metrics != nil {
			r.metrics.ChatRejectedTotal.Inc()
		}
		return "", ErrEmptyMessage
	}

	ctx, span := observability.StartChatSpan(ctx, len(message))
	defer span.End()

	reply, err := r.forward(ctx, message)
	if err != nil {
		observability.RecordError(span, err)
		if r.metrics != nil {
			r.metrics.ChatErrorsTotal.Inc()
		}
		r.logger.ErrorContext(ctx, "Chat error", "provider", r.ProviderName(), "error", err)
		return "", err
	}
	return reply, nil
}

func (r *Relay) forward(ctx context.Context, message string) (string, error) {
	if r.provider == nil {
		return "", ErrNoProvider
	}

	model := ""
	if m, ok := r.provider.(modeler); ok {
		model = m.Model()
	}
	ctx, span := observability.StartLLMSpan(ctx, r.provider.Name(), model)
	defer span.End()

	if r.metrics != nil {
		r.metrics.InFlight.Inc()
		defer r.metrics.InFlight.Dec()
	}

	start := time.Now()
	reply, err := r.complete(ctx, message)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordLLMRequest(elapsed, err)
	}
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	observability.RecordLLMResult(span, len(reply), elapsed)
	return reply, nil
}

func (r *Relay) complete(ctx context.Context, message string) (string, error) {
	switch p := r.provider.(type) {
	case Prompter:
		return p.Prompt(ctx, message)
	default:
		resp, err := p.Complete(ctx, llm.SingleTurn(r.preamble.String(), message), llm.WithTemperature(Temperature))
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}
