// Package agent provides an SDK-backed chat agent that carries its own
// instructions and answers one prompt at a time.
package agent

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/twin/internal/llm"
)

// Agent wraps a go-openai client with fixed instructions.
type Agent struct {
	client       *openai.Client
	model        string
	instructions string
}

// New creates an agent. An empty baseURL keeps the SDK default.
func New(apiKey, model, baseURL, instructions string) *Agent {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Agent{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		instructions: instructions,
	}
}

func (a *Agent) Name() string { return "openai" }

// Model returns the configured model identifier.
func (a *Agent) Model() string { return a.model }

// Instructions returns the system instructions the agent applies.
func (a *Agent) Instructions() string { return a.instructions }

// Prompt sends message under the agent's instructions and returns the text
// of the first choice.
func (a *Agent) Prompt(ctx context.Context, message string) (string, error) {
	resp, err := a.Complete(ctx, &llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: message}},
	}, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Complete implements llm.Provider. The agent's instructions are used when
// the prompt carries no system prompt of its own.
func (a *Agent) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	system := prompt.SystemPrompt
	if system == "" {
		system = a.instructions
	}

	req := openai.ChatCompletionRequest{Model: a.model}
	if system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range prompt.Messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	if opts != nil {
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
		}
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
		if opts.TopP != nil {
			req.TopP = float32(*opts.TopP)
		}
		if len(opts.StopSeqs) > 0 {
			req.Stop = opts.StopSeqs
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}

	out := &llm.Response{
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

// translateError maps SDK status errors onto llm.StatusError so callers see
// one error shape regardless of provider.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &llm.StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("openai: %w", err)
}
