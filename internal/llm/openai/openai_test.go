package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efebarandurmaz/twin/internal/llm"
)

func TestNew_SetsDefaults(t *testing.T) {
	client := New("groq", "test-key", "test-model", "")

	if client.apiKey != "test-key" {
		t.Errorf("expected apiKey 'test-key', got %q", client.apiKey)
	}
	if client.Model() != "test-model" {
		t.Errorf("expected model 'test-model', got %q", client.Model())
	}
	if client.baseURL != defaultBaseURL {
		t.Errorf("expected default baseURL %q, got %q", defaultBaseURL, client.baseURL)
	}
	if client.http == nil {
		t.Error("expected http client to be initialized")
	}
	if client.http.Timeout != 0 {
		t.Errorf("expected no client timeout, got %v", client.http.Timeout)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client := New("groq", "k", "m", "https://api.groq.com/openai/v1/")
	if client.baseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("unexpected baseURL %q", client.baseURL)
	}
}

func TestName(t *testing.T) {
	if New("groq", "k", "m", "").Name() != "groq" {
		t.Error("expected name 'groq'")
	}
}

func TestComplete_RequestShape(t *testing.T) {
	var (
		capturedPath    string
		capturedHeaders http.Header
		capturedBody    map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedHeaders = r.Header
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &capturedBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama",
			"choices": []map[string]any{{"message": map[string]string{"content": "hey there"}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer server.Close()

	client := New("groq", "gsk-test", "llama", server.URL)
	resp, err := client.Complete(context.Background(), llm.SingleTurn("be Abi", "hello"), llm.WithTemperature(0.7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedPath != "/chat/completions" {
		t.Errorf("expected path /chat/completions, got %q", capturedPath)
	}
	if capturedHeaders.Get("Authorization") != "Bearer gsk-test" {
		t.Errorf("unexpected Authorization header %q", capturedHeaders.Get("Authorization"))
	}
	if capturedHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected Content-Type %q", capturedHeaders.Get("Content-Type"))
	}
	if capturedBody["model"] != "llama" {
		t.Errorf("expected model 'llama', got %v", capturedBody["model"])
	}
	if capturedBody["temperature"] != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", capturedBody["temperature"])
	}
	if _, ok := capturedBody["max_tokens"]; ok {
		t.Error("max_tokens should be omitted when not requested")
	}

	msgs, ok := capturedBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", capturedBody["messages"])
	}
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["role"] != "system" || first["content"] != "be Abi" {
		t.Errorf("unexpected system message %v", first)
	}
	if second["role"] != "user" || second["content"] != "hello" {
		t.Errorf("unexpected user message %v", second)
	}

	if resp.Content != "hey there" {
		t.Errorf("expected content 'hey there', got %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("unexpected usage %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.StopReason != "stop" {
		t.Errorf("expected stop reason 'stop', got %q", resp.StopReason)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	resp, err := New("groq", "k", "m", server.URL).Complete(context.Background(), llm.SingleTurn("", "hi"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "" {
		t.Errorf("expected empty content, got %q", resp.Content)
	}
}

func TestComplete_NullContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": null}}]}`))
	}))
	defer server.Close()

	resp, err := New("groq", "k", "m", server.URL).Complete(context.Background(), llm.SingleTurn("", "hi"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "" {
		t.Errorf("expected empty content, got %q", resp.Content)
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	_, err := New("groq", "k", "m", server.URL).Complete(context.Background(), llm.SingleTurn("", "hi"), nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *llm.StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should carry status and body, got %q", err.Error())
	}
}

func TestComplete_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := New("groq", "k", "m", server.URL).Complete(context.Background(), llm.SingleTurn("", "hi"), nil)
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New("groq", "k", "m", url).Complete(context.Background(), llm.SingleTurn("", "hi"), nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.HasPrefix(err.Error(), "groq: ") {
		t.Errorf("expected provider-prefixed error, got %q", err.Error())
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("groq", "k", "m", server.URL).Complete(ctx, llm.SingleTurn("", "hi"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
