package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efebarandurmaz/twin/internal/llm"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, captured *capturedRequest, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if captured != nil {
			json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
}

func TestNew(t *testing.T) {
	a := New("sk-test", "gpt-4", "", "be Abi")
	if a.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", a.Name())
	}
	if a.Model() != "gpt-4" {
		t.Errorf("expected model 'gpt-4', got %q", a.Model())
	}
	if a.Instructions() != "be Abi" {
		t.Errorf("expected instructions 'be Abi', got %q", a.Instructions())
	}
}

func TestPrompt_AppliesInstructions(t *testing.T) {
	var captured capturedRequest
	server := completionServer(t, &captured, "gm builder 🚀")
	defer server.Close()

	a := New("sk-test", "gpt-4", server.URL+"/v1", "be Abi")
	reply, err := a.Prompt(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "gm builder 🚀" {
		t.Errorf("unexpected reply %q", reply)
	}

	if captured.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %q", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be Abi" {
		t.Errorf("unexpected system message %+v", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "hello" {
		t.Errorf("unexpected user message %+v", captured.Messages[1])
	}
}

func TestComplete_PromptSystemOverridesInstructions(t *testing.T) {
	var captured capturedRequest
	server := completionServer(t, &captured, "ok")
	defer server.Close()

	a := New("sk-test", "gpt-4", server.URL+"/v1", "default")
	resp, err := a.Complete(context.Background(), llm.SingleTurn("override", "hi"), llm.WithTemperature(0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Messages[0].Content != "override" {
		t.Errorf("expected prompt system to win, got %q", captured.Messages[0].Content)
	}
	if captured.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", captured.Temperature)
	}
	if resp.InputTokens != 5 || resp.OutputTokens != 2 {
		t.Errorf("unexpected usage %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.StopReason != "stop" {
		t.Errorf("expected stop reason 'stop', got %q", resp.StopReason)
	}
}

func TestPrompt_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	a := New("sk-test", "gpt-4", server.URL+"/v1", "be Abi")
	_, err := a.Prompt(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *llm.StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code, got %q", err.Error())
	}
}

func TestPrompt_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New("sk-test", "gpt-4", url+"/v1", "x").Prompt(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport failure should not be a status error: %v", err)
	}
}
