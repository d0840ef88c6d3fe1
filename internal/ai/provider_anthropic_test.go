package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicReply(w http.ResponseWriter, text string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
		"model": "claude-sonnet-4-6",
		"usage": map[string]int{
			"input_tokens":  12,
			"output_tokens": 8,
		},
	})
}

func TestNewAnthropicProvider_EmptyKey(t *testing.T) {
	if _, err := NewAnthropicProvider(""); err == nil {
		t.Fatal("NewAnthropicProvider() should return error for empty key")
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected anthropic-version: %s", r.Header.Get("anthropic-version"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		anthropicReply(w, `"paragraphs": []}`)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicModel("claude-haiku-4-5-20251001"),
	)
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.Complete(t.Context(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "Tu écris des QCM pour des enfants."},
			{Role: "user", Content: "Le chat mange."},
		},
		JSONObject: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != `{"paragraphs": []}` || resp.Provider != "anthropic" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d, want 12/8", resp.InputTokens, resp.OutputTokens)
	}
	if body["model"] != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %v", body["model"])
	}
	if body["system"] != "Tu écris des QCM pour des enfants." {
		t.Errorf("system = %v", body["system"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user turn and JSON prefill", len(msgs))
	}
	if last, _ := msgs[1].(map[string]any); last["role"] != "assistant" || last["content"] != "{" {
		t.Errorf("prefill = %v", last)
	}
}

func TestAnthropicProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"api error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
		}},
		{"no content", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content": [], "model": "m"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			provider, _ := NewAnthropicProvider("key", WithAnthropicBaseURL(server.URL))
			_, err := provider.Complete(t.Context(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hello"}},
			})
			if err == nil {
				t.Fatal("Complete() should return an error")
			}
		})
	}
}

func TestAnthropicProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		anthropicReply(w, "pong")
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	if err := provider.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if len(provider.Models()) == 0 {
		t.Error("Models() returned empty list")
	}
}
