package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Time to stretch!"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, SystemPrompt: "be brief"})
	out, err := c.Generate(context.Background(), "", "", "write a reminder")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != "Time to stretch!" {
		t.Fatalf("out = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != DefaultModel {
		t.Fatalf("Model = %q, want default %q", gotReq.Model, DefaultModel)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "be brief" {
		t.Fatalf("Messages = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != DefaultMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", gotReq.MaxTokens, DefaultMaxTokens)
	}
}

func TestGenerateTaskOverrides(t *testing.T) {
	t.Parallel()
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, SystemPrompt: "default"})
	if _, err := c.Generate(context.Background(), "custom-model", "custom system", "p"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotReq.Model != "custom-model" {
		t.Fatalf("Model = %q", gotReq.Model)
	}
	if gotReq.Messages[0].Content != "custom system" {
		t.Fatalf("system = %q", gotReq.Messages[0].Content)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: 500, body: `oops`},
		{name: "api error payload", status: 200, body: `{"error":{"message":"model not found"}}`},
		{name: "empty choices", status: 200, body: `{"choices":[]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
			if _, err := c.Generate(context.Background(), "", "", "p"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
