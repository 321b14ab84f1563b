package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Expected test-key authorization")
		}

		var body chatRequest
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "Hello, world!"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.baseURL = server.URL

	resp, err := client.Complete(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp != "Hello, world!" {
		t.Errorf("Expected 'Hello, world!', got %q", resp)
	}
}

func TestOpenAIClient_CompleteWithSystem_SendsSystemMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.baseURL = server.URL

	if _, err := client.CompleteWithSystem(context.Background(), "be terse", "Hello"); err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
}

func TestOpenAIClient_RetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "recovered"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.baseURL = server.URL

	resp, err := client.Complete(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Complete failed after retries: %v", err)
	}
	if resp != "recovered" || attempts != 3 {
		t.Errorf("resp = %q, attempts = %d", resp, attempts)
	}
}

func TestOpenAIClient_NonRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("wrong-key")
	client.baseURL = server.URL

	if _, err := client.Complete(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	client := NewOpenAIClient("")
	if _, err := client.Complete(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestOpenAIClient_RequestSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "x"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.baseURL = server.URL

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := client.Complete(context.Background(), "Hello"); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Fatalf("requests not spaced: %v", elapsed)
	}
}

func TestNewClient_Factory(t *testing.T) {
	if _, err := NewClient(context.Background(), "openai", Options{APIKey: "k"}); err != nil {
		t.Fatalf("openai factory error = %v", err)
	}
	if _, err := NewClient(context.Background(), "smalltalk", Options{}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
