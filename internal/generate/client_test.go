package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newFakeProvider(t *testing.T, events string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/models/mistralai/mistral-7b-instruct-v0.2/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		var req predictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !req.Stream {
			http.Error(w, "stream not requested", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"pred-1","urls":{"stream":"%s/stream/pred-1"}}`, server.URL)
	})

	mux.HandleFunc("/stream/pred-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, events)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStreamClient_Complete(t *testing.T) {
	events := "event: output\ndata: Hello\n\n" +
		"event: output\ndata:  world\n\n" +
		"event: done\ndata: \n\n"
	server := newFakeProvider(t, events)

	client := NewStreamClient(server.URL, "mistralai/mistral-7b-instruct-v0.2", "test-token", 5*time.Second)
	fragments, err := client.Complete(context.Background(), "[INST]\nQuestion: hi\n[/INST]", DefaultDecodingConfig())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var sb strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			t.Fatalf("fragment error: %v", frag.Err)
		}
		sb.WriteString(frag.Text)
	}
	if sb.String() != "Hello world" {
		t.Errorf("streamed text = %q, want %q", sb.String(), "Hello world")
	}
}

func TestStreamClient_MultilineToken(t *testing.T) {
	// A token containing a newline arrives as two data lines in one event;
	// the newline must survive into the concatenated answer.
	events := "event: output\ndata: First line\ndata: second line\n\n" +
		"event: output\ndata: .\n\n" +
		"event: done\ndata: \n\n"
	server := newFakeProvider(t, events)

	client := NewStreamClient(server.URL, "mistralai/mistral-7b-instruct-v0.2", "test-token", 5*time.Second)
	fragments, err := client.Complete(context.Background(), "prompt", DefaultDecodingConfig())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var sb strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			t.Fatalf("fragment error: %v", frag.Err)
		}
		sb.WriteString(frag.Text)
	}
	if got, want := sb.String(), "First line\nsecond line."; got != want {
		t.Errorf("streamed text = %q, want %q", got, want)
	}
}

func TestStreamClient_ErrorEvent(t *testing.T) {
	events := "event: output\ndata: partial\n\n" +
		"event: error\ndata: model overloaded\n\n"
	server := newFakeProvider(t, events)

	client := NewStreamClient(server.URL, "mistralai/mistral-7b-instruct-v0.2", "test-token", 5*time.Second)
	fragments, err := client.Complete(context.Background(), "prompt", DefaultDecodingConfig())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var streamErr error
	for frag := range fragments {
		if frag.Err != nil {
			streamErr = frag.Err
		}
	}
	if streamErr == nil {
		t.Fatal("expected stream error")
	}
	if !strings.Contains(streamErr.Error(), "model overloaded") {
		t.Errorf("err = %v", streamErr)
	}
}

func TestStreamClient_BadToken(t *testing.T) {
	server := newFakeProvider(t, "")

	client := NewStreamClient(server.URL, "mistralai/mistral-7b-instruct-v0.2", "wrong", 5*time.Second)
	if _, err := client.Complete(context.Background(), "prompt", DefaultDecodingConfig()); err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestStreamClient_RejectedPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"pred-2","error":"invalid input"}`)
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "m", "t", 5*time.Second)
	_, err := client.Complete(context.Background(), "prompt", DefaultDecodingConfig())
	if err == nil || !strings.Contains(err.Error(), "invalid input") {
		t.Errorf("err = %v, want rejection message", err)
	}
}

func TestDefaultDecodingConfig(t *testing.T) {
	cfg := DefaultDecodingConfig()
	if cfg.Seed != -1 || cfg.TopK != 20 || cfg.TopP != 1 {
		t.Errorf("sampling defaults wrong: %+v", cfg)
	}
	if cfg.MaxTokens != 1024 || cfg.MinTokens != 1 {
		t.Errorf("token bounds wrong: %+v", cfg)
	}
	if cfg.Temperature != 0.5 || cfg.RepetitionPenalty != 1 {
		t.Errorf("temperature defaults wrong: %+v", cfg)
	}
}
