package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder_Embed_DecodesVectorFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3)

	got, err := e.Embed(context.Background(), "inspect the fire extinguisher")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float32{0.1, 0.2, 0.3}
	if len(got) != len(want) {
		t.Fatalf("Embed() returned %d dims, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Embed()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOllamaEmbedder_Embed_ErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 0)

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestOllamaEmbedder_Embed_ErrorsOnEmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 0)

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected an error for an empty embedding")
	}
}

func TestOllamaEmbedder_Embed_TruncatesOverlongText(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPrompt = body.Prompt
		w.Write([]byte(`{"embedding":[0.5]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 1)
	longText := strings.Repeat("a", maxProjectionChars+500)

	if _, err := e.Embed(context.Background(), longText); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(gotPrompt) != maxProjectionChars {
		t.Fatalf("expected prompt truncated to %d chars, got %d", maxProjectionChars, len(gotPrompt))
	}
}

func TestNewOllamaEmbedder_AppliesDefaults(t *testing.T) {
	e := NewOllamaEmbedder("", "", 0)
	if e.baseURL != DefaultEmbedderBaseURL {
		t.Errorf("baseURL = %q, want default", e.baseURL)
	}
	if e.model != DefaultEmbedderModel {
		t.Errorf("model = %q, want default", e.model)
	}
	if e.dimension != DefaultDimension {
		t.Errorf("dimension = %d, want default", e.dimension)
	}
}
