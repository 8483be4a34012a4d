package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ReturnsCompletionText(t *testing.T) {
	var gotReq completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foundationModels/v1/completion", r.URL.Path)
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		assert.Equal(t, "folder-1", r.Header.Get("x-folder-id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"Borscht. Step 1: ..."}}]}}`))
	}))
	defer srv.Close()

	gen := NewYandexGPT("secret", "folder-1", "yandexgpt-lite")
	gen.baseURL = srv.URL

	text, err := gen.Generate(context.Background(), "borscht")
	require.NoError(t, err)
	assert.Equal(t, "Borscht. Step 1: ...", text)

	assert.Equal(t, "gpt://folder-1/yandexgpt-lite", gotReq.ModelURI)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "borscht", gotReq.Messages[1].Text)
}

func TestGenerate_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewYandexGPT("secret", "folder-1", "yandexgpt-lite")
	gen.baseURL = srv.URL

	_, err := gen.Generate(context.Background(), "borscht")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestGenerate_EmptyAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"alternatives":[]}}`))
	}))
	defer srv.Close()

	gen := NewYandexGPT("secret", "folder-1", "yandexgpt-lite")
	gen.baseURL = srv.URL

	_, err := gen.Generate(context.Background(), "borscht")
	require.Error(t, err)
}

func TestGenerate_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	gen := NewYandexGPT("secret", "folder-1", "yandexgpt-lite")
	gen.baseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, "borscht")
	require.Error(t, err)
}
