package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestComplete_OK(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  {\"name\":\"Ada\"}  "}}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"}, testLogger())
	out, err := c.Complete(context.Background(), llm.CompletionRequest{
		Model: "m1", System: "sys", User: "user", JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, out)
	assert.Equal(t, "m1", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestComplete_StatusErrorsClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.ErrorClass
	}{
		{"overloaded", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, llm.ClassRetryable},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ClassRetryable},
		{"model missing", http.StatusNotFound, `{"error":{"code":"model_not_found"}}`, llm.ClassCapability},
		{"unsupported", http.StatusBadRequest, `{"error":{"message":"response_format is not supported with this model"}}`, llm.ClassCapability},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, llm.ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, testLogger())
			_, err := c.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
			require.Error(t, err)
			var se *llm.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.want, llm.Classify(err))
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, testLogger())
	_, err := c.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, llm.ClassFatal, llm.Classify(err))
}

func TestComplete_UnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: url}, testLogger())
	_, err := c.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, llm.ClassRetryable, llm.Classify(err))
}
