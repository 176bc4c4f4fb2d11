package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CompletionRequest is one chat completion against a specific model.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	JSONMode    bool
}

// Completer sends a single completion and returns the raw assistant content.
// Implementations do not retry; the resilience layer does.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Prompt is a model-agnostic phase prompt. The resilience layer picks the model.
type Prompt struct {
	Step   string
	System string
	User   string
}

// Reply is the raw content of a successful call plus what served it.
type Reply struct {
	Content  string
	Model    string
	Attempts int
}

// Caller is the provider surface the extractor depends on.
type Caller interface {
	Call(ctx context.Context, p Prompt) (Reply, error)
}

// StatusError is a non-2xx reply from the provider.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the server's requested delay, zero when it sent none.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("llm status %d: %s", e.StatusCode, e.Body)
}
