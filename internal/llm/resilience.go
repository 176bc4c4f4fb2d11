package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

// ErrorClass is how the resilience layer reacts to a provider error.
type ErrorClass int

const (
	// ClassFatal errors are returned immediately.
	ClassFatal ErrorClass = iota
	// ClassRetryable errors are retried with backoff on the same model.
	ClassRetryable
	// ClassCapability errors move the chain to the next model.
	ClassCapability
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassCapability:
		return "capability"
	}
	return "fatal"
}

var (
	capabilityPhrases = []string{
		"model not found", "model_not_found", "does not exist", "not supported",
		"unsupported model", "no such model", "does not have access to model", "invalid model",
	}
	retryablePhrases = []string{
		"overloaded", "unavailable", "rate limit", "rate_limit", "too many requests",
		"timeout", "timed out", "connection reset", "econnreset", "connection refused", "temporarily",
	}
)

// Classify sorts a provider error into retryable, capability or fatal.
func Classify(err error) ErrorClass {
	if err == nil || errors.Is(err, context.Canceled) {
		return ClassFatal
	}

	var se *StatusError
	if errors.As(err, &se) {
		body := strings.ToLower(se.Body)
		switch {
		case se.StatusCode == 404:
			return ClassCapability
		case se.StatusCode/100 == 4 && containsAny(body, capabilityPhrases):
			return ClassCapability
		case isRetryableStatus(se.StatusCode):
			return ClassRetryable
		}
		return ClassFatal
	}

	// Connection errors (dial failures, connection refused, etc.)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassRetryable
	}

	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassRetryable
	}

	// Timeout errors (net.Error includes OpError, so check after OpError)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, capabilityPhrases):
		return ClassCapability
	case containsAny(msg, retryablePhrases):
		return ClassRetryable
	}
	return ClassFatal
}

// isRetryableStatus returns true for HTTP status codes worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is suitable for most provider calls.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: time.Second,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// RetryDo retries fn up to MaxRetries times with exponential backoff.
// Retries only on retryable errors; returns immediately on anything else or context cancellation.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if Classify(err) != ClassRetryable {
			return zero, err
		}

		if attempt < rc.MaxRetries {
			wait := backoff(rc, attempt)
			if hint := retryAfter(err); hint > wait {
				wait = min(hint, max(rc.MaxWait, wait))
			}
			slog.Debug("llm.retry", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

func backoff(rc RetryConfig, attempt int) time.Duration {
	mult := rc.Multiplier
	if mult <= 0 {
		mult = 2
	}
	wait := time.Duration(float64(rc.InitialWait) * math.Pow(mult, float64(attempt)))
	if rc.MaxWait > 0 && wait > rc.MaxWait {
		wait = rc.MaxWait
	}
	return wait
}

// retryAfter returns the delay a rate-limited provider asked for.
func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// ModelChain is an ordered list of models with a forward-only cursor.
type ModelChain struct {
	mu     sync.Mutex
	models []string
	idx    int
}

// NewModelChain builds a chain, skipping blank names.
func NewModelChain(models ...string) *ModelChain {
	c := &ModelChain{}
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			c.models = append(c.models, m)
		}
	}
	return c
}

// Current returns the active model, or "" for an empty chain.
func (c *ModelChain) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx >= len(c.models) {
		return ""
	}
	return c.models[c.idx]
}

// Position returns the index of the active model.
func (c *ModelChain) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}

// Models returns a copy of the configured order.
func (c *ModelChain) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.models...)
}

// Advance moves past from if it is still the active model and returns the
// model to use next. A chain that already moved on returns its current
// model. ok is false once the chain is exhausted.
func (c *ModelChain) Advance(from string) (next string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx < len(c.models) && c.models[c.idx] != from {
		return c.models[c.idx], true
	}
	if c.idx+1 >= len(c.models) {
		return "", false
	}
	c.idx++
	return c.models[c.idx], true
}

// Resilient wraps a Completer with retry/backoff and model fallback.
type Resilient struct {
	completer   Completer
	chain       *ModelChain
	retry       RetryConfig
	temperature float32
	logger      *slog.Logger
}

// ResilientOption configures a Resilient caller.
type ResilientOption func(*Resilient)

func WithRetryConfig(rc RetryConfig) ResilientOption {
	return func(r *Resilient) { r.retry = rc }
}

func WithTemperature(t float32) ResilientOption {
	return func(r *Resilient) { r.temperature = t }
}

func NewResilient(c Completer, chain *ModelChain, logger *slog.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		completer:   c,
		chain:       chain,
		retry:       DefaultRetryConfig,
		temperature: 0.1,
		logger:      common.LoggerOrDefault(logger),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Chain exposes the model chain, mainly for diagnostics.
func (r *Resilient) Chain() *ModelChain { return r.chain }

// Call sends p to the active model. Retryable errors are retried on the
// same model; capability errors advance the chain and re-issue the prompt.
func (r *Resilient) Call(ctx context.Context, p Prompt) (Reply, error) {
	start := time.Now()
	attempts := 0
	attrs := append(common.LogAttrs(ctx), "step", p.Step)

	for {
		model := r.chain.Current()
		if model == "" {
			return Reply{}, fmt.Errorf("%w: model chain is empty", common.ErrCapability)
		}

		content, err := RetryDo(ctx, r.retry, func() (string, error) {
			attempts++
			return r.completer.Complete(ctx, CompletionRequest{
				Model:       model,
				System:      p.System,
				User:        p.User,
				Temperature: r.temperature,
				JSONMode:    true,
			})
		})
		if err == nil {
			r.logger.Info("llm.call.ok", append(attrs,
				"model", model,
				"attempts", attempts,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)...)
			return Reply{Content: content, Model: model, Attempts: attempts}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}

		switch class := Classify(err); class {
		case ClassCapability:
			next, ok := r.chain.Advance(model)
			if !ok {
				r.logger.Error("llm.call.chain_exhausted", append(attrs, "model", model, "error", err)...)
				return Reply{}, fmt.Errorf("%w: last model %s: %w", common.ErrCapability, model, err)
			}
			r.logger.Warn("llm.model.fallback", append(attrs, "from", model, "to", next, "error", err)...)
		case ClassRetryable:
			r.logger.Error("llm.call.unavailable", append(attrs,
				"model", model,
				"attempts", attempts,
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)...)
			return Reply{}, fmt.Errorf("%w: %d attempts: %w", common.ErrProviderUnavailable, attempts, err)
		default:
			r.logger.Error("llm.call.failed", append(attrs, "model", model, "class", class.String(), "error", err)...)
			return Reply{}, fmt.Errorf("llm call %s: %w", p.Step, err)
		}
	}
}
