package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedCompleter replays per-model results in order; the last entry repeats.
type scriptedCompleter struct {
	mu      sync.Mutex
	script  map[string][]error
	replies map[string]string
	calls   []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.Model)
	errs := s.script[req.Model]
	if len(errs) == 0 {
		return s.replies[req.Model], nil
	}
	err := errs[0]
	if len(errs) > 1 {
		s.script[req.Model] = errs[1:]
	}
	if err == nil {
		return s.replies[req.Model], nil
	}
	return "", err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"http 429", &StatusError{StatusCode: 429}, ClassRetryable},
		{"http 502", &StatusError{StatusCode: 502}, ClassRetryable},
		{"http 503", &StatusError{StatusCode: 503}, ClassRetryable},
		{"http 404", &StatusError{StatusCode: 404}, ClassCapability},
		{"http 400 unsupported", &StatusError{StatusCode: 400, Body: "model does not exist"}, ClassCapability},
		{"http 400 other", &StatusError{StatusCode: 400, Body: "bad request"}, ClassFatal},
		{"http 401", &StatusError{StatusCode: 401}, ClassFatal},
		{"timeout", &net.DNSError{IsTimeout: true}, ClassRetryable},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, ClassRetryable},
		{"overloaded text", errors.New("server overloaded, try later"), ClassRetryable},
		{"model text", errors.New("the model gpt-x does not exist"), ClassCapability},
		{"canceled", context.Canceled, ClassFatal},
		{"regular error", errors.New("something"), ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryDo(t *testing.T) {
	t.Run("retry then success", func(t *testing.T) {
		calls := 0
		got, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
			calls++
			if calls < 3 {
				return "", &StatusError{StatusCode: 503}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})
	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
			calls++
			return "", &StatusError{StatusCode: 502}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls) // initial + 2 retries
	})
	t.Run("non retryable", func(t *testing.T) {
		calls := 0
		_, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
			calls++
			return "", errors.New("permanent error")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := RetryDo(ctx, fastRetry, func() (string, error) {
			return "", &StatusError{StatusCode: 503}
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestModelChain_ForwardOnly(t *testing.T) {
	c := NewModelChain("a", " ", "b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, c.Models())
	assert.Equal(t, "a", c.Current())

	next, ok := c.Advance("a")
	require.True(t, ok)
	assert.Equal(t, "b", next)

	// a stale caller does not skip "b"
	next, ok = c.Advance("a")
	require.True(t, ok)
	assert.Equal(t, "b", next)
	assert.Equal(t, 1, c.Position())

	_, ok = c.Advance("b")
	require.True(t, ok)
	_, ok = c.Advance("c")
	assert.False(t, ok)
	assert.Equal(t, "c", c.Current())
}

func TestResilient_RetryThenSuccess(t *testing.T) {
	sc := &scriptedCompleter{
		script:  map[string][]error{"a": {&StatusError{StatusCode: 503}, nil}},
		replies: map[string]string{"a": `{"ok":true}`},
	}
	r := NewResilient(sc, NewModelChain("a", "b"), discardLogger(), WithRetryConfig(fastRetry))

	reply, err := r.Call(context.Background(), Prompt{Step: "basic_info"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply.Content)
	assert.Equal(t, "a", reply.Model)
	assert.Equal(t, 2, reply.Attempts)
	assert.Equal(t, []string{"a", "a"}, sc.calls)
}

func TestResilient_CapabilityFallsForward(t *testing.T) {
	sc := &scriptedCompleter{
		script: map[string][]error{
			"a": {&StatusError{StatusCode: 404, Body: "model_not_found"}},
			"b": {&StatusError{StatusCode: 503}, nil},
		},
		replies: map[string]string{"b": "from-b"},
	}
	chain := NewModelChain("a", "b", "c")
	r := NewResilient(sc, chain, discardLogger(), WithRetryConfig(fastRetry))

	reply, err := r.Call(context.Background(), Prompt{Step: "professional"})
	require.NoError(t, err)
	assert.Equal(t, "from-b", reply.Content)
	assert.Equal(t, "b", reply.Model)
	assert.Equal(t, []string{"a", "b", "b"}, sc.calls)

	// the chain never moves back: later calls start at b
	_, err = r.Call(context.Background(), Prompt{Step: "additional"})
	require.NoError(t, err)
	assert.Equal(t, "b", chain.Current())
	assert.Equal(t, "b", sc.calls[len(sc.calls)-1])
}

func TestResilient_ChainExhausted(t *testing.T) {
	notFound := &StatusError{StatusCode: 404}
	sc := &scriptedCompleter{script: map[string][]error{"a": {notFound}, "b": {notFound}}}
	r := NewResilient(sc, NewModelChain("a", "b"), discardLogger(), WithRetryConfig(fastRetry))

	_, err := r.Call(context.Background(), Prompt{Step: "basic_info"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapability)
	assert.Equal(t, []string{"a", "b"}, sc.calls)
}

func TestResilient_Unavailable(t *testing.T) {
	down := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	sc := &scriptedCompleter{script: map[string][]error{"a": {down}}}
	r := NewResilient(sc, NewModelChain("a", "b"), discardLogger(), WithRetryConfig(fastRetry))

	_, err := r.Call(context.Background(), Prompt{Step: "basic_info"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
	// retryable errors never advance the chain
	assert.Equal(t, []string{"a", "a", "a"}, sc.calls)
}

func TestResilient_FatalPropagates(t *testing.T) {
	sc := &scriptedCompleter{script: map[string][]error{"a": {&StatusError{StatusCode: 401}}}}
	r := NewResilient(sc, NewModelChain("a", "b"), discardLogger(), WithRetryConfig(fastRetry))

	_, err := r.Call(context.Background(), Prompt{Step: "basic_info"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, common.ErrCapability)
	assert.Len(t, sc.calls, 1)
}

func TestResilient_EmptyChain(t *testing.T) {
	r := NewResilient(&scriptedCompleter{}, NewModelChain(), discardLogger())
	_, err := r.Call(context.Background(), Prompt{})
	assert.ErrorIs(t, err, common.ErrCapability)
}
