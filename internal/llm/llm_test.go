package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	name  string
	mu    sync.Mutex
	calls int
	reply func(prompt string) (string, error)
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.reply(prompt)
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func replyWith(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

func failWith(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}

func TestRouter_UsesPrimaryWithinBudget(t *testing.T) {
	primary := &fakeCompleter{name: "p", reply: replyWith("from primary")}
	secondary := &fakeCompleter{name: "s", reply: replyWith("from secondary")}
	r := NewRouter(primary, secondary, NewLimiter(8, 0), nil, nil)

	out, err := r.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from primary", out)
	assert.Equal(t, 1, r.PrimaryCalls())
	assert.Equal(t, 0, secondary.Calls())
}

func TestRouter_QuotaErrorFallsBackAndRefunds(t *testing.T) {
	primary := &fakeCompleter{name: "p", reply: failWith(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"))}
	secondary := &fakeCompleter{name: "s", reply: replyWith("from secondary")}
	r := NewRouter(primary, secondary, NewLimiter(8, 0), nil, nil)

	out, err := r.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out)
	assert.Equal(t, 0, r.PrimaryCalls(), "quota rejection does not use budget")

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Fallbacks)
	assert.Equal(t, int64(1), snap.BudgetRefunds)
	assert.Equal(t, 1, snap.Backends["p"].Failures)
	assert.Equal(t, 1, snap.Backends["s"].Calls)
}

func TestRouter_OtherErrorFallsBackWithoutRefund(t *testing.T) {
	primary := &fakeCompleter{name: "p", reply: failWith(errors.New("connection reset"))}
	secondary := &fakeCompleter{name: "s", reply: replyWith("ok")}
	r := NewRouter(primary, secondary, NewLimiter(8, 0), nil, nil)

	out, err := r.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, r.PrimaryCalls())
}

func TestRouter_BudgetExhausted(t *testing.T) {
	primary := &fakeCompleter{name: "p", reply: replyWith("p")}
	secondary := &fakeCompleter{name: "s", reply: replyWith("s")}
	r := NewRouter(primary, secondary, NewLimiter(2, 0), nil, nil)

	var got []string
	for range 4 {
		out, err := r.Complete(context.Background(), "x")
		require.NoError(t, err)
		got = append(got, out)
	}
	assert.Equal(t, []string{"p", "p", "s", "s"}, got)
	assert.Equal(t, 2, primary.Calls())

	alone := NewRouter(primary, nil, NewLimiter(1, 0), nil, nil)
	_, err := alone.Complete(context.Background(), "x")
	require.NoError(t, err)
	_, err = alone.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}

func TestRouter_NoBackend(t *testing.T) {
	r := NewRouter(nil, nil, nil, nil, nil)
	assert.False(t, r.Available())
	_, err := r.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestRouter_SecondaryOnly(t *testing.T) {
	secondary := &fakeCompleter{name: "s", reply: replyWith("s")}
	r := NewRouter(nil, secondary, nil, nil, nil)
	out, err := r.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "s", out)
	assert.Equal(t, "s", r.Name())
}

func TestRouter_ConcurrentBudget(t *testing.T) {
	primary := &fakeCompleter{name: "p", reply: replyWith("p")}
	secondary := &fakeCompleter{name: "s", reply: replyWith("s")}
	r := NewRouter(primary, secondary, NewLimiter(8, 0), nil, nil)

	var wg sync.WaitGroup
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Complete(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, primary.Calls())
	assert.Equal(t, 32, secondary.Calls())
}

func TestLimiter_WindowAndRefund(t *testing.T) {
	l := NewLimiter(2, 0)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	t1, ok := l.TryAcquire()
	require.True(t, ok)
	_, ok = l.TryAcquire()
	require.True(t, ok)
	_, ok = l.TryAcquire()
	assert.False(t, ok)

	l.Refund(t1)
	assert.Equal(t, 1, l.Count())
	_, ok = l.TryAcquire()
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	assert.Equal(t, 0, l.Count())
	l.Refund(t1) // unknown ticket
	assert.Equal(t, 0, l.Count())
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(8, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, IsQuotaError(errors.New("Error 429: Too Many Requests")))
	assert.True(t, IsQuotaError(errors.New("RESOURCE_EXHAUSTED: quota")))
	assert.True(t, IsQuotaError(errors.New("rate limit reached for model")))
	assert.True(t, IsQuotaError(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"}))
	assert.True(t, IsQuotaError(fmt.Errorf("wrapped: %w", &QuotaError{Backend: "x", Err: errors.New("y")})))
	assert.False(t, IsQuotaError(errors.New("invalid api key")))
	assert.False(t, IsQuotaError(nil))
}

func TestClassify(t *testing.T) {
	err := classify("openai", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"})
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "status 503")

	err = classify("openai", &openai.APIError{HTTPStatusCode: 400, Message: "bad"})
	assert.False(t, IsRetryable(err))
	assert.False(t, IsQuotaError(err))

	assert.NoError(t, classify("x", nil))
}

func TestWithRetry(t *testing.T) {
	noSleep := func(context.Context, time.Duration) error { return nil }

	attempts := 0
	out, err := withRetry(context.Background(), noSleep, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", &RetryableError{StatusCode: 502, Message: "bad gateway"}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 2, attempts)

	attempts = 0
	_, err = withRetry(context.Background(), noSleep, func() (string, error) {
		attempts++
		return "", &RetryableError{StatusCode: 500}
	})
	require.Error(t, err)
	assert.Equal(t, MaxRetries+1, attempts)

	attempts = 0
	_, err = withRetry(context.Background(), noSleep, func() (string, error) {
		attempts++
		return "", errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
	assert.Less(t, Backoff(10), 45*time.Second)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripCodeFence("```\n[1]\n```"))
	assert.Equal(t, "plain", StripCodeFence("  plain  "))
}

func TestFindJSON(t *testing.T) {
	assert.Equal(t, `{"a":"}"}`, FindJSON(`Sure! {"a":"}"} done`))
	assert.Equal(t, `[{"x":[1,2]}]`, FindJSON(`here: [{"x":[1,2]}] ok`))
	assert.Equal(t, "", FindJSON("no json"))
	assert.Equal(t, "", FindJSON(`{"open": 1`))
}

func TestStats_PercentilesAndWindow(t *testing.T) {
	s := NewStats(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	for _, ms := range []int{100, 200, 300, 400, 500} {
		s.Record("gemini", time.Duration(ms)*time.Millisecond, nil)
	}
	s.Record("openai", -time.Second, errors.New("x"))

	snap := s.Snapshot()
	g := snap.Backends["gemini"].Latency
	assert.Equal(t, 5, g.Count)
	assert.Equal(t, int64(100), g.MinMs)
	assert.Equal(t, int64(500), g.MaxMs)
	assert.InDelta(t, 300, g.AvgMs, 0.001)
	assert.InDelta(t, 480, g.P95Ms, 0.001)
	assert.InDelta(t, 496, g.P99Ms, 0.001)
	assert.Equal(t, int64(0), snap.Backends["openai"].Latency.MinMs)
	assert.Equal(t, 1, snap.Backends["openai"].Failures)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, s.Snapshot().Backends)
}
