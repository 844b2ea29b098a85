package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/metrics"
	"github.com/five82/toolroom/internal/state"
)

func newTestClient() *Client {
	c := NewClient(state.NewStore(), WithMetrics(metrics.New()))
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func notFound() error {
	return &api.APIError{Method: http.MethodGet, Path: "/x", Status: http.StatusNotFound}
}

func serverError() error {
	return &api.APIError{Method: http.MethodGet, Path: "/x", Status: http.StatusBadGateway}
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt int
		err     error
		want    bool
	}{
		{"nil error", 0, nil, false},
		{"not found", 0, notFound(), false},
		{"conflict", 0, &api.APIError{Status: http.StatusConflict}, false},
		{"validation", 0, &api.ValidationError{Errors: []string{"x"}}, false},
		{"session expired", 0, fmt.Errorf("%w: %w", api.ErrSessionExpired, &api.APIError{Status: 401}), false},
		{"cancelled", 0, context.Canceled, false},
		{"server error first", 0, serverError(), true},
		{"server error second", 1, serverError(), true},
		{"server error exhausted", 2, serverError(), false},
		{"transport", 0, errors.New("execute request: connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShouldRetry(tt.attempt, tt.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, RetryDelay(0))
	assert.Equal(t, 2*time.Second, RetryDelay(1))
	assert.Equal(t, 4*time.Second, RetryDelay(2))
	assert.Equal(t, 30*time.Second, RetryDelay(10))
	assert.Equal(t, time.Second, RetryDelay(-3))
}

func TestUse_DisabledNeverFetches(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32

	r := Use(context.Background(), c, Options[string]{
		Key:     state.K("machine", "undefined"),
		Fn:      func(context.Context) (string, error) { calls.Add(1); return "x", nil },
		Enabled: false,
	})

	assert.Equal(t, StatusIdle, r.Status)
	assert.Zero(t, calls.Load())
	_, ok := c.Store().Get(state.K("machine", "undefined"))
	assert.False(t, ok)
}

func TestUse_ServesFreshCacheWithoutFetching(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32
	opts := Options[[]string]{
		Key:     state.K("machines"),
		Fn:      func(context.Context) ([]string, error) { calls.Add(1); return []string{"M-1"}, nil },
		Enabled: true,
		Policy:  MachinePolicy,
	}

	first := Use(context.Background(), c, opts)
	second := Use(context.Background(), c, opts)

	require.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, []string{"M-1"}, second.Data)
	assert.False(t, second.Stale)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUse_RefetchesAfterInvalidation(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32
	opts := Options[int]{
		Key:     state.K("maintenance-parts"),
		Fn:      func(context.Context) (int, error) { return int(calls.Add(1)), nil },
		Enabled: true,
		Policy:  PartPolicy,
	}

	assert.Equal(t, 1, Use(context.Background(), c, opts).Data)
	c.Store().Invalidate(state.K("maintenance-parts"))
	r := Use(context.Background(), c, opts)
	assert.Equal(t, 2, r.Data)
	assert.False(t, r.Stale)

	assert.Equal(t, 3, Refetch(context.Background(), c, opts).Data)
}

func TestUse_DoesNotRetryNotFound(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32

	r := Use(context.Background(), c, Options[string]{
		Key:     state.K("machine", "404"),
		Fn:      func(context.Context) (string, error) { calls.Add(1); return "", notFound() },
		Enabled: true,
		Policy:  MachinePolicy,
	})

	assert.Equal(t, StatusError, r.Status)
	assert.True(t, api.IsNotFound(r.Err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestUse_RetriesServerErrorsTwice(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32

	r := Use(context.Background(), c, Options[string]{
		Key:     state.K("machines"),
		Fn:      func(context.Context) (string, error) { calls.Add(1); return "", serverError() },
		Enabled: true,
		Policy:  MachinePolicy,
	})

	assert.Equal(t, StatusError, r.Status)
	assert.EqualValues(t, 1+MaxRetries, calls.Load())

	entry, ok := c.Store().Get(state.K("machines"))
	require.True(t, ok)
	assert.Equal(t, 1, entry.ConsecutiveFailures)
}

func TestUse_RecoversOnRetry(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32

	r := Use(context.Background(), c, Options[string]{
		Key: state.K("machines"),
		Fn: func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "", serverError()
			}
			return "ok", nil
		},
		Enabled: true,
		Policy:  MachinePolicy,
	})

	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, "ok", r.Data)
}

func TestUse_ErrorKeepsCachedData(t *testing.T) {
	c := newTestClient()
	c.Store().Set(state.K("machines"), "cached", 0)
	c.Store().Invalidate(state.K("machines"))

	r := Use(context.Background(), c, Options[string]{
		Key:     state.K("machines"),
		Fn:      func(context.Context) (string, error) { return "", notFound() },
		Enabled: true,
	})

	assert.Equal(t, StatusError, r.Status)
	assert.True(t, r.HasData)
	assert.Equal(t, "cached", r.Data)
}

func TestUse_DeduplicatesConcurrentFetches(t *testing.T) {
	c := newTestClient()
	var calls atomic.Int32
	release := make(chan struct{})

	opts := Options[string]{
		Key: state.K("machines"),
		Fn: func(context.Context) (string, error) {
			calls.Add(1)
			<-release
			return "shared", nil
		},
		Enabled: true,
		Policy:  MachinePolicy,
	}

	var wg sync.WaitGroup
	results := make([]Result[string], 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Use(context.Background(), c, opts)
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r.Data)
	}
}

func TestUse_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	c := newTestClient()
	release := make(chan struct{})
	done := make(chan struct{})

	opts := Options[string]{
		Key: state.K("machines"),
		Fn: func(ctx context.Context) (string, error) {
			defer close(done)
			select {
			case <-release:
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
		Enabled: true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Use(ctx, c, opts)
	assert.ErrorIs(t, r.Err, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool {
		e, ok := c.Store().Get(state.K("machines"))
		return ok && e.Data == "late"
	}, time.Second, 5*time.Millisecond)
}

func TestPeek(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, StatusIdle, Peek[string](c, state.K("x"), Policy{}).Status)

	c.Store().Set(state.K("x"), "v", 0)
	r := Peek[string](c, state.K("x"), Policy{StaleTime: time.Hour})
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, "v", r.Data)

	wrongType := Peek[int](c, state.K("x"), Policy{})
	assert.False(t, wrongType.HasData)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
}
