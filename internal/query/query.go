package query

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/metrics"
	"github.com/five82/toolroom/internal/state"
)

// Status describes the outcome of a query read.
type Status int

const (
	// StatusIdle means the query is disabled and no fetch was attempted.
	StatusIdle Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Client runs queries and mutations against one cache store.
type Client struct {
	store   *state.Store
	group   singleflight.Group
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(log) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a Client over store.
func NewClient(store *state.Store, opts ...Option) *Client {
	c := &Client{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("query")
	return c
}

// Store returns the underlying cache.
func (c *Client) Store() *state.Store { return c.store }

// Options describe one query.
type Options[T any] struct {
	Key     state.Key
	Fn      func(ctx context.Context) (T, error)
	Enabled bool
	Policy  Policy
}

// Result is what a view renders.
type Result[T any] struct {
	Data      T
	HasData   bool
	Err       error
	Status    Status
	Stale     bool
	UpdatedAt time.Time
}

// Use returns cached data when it is fresh and otherwise fetches it.
// Concurrent calls for the same key share one fetch. A disabled query
// returns StatusIdle without touching the network or the cache.
func Use[T any](ctx context.Context, c *Client, opts Options[T]) Result[T] {
	if !opts.Enabled {
		return Result[T]{Status: StatusIdle}
	}

	if entry, ok := c.store.Get(opts.Key); ok && entry.HasData() && entry.Err == nil &&
		!entry.IsStale(opts.Policy.StaleTime, c.now()) {
		c.metrics.CacheLookup("hit")
		return fromEntry[T](entry, opts.Policy, c.now())
	} else if ok && entry.HasData() {
		c.metrics.CacheLookup("stale")
	} else {
		c.metrics.CacheLookup("miss")
	}

	ch := c.group.DoChan(opts.Key.ID(), func() (any, error) {
		return c.fetch(opts.Key, opts.Policy, func(fctx context.Context) (any, error) {
			return opts.Fn(fctx)
		})
	})

	var fetchErr error
	select {
	case <-ctx.Done():
		fetchErr = ctx.Err()
	case res := <-ch:
		fetchErr = res.Err
		if fetchErr == nil {
			if data, ok := res.Val.(T); ok {
				if entry, found := c.store.Get(opts.Key); found {
					r := fromEntry[T](entry, opts.Policy, c.now())
					if r.HasData {
						return r
					}
				}
				return Result[T]{Data: data, HasData: true, Status: StatusSuccess, UpdatedAt: c.now()}
			}
		}
	}

	// A mutation cancelled the fetch; serve whatever the mutation left.
	if errors.Is(fetchErr, context.Canceled) && ctx.Err() == nil {
		if entry, ok := c.store.Get(opts.Key); ok && entry.HasData() {
			return fromEntry[T](entry, opts.Policy, c.now())
		}
	}

	r := Peek[T](c, opts.Key, opts.Policy)
	r.Err = fetchErr
	r.Status = StatusError
	return r
}

// Peek reads the cache without fetching.
func Peek[T any](c *Client, key state.Key, policy Policy) Result[T] {
	entry, ok := c.store.Get(key)
	if !ok {
		return Result[T]{Status: StatusIdle}
	}
	return fromEntry[T](entry, policy, c.now())
}

// Refetch marks key stale and fetches it again.
func Refetch[T any](ctx context.Context, c *Client, opts Options[T]) Result[T] {
	c.store.Invalidate(opts.Key)
	return Use(ctx, c, opts)
}

func (c *Client) fetch(key state.Key, policy Policy, fn func(context.Context) (any, error)) (any, error) {
	fctx, tok := c.store.BeginFetch(key)

	var (
		data any
		err  error
	)
	for attempt := 0; ; attempt++ {
		data, err = fn(fctx)
		if err == nil || !policy.retry(attempt, err) {
			break
		}
		c.metrics.FetchRetry()
		c.log.Debug("retrying fetch",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt+1),
			logger.ErrorF(err),
		)
		if sleepErr := c.sleep(fctx, policy.delay(attempt)); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("fetch failed", logger.String("key", key.String()), logger.ErrorF(err))
	}
	c.store.EndFetch(tok, data, err, policy.GCTime)
	return data, err
}

func fromEntry[T any](entry state.Entry, policy Policy, now time.Time) Result[T] {
	r := Result[T]{
		Err:       entry.Err,
		Stale:     entry.IsStale(policy.StaleTime, now),
		UpdatedAt: entry.UpdatedAt,
		Status:    StatusSuccess,
	}
	if data, ok := entry.Data.(T); ok {
		r.Data = data
		r.HasData = true
	}
	if entry.Err != nil {
		r.Status = StatusError
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
