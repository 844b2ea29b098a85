package query

import (
	"context"

	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/state"
)

// Mutation describes a write and how it keeps the cache consistent.
//
// The phases run in order: Validate, then a cache transaction over Touches
// (in-flight queries on those keys are cancelled and the entries
// snapshotted), then Optimistic, then Fn. On failure the snapshot is
// restored exactly. On success Confirm may write the server's answer (a
// confirmed id, say), the transaction commits, and Invalidates is marked
// stale.
type Mutation[V, R any] struct {
	Name        string
	Fn          func(ctx context.Context, vars V) (R, error)
	Validate    func(vars V) error
	Touches     func(vars V) []state.Key
	Optimistic  func(store *state.Store, vars V)
	Confirm     func(store *state.Store, vars V, result R)
	Invalidates func(vars V, result R) []state.Key
}

// Mutate runs m once. Mutations are never retried.
func Mutate[V, R any](ctx context.Context, c *Client, m Mutation[V, R], vars V) (R, error) {
	var zero R
	if m.Validate != nil {
		if err := m.Validate(vars); err != nil {
			return zero, err
		}
	}

	var tx *state.Tx
	if m.Touches != nil {
		tx = c.store.Begin(m.Touches(vars)...)
	}
	if m.Optimistic != nil {
		m.Optimistic(c.store, vars)
	}

	result, err := m.Fn(ctx, vars)
	if err != nil {
		if tx != nil {
			tx.Rollback()
		}
		c.metrics.Mutation("rolled_back")
		c.log.Warn("mutation failed",
			logger.String("mutation", m.Name),
			logger.Bool("rolled_back", tx != nil),
			logger.ErrorF(err),
		)
		return zero, err
	}

	if m.Confirm != nil {
		m.Confirm(c.store, vars, result)
	}
	if tx != nil {
		tx.Commit()
	}
	if m.Invalidates != nil {
		c.store.Invalidate(m.Invalidates(vars, result)...)
	}
	c.metrics.Mutation("committed")
	c.log.Debug("mutation committed", logger.String("mutation", m.Name))
	return result, nil
}
