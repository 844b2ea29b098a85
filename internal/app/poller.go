package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/state"
)

const (
	defaultPollInterval = 15 * time.Second
	maxBackoff          = 5 * time.Minute
)

// calculateBackoff doubles the interval per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

// Refresher reloads the lists the poller keeps warm.
type Refresher interface {
	RefreshMachines(ctx context.Context) error
	RefreshParts(ctx context.Context) error
}

// LayerRefresher adapts a data layer to Refresher.
type LayerRefresher struct {
	Layer *data.Layer
}

func (r LayerRefresher) RefreshMachines(ctx context.Context) error {
	return r.Layer.RefreshMachines(ctx).Err
}

func (r LayerRefresher) RefreshParts(ctx context.Context) error {
	return r.Layer.RefreshParts(ctx).Err
}

// Poller refreshes the machine and parts lists in the background and
// records each outcome on the store's health.
type Poller struct {
	Source   Refresher
	Store    *state.Store
	Interval time.Duration
	Log      *zap.Logger

	// Active gates polling; polls are skipped while it returns false.
	Active func() bool
}

// Start launches the poll loop and returns immediately.
func (p *Poller) Start(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log := logger.OrNop(p.Log).Named("poller")
	go func() {
		for {
			wait := interval
			if p.Active == nil || p.Active() {
				err := p.poll(ctx)
				if ctx.Err() != nil {
					return
				}
				p.Store.RecordPoll(err)
				if err != nil {
					failures := p.Store.Health().ConsecutiveFailures
					wait = calculateBackoff(failures, interval)
					log.Warn("poll failed",
						logger.Int("failures", failures),
						logger.Duration("retry_in", wait),
						logger.ErrorF(err),
					)
				}
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

func (p *Poller) poll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Source.RefreshMachines(gctx) })
	g.Go(func() error { return p.Source.RefreshParts(gctx) })
	return g.Wait()
}
