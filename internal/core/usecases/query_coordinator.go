package usecases

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// QueryCoordinator serialises the queries of one map session. At most
// one query runs at a time; a query requested meanwhile is dropped with
// domain.ErrBusy rather than queued.
type QueryCoordinator struct {
	times  *TimesService
	onBusy func(busy bool)
	busy   atomic.Bool
	phase  atomic.Int32
}

// NewQueryCoordinator creates a new QueryCoordinator. onBusy, if not nil,
// is called when a query starts and when it ends.
func NewQueryCoordinator(times *TimesService, onBusy func(busy bool)) *QueryCoordinator {
	return &QueryCoordinator{times: times, onBusy: onBusy}
}

// Phase returns the current state.
func (c *QueryCoordinator) Phase() domain.QueryPhase {
	return domain.QueryPhase(c.phase.Load())
}

// Busy reports whether a query is running.
func (c *QueryCoordinator) Busy() bool { return c.busy.Load() }

func (c *QueryCoordinator) setPhase(p domain.QueryPhase) {
	c.phase.Store(int32(p))
}

// Run executes a query for sel and hands the result to apply. On a fetch
// or decode failure apply is not called and an empty result is returned
// together with the error. The busy flag is released on every exit path,
// including a panic in apply.
func (c *QueryCoordinator) Run(
	ctx context.Context,
	sel domain.QuerySelection,
	progress func(percent int),
	apply func(*domain.QueryResult) error,
) (*domain.QueryResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		metrics.QueriesDropped.Inc()
		return nil, domain.ErrBusy
	}
	if c.onBusy != nil {
		c.onBusy(true)
	}
	defer func() {
		c.setPhase(domain.PhaseIdle)
		c.busy.Store(false)
		if c.onBusy != nil {
			c.onBusy(false)
		}
	}()

	if err := sel.Validate(); err != nil {
		return nil, err
	}

	c.setPhase(domain.PhasePlanning)
	res, err := c.times.Query(ctx, sel, domain.QueryHooks{
		OnPhase:    c.setPhase,
		OnProgress: progress,
	})
	if err != nil {
		slog.WarnContext(ctx, "travel time query failed",
			"id", sel.ID,
			"geography", sel.Geography,
			"mode", sel.Mode,
			"error", err,
		)
		return &domain.QueryResult{Selection: sel, Times: map[string]float64{}}, err
	}

	c.setPhase(domain.PhaseReconciling)
	if apply != nil {
		if err := apply(res); err != nil {
			return res, err
		}
	}
	return res, nil
}
