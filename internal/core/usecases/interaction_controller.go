package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// InteractionController turns map events into queries and feature-state
// updates for one map session. It owns the current selection and the
// hover state, and mirrors the selection into the URL.
//
// At most one selection change (load, click or dropdown) is handled at a
// time; others arriving meanwhile are rejected with domain.ErrBusy. Zoom
// and hover events are always handled.
type InteractionController struct {
	coord    *QueryCoordinator
	recon    *Reconciler
	engine   ports.MapEngine
	urls     ports.URLState
	defaults domain.QuerySelection
	years    []int

	mu       sync.Mutex
	sel      domain.QuerySelection
	hovered  string
	inflight bool

	// paint orders legend and selection updates against zoom repaints.
	paint sync.Mutex
}

// NewInteractionController creates a controller starting at defaults
// (without an id) and the given zoom.
func NewInteractionController(
	coord *QueryCoordinator,
	recon *Reconciler,
	engine ports.MapEngine,
	urls ports.URLState,
	defaults domain.QuerySelection,
	years []int,
	zoom float64,
) *InteractionController {
	defaults.ID = ""
	recon.SetZoom(zoom)
	return &InteractionController{
		coord:    coord,
		recon:    recon,
		engine:   engine,
		urls:     urls,
		defaults: defaults,
		years:    years,
		sel:      defaults,
	}
}

// Selection returns the committed selection.
func (c *InteractionController) Selection() domain.QuerySelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Zoom returns the last zoom level seen.
func (c *InteractionController) Zoom() float64 {
	return c.recon.Zoom()
}

// reserve claims the session for one selection change.
func (c *InteractionController) reserve(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight {
		metrics.QueriesDropped.Inc()
		slog.DebugContext(ctx, "selection change dropped while busy")
		return domain.ErrBusy
	}
	c.inflight = true
	return nil
}

func (c *InteractionController) release() {
	c.mu.Lock()
	c.inflight = false
	c.mu.Unlock()
}

// Load initialises the selection from query-string parameters. Invalid
// parameters produce a warning and fall back to their default. A valid
// id triggers a query.
func (c *InteractionController) Load(ctx context.Context, q url.Values) error {
	if err := c.reserve(ctx); err != nil {
		return err
	}
	defer c.release()

	sel := c.defaults
	if v := q.Get("mode"); v != "" {
		if m, err := domain.ParseMode(v); err != nil {
			c.warn(ctx, err)
		} else {
			sel = sel.WithMode(m)
		}
	}
	if v := q.Get("geography"); v != "" {
		if g, err := domain.ParseGeography(v); err != nil {
			c.warn(ctx, err)
		} else {
			sel.Geography = g
		}
	}
	if v := q.Get("year"); v != "" {
		if y, err := c.parseYear(v); err != nil {
			c.warn(ctx, err)
		} else {
			sel = sel.WithYear(y)
		}
	}

	if err := c.commit(ctx, sel, true); err != nil {
		return err
	}

	id := q.Get("id")
	if id == "" {
		return nil
	}
	if err := sel.Geography.ValidateID(id); err != nil {
		c.warn(ctx, err)
		return nil
	}
	return c.query(ctx, sel.WithID(id))
}

func (c *InteractionController) parseYear(v string) (int, error) {
	y, err := strconv.Atoi(v)
	if err != nil || (len(c.years) > 0 && !slices.Contains(c.years, y)) {
		return 0, &domain.ValidationError{Field: "year", Value: v, Reason: "year not available"}
	}
	return y, nil
}

// MouseMove highlights the first feature under the pointer and removes
// the highlight from the previously hovered feature.
func (c *InteractionController) MouseMove(ctx context.Context, features []domain.MapFeature) error {
	id := ""
	if len(features) > 0 {
		id = features[0].ID
	}

	c.mu.Lock()
	prev := c.hovered
	c.hovered = id
	layer := c.sel.Geography
	c.mu.Unlock()

	if prev == id {
		return nil
	}
	var states []domain.FeatureState
	if prev != "" {
		states = append(states, domain.HoverState(prev, false))
	}
	if id != "" {
		states = append(states, domain.HoverState(id, true))
	}
	return c.engine.SetFeatureStates(ctx, layer, states)
}

// MouseLeave removes any highlight.
func (c *InteractionController) MouseLeave(ctx context.Context) error {
	return c.MouseMove(ctx, nil)
}

// Click queries the first clicked feature. Clicks on empty map space are
// ignored; clicks while a query runs return domain.ErrBusy.
func (c *InteractionController) Click(ctx context.Context, features []domain.MapFeature) error {
	if len(features) == 0 {
		return nil
	}
	if err := c.reserve(ctx); err != nil {
		return err
	}
	defer c.release()

	next := c.Selection().WithID(features[0].ID)
	if err := next.Geography.ValidateID(next.ID); err != nil {
		c.warn(ctx, err)
		return err
	}
	return c.query(ctx, next)
}

// ZoomEnd records the zoom level. When a band boundary is crossed the
// shown results are repainted with the new band's thresholds and the
// legend is relabelled. A query finishing later is painted at this zoom.
func (c *InteractionController) ZoomEnd(ctx context.Context, zoom float64) error {
	c.paint.Lock()
	defer c.paint.Unlock()

	if domain.BandForZoom(c.recon.Zoom()) == domain.BandForZoom(zoom) {
		c.recon.SetZoom(zoom)
		return nil
	}
	if _, err := c.recon.Repaint(ctx, zoom); err != nil {
		return err
	}
	return c.engine.SetLegend(ctx, c.recon.Legend(c.Selection().Mode))
}

// SetMode switches travel mode, re-querying the selected unit.
func (c *InteractionController) SetMode(ctx context.Context, mode domain.Mode) error {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		c.warn(ctx, err)
		return err
	}
	if err := c.reserve(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.change(ctx, c.Selection().WithMode(mode))
}

// SetYear switches vintage, re-querying the selected unit.
func (c *InteractionController) SetYear(ctx context.Context, year int) error {
	if _, err := c.parseYear(strconv.Itoa(year)); err != nil {
		c.warn(ctx, err)
		return err
	}
	if err := c.reserve(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.change(ctx, c.Selection().WithYear(year))
}

// SetGeography switches level. The selected unit is narrowed to its
// ancestor on a coarser level and dropped on a finer one.
func (c *InteractionController) SetGeography(ctx context.Context, geography domain.Geography) error {
	if !geography.Valid() {
		err := &domain.ValidationError{Field: "geography", Value: string(geography), Reason: "unknown geography"}
		c.warn(ctx, err)
		return err
	}
	if err := c.reserve(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.change(ctx, c.Selection().WithGeography(geography))
}

func (c *InteractionController) change(ctx context.Context, next domain.QuerySelection) error {
	if next.HasID() {
		return c.query(ctx, next)
	}
	return c.commit(ctx, next, false)
}

// query runs next through the coordinator and commits it once the map
// shows its result. A failed query leaves selection and map untouched.
// The caller holds the reservation.
func (c *InteractionController) query(ctx context.Context, next domain.QuerySelection) error {
	res, err := c.coord.Run(ctx, next,
		func(p int) { c.engine.Progress(ctx, p) },
		func(res *domain.QueryResult) error {
			_, err := c.recon.Apply(ctx, res)
			return err
		},
	)
	switch {
	case errors.Is(err, domain.ErrBusy):
		slog.DebugContext(ctx, "query dropped while busy", "id", next.ID)
		return err
	case err != nil:
		c.warn(ctx, err)
		return err
	}
	if res.NoData {
		c.engine.Warn(ctx, "no data for this ID")
	}
	return c.commit(ctx, next, false)
}

// commit makes next the selection, clears the layer it leaves and
// mirrors it into the URL. The legend is relabelled when the mode changes
// or relabel is set.
func (c *InteractionController) commit(ctx context.Context, next domain.QuerySelection, relabel bool) error {
	c.paint.Lock()
	defer c.paint.Unlock()

	c.mu.Lock()
	prev := c.sel
	c.sel = next
	c.mu.Unlock()

	if prev.Geography != next.Geography {
		if _, err := c.recon.Clear(ctx, prev.Geography); err != nil {
			return err
		}
	}
	if relabel || prev.Mode != next.Mode {
		if err := c.engine.SetLegend(ctx, c.recon.Legend(next.Mode)); err != nil {
			return err
		}
	}
	return c.urls.Replace(ctx, next.Values())
}

func (c *InteractionController) warn(ctx context.Context, err error) {
	slog.WarnContext(ctx, "map interaction rejected", "error", err)
	var v *domain.ValidationError
	if errors.As(err, &v) {
		c.engine.Warn(ctx, v.Error())
		return
	}
	c.engine.Warn(ctx, fmt.Sprintf("could not load travel times: %v", err))
}
