package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/ports"
)

// Reconciler keeps the map's feature states in line with the latest
// query result of each layer. Results are bucketed at the zoom level the
// reconciler holds, so a result applied after a zoom change is painted
// with the new band.
type Reconciler struct {
	engine     ports.MapEngine
	thresholds domain.ModeThresholds

	mu      sync.Mutex
	current map[domain.Geography]*domain.QueryResult
	zoom    float64
}

// NewReconciler creates a new Reconciler.
func NewReconciler(engine ports.MapEngine, thresholds domain.ModeThresholds) *Reconciler {
	return &Reconciler{
		engine:     engine,
		thresholds: thresholds,
		current:    make(map[domain.Geography]*domain.QueryResult),
	}
}

// Current returns the result shown on a layer, or nil.
func (r *Reconciler) Current(layer domain.Geography) *domain.QueryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[layer]
}

// Zoom returns the zoom level results are bucketed at.
func (r *Reconciler) Zoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

// SetZoom records the zoom level without repainting.
func (r *Reconciler) SetZoom(zoom float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoom = zoom
}

// Legend returns the labels for a mode at the current zoom level.
func (r *Reconciler) Legend(mode domain.Mode) [domain.BucketCount]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thresholds.For(mode).Scale(r.zoom).Labels
}

// Apply replaces the layer's result with res. Units of the previous
// result missing from res are reset to BucketNone, and every unit of res
// is set to its bucket at the current zoom. All updates are pushed in one
// batch.
func (r *Reconciler) Apply(ctx context.Context, res *domain.QueryResult) (domain.Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	layer := res.Selection.Geography
	prev := r.current[layer]

	diff := domain.Diff{Layer: layer, Cleared: []string{}}
	if prev != nil {
		for id := range prev.Times {
			if !res.Has(id) {
				diff.Cleared = append(diff.Cleared, id)
			}
		}
		sort.Strings(diff.Cleared)
	}
	diff.Set = r.bucketed(res, r.zoom)

	if err := r.push(ctx, diff); err != nil {
		return diff, err
	}
	r.current[layer] = res
	return diff, nil
}

// Repaint records zoom and re-derives the buckets of every layer's
// current result for it. Layers are repainted in name order.
func (r *Reconciler) Repaint(ctx context.Context, zoom float64) ([]domain.Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoom = zoom

	layers := make([]domain.Geography, 0, len(r.current))
	for layer := range r.current {
		layers = append(layers, layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })

	diffs := make([]domain.Diff, 0, len(layers))
	for _, layer := range layers {
		diff := domain.Diff{Layer: layer, Cleared: []string{}, Set: r.bucketed(r.current[layer], zoom)}
		if err := r.push(ctx, diff); err != nil {
			return diffs, err
		}
		diffs = append(diffs, diff)
	}
	return diffs, nil
}

// Clear resets every unit of the layer's current result and forgets it.
func (r *Reconciler) Clear(ctx context.Context, layer domain.Geography) (domain.Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	diff := domain.Diff{Layer: layer, Cleared: []string{}, Set: []domain.Destination{}}
	res := r.current[layer]
	if res == nil {
		return diff, nil
	}
	for id := range res.Times {
		diff.Cleared = append(diff.Cleared, id)
	}
	sort.Strings(diff.Cleared)
	if err := r.push(ctx, diff); err != nil {
		return diff, err
	}
	delete(r.current, layer)
	return diff, nil
}

func (r *Reconciler) bucketed(res *domain.QueryResult, zoom float64) []domain.Destination {
	table := r.thresholds.For(res.Selection.Mode)
	dests := res.Sorted()
	if dests == nil {
		dests = []domain.Destination{}
	}
	for i := range dests {
		b := table.Bucket(dests[i].DurationSec, zoom)
		dests[i].Bucket = &b
	}
	return dests
}

func (r *Reconciler) push(ctx context.Context, diff domain.Diff) error {
	updates := diff.Updates()
	if len(updates) == 0 {
		return nil
	}
	if err := r.engine.SetFeatureStates(ctx, diff.Layer, updates); err != nil {
		return fmt.Errorf("set feature states: %w", err)
	}
	return nil
}
