package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/usecases"
)

func result(id string, times map[string]float64) *domain.QueryResult {
	return &domain.QueryResult{Selection: tractSelection(id), Times: times}
}

func newReconciler(m *mockMap, thresholds domain.ModeThresholds) *usecases.Reconciler {
	r := usecases.NewReconciler(m, thresholds)
	r.SetZoom(10)
	return r
}

func TestReconciler_ApplyClearsStaleAndSetsNew(t *testing.T) {
	m := &mockMap{}
	r := newReconciler(m, nil)
	ctx := context.Background()

	if _, err := r.Apply(ctx, result("06037000100", map[string]float64{"A": 100, "B": 200})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff, err := r.Apply(ctx, result("06037000200", map[string]float64{"B": 1000, "C": 8000}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(diff.Cleared, []string{"A"}) {
		t.Errorf("expected cleared [A], got %v", diff.Cleared)
	}
	if len(diff.Set) != 2 || diff.Set[0].ID != "B" || diff.Set[1].ID != "C" {
		t.Errorf("expected set [B C], got %+v", diff.Set)
	}

	batch := m.lastBatch()
	if batch.layer != domain.GeographyTract {
		t.Errorf("expected tract layer, got %s", batch.layer)
	}
	got := bucketsOf(batch.states)
	want := map[string]domain.ColorBucket{
		"A": domain.BucketNone,
		"B": domain.Bucket2,
		"C": domain.BucketNone,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if r.Current(domain.GeographyTract).Len() != 2 {
		t.Error("expected current result replaced")
	}
}

func TestReconciler_RepaintUsesZoomBand(t *testing.T) {
	m := &mockMap{}
	r := newReconciler(m, nil)
	ctx := context.Background()

	if _, err := r.Apply(ctx, result("06037000100", map[string]float64{"B": 1000})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := bucketsOf(m.lastBatch().states)["B"]; b != domain.Bucket2 {
		t.Errorf("fine band: expected Bucket2, got %s", b)
	}

	diffs, err := r.Repaint(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diffs) != 1 || len(diffs[0].Cleared) != 0 {
		t.Errorf("repaint must not clear, got %+v", diffs)
	}
	if b := bucketsOf(m.lastBatch().states)["B"]; b != domain.Bucket1 {
		t.Errorf("coarse band: expected Bucket1, got %s", b)
	}
	if r.Zoom() != 3 {
		t.Errorf("expected zoom 3 recorded, got %v", r.Zoom())
	}

	if _, err := r.Apply(ctx, result("06037000200", map[string]float64{"C": 1000})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := bucketsOf(m.lastBatch().states)["C"]; b != domain.Bucket1 {
		t.Errorf("result applied after repaint: expected Bucket1, got %s", b)
	}
}

func TestReconciler_RepaintEveryLayer(t *testing.T) {
	m := &mockMap{}
	r := newReconciler(m, nil)
	ctx := context.Background()

	county := result("06037", map[string]float64{"06037": 1000})
	county.Selection.Geography = domain.GeographyCounty
	_, _ = r.Apply(ctx, county)
	_, _ = r.Apply(ctx, result("06037000100", map[string]float64{"B": 1000}))

	diffs, err := r.Repaint(ctx, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diffs) != 2 || diffs[0].Layer != domain.GeographyCounty || diffs[1].Layer != domain.GeographyTract {
		t.Fatalf("expected county then tract repainted, got %+v", diffs)
	}
	if len(m.batches) != 4 {
		t.Errorf("expected 2 repaint batches, got %d total", len(m.batches))
	}
}

func TestReconciler_Clear(t *testing.T) {
	m := &mockMap{}
	r := newReconciler(m, nil)
	ctx := context.Background()

	diff, err := r.Clear(ctx, domain.GeographyCounty)
	if err != nil || len(diff.Cleared) != 0 || len(m.batches) != 0 {
		t.Fatalf("clearing an empty layer should be a no-op, got %+v, %v", diff, err)
	}

	_, _ = r.Apply(ctx, result("06037000100", map[string]float64{"B": 10, "A": 20}))
	diff, err = r.Clear(ctx, domain.GeographyTract)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(diff.Cleared, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", diff.Cleared)
	}
	if r.Current(domain.GeographyTract) != nil {
		t.Error("expected layer forgotten")
	}
}

func TestReconciler_PushFailureKeepsPrevious(t *testing.T) {
	m := &mockMap{}
	r := newReconciler(m, nil)
	ctx := context.Background()

	first := result("06037000100", map[string]float64{"A": 10})
	_, _ = r.Apply(ctx, first)

	m.setErr = errors.New("session closed")
	if _, err := r.Apply(ctx, result("06037000200", map[string]float64{"B": 10})); err == nil {
		t.Fatal("expected push error")
	}
	if r.Current(domain.GeographyTract) != first {
		t.Error("failed push must keep the previous result")
	}
}

func TestReconciler_ModeThresholds(t *testing.T) {
	foot := domain.DefaultThresholds
	foot[domain.ZoomFine].Thresholds = domain.Thresholds{300, 600, 900, 1200, 1800, 2400}
	m := &mockMap{}
	r := newReconciler(m, domain.ModeThresholds{domain.ModeFoot: foot})

	res := result("06037000100", map[string]float64{"B": 1000})
	res.Selection = res.Selection.WithMode(domain.ModeFoot)
	_, _ = r.Apply(context.Background(), res)
	if b := bucketsOf(m.lastBatch().states)["B"]; b != domain.Bucket4 {
		t.Errorf("expected Bucket4 with foot thresholds, got %s", b)
	}
	r.SetZoom(3)
	if r.Legend(domain.ModeCar)[0] != "< 1 hr" {
		t.Errorf("unexpected coarse legend %v", r.Legend(domain.ModeCar))
	}
}
