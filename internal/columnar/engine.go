package columnar

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// Engine ties the metadata cache, planner and executor together.
type Engine struct {
	files    *MetadataCache
	executor *Executor
}

// NewEngine creates an engine reading through source.
func NewEngine(source Source, concurrency int) *Engine {
	files := NewMetadataCache(source)
	return &Engine{files: files, executor: NewExecutor(files, source, concurrency)}
}

// Files exposes the metadata cache.
func (e *Engine) Files() *MetadataCache { return e.files }

// Plan returns the candidate row groups of each url without fetching data.
func (e *Engine) Plan(ctx context.Context, urls []string, key string) ([]domain.FilePlan, error) {
	ctx, span := tracer.Start(ctx, "columnar.plan", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int("files", len(urls)),
	))
	defer span.End()
	return PlanFiles(ctx, e.files, urls, key, nil)
}

// Run plans and executes a lookup. An empty plan yields an empty result
// without any range request.
func (e *Engine) Run(ctx context.Context, urls []string, key string, hooks domain.QueryHooks) (*domain.EngineResult, error) {
	ctx, span := tracer.Start(ctx, "columnar.run", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int("files", len(urls)),
	))
	defer span.End()

	progress := NewProgress(hooks.OnProgress)

	hooks.Phase(domain.PhasePlanning)
	files, err := PlanFiles(ctx, e.files, urls, key, progress)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var plans []domain.RowGroupPlan
	for _, f := range files {
		plans = append(plans, f.Plans...)
	}
	span.SetAttributes(attribute.Int("row_groups", len(plans)))

	out := &domain.EngineResult{Files: files, Times: map[string]float64{}}
	if len(plans) == 0 {
		progress.Done()
		return out, nil
	}

	hooks.Phase(domain.PhaseFetching)
	got, err := e.executor.Execute(ctx, plans, key, progress)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	progress.Done()

	out.Times = got.Times
	out.RowGroups = got.RowGroups
	out.BytesRead = got.BytesRead
	return out, nil
}
