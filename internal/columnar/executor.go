package columnar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

var tracer = otel.Tracer("traveltime/columnar")

// Collected is the merged output of every planned row group.
type Collected struct {
	Times     map[string]float64
	RowGroups int
	Rows      int
	BytesRead int64
}

type accumulator struct {
	mu sync.Mutex
	c  Collected
}

func (a *accumulator) add(rec domain.TravelTimeRecord) {
	a.mu.Lock()
	a.c.Times[rec.DestinationID] = rec.DurationSec
	a.c.Rows++
	a.mu.Unlock()
}

func (a *accumulator) groupDone(bytes int64) {
	a.mu.Lock()
	a.c.RowGroups++
	a.c.BytesRead += bytes
	a.mu.Unlock()
}

// Executor fetches and decodes planned row groups concurrently.
type Executor struct {
	files       *MetadataCache
	source      Source
	concurrency int
}

// NewExecutor creates an executor. concurrency <= 0 means unbounded.
func NewExecutor(files *MetadataCache, source Source, concurrency int) *Executor {
	return &Executor{files: files, source: source, concurrency: concurrency}
}

// Execute fetches every plan, keeps rows whose origin equals key, and
// merges them. All row groups of all files run concurrently; the first
// failure fails the whole execution and no partial result is returned.
func (e *Executor) Execute(ctx context.Context, plans []domain.RowGroupPlan, key string, progress *Progress) (*Collected, error) {
	if progress == nil {
		progress = NewProgress(nil)
	}
	progress.Fetching(len(plans))

	acc := &accumulator{c: Collected{Times: make(map[string]float64)}}

	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, plan := range plans {
		g.Go(func() error {
			if err := e.fetchRowGroup(gctx, plan, key, acc); err != nil {
				return err
			}
			progress.RowGroupDone()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &acc.c, nil
}

func (e *Executor) fetchRowGroup(ctx context.Context, plan domain.RowGroupPlan, key string, acc *accumulator) error {
	ctx, span := tracer.Start(ctx, "columnar.row_group")
	defer span.End()
	span.SetAttributes(
		attribute.String("url", plan.URL),
		attribute.Int("row_group", plan.RowGroup),
		attribute.Int64("bytes", plan.Bytes()),
	)

	start := time.Now()
	f, err := e.files.Get(ctx, plan.URL)
	if err != nil {
		span.RecordError(err)
		return err
	}

	data, err := e.source.FetchRange(ctx, plan.URL, plan.ByteStart, plan.ByteEnd)
	if err != nil {
		span.RecordError(err)
		return err
	}
	f.overlay.add(plan.ByteStart, data)
	defer f.overlay.remove(plan.ByteStart)

	rows := &RowReader{file: f, plan: plan, key: key}
	matched := 0
	for rec, err := range rows.All() {
		if err != nil {
			span.RecordError(err)
			return err
		}
		acc.add(rec)
		matched++
	}
	acc.groupDone(int64(len(data)))
	metrics.RowGroupsFetched.Inc()

	slog.Debug("row group fetched",
		"url", plan.URL,
		"row_group", plan.RowGroup,
		"bytes", humanize.Bytes(uint64(len(data))),
		"matched", matched,
		"elapsed", time.Since(start).String(),
	)
	return nil
}
