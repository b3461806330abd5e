package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

var tracer = otel.Tracer("traveltime/usecases")

// TimesService runs travel-time lookups. It is stateless apart from its
// caches and is shared by every caller.
type TimesService struct {
	partitions *PartitionService
	engine     ports.TravelTimeEngine
	cache      ports.CacheService
	queryLog   ports.QueryLogRepository
	events     ports.EventPublisher
	resultTTL  int
	now        func() time.Time
}

// NewTimesService creates a new TimesService. cache, queryLog and events
// may be nil.
func NewTimesService(
	partitions *PartitionService,
	engine ports.TravelTimeEngine,
	cache ports.CacheService,
	queryLog ports.QueryLogRepository,
	events ports.EventPublisher,
	resultTTLSeconds int,
) *TimesService {
	return &TimesService{
		partitions: partitions,
		engine:     engine,
		cache:      cache,
		queryLog:   queryLog,
		events:     events,
		resultTTL:  resultTTLSeconds,
		now:        time.Now,
	}
}

// Query returns the travel times from the selected unit to every other
// unit of its geography. The id is validated before any I/O. A unit with
// no rows yields a result with NoData set, not an error.
func (s *TimesService) Query(ctx context.Context, sel domain.QuerySelection, hooks domain.QueryHooks) (*domain.QueryResult, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "times.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", string(sel.Mode)),
		attribute.String("geography", string(sel.Geography)),
		attribute.Int("year", sel.Year),
		attribute.String("id", sel.ID),
	)

	cacheKey := sel.CacheKey(s.partitions.Dataset().Version)
	if res, ok := s.cached(ctx, cacheKey); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		hooks.Progress(100)
		return res, nil
	}

	start := s.now()
	res, err := s.run(ctx, sel, hooks)
	elapsed := s.now().Sub(start)
	s.record(ctx, sel, res, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.resultTTL)
		}
	}
	return res, nil
}

func (s *TimesService) run(ctx context.Context, sel domain.QuerySelection, hooks domain.QueryHooks) (*domain.QueryResult, error) {
	urls, err := s.partitions.FileURLs(ctx, sel)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Run(ctx, urls, sel.ID, hooks)
	if err != nil {
		return nil, err
	}

	res := &domain.QueryResult{
		Selection:   sel,
		Times:       out.Times,
		Files:       len(urls),
		RowGroups:   out.RowGroups,
		BytesRead:   out.BytesRead,
		CompletedAt: s.now(),
	}
	if res.Times == nil {
		res.Times = map[string]float64{}
	}
	if len(res.Times) == 0 {
		res.NoData = true
		slog.WarnContext(ctx, "no data for this ID",
			"id", sel.ID,
			"geography", sel.Geography,
			"mode", sel.Mode,
			"year", sel.Year,
		)
	}
	return res, nil
}

func (s *TimesService) cached(ctx context.Context, key string) (*domain.QueryResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var res domain.QueryResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	if res.Times == nil {
		res.Times = map[string]float64{}
	}
	return &res, true
}

// record updates metrics, the query log and subscribers. All three are
// best-effort.
func (s *TimesService) record(ctx context.Context, sel domain.QuerySelection, res *domain.QueryResult, qerr error, elapsed time.Duration) {
	outcome := "ok"
	switch {
	case qerr != nil:
		outcome = errorKind(qerr)
	case res.NoData:
		outcome = "no_data"
	}
	metrics.QueriesTotal.WithLabelValues(string(sel.Mode), string(sel.Geography), outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(sel.Mode), string(sel.Geography)).Observe(elapsed.Seconds())

	entry := &domain.QueryLogEntry{
		Selection:  sel,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  s.now(),
	}
	event := &domain.QueryCompletedEvent{
		Selection:  sel,
		DurationMS: elapsed.Milliseconds(),
		At:         entry.CreatedAt,
	}
	if qerr != nil {
		entry.Error = qerr.Error()
		event.Error = outcome
	} else {
		entry.Destinations = res.Len()
		entry.Files = res.Files
		entry.RowGroups = res.RowGroups
		entry.BytesRead = res.BytesRead
		event.Destinations = res.Len()
		event.RowGroups = res.RowGroups
		event.NoData = res.NoData
	}

	if s.queryLog != nil {
		if err := s.queryLog.Insert(ctx, entry); err != nil {
			slog.WarnContext(ctx, "query log insert failed", "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishQueryCompleted(ctx, event); err != nil {
			slog.WarnContext(ctx, "publish query event failed", "error", err)
		}
	}
}

// errorKind classifies a query failure for metrics and events.
func errorKind(err error) string {
	var fe *domain.FetchError
	var de *domain.DecodeError
	switch {
	case errors.As(err, &fe):
		return "fetch_error"
	case errors.As(err, &de):
		return "decode_error"
	case domain.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}

// Plan returns the files and row groups a query for sel would fetch.
func (s *TimesService) Plan(ctx context.Context, sel domain.QuerySelection) (*domain.QueryPlan, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	urls, err := s.partitions.FileURLs(ctx, sel)
	if err != nil {
		return nil, err
	}
	files, err := s.engine.Plan(ctx, urls, sel.ID)
	if err != nil {
		return nil, err
	}
	return &domain.QueryPlan{Selection: sel, Files: files}, nil
}

// Partitions returns the partition index of a (year, geography).
func (s *TimesService) Partitions(ctx context.Context, year int, geography domain.Geography) (domain.PartitionIndex, error) {
	if !geography.Valid() {
		return nil, &domain.ValidationError{Field: "geography", Value: string(geography), Reason: "unknown geography"}
	}
	return s.partitions.Index(ctx, year, geography)
}

// Recent returns the most recent logged queries, newest first.
func (s *TimesService) Recent(ctx context.Context, limit int) ([]domain.QueryLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.queryLog == nil {
		return []domain.QueryLogEntry{}, nil
	}
	return s.queryLog.Recent(ctx, limit)
}
