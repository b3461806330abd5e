package usecases_test

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/core/usecases"
)

var testDataset = domain.Dataset{
	TimesBaseURL: "https://data.example/times",
	TilesBaseURL: "https://data.example/tiles",
	Version:      "0.0.1",
}

// --- Mock PartitionIndexSource ---

type mockPartitions struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, url string) (domain.PartitionIndex, error)
}

func (m *mockPartitions) PartitionIndex(ctx context.Context, url string) (domain.PartitionIndex, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, url)
	}
	return domain.PartitionIndex{}, nil
}

// --- Mock TravelTimeEngine ---

type mockEngine struct {
	mu     sync.Mutex
	runs   int
	planFn func(ctx context.Context, urls []string, key string) ([]domain.FilePlan, error)
	runFn  func(ctx context.Context, urls []string, key string, hooks domain.QueryHooks) (*domain.EngineResult, error)
}

func (m *mockEngine) Plan(ctx context.Context, urls []string, key string) ([]domain.FilePlan, error) {
	if m.planFn != nil {
		return m.planFn(ctx, urls, key)
	}
	return nil, nil
}

func (m *mockEngine) Run(ctx context.Context, urls []string, key string, hooks domain.QueryHooks) (*domain.EngineResult, error) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx, urls, key, hooks)
	}
	return &domain.EngineResult{Times: map[string]float64{}}, nil
}

func (m *mockEngine) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// timesEngine answers every run with times.
func timesEngine(times map[string]float64) *mockEngine {
	return &mockEngine{
		runFn: func(ctx context.Context, urls []string, key string, hooks domain.QueryHooks) (*domain.EngineResult, error) {
			hooks.Phase(domain.PhasePlanning)
			hooks.Progress(10)
			hooks.Phase(domain.PhaseFetching)
			hooks.Progress(100)
			out := make(map[string]float64, len(times))
			for k, v := range times {
				out[k] = v
			}
			return &domain.EngineResult{Times: out, RowGroups: 1, BytesRead: 512}, nil
		},
	}
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock QueryLogRepository ---

type mockQueryLog struct {
	mu       sync.Mutex
	entries  []domain.QueryLogEntry
	recentFn func(ctx context.Context, limit int) ([]domain.QueryLogEntry, error)
}

func (m *mockQueryLog) Insert(ctx context.Context, e *domain.QueryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockQueryLog) Recent(ctx context.Context, limit int) ([]domain.QueryLogEntry, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, limit)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.QueryCompletedEvent
}

func (m *mockPublisher) PublishQueryCompleted(ctx context.Context, e *domain.QueryCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

// --- Mock MapEngine and URLState ---

type stateBatch struct {
	layer  domain.Geography
	states []domain.FeatureState
}

type mockMap struct {
	mu       sync.Mutex
	batches  []stateBatch
	legends  [][domain.BucketCount]string
	progress []int
	busy     []bool
	warnings []string
	queries  []url.Values
	setErr   error
}

func (m *mockMap) SetFeatureStates(ctx context.Context, layer domain.Geography, states []domain.FeatureState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.batches = append(m.batches, stateBatch{layer: layer, states: states})
	return nil
}

func (m *mockMap) SetLegend(ctx context.Context, labels [domain.BucketCount]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legends = append(m.legends, labels)
	return nil
}

func (m *mockMap) Progress(ctx context.Context, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, percent)
}

func (m *mockMap) Busy(ctx context.Context, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = append(m.busy, busy)
}

func (m *mockMap) Warn(ctx context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, message)
}

func (m *mockMap) Replace(ctx context.Context, q url.Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return nil
}

func (m *mockMap) lastBatch() stateBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return stateBatch{}
	}
	return m.batches[len(m.batches)-1]
}

func (m *mockMap) lastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return nil
	}
	return m.queries[len(m.queries)-1]
}

// bucketsOf indexes a batch's bucket updates by id.
func bucketsOf(states []domain.FeatureState) map[string]domain.ColorBucket {
	out := map[string]domain.ColorBucket{}
	for _, s := range states {
		if s.Bucket != nil {
			out[s.ID] = *s.Bucket
		}
	}
	return out
}

// serviceDeps builds a TimesService; nil fields are left unwired.
type serviceDeps struct {
	partitions *mockPartitions
	engine     *mockEngine
	cache      *mockCache
	log        *mockQueryLog
	pub        *mockPublisher
}

func (d serviceDeps) build() *usecases.TimesService {
	if d.partitions == nil {
		d.partitions = &mockPartitions{}
	}
	if d.engine == nil {
		d.engine = &mockEngine{}
	}
	var cache ports.CacheService
	if d.cache != nil {
		cache = d.cache
	}
	var log ports.QueryLogRepository
	if d.log != nil {
		log = d.log
	}
	var pub ports.EventPublisher
	if d.pub != nil {
		pub = d.pub
	}
	parts := usecases.NewPartitionService(d.partitions, testDataset)
	return usecases.NewTimesService(parts, d.engine, cache, log, pub, 60)
}

func tractSelection(id string) domain.QuerySelection {
	return domain.QuerySelection{Mode: domain.ModeCar, Year: 2020, Geography: domain.GeographyTract, ID: id}
}
