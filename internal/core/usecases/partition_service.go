package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// PartitionService resolves the shard files of a selection. Partition
// indexes are cached per (year, geography) for the process lifetime.
type PartitionService struct {
	source  ports.PartitionIndexSource
	dataset domain.Dataset

	mu      sync.RWMutex
	indexes map[string]domain.PartitionIndex
	group   singleflight.Group
}

// NewPartitionService creates a new PartitionService.
func NewPartitionService(source ports.PartitionIndexSource, dataset domain.Dataset) *PartitionService {
	return &PartitionService{
		source:  source,
		dataset: dataset,
		indexes: make(map[string]domain.PartitionIndex),
	}
}

// Dataset returns the dataset the service resolves files in.
func (s *PartitionService) Dataset() domain.Dataset { return s.dataset }

// Index returns the partition index of a (year, geography).
func (s *PartitionService) Index(ctx context.Context, year int, geography domain.Geography) (domain.PartitionIndex, error) {
	url := s.dataset.PartitionIndexURL(year, geography)

	s.mu.RLock()
	idx, ok := s.indexes[url]
	s.mu.RUnlock()
	if ok {
		metrics.CacheHits.WithLabelValues("partition_index").Inc()
		return idx, nil
	}
	metrics.CacheMisses.WithLabelValues("partition_index").Inc()

	v, err, _ := s.group.Do(url, func() (any, error) {
		idx, err := s.source.PartitionIndex(ctx, url)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.indexes[url] = idx
		s.mu.Unlock()
		slog.Debug("partition index loaded", "url", url, "modes", len(idx))
		return idx, nil
	})
	if err != nil {
		return nil, fmt.Errorf("partition index: %w", err)
	}
	return v.(domain.PartitionIndex), nil
}

// FileURLs returns the shard URLs holding the selected unit's rows.
func (s *PartitionService) FileURLs(ctx context.Context, sel domain.QuerySelection) ([]string, error) {
	unit, err := sel.Unit()
	if err != nil {
		return nil, err
	}
	idx, err := s.Index(ctx, sel.Year, sel.Geography)
	if err != nil {
		return nil, err
	}
	return s.dataset.FileURLs(sel, idx.Shards(sel.Mode, unit.State())), nil
}
