package ports

import (
	"context"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// QueryLogRepository persists completed queries.
type QueryLogRepository interface {
	Insert(ctx context.Context, entry *domain.QueryLogEntry) error
	Recent(ctx context.Context, limit int) ([]domain.QueryLogEntry, error)
}

// PartitionIndexSource loads the shard-count index of a (year, geography).
type PartitionIndexSource interface {
	PartitionIndex(ctx context.Context, url string) (domain.PartitionIndex, error)
}

// TravelTimeEngine plans and executes point lookups against the remote
// columnar dataset.
type TravelTimeEngine interface {
	// Plan loads metadata for urls and returns the row groups that may
	// contain key, without fetching any data.
	Plan(ctx context.Context, urls []string, key string) ([]domain.FilePlan, error)
	// Run plans and fetches every candidate row group of urls and returns
	// the travel times whose origin equals key.
	Run(ctx context.Context, urls []string, key string, hooks domain.QueryHooks) (*domain.EngineResult, error)
}
