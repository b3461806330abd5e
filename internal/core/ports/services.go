package ports

import (
	"context"
	"net/url"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishQueryCompleted(ctx context.Context, event *domain.QueryCompletedEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeQueryCompleted(ctx context.Context, handler func(ctx context.Context, event *domain.QueryCompletedEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// MapEngine is the rendering side of a map session. Features are
// addressed by layer (geography) and id.
type MapEngine interface {
	SetFeatureStates(ctx context.Context, layer domain.Geography, states []domain.FeatureState) error
	SetLegend(ctx context.Context, labels [domain.BucketCount]string) error
	Progress(ctx context.Context, percent int)
	Busy(ctx context.Context, busy bool)
	Warn(ctx context.Context, message string)
}

// URLState mirrors the current selection into the page URL.
type URLState interface {
	Replace(ctx context.Context, query url.Values) error
}
