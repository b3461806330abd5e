package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/traveltime/internal/adapters/postgres"
	"github.com/samirrijal/traveltime/internal/adapters/valkey"
	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/usecases"
)

// Catalog describes what the dataset offers and where new sessions start.
type Catalog struct {
	Years       []int
	Defaults    domain.QuerySelection
	DefaultZoom float64
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Times      *usecases.TimesService
	Thresholds domain.ModeThresholds
	Catalog    Catalog
	// RequestTimeout bounds REST handlers; zero means 60s.
	RequestTimeout time.Duration
	// DatasetPing checks that the remote dataset host answers.
	DatasetPing func(ctx context.Context) error
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
	// OpenAPIPath is served under /docs; empty means api/openapi.yaml.
	OpenAPIPath string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return 60 * time.Second
}

func (d *Dependencies) openAPIPath() string {
	if d.OpenAPIPath != "" {
		return d.OpenAPIPath
	}
	return "api/openapi.yaml"
}
