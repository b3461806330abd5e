// Package columnar reads row groups of remote Parquet travel-time files
// using only the byte ranges a point lookup on origin_id needs.
package columnar

import (
	"context"
	"io"
)

// Source gives random access to remote files.
type Source interface {
	// Size probes the byte length of url.
	Size(ctx context.Context, url string) (int64, error)
	// ReaderAt returns a reader over url, which is size bytes long.
	ReaderAt(ctx context.Context, url string, size int64) (io.ReaderAt, error)
	// FetchRange returns bytes [start, end) of url in a single request.
	FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error)
}

// Column names read from every file.
const (
	ColumnOrigin      = "origin_id"
	ColumnDestination = "destination_id"
	ColumnDuration    = "duration_sec"
)
