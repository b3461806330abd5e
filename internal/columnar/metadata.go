package columnar

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// File is an opened remote file with its parsed footer.
type File struct {
	Meta domain.FileMetadata

	pf      *parquet.File
	overlay *overlayReader
	origin  int
	dest    int
	dur     int
}

// MetadataCache keeps byte lengths and parsed footers of remote files
// for the lifetime of the process. Failed loads are not cached.
type MetadataCache struct {
	source Source

	mu    sync.RWMutex
	sizes map[string]int64
	files map[string]*File

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMetadataCache creates an empty cache over source.
func NewMetadataCache(source Source) *MetadataCache {
	return &MetadataCache{
		source: source,
		sizes:  make(map[string]int64),
		files:  make(map[string]*File),
	}
}

// CacheStats reports metadata cache effectiveness.
type CacheStats struct {
	Files  int   `json:"files"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns current counters.
func (c *MetadataCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.files)
	c.mu.RUnlock()
	return CacheStats{Files: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Get returns the opened file for url, loading its footer on first use.
// Concurrent callers for the same url share one load, which is not
// cancelled when the caller that started it goes away. Each caller stops
// waiting when its own ctx is done.
func (c *MetadataCache) Get(ctx context.Context, url string) (*File, error) {
	if f := c.cached(url); f != nil {
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues("metadata").Inc()
		return f, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (any, error) {
		if f := c.cached(url); f != nil {
			return f, nil
		}
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues("metadata").Inc()
		return c.load(shared, url)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*File), nil
	case <-ctx.Done():
		return nil, &domain.FetchError{URL: url, Op: "probe", Err: ctx.Err()}
	}
}

func (c *MetadataCache) cached(url string) *File {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.files[url]
}

func (c *MetadataCache) size(ctx context.Context, url string) (int64, error) {
	c.mu.RLock()
	n, ok := c.sizes[url]
	c.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err := c.source.Size(ctx, url)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.sizes[url] = n
	c.mu.Unlock()
	return n, nil
}

func (c *MetadataCache) load(ctx context.Context, url string) (*File, error) {
	size, err := c.size(ctx, url)
	if err != nil {
		return nil, err
	}
	r, err := c.source.ReaderAt(ctx, url, size)
	if err != nil {
		return nil, err
	}

	f, err := openFile(url, r, size)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.files[url] = f
	c.mu.Unlock()

	slog.Debug("file metadata loaded",
		"url", url,
		"size", humanize.Bytes(uint64(size)),
		"row_groups", len(f.Meta.RowGroups),
		"rows", f.Meta.NumRows,
	)
	return f, nil
}

func openFile(url string, r io.ReaderAt, size int64) (*File, error) {
	overlay := newOverlayReader(r)
	pf, err := parquet.OpenFile(overlay, size,
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &domain.DecodeError{URL: url, RowGroup: -1, Err: err}
	}

	f := &File{pf: pf, overlay: overlay}
	schema := pf.Schema()
	var originKind parquet.Kind
	for _, col := range []struct {
		name string
		idx  *int
	}{
		{ColumnOrigin, &f.origin},
		{ColumnDestination, &f.dest},
		{ColumnDuration, &f.dur},
	} {
		leaf, ok := schema.Lookup(col.name)
		if !ok {
			return nil, &domain.DecodeError{URL: url, RowGroup: -1, Err: fmt.Errorf("missing column %s", col.name)}
		}
		*col.idx = leaf.ColumnIndex
		if col.name == ColumnOrigin {
			originKind = leaf.Node.Type().Kind()
		}
	}

	meta := pf.Metadata()
	f.Meta = domain.FileMetadata{
		URL:       url,
		Size:      size,
		NumRows:   meta.NumRows,
		RowGroups: make([]domain.RowGroupMeta, len(meta.RowGroups)),
	}
	for i, rg := range meta.RowGroups {
		rm := domain.RowGroupMeta{Index: i, NumRows: rg.NumRows}
		if f.origin < len(rg.Columns) {
			stats := rg.Columns[f.origin].MetaData.Statistics
			lo, hi := stats.MinValue, stats.MaxValue
			if lo == nil || hi == nil {
				lo, hi = stats.Min, stats.Max
			}
			minKey, okMin := statValue(originKind, lo)
			maxKey, okMax := statValue(originKind, hi)
			if okMin && okMax {
				rm.OriginMin, rm.OriginMax, rm.HasStats = minKey, maxKey, true
			}
		}
		rm.ByteStart, rm.ByteEnd = chunkSpan(rg, f.origin, f.dest, f.dur)
		f.Meta.RowGroups[i] = rm
	}
	return f, nil
}

// statValue renders a plain-encoded statistic as a key string.
func statValue(kind parquet.Kind, b []byte) (string, bool) {
	if b == nil {
		return "", false
	}
	switch kind {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(b), true
	case parquet.Int32:
		if len(b) != 4 {
			return "", false
		}
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b))), 10), true
	case parquet.Int64:
		if len(b) != 8 {
			return "", false
		}
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(b)), 10), true
	}
	return "", false
}

// chunkSpan returns the byte range covering the given column chunks.
func chunkSpan(rg format.RowGroup, columns ...int) (start, end int64) {
	start = -1
	for _, c := range columns {
		if c >= len(rg.Columns) {
			continue
		}
		md := rg.Columns[c].MetaData
		off := md.DataPageOffset
		if md.DictionaryPageOffset > 0 && md.DictionaryPageOffset < off {
			off = md.DictionaryPageOffset
		}
		if start < 0 || off < start {
			start = off
		}
		if e := off + md.TotalCompressedSize; e > end {
			end = e
		}
	}
	if start < 0 {
		start = 0
	}
	return start, end
}
