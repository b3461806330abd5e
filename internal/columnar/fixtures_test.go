package columnar_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

type timesRow struct {
	OriginID      string   `parquet:"origin_id"`
	DestinationID string   `parquet:"destination_id"`
	CentroidType  string   `parquet:"centroid_type"`
	DurationSec   *float64 `parquet:"duration_sec,optional"`
}

func secs(v float64) *float64 { return &v }

// buildFile writes one row group per element of groups.
func buildFile(t *testing.T, groups ...[]timesRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[timesRow](&buf,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
	)
	for _, g := range groups {
		_, err := w.Write(g)
		require.NoError(t, err)
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// rowsFor builds rows with the same origin for each destination.
func rowsFor(origin string, dests ...string) []timesRow {
	rows := make([]timesRow, len(dests))
	for i, d := range dests {
		rows[i] = timesRow{OriginID: origin, DestinationID: d, CentroidType: "weighted", DurationSec: secs(float64(100 * (i + 1)))}
	}
	return rows
}

type rangeCall struct {
	URL        string
	Start, End int64
}

// memSource serves in-memory files and records every access.
type memSource struct {
	mu         sync.Mutex
	files      map[string][]byte
	sizeCalls  int
	readCalls  int
	rangeCalls []rangeCall
	failRange  error
}

func newMemSource(files map[string][]byte) *memSource {
	return &memSource{files: files}
}

func (m *memSource) Size(ctx context.Context, url string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizeCalls++
	data, ok := m.files[url]
	if !ok {
		return 0, &domain.FetchError{URL: url, Op: "probe", Status: 404}
	}
	return int64(len(data)), nil
}

func (m *memSource) ReaderAt(ctx context.Context, url string, size int64) (io.ReaderAt, error) {
	m.mu.Lock()
	data := m.files[url]
	m.mu.Unlock()
	return &countingReader{r: bytes.NewReader(data), src: m}, nil
}

func (m *memSource) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeCalls = append(m.rangeCalls, rangeCall{URL: url, Start: start, End: end})
	if m.failRange != nil {
		return nil, m.failRange
	}
	data := m.files[url]
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out, nil
}

func (m *memSource) counts() (size, read, ranges int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sizeCalls, m.readCalls, len(m.rangeCalls)
}

type countingReader struct {
	r   *bytes.Reader
	src *memSource
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.src.mu.Lock()
	c.src.readCalls++
	c.src.mu.Unlock()
	return c.r.ReadAt(p, off)
}
