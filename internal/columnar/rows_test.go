package columnar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

type intKeyRow struct {
	OriginID      int64   `parquet:"origin_id"`
	DestinationID int64   `parquet:"destination_id"`
	DurationSec   float64 `parquet:"duration_sec"`
}

type bytesSource struct{ data []byte }

func (b bytesSource) Size(context.Context, string) (int64, error) { return int64(len(b.data)), nil }
func (b bytesSource) ReaderAt(context.Context, string, int64) (io.ReaderAt, error) {
	return bytes.NewReader(b.data), nil
}
func (b bytesSource) FetchRange(_ context.Context, _ string, start, end int64) ([]byte, error) {
	return b.data[start:end], nil
}

func writeIntKeyed(t *testing.T, rows []intKeyRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[intKeyRow](&buf)
	_, err := w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRowReader_IntegerKeysAndSingleUse(t *testing.T) {
	data := writeIntKeyed(t, []intKeyRow{
		{OriginID: 6037000100, DestinationID: 6037000100, DurationSec: 0},
		{OriginID: 6037000100, DestinationID: 6037000200, DurationSec: 450},
		{OriginID: 6037000200, DestinationID: 6037000100, DurationSec: 460},
	})
	cache := NewMetadataCache(bytesSource{data})
	f, err := cache.Get(context.Background(), "int")
	require.NoError(t, err)

	// Integer columns still match zero-padded string keys.
	plans := PlanRowGroups(&f.Meta, "06037000100")
	require.Len(t, plans, 1)
	assert.Empty(t, PlanRowGroups(&f.Meta, "06037000300"))

	r := &RowReader{file: f, plan: plans[0], key: "06037000100"}
	var got []domain.TravelTimeRecord
	for rec, err := range r.All() {
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, []domain.TravelTimeRecord{
		{OriginID: "06037000100", DestinationID: "06037000100", DurationSec: 0},
		{OriginID: "06037000100", DestinationID: "06037000200", DurationSec: 450},
	}, got)

	for _, err := range r.All() {
		assert.True(t, errors.Is(err, ErrRowsConsumed))
	}
}

func TestRowReader_NegativeDurationIsDecodeError(t *testing.T) {
	data := writeIntKeyed(t, []intKeyRow{
		{OriginID: 1, DestinationID: 2, DurationSec: -5},
	})
	f, err := NewMetadataCache(bytesSource{data}).Get(context.Background(), "neg")
	require.NoError(t, err)

	r := &RowReader{file: f, plan: PlanRowGroups(&f.Meta, "1")[0], key: "1"}
	var last error
	for _, err := range r.All() {
		last = err
	}
	var de *domain.DecodeError
	require.True(t, errors.As(last, &de))
	assert.Equal(t, 0, de.RowGroup)
}

func TestOverlayReader_ServesSegments(t *testing.T) {
	base := &countReads{r: bytes.NewReader([]byte("0123456789"))}
	o := newOverlayReader(base)
	o.add(2, []byte("ab"))

	p := make([]byte, 2)
	_, err := o.ReadAt(p, 2)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(p))
	assert.Zero(t, base.n)

	_, err = o.ReadAt(p, 3)
	require.NoError(t, err)
	assert.Equal(t, "34", string(p))
	assert.Equal(t, 1, base.n)

	o.remove(2)
	_, err = o.ReadAt(p, 2)
	require.NoError(t, err)
	assert.Equal(t, "23", string(p))
}

type countReads struct {
	r *bytes.Reader
	n int
}

func (c *countReads) ReadAt(p []byte, off int64) (int, error) {
	c.n++
	return c.r.ReadAt(p, off)
}

func TestProgress_Monotonic(t *testing.T) {
	var seen []int
	p := NewProgress(func(pct int) { seen = append(seen, pct) })
	p.Begin(2)
	p.FilePlanned()
	p.FilePlanned()
	p.Fetching(3)
	p.RowGroupDone()
	p.RowGroupDone()
	p.RowGroupDone()
	p.Done()

	assert.Equal(t, []int{5, 10, 40, 70, 100}, seen)
	assert.Equal(t, 100, p.Percent())
}

// stubPage serves vals from Values and then err. Only the methods the
// cursor calls are implemented.
type stubPage struct {
	parquet.Page
	n    int64
	vals []parquet.Value
	err  error
}

func (p *stubPage) NumValues() int64 { return p.n }

func (p *stubPage) Values() parquet.ValueReader { return &stubValues{page: p} }

type stubValues struct {
	page *stubPage
	pos  int
}

func (v *stubValues) ReadValues(buf []parquet.Value) (int, error) {
	k := copy(buf, v.page.vals[v.pos:])
	v.pos += k
	if v.pos < len(v.page.vals) {
		return k, nil
	}
	return k, v.page.err
}

type stubPages struct{ pages []parquet.Page }

func (s *stubPages) ReadPage() (parquet.Page, error) {
	if len(s.pages) == 0 {
		return nil, io.EOF
	}
	p := s.pages[0]
	s.pages = s.pages[1:]
	return p, nil
}

func (s *stubPages) SeekToRow(int64) error { return nil }
func (s *stubPages) Close() error          { return nil }

func int64Values(vs ...int64) []parquet.Value {
	out := make([]parquet.Value, len(vs))
	for i, v := range vs {
		out[i] = parquet.Int64Value(v)
	}
	return out
}

func TestCursor_PageErrors(t *testing.T) {
	errCorrupt := errors.New("corrupt page")

	tests := []struct {
		name    string
		page    *stubPage
		wantErr error
	}{
		{
			name:    "failing page with no values",
			page:    &stubPage{n: 3, err: errCorrupt},
			wantErr: errCorrupt,
		},
		{
			name:    "failing page after some values",
			page:    &stubPage{n: 3, vals: int64Values(1), err: errCorrupt},
			wantErr: errCorrupt,
		},
		{
			name:    "truncated page",
			page:    &stubPage{n: 3, vals: int64Values(1, 2), err: io.EOF},
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &stubPage{n: 1, vals: int64Values(9), err: io.EOF}
			c := &cursor{pages: &stubPages{pages: []parquet.Page{tt.page, next}}}

			_, err := c.next()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCursor_ReadsAcrossPages(t *testing.T) {
	c := &cursor{pages: &stubPages{pages: []parquet.Page{
		&stubPage{n: 2, vals: int64Values(1, 2), err: io.EOF},
		&stubPage{n: 1, vals: int64Values(3)},
	}}}

	var got []int64
	for i := 0; i < 3; i++ {
		v, err := c.next()
		require.NoError(t, err)
		got = append(got, v.Int64())
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	_, err := c.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRowReader_DecodeErrorWrapsPageFailure(t *testing.T) {
	r := &RowReader{plan: domain.RowGroupPlan{URL: "s3://bucket/06.parquet", RowGroup: 1}}

	var de *domain.DecodeError
	err := r.decodeErr(fmt.Errorf("page holds 2 of 3 values: %w", io.ErrUnexpectedEOF))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.RowGroup)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
