package columnar

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/parquet-go/parquet-go"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// ErrRowsConsumed is yielded when a RowReader is iterated twice.
var ErrRowsConsumed = errors.New("row reader already consumed")

// RowReader streams the records of one planned row group whose origin
// equals the queried key. It can be iterated once.
type RowReader struct {
	file *File
	plan domain.RowGroupPlan
	key  string
	used atomic.Bool
}

// All yields matching records in file order. Null durations are
// unreachable pairs and are skipped.
func (r *RowReader) All() iter.Seq2[domain.TravelTimeRecord, error] {
	return func(yield func(domain.TravelTimeRecord, error) bool) {
		if !r.used.CompareAndSwap(false, true) {
			yield(domain.TravelTimeRecord{}, ErrRowsConsumed)
			return
		}

		rowGroups := r.file.pf.RowGroups()
		if r.plan.RowGroup >= len(rowGroups) {
			yield(domain.TravelTimeRecord{}, r.decodeErr(fmt.Errorf("row group out of range")))
			return
		}
		chunks := rowGroups[r.plan.RowGroup].ColumnChunks()
		origins := newCursor(chunks[r.file.origin])
		dests := newCursor(chunks[r.file.dest])
		durations := newCursor(chunks[r.file.dur])
		defer origins.close()
		defer dests.close()
		defer durations.close()

		for i := r.plan.RowStart; i < r.plan.RowEnd; i++ {
			o, err := origins.next()
			if err != nil {
				yield(domain.TravelTimeRecord{}, r.decodeErr(err))
				return
			}
			d, err := dests.next()
			if err != nil {
				yield(domain.TravelTimeRecord{}, r.decodeErr(err))
				return
			}
			t, err := durations.next()
			if err != nil {
				yield(domain.TravelTimeRecord{}, r.decodeErr(err))
				return
			}

			if o.IsNull() || CompareKeys(keyString(o), r.key) != 0 || t.IsNull() {
				continue
			}
			dur, ok := durationValue(t)
			if !ok || dur < 0 || math.IsNaN(dur) {
				yield(domain.TravelTimeRecord{}, r.decodeErr(fmt.Errorf("invalid duration %v", t)))
				return
			}
			rec := domain.TravelTimeRecord{
				OriginID:      r.key,
				DestinationID: padKey(d, len(r.key)),
				DurationSec:   dur,
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (r *RowReader) decodeErr(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &domain.DecodeError{URL: r.plan.URL, RowGroup: r.plan.RowGroup, Err: err}
}

// cursor walks the values of one column chunk page by page.
type cursor struct {
	pages parquet.Pages
	buf   []parquet.Value
	pos   int
}

func newCursor(chunk parquet.ColumnChunk) *cursor {
	return &cursor{pages: chunk.Pages()}
}

func (c *cursor) next() (parquet.Value, error) {
	for c.pos >= len(c.buf) {
		page, err := c.pages.ReadPage()
		if err != nil {
			return parquet.Value{}, err
		}
		n := int(page.NumValues())
		if cap(c.buf) < n {
			c.buf = make([]parquet.Value, n)
		}
		c.buf = c.buf[:n]

		values := page.Values()
		read := 0
		for read < n {
			k, err := values.ReadValues(c.buf[read:])
			read += k
			if err != nil && !errors.Is(err, io.EOF) {
				return parquet.Value{}, err
			}
			if err != nil || k == 0 {
				break
			}
		}
		if read < n {
			// A short page would shift this column against the others.
			return parquet.Value{}, fmt.Errorf("page holds %d of %d values: %w", read, n, io.ErrUnexpectedEOF)
		}
		c.pos = 0
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) close() {
	_ = c.pages.Close()
}

func keyString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	default:
		return string(v.ByteArray())
	}
}

// padKey restores the leading zeros integer-typed identifiers lose.
// Destinations share the origin's geography and hence its width.
func padKey(v parquet.Value, width int) string {
	s := keyString(v)
	switch v.Kind() {
	case parquet.Int32, parquet.Int64:
		if len(s) < width {
			s = strings.Repeat("0", width-len(s)) + s
		}
	}
	return s
}

func durationValue(v parquet.Value) (float64, bool) {
	switch v.Kind() {
	case parquet.Double:
		return v.Double(), true
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	}
	return 0, false
}
