package columnar

import (
	"io"
	"sync"
)

type segment struct {
	off  int64
	data []byte
}

// overlayReader serves reads from prefetched byte ranges and falls back
// to the underlying reader for anything outside them. Row groups being
// decoded concurrently register disjoint segments.
type overlayReader struct {
	base io.ReaderAt

	mu       sync.RWMutex
	segments map[int64]segment

	baseMu sync.Mutex
}

func newOverlayReader(base io.ReaderAt) *overlayReader {
	return &overlayReader{base: base, segments: make(map[int64]segment)}
}

func (r *overlayReader) add(off int64, data []byte) {
	r.mu.Lock()
	r.segments[off] = segment{off: off, data: data}
	r.mu.Unlock()
}

func (r *overlayReader) remove(off int64) {
	r.mu.Lock()
	delete(r.segments, off)
	r.mu.Unlock()
}

func (r *overlayReader) ReadAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))

	r.mu.RLock()
	for _, s := range r.segments {
		if off >= s.off && end <= s.off+int64(len(s.data)) {
			n := copy(p, s.data[off-s.off:])
			r.mu.RUnlock()
			return n, nil
		}
	}
	r.mu.RUnlock()

	r.baseMu.Lock()
	defer r.baseMu.Unlock()
	return r.base.ReadAt(p, off)
}
