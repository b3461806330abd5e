// Package remote reads the travel-time dataset from a static HTTP host
// that honours byte-range requests.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"howett.net/ranger"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// Store implements columnar.Source and ports.PartitionIndexSource over HTTP.
type Store struct {
	client *http.Client

	mu      sync.Mutex
	readers map[string]*ranger.Reader
}

// New creates a Store. A zero timeout leaves requests unbounded.
func New(timeout time.Duration) *Store {
	return &Store{
		client:  &http.Client{Timeout: timeout},
		readers: make(map[string]*ranger.Reader),
	}
}

// reader returns the cached reader for rawURL, probing the file on first
// use. Probes run outside the lock; when two callers probe the same URL
// concurrently the first stored reader wins.
func (s *Store) reader(rawURL string) (*ranger.Reader, error) {
	s.mu.Lock()
	r, ok := s.readers[rawURL]
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Op: "probe", Err: err}
	}
	r, err = ranger.NewReader(&ranger.HTTPRanger{URL: u})
	if err != nil {
		metrics.RemoteRequests.WithLabelValues("probe", "error").Inc()
		return nil, &domain.FetchError{URL: rawURL, Op: "probe", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.readers[rawURL]; ok {
		return existing, nil
	}
	s.readers[rawURL] = r
	return r, nil
}

// Size probes the byte length of a file.
func (s *Store) Size(ctx context.Context, rawURL string) (int64, error) {
	r, err := s.reader(rawURL)
	if err != nil {
		return 0, err
	}
	n, err := r.Length()
	if err != nil {
		metrics.RemoteRequests.WithLabelValues("probe", "error").Inc()
		return 0, &domain.FetchError{URL: rawURL, Op: "probe", Err: err}
	}
	metrics.RemoteRequests.WithLabelValues("probe", "ok").Inc()
	return n, nil
}

// ReaderAt returns a random-access reader used for footer parsing.
func (s *Store) ReaderAt(ctx context.Context, rawURL string, size int64) (io.ReaderAt, error) {
	r, err := s.reader(rawURL)
	if err != nil {
		return nil, err
	}
	return &footerReader{url: rawURL, r: r}, nil
}

type footerReader struct {
	url string
	r   *ranger.Reader
}

func (f *footerReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.r.ReadAt(p, off)
	if err != nil && err != io.EOF {
		metrics.RemoteRequests.WithLabelValues("footer", "error").Inc()
		return n, &domain.FetchError{URL: f.url, Op: "footer", Err: err}
	}
	return n, err
}

// FetchRange fetches bytes [start, end) with one Range request.
func (s *Store) FetchRange(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	if end <= start {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Op: "range", Err: err}
	}
	req.Header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end-1, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues("range", "error").Inc()
		return nil, &domain.FetchError{URL: rawURL, Op: "range", Err: err}
	}
	defer resp.Body.Close()
	metrics.RemoteRequests.WithLabelValues("range", strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// Server ignored the range; skip to the requested window.
		if _, err := io.CopyN(io.Discard, resp.Body, start); err != nil {
			return nil, &domain.FetchError{URL: rawURL, Op: "range", Err: err}
		}
	default:
		return nil, &domain.FetchError{URL: rawURL, Op: "range", Status: resp.StatusCode}
	}

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		return nil, &domain.FetchError{URL: rawURL, Op: "range", Err: err}
	}
	metrics.RemoteBytes.Add(float64(len(buf)))
	return buf, nil
}

// PartitionIndex downloads the shard-count index at rawURL. A missing
// index (404) yields an empty index, meaning one file per state.
func (s *Store) PartitionIndex(ctx context.Context, rawURL string) (domain.PartitionIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Op: "index", Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues("index", "error").Inc()
		return nil, &domain.FetchError{URL: rawURL, Op: "index", Err: err}
	}
	defer resp.Body.Close()
	metrics.RemoteRequests.WithLabelValues("index", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return domain.PartitionIndex{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: rawURL, Op: "index", Status: resp.StatusCode}
	}

	var raw map[string]map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &domain.DecodeError{URL: rawURL, RowGroup: -1, Err: fmt.Errorf("partition index: %w", err)}
	}
	idx := make(domain.PartitionIndex, len(raw))
	for mode, states := range raw {
		idx[domain.Mode(mode)] = states
	}
	return idx, nil
}

// Ping checks that the dataset host answers.
func (s *Store) Ping(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("dataset host status %d", resp.StatusCode)
	}
	return nil
}
