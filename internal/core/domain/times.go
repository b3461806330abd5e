package domain

import (
	"sort"
	"time"
)

// TravelTimeRecord is one precomputed origin→destination travel time.
type TravelTimeRecord struct {
	OriginID      string  `json:"origin_id"`
	DestinationID string  `json:"destination_id"`
	DurationSec   float64 `json:"duration_sec"`
}

// Destination is a single entry of a query result.
type Destination struct {
	ID          string       `json:"id"`
	DurationSec float64      `json:"duration_sec"`
	Bucket      *ColorBucket `json:"bucket,omitempty"`
}

// QueryResult maps destination ids to travel time for one selection.
// Each destination appears at most once.
type QueryResult struct {
	Selection   QuerySelection     `json:"selection"`
	Times       map[string]float64 `json:"times"`
	Files       int                `json:"files"`
	RowGroups   int                `json:"row_groups"`
	BytesRead   int64              `json:"bytes_read"`
	NoData      bool               `json:"no_data"`
	CompletedAt time.Time          `json:"completed_at"`
}

// EmptyResult is the result for a selection with nothing to show.
func EmptyResult(sel QuerySelection) *QueryResult {
	return &QueryResult{Selection: sel, Times: map[string]float64{}, NoData: true}
}

// Len returns the number of destinations.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Times)
}

// Has reports whether id is a destination of r.
func (r *QueryResult) Has(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Times[id]
	return ok
}

// Sorted returns destinations ordered by duration, then id.
func (r *QueryResult) Sorted() []Destination {
	if r == nil {
		return nil
	}
	out := make([]Destination, 0, len(r.Times))
	for id, d := range r.Times {
		out = append(out, Destination{ID: id, DurationSec: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DurationSec != out[j].DurationSec {
			return out[i].DurationSec < out[j].DurationSec
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PartitionIndex maps mode → state → number of shard files.
type PartitionIndex map[Mode]map[string]int

// Shards returns the shard count for (mode, state). A missing entry
// means a single file.
func (p PartitionIndex) Shards(mode Mode, state string) int {
	if states, ok := p[mode]; ok {
		if n, ok := states[state]; ok && n > 0 {
			return n
		}
	}
	return 1
}

// QueryLogEntry records a completed query.
type QueryLogEntry struct {
	ID           int64          `json:"id"`
	Selection    QuerySelection `json:"selection"`
	Destinations int            `json:"destinations"`
	Files        int            `json:"files"`
	RowGroups    int            `json:"row_groups"`
	BytesRead    int64          `json:"bytes_read"`
	DurationMS   int64          `json:"duration_ms"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// QueryCompletedEvent is published after each engine query.
type QueryCompletedEvent struct {
	Selection    QuerySelection `json:"selection"`
	Destinations int            `json:"destinations"`
	RowGroups    int            `json:"row_groups"`
	NoData       bool           `json:"no_data"`
	Error        string         `json:"error,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	At           time.Time      `json:"at"`
}
