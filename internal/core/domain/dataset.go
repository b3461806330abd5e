package domain

import (
	"fmt"
	"strings"
)

// Dataset locates the remote travel-time files of one dataset version.
type Dataset struct {
	TimesBaseURL string
	TilesBaseURL string
	Version      string
}

// FileURL returns the URL of one shard of a (mode, year, geography, state)
// partition.
func (d Dataset) FileURL(mode Mode, year int, geography Geography, state string, shard int) string {
	return fmt.Sprintf("%s/mode=%s/year=%d/geography=%s/state=%s/times-%s-%s-%d-%s-%s-%d.parquet",
		strings.TrimRight(d.TimesBaseURL, "/"),
		mode, year, geography, state,
		d.Version, mode, year, geography, state, shard,
	)
}

// FileURLs returns every shard URL for the selection's unit.
func (d Dataset) FileURLs(sel QuerySelection, shards int) []string {
	state := sel.ID[:2]
	if shards < 1 {
		shards = 1
	}
	urls := make([]string, shards)
	for i := range urls {
		urls[i] = d.FileURL(sel.Mode, sel.Year, sel.Geography, state, i)
	}
	return urls
}

// PartitionIndexURL returns the URL of the shard-count index published
// alongside the tiles of a (year, geography).
func (d Dataset) PartitionIndexURL(year int, geography Geography) string {
	return fmt.Sprintf("%s/year=%d/geography=%s/tiles-%s-%d-%s.json",
		strings.TrimRight(d.TilesBaseURL, "/"),
		year, geography, d.Version, year, geography,
	)
}
