package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/domain"
)

// PartitionIndexer resolves partition indexes. Implemented by
// usecases.PartitionService.
type PartitionIndexer interface {
	Index(ctx context.Context, year int, geography domain.Geography) (domain.PartitionIndex, error)
	Dataset() domain.Dataset
}

// FooterLoader opens remote files. Implemented by columnar.MetadataCache.
type FooterLoader interface {
	Get(ctx context.Context, url string) (*columnar.File, error)
}

// AuditActivities holds the activity implementations for the dataset
// audit workflow.
type AuditActivities struct {
	Partitions PartitionIndexer
	Files      FooterLoader
}

// FileAudit is the outcome of checking one shard file.
type FileAudit struct {
	URL          string   `json:"url"`
	RowGroups    int      `json:"row_groups"`
	Rows         int64    `json:"rows"`
	MissingStats int      `json:"missing_stats"`
	Problems     []string `json:"problems,omitempty"`
}

// OK reports whether the file passed every check.
func (f FileAudit) OK() bool { return len(f.Problems) == 0 }

// ListShardFiles returns the URL of every shard of a (year, geography,
// mode) partition, ordered by state and shard.
func (a *AuditActivities) ListShardFiles(ctx context.Context, in AuditInput) ([]string, error) {
	mode, err := domain.ParseMode(in.Mode)
	if err != nil {
		return nil, err
	}
	geo, err := domain.ParseGeography(in.Geography)
	if err != nil {
		return nil, err
	}
	idx, err := a.Partitions.Index(ctx, in.Year, geo)
	if err != nil {
		return nil, fmt.Errorf("load partition index: %w", err)
	}

	states := make([]string, 0, len(idx[mode]))
	for st := range idx[mode] {
		states = append(states, st)
	}
	sort.Strings(states)

	ds := a.Partitions.Dataset()
	var urls []string
	for _, st := range states {
		for shard := 0; shard < idx.Shards(mode, st); shard++ {
			urls = append(urls, ds.FileURL(mode, in.Year, geo, st, shard))
		}
	}
	return urls, nil
}

// AuditFile loads the footer of url and checks that origin_id statistics
// are present and that row groups are in ascending, non-overlapping key
// order, which row-group pruning relies on. Unreadable footers are
// reported as problems; transport failures are returned so the activity
// is retried.
func (a *AuditActivities) AuditFile(ctx context.Context, url string) (FileAudit, error) {
	out := FileAudit{URL: url}

	f, err := a.Files.Get(ctx, url)
	if err != nil {
		var de *domain.DecodeError
		if errors.As(err, &de) {
			out.Problems = append(out.Problems, "unreadable footer: "+de.Error())
			return out, nil
		}
		return out, fmt.Errorf("load footer: %w", err)
	}

	out.RowGroups = len(f.Meta.RowGroups)
	out.Rows = f.Meta.NumRows
	out.Problems = checkRowGroups(f.Meta.RowGroups)
	for _, rg := range f.Meta.RowGroups {
		if rg.NumRows > 0 && !rg.HasStats {
			out.MissingStats++
		}
	}

	if !out.OK() {
		slog.WarnContext(ctx, "shard failed audit", "url", url, "problems", out.Problems)
	}
	return out, nil
}

func checkRowGroups(groups []domain.RowGroupMeta) []string {
	var problems []string
	var prevMax string
	for _, rg := range groups {
		if rg.NumRows == 0 || !rg.HasStats {
			continue
		}
		if columnar.CompareKeys(rg.OriginMin, rg.OriginMax) > 0 {
			problems = append(problems, fmt.Sprintf("row group %d: min %s above max %s", rg.Index, rg.OriginMin, rg.OriginMax))
		}
		if prevMax != "" && columnar.CompareKeys(rg.OriginMin, prevMax) < 0 {
			problems = append(problems, fmt.Sprintf("row group %d: starts at %s before previous max %s", rg.Index, rg.OriginMin, prevMax))
		}
		prevMax = rg.OriginMax
	}
	if len(groups) > 0 && allMissingStats(groups) {
		problems = append(problems, "no origin_id statistics; every row group would be fetched")
	}
	return problems
}

func allMissingStats(groups []domain.RowGroupMeta) bool {
	for _, rg := range groups {
		if rg.HasStats {
			return false
		}
	}
	return true
}
