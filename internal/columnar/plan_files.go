package columnar

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// PlanFiles loads metadata for every url concurrently and prunes each
// file's row groups against key. Plans keep the order of urls.
func PlanFiles(ctx context.Context, files *MetadataCache, urls []string, key string, progress *Progress) ([]domain.FilePlan, error) {
	if progress == nil {
		progress = NewProgress(nil)
	}
	progress.Begin(len(urls))

	out := make([]domain.FilePlan, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			f, err := files.Get(gctx, url)
			if err != nil {
				return err
			}
			plans := PlanRowGroups(&f.Meta, key)
			out[i] = domain.FilePlan{
				URL:         url,
				Size:        f.Meta.Size,
				TotalGroups: len(f.Meta.RowGroups),
				Plans:       plans,
			}
			metrics.RowGroupsPlanned.Add(float64(len(plans)))
			metrics.RowGroupsPruned.Add(float64(len(f.Meta.RowGroups) - len(plans)))
			progress.FilePlanned()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
