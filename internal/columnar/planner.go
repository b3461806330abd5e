package columnar

import "github.com/samirrijal/traveltime/internal/core/domain"

// PlanRowGroups selects the row groups of meta whose origin_id range
// contains key. Row groups without statistics cannot be pruned and are
// always selected. Empty row groups are skipped. An empty result means
// the key is not in the file.
func PlanRowGroups(meta *domain.FileMetadata, key string) []domain.RowGroupPlan {
	var (
		plans    []domain.RowGroupPlan
		rowStart int64
	)
	for _, rg := range meta.RowGroups {
		rowEnd := rowStart + rg.NumRows
		if mayContain(rg, key) {
			plans = append(plans, domain.RowGroupPlan{
				URL:       meta.URL,
				RowGroup:  rg.Index,
				RowStart:  rowStart,
				RowEnd:    rowEnd,
				ByteStart: rg.ByteStart,
				ByteEnd:   rg.ByteEnd,
			})
		}
		rowStart = rowEnd
	}
	return plans
}

func mayContain(rg domain.RowGroupMeta, key string) bool {
	if rg.NumRows == 0 {
		return false
	}
	if !rg.HasStats {
		return true
	}
	return CompareKeys(rg.OriginMin, key) <= 0 && CompareKeys(key, rg.OriginMax) <= 0
}
