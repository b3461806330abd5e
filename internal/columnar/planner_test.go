package columnar_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/domain"
)

func TestCompareKeys(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"06037", "06037", 0},
		{"06037", "06038", -1},
		{"6037", "06037", 0},
		{"9", "10", -1},
		{"06037000100", "6037000100", 0},
		{"abc", "abd", -1},
		{"b", "a", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, columnar.CompareKeys(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}

func TestPlanRowGroups_RowRanges(t *testing.T) {
	meta := &domain.FileMetadata{
		URL: "f",
		RowGroups: []domain.RowGroupMeta{
			{Index: 0, NumRows: 10, OriginMin: "01001000100", OriginMax: "01001000900", HasStats: true, ByteStart: 4, ByteEnd: 100},
			{Index: 1, NumRows: 20, OriginMin: "01001000900", OriginMax: "01003000100", HasStats: true, ByteStart: 100, ByteEnd: 300},
			{Index: 2, NumRows: 5, OriginMin: "01005000100", OriginMax: "01007000100", HasStats: true, ByteStart: 300, ByteEnd: 350},
		},
	}

	plans := columnar.PlanRowGroups(meta, "01001000900")
	require.Len(t, plans, 2)
	assert.Equal(t, domain.RowGroupPlan{URL: "f", RowGroup: 0, RowStart: 0, RowEnd: 10, ByteStart: 4, ByteEnd: 100}, plans[0])
	assert.Equal(t, domain.RowGroupPlan{URL: "f", RowGroup: 1, RowStart: 10, RowEnd: 30, ByteStart: 100, ByteEnd: 300}, plans[1])

	plans = columnar.PlanRowGroups(meta, "01007000100")
	require.Len(t, plans, 1)
	assert.Equal(t, int64(30), plans[0].RowStart)
	assert.Equal(t, int64(35), plans[0].RowEnd)
}

func TestPlanRowGroups_NoData(t *testing.T) {
	meta := &domain.FileMetadata{
		URL: "f",
		RowGroups: []domain.RowGroupMeta{
			{Index: 0, NumRows: 10, OriginMin: "01001000100", OriginMax: "01001000900", HasStats: true},
		},
	}
	assert.Empty(t, columnar.PlanRowGroups(meta, "01001000000"))
	assert.Empty(t, columnar.PlanRowGroups(meta, "01001000901"))
	assert.Empty(t, columnar.PlanRowGroups(&domain.FileMetadata{URL: "empty"}, "01001000100"))
}

func TestPlanRowGroups_MissingStatsAlwaysIncluded(t *testing.T) {
	meta := &domain.FileMetadata{
		URL: "f",
		RowGroups: []domain.RowGroupMeta{
			{Index: 0, NumRows: 3},
			{Index: 1, NumRows: 0},
		},
	}
	plans := columnar.PlanRowGroups(meta, "99999999999")
	require.Len(t, plans, 1)
	assert.Equal(t, 0, plans[0].RowGroup)
}

// A row group is planned exactly when min <= key <= max.
func TestPlanRowGroups_InclusionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	id := func(n int) string { return fmt.Sprintf("%011d", n) }

	for iter := 0; iter < 200; iter++ {
		var groups []domain.RowGroupMeta
		lo := rng.Intn(1000)
		for i := 0; i < 1+rng.Intn(8); i++ {
			hi := lo + rng.Intn(50)
			groups = append(groups, domain.RowGroupMeta{
				Index: i, NumRows: int64(1 + rng.Intn(100)),
				OriginMin: id(lo), OriginMax: id(hi), HasStats: true,
			})
			lo = hi + rng.Intn(3)
		}
		meta := &domain.FileMetadata{URL: "f", RowGroups: groups}
		k := rng.Intn(lo + 10)
		key := id(k)

		planned := map[int]bool{}
		for _, p := range columnar.PlanRowGroups(meta, key) {
			planned[p.RowGroup] = true
		}
		for _, g := range groups {
			want := g.OriginMin <= key && key <= g.OriginMax
			assert.Equal(t, want, planned[g.Index], "key %s group %d [%s, %s]", key, g.Index, g.OriginMin, g.OriginMax)
		}
	}
}
