package workflows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/domain"
)

type fakeIndexer struct {
	idx domain.PartitionIndex
	err error
}

func (f *fakeIndexer) Index(ctx context.Context, year int, geography domain.Geography) (domain.PartitionIndex, error) {
	return f.idx, f.err
}

func (f *fakeIndexer) Dataset() domain.Dataset {
	return domain.Dataset{TimesBaseURL: "https://data.example/times", Version: "0.0.1"}
}

type fakeLoader struct {
	files map[string]*columnar.File
	errs  map[string]error
}

func (f *fakeLoader) Get(ctx context.Context, url string) (*columnar.File, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if file, ok := f.files[url]; ok {
		return file, nil
	}
	return nil, &domain.FetchError{URL: url, Op: "probe", Status: 404}
}

func rg(i int, lo, hi string) domain.RowGroupMeta {
	return domain.RowGroupMeta{Index: i, NumRows: 10, OriginMin: lo, OriginMax: hi, HasStats: true}
}

func file(url string, groups ...domain.RowGroupMeta) *columnar.File {
	var rows int64
	for _, g := range groups {
		rows += g.NumRows
	}
	return &columnar.File{Meta: domain.FileMetadata{URL: url, NumRows: rows, RowGroups: groups}}
}

var auditInput = AuditInput{Year: 2024, Geography: "county", Mode: "car"}

func shardURL(state string, shard int) string {
	return (&fakeIndexer{}).Dataset().FileURL(domain.ModeCar, 2024, domain.GeographyCounty, state, shard)
}

func TestListShardFiles(t *testing.T) {
	a := &AuditActivities{Partitions: &fakeIndexer{idx: domain.PartitionIndex{
		domain.ModeCar:  {"17": 1, "06": 2},
		domain.ModeFoot: {"01": 3},
	}}}

	urls, err := a.ListShardFiles(context.Background(), auditInput)
	require.NoError(t, err)
	assert.Equal(t, []string{shardURL("06", 0), shardURL("06", 1), shardURL("17", 0)}, urls)
}

func TestListShardFilesInvalidInput(t *testing.T) {
	a := &AuditActivities{Partitions: &fakeIndexer{}}

	_, err := a.ListShardFiles(context.Background(), AuditInput{Year: 2024, Geography: "county", Mode: "plane"})
	assert.True(t, domain.IsValidation(err))

	_, err = a.ListShardFiles(context.Background(), AuditInput{Year: 2024, Geography: "zip", Mode: "car"})
	assert.True(t, domain.IsValidation(err))
}

func TestAuditFileChecks(t *testing.T) {
	tests := []struct {
		name     string
		groups   []domain.RowGroupMeta
		problems int
		missing  int
	}{
		{"sorted", []domain.RowGroupMeta{rg(0, "06001", "06037"), rg(1, "06037", "06075")}, 0, 0},
		{"overlapping", []domain.RowGroupMeta{rg(0, "06001", "06075"), rg(1, "06037", "06099")}, 1, 0},
		{"inverted", []domain.RowGroupMeta{rg(0, "06075", "06001")}, 1, 0},
		{"no stats", []domain.RowGroupMeta{{Index: 0, NumRows: 10}, {Index: 1, NumRows: 5}}, 1, 2},
		{"partial stats", []domain.RowGroupMeta{rg(0, "06001", "06037"), {Index: 1, NumRows: 5}}, 0, 1},
		{"integer stats", []domain.RowGroupMeta{rg(0, "6001", "9999"), rg(1, "10001", "12001")}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "https://data.example/f.parquet"
			a := &AuditActivities{Files: &fakeLoader{files: map[string]*columnar.File{url: file(url, tt.groups...)}}}

			out, err := a.AuditFile(context.Background(), url)
			require.NoError(t, err)
			assert.Len(t, out.Problems, tt.problems, "problems: %v", out.Problems)
			assert.Equal(t, tt.missing, out.MissingStats)
			assert.Equal(t, len(tt.groups), out.RowGroups)
		})
	}
}

func TestAuditFileErrors(t *testing.T) {
	url := "https://data.example/f.parquet"
	a := &AuditActivities{Files: &fakeLoader{errs: map[string]error{
		url: &domain.DecodeError{URL: url, RowGroup: -1, Err: errors.New("bad magic")},
	}}}

	out, err := a.AuditFile(context.Background(), url)
	require.NoError(t, err)
	require.Len(t, out.Problems, 1)
	assert.Contains(t, out.Problems[0], "bad magic")

	_, err = a.AuditFile(context.Background(), "https://data.example/missing.parquet")
	var fe *domain.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestDatasetAuditWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	good, bad, broken := shardURL("06", 0), shardURL("06", 1), shardURL("17", 0)
	env.RegisterActivity(&AuditActivities{
		Partitions: &fakeIndexer{idx: domain.PartitionIndex{
			domain.ModeCar: {"06": 2, "17": 1},
		}},
		Files: &fakeLoader{
			files: map[string]*columnar.File{
				good: file(good, rg(0, "06001", "06037"), rg(1, "06041", "06075")),
				bad:  file(bad, rg(0, "06001", "06075"), rg(1, "06037", "06099")),
			},
			errs: map[string]error{
				broken: &domain.DecodeError{URL: broken, RowGroup: -1, Err: errors.New("truncated footer")},
			},
		},
	})

	env.ExecuteWorkflow(DatasetAuditWorkflow, auditInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var report AuditReport
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, int64(40), report.Rows)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, bad, report.Failed[0].URL)
	assert.Equal(t, broken, report.Failed[1].URL)
	assert.True(t, strings.Contains(report.Failed[1].Problems[0], "truncated footer"))
}

func TestAuditInputWorkflowID(t *testing.T) {
	assert.Equal(t, "audit-2024-county-car", auditInput.WorkflowID())
}
