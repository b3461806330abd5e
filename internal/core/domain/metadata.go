package domain

// RowGroupMeta is the per-row-group footer information needed for
// pruning and fetching.
type RowGroupMeta struct {
	Index     int    `json:"index"`
	NumRows   int64  `json:"num_rows"`
	OriginMin string `json:"origin_min,omitempty"`
	OriginMax string `json:"origin_max,omitempty"`
	HasStats  bool   `json:"has_stats"`
	// Byte span covering the projected column chunks, [ByteStart, ByteEnd).
	ByteStart int64 `json:"byte_start"`
	ByteEnd   int64 `json:"byte_end"`
}

// FileMetadata is the parsed footer of one remote columnar file.
type FileMetadata struct {
	URL       string         `json:"url"`
	Size      int64          `json:"size"`
	NumRows   int64          `json:"num_rows"`
	RowGroups []RowGroupMeta `json:"row_groups"`
}

// RowGroupPlan is one row group selected for fetching. Rows are the
// half-open range [RowStart, RowEnd) in file order.
type RowGroupPlan struct {
	URL       string `json:"url"`
	RowGroup  int    `json:"row_group"`
	RowStart  int64  `json:"row_start"`
	RowEnd    int64  `json:"row_end"`
	ByteStart int64  `json:"byte_start"`
	ByteEnd   int64  `json:"byte_end"`
}

// Rows returns the number of rows covered by the plan.
func (p RowGroupPlan) Rows() int64 { return p.RowEnd - p.RowStart }

// Bytes returns the size of the byte span to fetch.
func (p RowGroupPlan) Bytes() int64 { return p.ByteEnd - p.ByteStart }

// FilePlan lists the planned row groups of one file.
type FilePlan struct {
	URL         string         `json:"url"`
	Size        int64          `json:"size"`
	TotalGroups int            `json:"total_row_groups"`
	Plans       []RowGroupPlan `json:"plans"`
}

// QueryPlan is the set of row groups a selection needs.
type QueryPlan struct {
	Selection QuerySelection `json:"selection"`
	Files     []FilePlan     `json:"files"`
}

// RowGroups flattens every planned row group.
func (q *QueryPlan) RowGroups() []RowGroupPlan {
	var out []RowGroupPlan
	for _, f := range q.Files {
		out = append(out, f.Plans...)
	}
	return out
}

// Empty reports whether nothing needs to be fetched.
func (q *QueryPlan) Empty() bool {
	for _, f := range q.Files {
		if len(f.Plans) > 0 {
			return false
		}
	}
	return true
}
