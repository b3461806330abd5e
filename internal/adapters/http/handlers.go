package http

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

const (
	defaultTimesLimit = 1000
	maxTimesLimit     = 10000
)

// TimesResponse is one page of a travel-time query result.
type TimesResponse struct {
	Selection  domain.QuerySelection `json:"selection"`
	NoData     bool                  `json:"no_data"`
	Files      int                   `json:"files"`
	RowGroups  int                   `json:"row_groups"`
	BytesRead  int64                 `json:"bytes_read"`
	Legend     []string              `json:"legend,omitempty"`
	Data       []domain.Destination  `json:"data"`
	Pagination Pagination            `json:"pagination"`
}

// GeographyInfo describes one geography level.
type GeographyInfo struct {
	Name     domain.Geography `json:"name"`
	IDLength int              `json:"id_length"`
}

// CatalogResponse lists what can be queried.
type CatalogResponse struct {
	Geographies []GeographyInfo                       `json:"geographies"`
	Modes       []domain.Mode                         `json:"modes"`
	Years       []int                                 `json:"years"`
	Defaults    domain.QuerySelection                 `json:"defaults"`
	Thresholds  map[domain.Mode]domain.ThresholdTable `json:"thresholds"`
}

// PartitionEntry is one (mode, state) shard count.
type PartitionEntry struct {
	Mode   domain.Mode `json:"mode"`
	State  string      `json:"state"`
	Shards int         `json:"shards"`
}

// selectionFromQuery reads mode, geography and year from the query string,
// falling back to the catalog defaults.
func selectionFromQuery(c *fiber.Ctx, deps *Dependencies, id string) domain.QuerySelection {
	sel := deps.Catalog.Defaults
	if v := c.Query("mode"); v != "" {
		sel.Mode = domain.Mode(v)
	}
	if v := c.Query("geography"); v != "" {
		sel.Geography = domain.Geography(v)
	}
	sel.Year = c.QueryInt("year", sel.Year)
	sel.ID = id
	return sel
}

// TimesHandler returns the travel times from one unit, shortest first.
// With a zoom parameter each row carries its color bucket.
func TimesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return serveTimes(c, deps, selectionFromQuery(c, deps, c.Params("id")))
	}
}

// TractTimesHandler is the deprecated tract-only form of TimesHandler.
func TractTimesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sel := selectionFromQuery(c, deps, c.Params("id"))
		sel.Geography = domain.GeographyTract
		return serveTimes(c, deps, sel)
	}
}

func serveTimes(c *fiber.Ctx, deps *Dependencies, sel domain.QuerySelection) error {
	res, err := deps.Times.Query(c.UserContext(), sel, domain.QueryHooks{})
	if err != nil {
		return writeError(c, err)
	}

	rows := res.Sorted()
	var legend []string
	if c.Query("zoom") != "" {
		zoom := c.QueryFloat("zoom", deps.Catalog.DefaultZoom)
		table := deps.Thresholds.For(sel.Mode)
		for i := range rows {
			b := table.Bucket(rows[i].DurationSec, zoom)
			rows[i].Bucket = &b
		}
		labels := table.Scale(zoom).Labels
		legend = labels[:]
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", defaultTimesLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxTimesLimit {
		limit = defaultTimesLimit
	}

	total := len(rows)
	if offset >= total {
		rows = []domain.Destination{}
	} else {
		rows = rows[offset:min(offset+limit, total)]
	}

	pg := Pagination{Offset: offset, Limit: limit, Total: total}
	SetLinkHeaders(c, pg)
	return c.JSON(TimesResponse{
		Selection:  res.Selection,
		NoData:     res.NoData,
		Files:      res.Files,
		RowGroups:  res.RowGroups,
		BytesRead:  res.BytesRead,
		Legend:     legend,
		Data:       rows,
		Pagination: pg,
	})
}

// PlanHandler returns the files and row groups a query would fetch,
// without fetching them.
func PlanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plan, err := deps.Times.Plan(c.UserContext(), selectionFromQuery(c, deps, c.Params("id")))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(plan)
	}
}

// CatalogHandler lists geographies, modes, years and bucket thresholds.
func CatalogHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := CatalogResponse{
			Modes:      domain.Modes,
			Years:      deps.Catalog.Years,
			Defaults:   deps.Catalog.Defaults,
			Thresholds: make(map[domain.Mode]domain.ThresholdTable, len(domain.Modes)),
		}
		for _, g := range domain.Geographies {
			resp.Geographies = append(resp.Geographies, GeographyInfo{Name: g, IDLength: g.IDLength()})
		}
		for _, m := range domain.Modes {
			resp.Thresholds[m] = deps.Thresholds.For(m)
		}
		return c.JSON(resp)
	}
}

// PartitionsHandler returns the shard counts of a (year, geography).
func PartitionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		geo := c.Query("geography", string(deps.Catalog.Defaults.Geography))
		year := c.QueryInt("year", deps.Catalog.Defaults.Year)
		if year <= 0 {
			return errBadRequest(c, "year must be positive")
		}

		idx, err := deps.Times.Partitions(c.UserContext(), year, domain.Geography(geo))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{
			"year":       year,
			"geography":  geo,
			"partitions": partitionEntries(idx),
		})
	}
}

// RecentQueriesHandler returns the latest logged queries.
func RecentQueriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := deps.Times.Recent(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return writeError(c, err)
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(entries)
	}
}

// partitionEntries flattens an index in mode, then state order.
func partitionEntries(idx domain.PartitionIndex) []PartitionEntry {
	out := []PartitionEntry{}
	for _, m := range domain.Modes {
		states := idx[m]
		keys := make([]string, 0, len(states))
		for s := range states {
			keys = append(keys, s)
		}
		slices.Sort(keys)
		for _, s := range keys {
			out = append(out, PartitionEntry{Mode: m, State: s, Shards: states[s]})
		}
	}
	return out
}
