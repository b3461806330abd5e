package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// selectionArgs are the arguments naming one origin unit.
func selectionArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"id":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"mode":      &graphql.ArgumentConfig{Type: graphql.String},
		"geography": &graphql.ArgumentConfig{Type: graphql.String},
		"year":      &graphql.ArgumentConfig{Type: graphql.Int},
	}
}

func selectionFromArgs(deps *Dependencies, args map[string]interface{}) domain.QuerySelection {
	sel := deps.Catalog.Defaults
	sel.ID, _ = args["id"].(string)
	if v, ok := args["mode"].(string); ok && v != "" {
		sel.Mode = domain.Mode(v)
	}
	if v, ok := args["geography"].(string); ok && v != "" {
		sel.Geography = domain.Geography(v)
	}
	if v, ok := args["year"].(int); ok {
		sel.Year = v
	}
	return sel
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	selectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Selection",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"mode":      &graphql.Field{Type: graphql.String},
			"geography": &graphql.Field{Type: graphql.String},
			"year":      &graphql.Field{Type: graphql.Int},
		},
	})

	destinationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Destination",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"duration_sec": &graphql.Field{Type: graphql.Float},
			"color":        &graphql.Field{Type: graphql.String},
		},
	})

	travelTimesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TravelTimes",
		Fields: graphql.Fields{
			"selection":    &graphql.Field{Type: selectionType},
			"no_data":      &graphql.Field{Type: graphql.Boolean},
			"files":        &graphql.Field{Type: graphql.Int},
			"row_groups":   &graphql.Field{Type: graphql.Int},
			"bytes_read":   &graphql.Field{Type: graphql.Float},
			"total":        &graphql.Field{Type: graphql.Int},
			"destinations": &graphql.Field{Type: graphql.NewList(destinationType)},
		},
	})

	rowGroupPlanType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RowGroupPlan",
		Fields: graphql.Fields{
			"row_group":  &graphql.Field{Type: graphql.Int},
			"row_start":  &graphql.Field{Type: graphql.Float},
			"row_end":    &graphql.Field{Type: graphql.Float},
			"byte_start": &graphql.Field{Type: graphql.Float},
			"byte_end":   &graphql.Field{Type: graphql.Float},
		},
	})

	filePlanType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FilePlan",
		Fields: graphql.Fields{
			"url":              &graphql.Field{Type: graphql.String},
			"size":             &graphql.Field{Type: graphql.Float},
			"total_row_groups": &graphql.Field{Type: graphql.Int},
			"row_groups":       &graphql.Field{Type: graphql.NewList(rowGroupPlanType)},
		},
	})

	partitionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Partition",
		Fields: graphql.Fields{
			"mode":   &graphql.Field{Type: graphql.String},
			"state":  &graphql.Field{Type: graphql.String},
			"shards": &graphql.Field{Type: graphql.Int},
		},
	})

	geographyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Geography",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"id_length": &graphql.Field{Type: graphql.Int},
		},
	})

	catalogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Catalog",
		Fields: graphql.Fields{
			"modes":       &graphql.Field{Type: graphql.NewList(graphql.String)},
			"years":       &graphql.Field{Type: graphql.NewList(graphql.Int)},
			"geographies": &graphql.Field{Type: graphql.NewList(geographyType)},
		},
	})

	travelTimesArgs := selectionArgs()
	travelTimesArgs["zoom"] = &graphql.ArgumentConfig{Type: graphql.Float}
	travelTimesArgs["limit"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultTimesLimit}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"travelTimes": &graphql.Field{
				Type:        travelTimesType,
				Description: "Travel times from one unit to every unit of its geography, shortest first",
				Args:        travelTimesArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sel := selectionFromArgs(deps, p.Args)
					res, err := deps.Times.Query(p.Context, sel, domain.QueryHooks{})
					if err != nil {
						return nil, err
					}

					rows := res.Sorted()
					limit, _ := p.Args["limit"].(int)
					if limit <= 0 || limit > maxTimesLimit {
						limit = defaultTimesLimit
					}
					zoom, withColor := p.Args["zoom"].(float64)
					table := deps.Thresholds.For(sel.Mode)

					var dests []map[string]interface{}
					for _, d := range rows[:min(limit, len(rows))] {
						m := map[string]interface{}{
							"id":           d.ID,
							"duration_sec": d.DurationSec,
						}
						if withColor {
							m["color"] = colorName(table.Bucket(d.DurationSec, zoom))
						}
						dests = append(dests, m)
					}
					return map[string]interface{}{
						"selection":    selectionMap(res.Selection),
						"no_data":      res.NoData,
						"files":        res.Files,
						"row_groups":   res.RowGroups,
						"bytes_read":   float64(res.BytesRead),
						"total":        len(rows),
						"destinations": dests,
					}, nil
				},
			},
			"plan": &graphql.Field{
				Type:        graphql.NewList(filePlanType),
				Description: "Files and row groups a travel-time query would fetch",
				Args:        selectionArgs(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					plan, err := deps.Times.Plan(p.Context, selectionFromArgs(deps, p.Args))
					if err != nil {
						return nil, err
					}
					var files []map[string]interface{}
					for _, f := range plan.Files {
						var groups []map[string]interface{}
						for _, g := range f.Plans {
							groups = append(groups, map[string]interface{}{
								"row_group":  g.RowGroup,
								"row_start":  float64(g.RowStart),
								"row_end":    float64(g.RowEnd),
								"byte_start": float64(g.ByteStart),
								"byte_end":   float64(g.ByteEnd),
							})
						}
						files = append(files, map[string]interface{}{
							"url":              f.URL,
							"size":             float64(f.Size),
							"total_row_groups": f.TotalGroups,
							"row_groups":       groups,
						})
					}
					return files, nil
				},
			},
			"partitions": &graphql.Field{
				Type:        graphql.NewList(partitionType),
				Description: "Shard counts per mode and state",
				Args: graphql.FieldConfigArgument{
					"year":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"geography": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					year := p.Args["year"].(int)
					geo := p.Args["geography"].(string)
					idx, err := deps.Times.Partitions(p.Context, year, domain.Geography(geo))
					if err != nil {
						return nil, err
					}
					var out []map[string]interface{}
					for _, e := range partitionEntries(idx) {
						out = append(out, map[string]interface{}{
							"mode":   string(e.Mode),
							"state":  e.State,
							"shards": e.Shards,
						})
					}
					return out, nil
				},
			},
			"catalog": &graphql.Field{
				Type:        catalogType,
				Description: "Modes, years and geographies available",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					modes := make([]string, len(domain.Modes))
					for i, m := range domain.Modes {
						modes[i] = string(m)
					}
					var geos []map[string]interface{}
					for _, g := range domain.Geographies {
						geos = append(geos, map[string]interface{}{
							"name":      string(g),
							"id_length": g.IDLength(),
						})
					}
					return map[string]interface{}{
						"modes":       modes,
						"years":       deps.Catalog.Years,
						"geographies": geos,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func selectionMap(sel domain.QuerySelection) map[string]interface{} {
	return map[string]interface{}{
		"id":        sel.ID,
		"mode":      string(sel.Mode),
		"geography": string(sel.Geography),
		"year":      sel.Year,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
