// Command query runs a single travel-time lookup against the remote dataset
// and prints the result as JSON.
//
//	query -id 06037000100 -mode car -geography tract -year 2024 -zoom 9
//	query -id 06037 -geography county -plan
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/samirrijal/traveltime/internal/adapters/remote"
	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/usecases"
	"github.com/samirrijal/traveltime/internal/pkg/config"
	"github.com/samirrijal/traveltime/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("traveltime-query")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	def := cfg.Dataset.DefaultSelection()
	id := flag.String("id", "", "GEOID of the origin unit")
	mode := flag.String("mode", string(def.Mode), "travel mode (car, bicycle, foot)")
	geography := flag.String("geography", string(def.Geography), "geography level")
	year := flag.Int("year", def.Year, "dataset year")
	zoom := flag.Float64("zoom", -1, "map zoom; when set each destination carries its bucket")
	plan := flag.Bool("plan", false, "print the query plan instead of running the query")
	flag.Parse()

	// Logs go to stderr so stdout stays valid JSON.
	slog.SetDefault(logging.New(os.Stderr, "traveltime-query", cfg.Log.Level, "text"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	thresholds, err := cfg.ModeThresholds()
	if err != nil {
		log.Fatalf("thresholds: %v", err)
	}

	store := remote.New(cfg.Engine.RemoteTimeoutDuration())
	engine := columnar.NewEngine(store, cfg.Engine.MaxConcurrentFetches)
	times := usecases.NewTimesService(
		usecases.NewPartitionService(store, cfg.Dataset.Dataset()),
		engine, nil, nil, nil, cfg.Cache.ResultTTL,
	)

	sel := domain.QuerySelection{
		Mode:      domain.Mode(*mode),
		Year:      *year,
		Geography: domain.Geography(*geography),
		ID:        *id,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *plan {
		p, err := times.Plan(ctx, sel)
		if err != nil {
			fail(err)
		}
		if err := enc.Encode(p); err != nil {
			fail(err)
		}
		return
	}

	res, err := times.Query(ctx, sel, domain.QueryHooks{
		OnPhase:    func(p domain.QueryPhase) { slog.Info("phase", "phase", p) },
		OnProgress: func(pct int) { slog.Debug("progress", "percent", pct) },
	})
	if err != nil {
		fail(err)
	}

	rows := res.Sorted()
	if *zoom >= 0 {
		table := thresholds.For(sel.Mode)
		for i := range rows {
			b := table.Bucket(rows[i].DurationSec, *zoom)
			rows[i].Bucket = &b
		}
	}

	slog.Info("query finished",
		"destinations", len(rows),
		"files", res.Files,
		"row_groups", res.RowGroups,
		"bytes_read", humanize.Bytes(uint64(res.BytesRead)),
		"metadata_cache", engine.Files().Stats(),
	)

	out := struct {
		Selection    domain.QuerySelection `json:"selection"`
		NoData       bool                  `json:"no_data"`
		Files        int                   `json:"files"`
		RowGroups    int                   `json:"row_groups"`
		BytesRead    int64                 `json:"bytes_read"`
		Destinations []domain.Destination  `json:"destinations"`
	}{res.Selection, res.NoData, res.Files, res.RowGroups, res.BytesRead, rows}
	if err := enc.Encode(out); err != nil {
		fail(err)
	}
}

func fail(err error) {
	slog.Error("query failed", "error", err)
	os.Exit(1)
}
