// Command auditor runs the Temporal worker for dataset audits. With -start
// it submits one audit and waits for its report instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/traveltime/internal/adapters/nats"
	"github.com/samirrijal/traveltime/internal/adapters/remote"
	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/usecases"
	"github.com/samirrijal/traveltime/internal/pkg/config"
	"github.com/samirrijal/traveltime/internal/pkg/logging"
	"github.com/samirrijal/traveltime/internal/workflows"
)

func main() {
	cfg, err := config.Load("traveltime-auditor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	def := cfg.Dataset.DefaultSelection()
	start := flag.Bool("start", false, "submit an audit and print its report")
	year := flag.Int("year", def.Year, "dataset year to audit")
	geography := flag.String("geography", string(def.Geography), "geography to audit")
	mode := flag.String("mode", string(def.Mode), "mode to audit")
	flag.Parse()

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *start {
		submit(c, cfg.Temporal.TaskQueue, workflows.AuditInput{Year: *year, Geography: *geography, Mode: *mode})
		return
	}

	store := remote.New(cfg.Engine.RemoteTimeoutDuration())
	engine := columnar.NewEngine(store, cfg.Engine.MaxConcurrentFetches)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.DatasetAuditWorkflow)
	w.RegisterActivity(&workflows.AuditActivities{
		Partitions: usecases.NewPartitionService(store, cfg.Dataset.Dataset()),
		Files:      engine.Files(),
	})

	// Audit partitions whose queries fail to decode
	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "traveltime-auditor")
		if err != nil {
			slog.Warn("nats unavailable, audits start only with -start", "error", err)
		} else {
			defer sub.Close()
			handler := workflows.AuditOnDecodeError(c, cfg.Temporal.TaskQueue)
			if err := sub.SubscribeQueryCompleted(context.Background(), handler); err != nil {
				log.Fatalf("subscribe: %v", err)
			}
		}
	}

	slog.Info("auditor worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func submit(c client.Client, taskQueue string, in workflows.AuditInput) {
	ctx := context.Background()
	run, err := workflows.StartAudit(ctx, c, taskQueue, in)
	if err != nil {
		log.Fatalf("start audit: %v", err)
	}
	slog.Info("audit submitted", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var report workflows.AuditReport
	if err := run.Get(ctx, &report); err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("encode report: %v", err)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
