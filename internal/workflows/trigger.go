package workflows

import (
	"context"
	"log/slog"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// WorkflowStarter starts workflow executions. Implemented by client.Client.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// StartAudit submits an audit of in to taskQueue. While an audit of the
// same partition is running, the running execution is returned.
func StartAudit(ctx context.Context, c WorkflowStarter, taskQueue string, in AuditInput) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        in.WorkflowID(),
		TaskQueue: taskQueue,
	}, DatasetAuditWorkflow, in)
}

// AuditOnDecodeError returns a query event handler that audits the
// partition of every query that failed to decode.
func AuditOnDecodeError(c WorkflowStarter, taskQueue string) func(ctx context.Context, event *domain.QueryCompletedEvent) error {
	return func(ctx context.Context, event *domain.QueryCompletedEvent) error {
		if event.Error != "decode_error" {
			return nil
		}
		in := AuditInput{
			Year:      event.Selection.Year,
			Geography: string(event.Selection.Geography),
			Mode:      string(event.Selection.Mode),
		}
		if _, err := StartAudit(ctx, c, taskQueue, in); err != nil {
			slog.WarnContext(ctx, "start audit failed", "workflow_id", in.WorkflowID(), "error", err)
			return err
		}
		slog.InfoContext(ctx, "audit started", "workflow_id", in.WorkflowID(), "unit", event.Selection.ID)
		return nil
	}
}
