package ports

import (
	"context"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// ProgressStream is the push channel a workflow run reports to. The
// orchestrator is its only writer, so implementations only need to be safe
// against a concurrent Close from the consumer side.
//
// Contract:
//   - Send delivers events in call order; no reordering or batching.
//   - Send after Close is a silent no-op.
//   - Close is idempotent.
type ProgressStream interface {
	Send(ctx context.Context, event workflow.ProgressEvent)
	Close()
}
