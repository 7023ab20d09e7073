package ports

import (
	"context"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// Dispatcher submits steps to external generation providers. Implementations
// must:
//   - switch exhaustively over workflow.ToolKind and reject unknown kinds with
//     workflow.ErrCodeType;
//   - fail immediately on a non-success provider response, carrying the
//     provider's error payload (no retries at this layer);
//   - honour ctx cancellation on every network call.
type Dispatcher interface {
	// Dispatch submits the step's resolved inputs and returns either a job
	// handle (fire-and-poll tools) or the final output (fire-and-wait tools).
	Dispatch(ctx context.Context, step workflow.Step) (workflow.Dispatched, error)

	// Check performs a single status check for a previously returned handle.
	Check(ctx context.Context, handle workflow.JobHandle) (workflow.JobStatus, error)
}
