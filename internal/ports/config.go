package ports

import (
	"context"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// PlanLoader loads plan documents from an external source such as the
// filesystem. Implementations must respect context cancellation and
// translate failures into domain error codes:
//   - io/fs.ErrNotExist → ErrCodeNotFound
//   - schema or decoding failures → ErrCodeValidation
//   - context cancellation → ErrCodeCancelled
type PlanLoader interface {
	// Load materialises a fully validated submission from the provided path.
	Load(ctx context.Context, path string) (*workflow.Submission, error)

	// Validate performs the same checks as Load without returning the result.
	Validate(ctx context.Context, path string) error
}
