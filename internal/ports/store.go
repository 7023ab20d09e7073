package ports

import (
	"context"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// KVStore is the single storage capability the engine needs: get and put by
// key. Exactly one implementation is chosen at startup; stores are never
// dual-written. Get reports found=false for missing keys rather than an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// TaskStore persists durable workflow status. Writes are last-writer-wins
// upserts keyed by workflow id; only the owning orchestrator run writes its
// own record. Missing records → workflow.ErrCodeNotFound.
type TaskStore interface {
	Upsert(ctx context.Context, record workflow.TaskRecord) error
	Get(ctx context.Context, workflowID string) (*workflow.TaskRecord, error)
	List(ctx context.Context) ([]workflow.TaskRecord, error)
}
