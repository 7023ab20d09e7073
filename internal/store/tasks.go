package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const taskKeyPrefix = "task/"

// TaskStore keeps workflow task records as JSON documents in a KVStore.
type TaskStore struct {
	kv  ports.KVStore
	now func() time.Time
}

// TaskStoreOption customizes a TaskStore.
type TaskStoreOption func(*TaskStore)

// WithClock overrides the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) TaskStoreOption {
	return func(t *TaskStore) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTaskStore wraps kv.
func NewTaskStore(kv ports.KVStore, opts ...TaskStoreOption) *TaskStore {
	t := &TaskStore{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Upsert replaces the record for record.WorkflowID. UpdatedAt is stamped
// when left zero.
func (t *TaskStore) Upsert(ctx context.Context, record workflow.TaskRecord) error {
	if strings.TrimSpace(record.WorkflowID) == "" {
		return workflow.NewError(workflow.ErrCodeMissing, "task record requires a workflow id", nil, nil)
	}
	if record.UpdatedAt == 0 {
		record.UpdatedAt = t.now().UnixMilli()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", record.WorkflowID, err)
	}
	return t.kv.Put(ctx, taskKey(record.WorkflowID), payload)
}

// Get loads one record.
func (t *TaskStore) Get(ctx context.Context, workflowID string) (*workflow.TaskRecord, error) {
	raw, found, err := t.kv.Get(ctx, taskKey(workflowID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, workflow.NewError(workflow.ErrCodeNotFound, "workflow not found", nil, map[string]interface{}{
			"workflow_id": workflowID,
		})
	}
	var record workflow.TaskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", workflowID, err)
	}
	return &record, nil
}

// List returns every record, most recently updated first.
func (t *TaskStore) List(ctx context.Context) ([]workflow.TaskRecord, error) {
	keys, err := t.kv.Keys(ctx, taskKeyPrefix)
	if err != nil {
		return nil, err
	}
	records := make([]workflow.TaskRecord, 0, len(keys))
	for _, key := range keys {
		record, err := t.Get(ctx, strings.TrimPrefix(key, taskKeyPrefix))
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt > records[j].UpdatedAt
	})
	return records, nil
}

func taskKey(workflowID string) string {
	return taskKeyPrefix + workflowID
}

var _ ports.TaskStore = (*TaskStore)(nil)
