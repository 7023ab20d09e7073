package dashboard

import "github.com/alexisbeaulieu97/genflow/internal/domain/workflow"

// ViewMode determines which screen to render
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewHelp
)

// RecordsLoadedMsg carries a fresh snapshot of the task store.
type RecordsLoadedMsg struct {
	Records []workflow.TaskRecord
}

// LoadErrorMsg reports a failed task store read.
type LoadErrorMsg struct {
	Err error
}

// RefreshTickMsg triggers a periodic reload.
type RefreshTickMsg struct{}

// ClearErrorMsg dismisses the error banner.
type ClearErrorMsg struct{}
