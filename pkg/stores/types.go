package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of an install or uninstall run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one install or uninstall attempt. ID is the plan's ID, so
// the install run and its later uninstall share a key with the receipt.
type Run struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"` // install or uninstall
	Planner     string     `json:"planner"`
	ReceiptPath string     `json:"receipt_path"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// ActionEvent is one action attempt within a run.
type ActionEvent struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	ActionKind string    `json:"action_kind"`
	Synopsis   string    `json:"synopsis"`
	Op         string    `json:"op"` // execute or revert
	Outcome    string    `json:"outcome"`
	Error      *string   `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store defines the interface for the history persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id, operation string) (*Run, error)
	CompleteRun(ctx context.Context, id, operation string, status RunStatus, errMsg *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Event operations
	AppendActionEvent(ctx context.Context, event *ActionEvent) error
	ListActionEvents(ctx context.Context, runID string) ([]*ActionEvent, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
