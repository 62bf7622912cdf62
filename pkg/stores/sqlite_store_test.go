package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// setupTestStore creates a migrated store backed by a file in a test
// temp dir. A file (not :memory:) so every pooled connection sees the
// same database.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests that the schema is created
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	for _, table := range []string{"runs", "action_events"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunLifecycle tests creating, reading and completing a run
func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	run := &Run{
		ID:          "11111111-2222-3333-4444-555555555555",
		Operation:   "install",
		Planner:     "linux-multi",
		ReceiptPath: "/nix/receipt.json",
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
	}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, run.ID, "install")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if retrieved.Planner != "linux-multi" {
		t.Errorf("planner = %q, want linux-multi", retrieved.Planner)
	}
	if retrieved.Status != RunStatusRunning {
		t.Errorf("status = %q, want running", retrieved.Status)
	}
	if retrieved.CompletedAt != nil {
		t.Errorf("completed_at should be nil for a running run")
	}

	errMsg := "install step failed"
	if err := store.CompleteRun(ctx, run.ID, "install", RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	retrieved, err = store.GetRun(ctx, run.ID, "install")
	if err != nil {
		t.Fatalf("failed to get run after completion: %v", err)
	}
	if retrieved.Status != RunStatusFailed {
		t.Errorf("status = %q, want failed", retrieved.Status)
	}
	if retrieved.Error == nil || *retrieved.Error != errMsg {
		t.Errorf("error = %v, want %q", retrieved.Error, errMsg)
	}
	if retrieved.CompletedAt == nil {
		t.Errorf("completed_at should be set after completion")
	}
}

// TestRunInstallAndUninstallCoexist tests the composite key: the install
// run and the later uninstall of the same plan are separate rows
func TestRunInstallAndUninstallCoexist(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	id := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"

	for _, op := range []string{"install", "uninstall"} {
		run := &Run{
			ID:        id,
			Operation: op,
			Planner:   "macos-multi",
			Status:    RunStatusRunning,
			StartedAt: time.Now(),
		}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create %s run: %v", op, err)
		}
	}

	install, err := store.GetRun(ctx, id, "install")
	if err != nil {
		t.Fatalf("failed to get install run: %v", err)
	}
	uninstall, err := store.GetRun(ctx, id, "uninstall")
	if err != nil {
		t.Fatalf("failed to get uninstall run: %v", err)
	}
	if install.Operation == uninstall.Operation {
		t.Error("expected distinct operations for the same plan id")
	}
}

// TestCompleteRunNotFound tests completing a run that was never created
func TestCompleteRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.CompleteRun(context.Background(), "missing", "install", RunStatusCompleted, nil)
	if err == nil {
		t.Fatal("expected an error for a missing run")
	}
}

// TestListRuns tests pagination ordering, most recent first
func TestListRuns(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	ids := []string{"run-a", "run-b", "run-c"}
	for i, id := range ids {
		run := &Run{
			ID:        id,
			Operation: "install",
			Planner:   "linux-multi",
			Status:    RunStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}

	rest, err := store.ListRuns(ctx, 2, 2)
	if err != nil {
		t.Fatalf("failed to list remaining runs: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "run-a" {
		t.Errorf("unexpected remainder: %+v", rest)
	}
}

// TestActionEvents tests the append-only event log of a run
func TestActionEvents(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	run := &Run{
		ID:        "run-events",
		Operation: "install",
		Planner:   "ostree",
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	errMsg := "permission denied"
	events := []*ActionEvent{
		{
			RunID:      run.ID,
			ActionKind: "create_directory",
			Synopsis:   "Create directory `/nix`",
			Op:         "execute",
			Outcome:    "ok",
			DurationMS: 3,
			Timestamp:  time.Now(),
		},
		{
			RunID:      run.ID,
			ActionKind: "create_group",
			Synopsis:   "Create build group `nixbld`",
			Op:         "execute",
			Outcome:    "error",
			Error:      &errMsg,
			DurationMS: 12,
			Timestamp:  time.Now(),
		},
	}

	for _, e := range events {
		if err := store.AppendActionEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("event ID should be assigned on insert")
		}
	}

	listed, err := store.ListActionEvents(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(listed))
	}
	if listed[0].ActionKind != "create_directory" || listed[1].ActionKind != "create_group" {
		t.Errorf("events out of order: %s, %s", listed[0].ActionKind, listed[1].ActionKind)
	}
	if listed[1].Error == nil || *listed[1].Error != errMsg {
		t.Errorf("error = %v, want %q", listed[1].Error, errMsg)
	}
}

// TestRecorder tests the Observer bridge into the store
func TestRecorder(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	run := &Run{
		ID:        "run-recorder",
		Operation: "install",
		Planner:   "linux-multi",
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	rec := NewRecorder(store, run.ID, zerolog.New(nil).Level(zerolog.Disabled))
	rec.ActionStarted("create_directory", "Create directory `/nix`", "execute")
	rec.ActionFinished("create_directory", "execute", nil, 5*time.Millisecond)

	events, err := store.ListActionEvents(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Synopsis != "Create directory `/nix`" {
		t.Errorf("synopsis = %q, want the started synopsis", events[0].Synopsis)
	}
	if events[0].Outcome != "ok" {
		t.Errorf("outcome = %q, want ok", events[0].Outcome)
	}
}
