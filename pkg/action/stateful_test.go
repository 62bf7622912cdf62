package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// fakeAction counts invocations and fails or panics on demand.
type fakeAction struct {
	kind       string
	executeErr error
	revertErr  error
	panicValue any

	executed int
	reverted int
}

func (a *fakeAction) Kind() string {
	if a.kind == "" {
		return "fake"
	}
	return a.kind
}

func (a *fakeAction) Synopsis() string { return "Fake action `" + a.Kind() + "`" }

func (a *fakeAction) ExecuteDescription() []Description {
	return []Description{Describe("Do the fake thing")}
}

func (a *fakeAction) RevertDescription() []Description {
	return []Description{Describe("Undo the fake thing")}
}

func (a *fakeAction) Execute(ctx context.Context) error {
	if a.panicValue != nil {
		panic(a.panicValue)
	}
	a.executed++
	return a.executeErr
}

func (a *fakeAction) Revert(ctx context.Context) error {
	a.reverted++
	return a.revertErr
}

func TestTryExecuteLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAction{}
	sa := Stateful(fake)

	if sa.State != Uncompleted {
		t.Fatalf("initial state = %s, want uncompleted", sa.State)
	}
	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("TryExecute failed: %v", err)
	}
	if sa.State != Completed {
		t.Errorf("state after execute = %s, want completed", sa.State)
	}

	// Completed actions are a no-op; re-running a plan must be safe.
	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("second TryExecute failed: %v", err)
	}
	if fake.executed != 1 {
		t.Errorf("Execute ran %d times, want 1", fake.executed)
	}
}

func TestTryExecuteFailureLeavesProgress(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAction{executeErr: errors.New("boom")}
	sa := Stateful(fake)

	if err := sa.TryExecute(ctx); err == nil {
		t.Fatal("expected the execute error")
	}
	if sa.State != Progress {
		t.Errorf("state after failure = %s, want progress", sa.State)
	}

	// A Progress action is re-attempted.
	fake.executeErr = nil
	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if sa.State != Completed {
		t.Errorf("state after retry = %s, want completed", sa.State)
	}
	if fake.executed != 2 {
		t.Errorf("Execute ran %d times, want 2", fake.executed)
	}
}

func TestTryRevertLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAction{}
	sa := &StatefulAction{Action: fake, State: Completed}

	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("TryRevert failed: %v", err)
	}
	if sa.State != Uncompleted {
		t.Errorf("state after revert = %s, want uncompleted", sa.State)
	}

	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("second TryRevert failed: %v", err)
	}
	if fake.reverted != 1 {
		t.Errorf("Revert ran %d times, want 1", fake.reverted)
	}
}

func TestSkippedIsAbsorbing(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAction{}
	sa := StatefulSkipped(fake)

	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("TryExecute on skipped failed: %v", err)
	}
	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("TryRevert on skipped failed: %v", err)
	}
	if fake.executed != 0 || fake.reverted != 0 {
		t.Errorf("skipped action ran: executed=%d reverted=%d", fake.executed, fake.reverted)
	}
	if sa.State != Skipped {
		t.Errorf("state = %s, want skipped", sa.State)
	}
}

func TestCancellationLeavesStateUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeAction{}
	sa := Stateful(fake)

	err := sa.TryExecute(ctx)
	if !IsCancelled(err) {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
	if sa.State != Uncompleted {
		t.Errorf("state after cancelled execute = %s, want uncompleted", sa.State)
	}
	if fake.executed != 0 {
		t.Errorf("Execute ran despite cancellation")
	}

	sa.State = Completed
	err = sa.TryRevert(ctx)
	if !IsCancelled(err) {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
	if sa.State != Completed {
		t.Errorf("state after cancelled revert = %s, want completed", sa.State)
	}
}

func TestDescribeGating(t *testing.T) {
	fake := &fakeAction{}

	tests := []struct {
		state         State
		expectExecute bool
		expectRevert  bool
	}{
		{Uncompleted, true, false},
		{Progress, true, true},
		{Completed, false, true},
		{Skipped, false, false},
	}

	for _, tt := range tests {
		sa := &StatefulAction{Action: fake, State: tt.state}
		if got := len(sa.DescribeExecute()) > 0; got != tt.expectExecute {
			t.Errorf("DescribeExecute in %s: non-empty=%v, want %v", tt.state, got, tt.expectExecute)
		}
		if got := len(sa.DescribeRevert()) > 0; got != tt.expectRevert {
			t.Errorf("DescribeRevert in %s: non-empty=%v, want %v", tt.state, got, tt.expectRevert)
		}
	}
}

func TestMarshalEnvelope(t *testing.T) {
	sa := &StatefulAction{Action: &fakeAction{kind: "fake_kind"}, State: Completed}

	data, err := json.Marshal(sa)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal envelope failed: %v", err)
	}
	for _, key := range []string{"action", "state", "fields"} {
		if _, ok := env[key]; !ok {
			t.Errorf("envelope missing %q key", key)
		}
	}
	if string(env["action"]) != `"fake_kind"` {
		t.Errorf("action tag = %s, want fake_kind", env["action"])
	}
	if string(env["state"]) != `"completed"` {
		t.Errorf("state = %s, want completed", env["state"])
	}
}

func TestParseState(t *testing.T) {
	for _, valid := range []string{"uncompleted", "progress", "completed", "skipped"} {
		if _, err := ParseState(valid); err != nil {
			t.Errorf("ParseState(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParseState("half-done"); err == nil {
		t.Error("ParseState should reject unknown states")
	}
}
