package action

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteSequenceStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	first := &fakeAction{kind: "first"}
	second := &fakeAction{kind: "second", executeErr: errors.New("boom")}
	third := &fakeAction{kind: "third"}

	err := ExecuteSequence(ctx, Stateful(first), Stateful(second), Stateful(third))
	if err == nil {
		t.Fatal("expected the sequence to fail")
	}
	if ChildName(err) != "second" {
		t.Errorf("failing child = %q, want second", ChildName(err))
	}
	if first.executed != 1 {
		t.Errorf("first ran %d times, want 1", first.executed)
	}
	if third.executed != 0 {
		t.Errorf("third ran after a failing sibling")
	}
}

func TestRevertSequenceAttemptsAll(t *testing.T) {
	ctx := context.Background()
	first := &fakeAction{kind: "first", revertErr: errors.New("stuck")}
	second := &fakeAction{kind: "second", revertErr: errors.New("also stuck")}
	third := &fakeAction{kind: "third"}

	children := []*StatefulAction{
		{Action: first, State: Completed},
		{Action: second, State: Completed},
		{Action: third, State: Completed},
	}

	err := RevertSequence(ctx, children...)
	if err == nil {
		t.Fatal("expected the revert failures")
	}

	// Every child was attempted despite the failures.
	if first.reverted != 1 || second.reverted != 1 || third.reverted != 1 {
		t.Errorf("reverted counts = %d/%d/%d, want 1/1/1", first.reverted, second.reverted, third.reverted)
	}

	var agg *ChildrenError
	if !errors.As(err, &agg) {
		t.Fatalf("expected a ChildrenError, got %T", err)
	}
	if len(agg.Errs) != 2 {
		t.Errorf("aggregated %d errors, want 2", len(agg.Errs))
	}
}

func TestRevertSequenceRunsInReverse(t *testing.T) {
	ctx := context.Background()
	var order []string
	mk := func(name string) *StatefulAction {
		return &StatefulAction{
			Action: &orderedAction{fakeAction: fakeAction{kind: name}, order: &order},
			State:  Completed,
		}
	}

	if err := RevertSequence(ctx, mk("a"), mk("b"), mk("c")); err != nil {
		t.Fatalf("RevertSequence failed: %v", err)
	}
	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("revert order = %v, want [c b a]", order)
	}
}

// orderedAction records the order its Revert runs in.
type orderedAction struct {
	fakeAction
	order *[]string
}

func (a *orderedAction) Revert(ctx context.Context) error {
	*a.order = append(*a.order, a.Kind())
	return a.fakeAction.Revert(ctx)
}

func TestExecuteParallelRevertsSuccessesOnFailure(t *testing.T) {
	ctx := context.Background()
	good := &fakeAction{kind: "good"}
	bad := &fakeAction{kind: "bad", executeErr: errors.New("boom")}

	err := ExecuteParallel(ctx, Stateful(good), Stateful(bad))
	if err == nil {
		t.Fatal("expected the parallel failure")
	}
	if ChildName(err) != "bad" {
		t.Errorf("failing child = %q, want bad", ChildName(err))
	}
	if good.executed != 1 {
		t.Errorf("good executed %d times, want 1", good.executed)
	}
	if good.reverted != 1 {
		t.Errorf("good was not reverted after its sibling failed")
	}
	if bad.reverted != 0 {
		t.Errorf("the failed child must not be reverted by the fan-out")
	}
}

func TestExecuteParallelRevertFailureIsDistinct(t *testing.T) {
	ctx := context.Background()
	sticky := &fakeAction{kind: "sticky", revertErr: errors.New("cannot undo")}
	bad := &fakeAction{kind: "bad", executeErr: errors.New("boom")}

	err := ExecuteParallel(ctx, Stateful(sticky), Stateful(bad))
	var revertErr *RevertError
	if !errors.As(err, &revertErr) {
		t.Fatalf("expected a RevertError, got %T: %v", err, err)
	}
	if revertErr.Cause == nil {
		t.Error("RevertError should carry the execution error as cause")
	}
	if len(revertErr.Failures) != 1 {
		t.Errorf("revert failures = %d, want 1", len(revertErr.Failures))
	}
}

func TestExecuteParallelPanicBecomesTaskError(t *testing.T) {
	ctx := context.Background()
	panicky := &fakeAction{kind: "panicky", panicValue: "ouch"}

	err := ExecuteParallel(ctx, Stateful(panicky))
	if err == nil {
		t.Fatal("expected the panic to surface as an error")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected a TaskError, got %T: %v", err, err)
	}
	if taskErr.Name != "panicky" {
		t.Errorf("task name = %q, want panicky", taskErr.Name)
	}
}

func TestSpawnCancelAndWait(t *testing.T) {
	started := make(chan struct{})
	task := Spawn(context.Background(), "waiter", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	task.Cancel()

	done := make(chan error, 1)
	go func() { done <- task.Wait() }()
	select {
	case err := <-done:
		if !IsCancelled(err) {
			t.Errorf("expected a cancellation error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Cancel")
	}
}

func TestSpawnCapturesPanic(t *testing.T) {
	task := Spawn(context.Background(), "panicky", func(ctx context.Context) error {
		panic("ouch")
	})
	err := task.Wait()
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected a TaskError, got %T: %v", err, err)
	}
}
