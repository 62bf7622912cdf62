package action

import (
	"context"
	"sync"
)

// ExecuteSequence runs children one at a time in declared order, stopping at
// the first failure. Used when one child's effect is a precondition for the
// next. The returned error wraps the failing child's name.
func ExecuteSequence(ctx context.Context, children ...*StatefulAction) error {
	for _, child := range children {
		if err := child.TryExecute(ctx); err != nil {
			return &ChildError{Name: child.Action.Kind(), Err: err}
		}
	}
	return nil
}

// RevertSequence reverts children in reverse declared order (undo the last
// thing done, first). Every child is attempted regardless of earlier
// failures within the same call, to maximize how much of the host is cleaned
// up; the result is nil, a single wrapped error, or an aggregate.
func RevertSequence(ctx context.Context, children ...*StatefulAction) error {
	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		if err := child.TryRevert(ctx); err != nil {
			errs = append(errs, &ChildError{Name: child.Action.Kind(), Err: err})
		}
	}
	return joinChildErrors(errs)
}

// ExecuteParallel runs each child on its own goroutine and joins all of
// them. It must only be used when the children are statically known to touch
// disjoint host resources; mutual exclusion is a property of how the plan
// was structured, not a runtime lock.
//
// Partial-failure policy:
//   - every spawned child is allowed to finish, so no mutation is left
//     half-applied by the fan-out itself;
//   - if any child failed, every successful child is reverted before
//     returning, since the failing sibling leaves their work logically
//     inconsistent;
//   - a failure while reverting those successes is reported as a distinct
//     RevertError, separate from the execution error;
//   - one failing child yields its wrapped error, several yield an
//     aggregate.
func ExecuteParallel(ctx context.Context, children ...*StatefulAction) error {
	results := make([]error, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(i int, child *StatefulAction) {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					results[i] = &TaskError{Name: child.Action.Kind(), Value: v}
				}
			}()
			results[i] = child.TryExecute(ctx)
		}(i, child)
	}
	wg.Wait()

	var failed []error
	var succeeded []*StatefulAction
	for i, child := range children {
		if results[i] != nil {
			failed = append(failed, &ChildError{Name: child.Action.Kind(), Err: results[i]})
		} else {
			succeeded = append(succeeded, child)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	execErr := joinChildErrors(failed)

	var revertFailures []error
	for i := len(succeeded) - 1; i >= 0; i-- {
		child := succeeded[i]
		if err := child.TryRevert(ctx); err != nil {
			revertFailures = append(revertFailures, &ChildError{Name: child.Action.Kind(), Err: err})
		}
	}
	if len(revertFailures) > 0 {
		return &RevertError{Cause: execErr, Failures: revertFailures}
	}
	return execErr
}

// Task is a spawned child operation running on its own goroutine with its
// own cooperative cancel. It exists for composites where an independent
// long-running child (say, a network fetch) overlaps a sequential chain: if
// the chain fails, the pending task's result will never be consumed, so it
// is cancelled rather than awaited to completion — safe only because
// cancellation is observed before state is committed.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Spawn starts fn on its own goroutine. A panic in fn is captured as a
// TaskError carrying name.
func Spawn(ctx context.Context, name string, fn func(context.Context) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer func() {
			if v := recover(); v != nil {
				t.err = &TaskError{Name: name, Value: v}
			}
		}()
		t.err = fn(ctx)
	}()
	return t
}

// Cancel raises the task's cooperative stop signal. The task still has to be
// awaited with Wait.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	t.cancel()
	return t.err
}
