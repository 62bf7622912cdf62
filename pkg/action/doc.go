// Package action defines the executable, revertible unit of host mutation and
// the machinery that orchestrates trees of them.
//
// An Action is an atom of change: either a base action (create a directory,
// create a user, fetch an archive) or a composite action that owns child
// actions and fans execution out to them, sequentially or in parallel.
//
// Actions are never executed directly. Every Action is wrapped in a
// StatefulAction, which tracks the lifecycle State and makes TryExecute and
// TryRevert idempotent: a Completed action will not execute again, an
// Uncompleted action will not revert, and a Skipped action does neither.
// That gate is what makes a whole plan safe to re-run after a partial
// failure.
//
// Composites express real dependencies through their fan-out choice:
// ExecuteSequence when one child's effect is a precondition for the next,
// ExecuteParallel only when children touch disjoint host resources. The
// parallel helper lets every child finish, reverts the successful siblings of
// a failed one, and reports revert failures as a distinct, higher-severity
// error.
package action
