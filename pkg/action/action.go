package action

import (
	"context"
)

// Action is a single executable, revertible step of host mutation.
//
// Implementations are constructed by a planning function
// (`Plan<Name>(ctx, args...)`) which performs read-only probes of the host
// and returns the action already wrapped in a StatefulAction with its
// initial state decided. Execute and Revert are only ever invoked through
// StatefulAction.TryExecute and StatefulAction.TryRevert, which guarantee
// they are not called on a Completed (resp. Uncompleted) or Skipped action.
type Action interface {
	// Kind is the stable string discriminant for this action variant. It is
	// used as the serialization tag in receipts and as the span name in
	// traces, and must never change once released.
	Kind() string

	// Synopsis is a short human-readable summary used in logs and traces.
	Synopsis() string

	// ExecuteDescription describes what Execute would do, for confirmation
	// prompts. Pure; no side effects.
	ExecuteDescription() []Description

	// RevertDescription describes what Revert would do, for confirmation
	// prompts. Pure; no side effects.
	RevertDescription() []Description

	// Execute performs the mutation. Callers guarantee the prior state is
	// Uncompleted or Progress.
	Execute(ctx context.Context) error

	// Revert undoes the mutation. Callers guarantee the prior state is
	// Completed or Progress.
	Revert(ctx context.Context) error
}

// Description is a human-readable account of one step an action would take,
// intended for review before confirmation.
type Description struct {
	Description string   `json:"description"`
	Explanation []string `json:"explanation"`
}

// Describe builds a Description from a headline and optional explanation
// lines.
func Describe(description string, explanation ...string) Description {
	return Description{
		Description: description,
		Explanation: explanation,
	}
}
