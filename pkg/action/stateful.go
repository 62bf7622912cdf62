package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/telemetry"
)

var tracer = otel.Tracer("nix-installer/action")

// StatefulAction pairs exactly one Action with exactly one lifecycle State.
// It is the unit stored in a Plan and the unit serialized into a receipt, and
// it is the only thing permitted to call Action.Execute and Action.Revert.
type StatefulAction struct {
	Action Action
	State  State
}

// Stateful wraps an action in the Uncompleted state.
func Stateful(a Action) *StatefulAction {
	return &StatefulAction{Action: a, State: Uncompleted}
}

// StatefulSkipped wraps an action in the Skipped state. Used by planning
// functions whose probes find the target state already satisfied.
func StatefulSkipped(a Action) *StatefulAction {
	return &StatefulAction{Action: a, State: Skipped}
}

// DescribeExecute describes what TryExecute would do. Empty when execution
// would be a no-op.
func (s *StatefulAction) DescribeExecute() []Description {
	switch s.State {
	case Completed, Skipped:
		return nil
	default:
		return s.Action.ExecuteDescription()
	}
}

// DescribeRevert describes what TryRevert would do. Empty when reversal
// would be a no-op.
func (s *StatefulAction) DescribeRevert() []Description {
	switch s.State {
	case Uncompleted, Skipped:
		return nil
	default:
		return s.Action.RevertDescription()
	}
}

// TryExecute performs the action's execution steps, gated by State.
//
// Completed and Skipped actions return nil immediately with no side effects.
// Otherwise the state is set to Progress for the duration of the call;
// success moves it to Completed, failure leaves it at Progress (attempted,
// outcome unknown or partial) and propagates the error. A cancellation
// observed before the mutation starts returns ErrCancelled and leaves the
// state unchanged.
func (s *StatefulAction) TryExecute(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	switch s.State {
	case Completed:
		log.Trace().Str("action", s.Action.Kind()).Msgf("Already done: %s", s.Action.Synopsis())
		return nil
	case Skipped:
		log.Trace().Str("action", s.Action.Kind()).Msgf("Skipped: %s", s.Action.Synopsis())
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", s.Action.Synopsis(), ErrCancelled)
	}

	ctx, span := tracer.Start(ctx, s.Action.Kind(), trace.WithAttributes(
		attribute.String("action.synopsis", s.Action.Synopsis()),
		attribute.String("action.op", "execute"),
	))
	defer span.End()

	s.State = Progress
	log.Debug().Str("action", s.Action.Kind()).Msgf("Executing: %s", s.Action.Synopsis())

	start := time.Now()
	err := s.Action.Execute(ctx)
	telemetry.ObserveAction(s.Action.Kind(), "execute", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.State = Completed
	span.SetStatus(codes.Ok, "")
	log.Debug().Str("action", s.Action.Kind()).Msgf("Completed: %s", s.Action.Synopsis())
	return nil
}

// TryRevert performs the action's revert steps, gated by State. The mirror
// of TryExecute: Uncompleted and Skipped are no-ops, success lands on
// Uncompleted, failure stays at Progress.
func (s *StatefulAction) TryRevert(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	switch s.State {
	case Uncompleted:
		log.Trace().Str("action", s.Action.Kind()).Msgf("Already reverted: %s", s.Action.Synopsis())
		return nil
	case Skipped:
		log.Trace().Str("action", s.Action.Kind()).Msgf("Skipped: %s", s.Action.Synopsis())
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", s.Action.Synopsis(), ErrCancelled)
	}

	ctx, span := tracer.Start(ctx, s.Action.Kind(), trace.WithAttributes(
		attribute.String("action.synopsis", s.Action.Synopsis()),
		attribute.String("action.op", "revert"),
	))
	defer span.End()

	s.State = Progress
	log.Debug().Str("action", s.Action.Kind()).Msgf("Reverting: %s", s.Action.Synopsis())

	start := time.Now()
	err := s.Action.Revert(ctx)
	telemetry.ObserveAction(s.Action.Kind(), "revert", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.State = Uncompleted
	span.SetStatus(codes.Ok, "")
	log.Debug().Str("action", s.Action.Kind()).Msgf("Reverted: %s", s.Action.Synopsis())
	return nil
}

// envelope is the serialized form of a StatefulAction: the action's fields
// tagged with its kind discriminant and lifecycle state.
type envelope struct {
	Kind   string          `json:"action"`
	State  State           `json:"state"`
	Fields json.RawMessage `json:"fields"`
}

func (s *StatefulAction) MarshalJSON() ([]byte, error) {
	fields, err := json.Marshal(s.Action)
	if err != nil {
		return nil, fmt.Errorf("encoding action %q: %w", s.Action.Kind(), err)
	}
	return json.Marshal(envelope{
		Kind:   s.Action.Kind(),
		State:  s.State,
		Fields: fields,
	})
}

func (s *StatefulAction) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if _, err := ParseState(string(env.State)); err != nil {
		return err
	}
	a, err := newByKind(env.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Fields, a); err != nil {
		return fmt.Errorf("decoding action %q: %w", env.Kind, err)
	}
	s.Action = a
	s.State = env.State
	return nil
}
