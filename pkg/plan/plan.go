// Package plan holds the aggregate the installer executes: an ordered list
// of planned top-level actions, tied to the planner and settings that
// produced it, persisted as the receipt that makes uninstall possible.
package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/telemetry"
)

var tracer = otel.Tracer("nix-installer/plan")

// Planner is what the engine consumes: something that can probe the host
// and produce a plan, and that identifies itself and its settings so a
// receipt can later be checked for compatibility.
type Planner interface {
	// Name is the planner's stable identity, stored in the receipt.
	Name() string

	// Plan probes the host (read-only) and builds the ordered action list.
	Plan(ctx context.Context) (*Plan, error)

	// Settings is the full flattened settings snapshot. Every knob appears;
	// receipts planned under different snapshots are incompatible.
	Settings() map[string]any
}

// Observer receives per-action lifecycle events during a walk. Used by the
// CLI for progress output and by the history store for the event log. All
// methods may be called from the walking goroutine only.
type Observer interface {
	ActionStarted(kind, synopsis, op string)
	ActionFinished(kind, op string, err error, elapsed time.Duration)
}

// Plan is the executable aggregate. Actions hold the ordered top-level
// StatefulActions; their child structure is internal to each action.
type Plan struct {
	ID          string                   `json:"id"`
	Version     string                   `json:"version"`
	PlannerName string                   `json:"planner"`
	Settings    map[string]any           `json:"settings"`
	Actions     []*action.StatefulAction `json:"actions"`
}

// New builds a plan for the given planner identity and actions. The ID is
// fresh per planning run and keys the history store.
func New(plannerName string, settings map[string]any, actions []*action.StatefulAction) *Plan {
	return &Plan{
		ID:          uuid.NewString(),
		Version:     ReceiptVersion,
		PlannerName: plannerName,
		Settings:    settings,
		Actions:     actions,
	}
}

// Install walks the actions forward, sequentially, stopping at the first
// failure. Already Completed or Skipped actions are no-ops, so a plan that
// failed midway can be re-run. obs may be nil.
func (p *Plan) Install(ctx context.Context, obs Observer) error {
	ctx, span := tracer.Start(ctx, "install", trace.WithAttributes(
		attribute.String("plan.id", p.ID),
		attribute.String("plan.planner", p.PlannerName),
	))
	defer span.End()

	start := time.Now()
	err := p.install(ctx, obs)
	telemetry.ObserveWalk("install", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Plan) install(ctx context.Context, obs Observer) error {
	log := zerolog.Ctx(ctx)
	for _, a := range p.Actions {
		kind := a.Action.Kind()
		if obs != nil {
			obs.ActionStarted(kind, a.Action.Synopsis(), "execute")
		}
		start := time.Now()
		err := a.TryExecute(ctx)
		if obs != nil {
			obs.ActionFinished(kind, "execute", err, time.Since(start))
		}
		if err != nil {
			log.Error().Str("action", kind).Err(err).Msg("Install step failed")
			return &action.ChildError{Name: kind, Err: err}
		}
	}
	return nil
}

// Uninstall walks the actions in reverse, attempting every revert even when
// earlier ones fail, so as much of the host as possible is cleaned up. The
// errors are aggregated rather than short-circuited. obs may be nil.
func (p *Plan) Uninstall(ctx context.Context, obs Observer) error {
	ctx, span := tracer.Start(ctx, "uninstall", trace.WithAttributes(
		attribute.String("plan.id", p.ID),
		attribute.String("plan.planner", p.PlannerName),
	))
	defer span.End()

	start := time.Now()
	err := p.uninstall(ctx, obs)
	telemetry.ObserveWalk("uninstall", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Plan) uninstall(ctx context.Context, obs Observer) error {
	log := zerolog.Ctx(ctx)
	var errs []error
	for i := len(p.Actions) - 1; i >= 0; i-- {
		a := p.Actions[i]
		kind := a.Action.Kind()
		if obs != nil {
			obs.ActionStarted(kind, a.Action.Synopsis(), "revert")
		}
		start := time.Now()
		err := a.TryRevert(ctx)
		if obs != nil {
			obs.ActionFinished(kind, "revert", err, time.Since(start))
		}
		if err != nil {
			log.Error().Str("action", kind).Err(err).Msg("Uninstall step failed, continuing")
			errs = append(errs, &action.ChildError{Name: kind, Err: err})
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &action.ChildrenError{Errs: errs}
	}
}

// DescribeInstall renders what Install would do, for user confirmation.
// Actions whose execution would be a no-op contribute nothing.
func (p *Plan) DescribeInstall() string {
	var b strings.Builder
	b.WriteString("This Nix install is planned for:\n")
	fmt.Fprintf(&b, "  planner: %s\n\n", p.PlannerName)
	b.WriteString("The following actions will be taken:\n")
	for _, a := range p.Actions {
		writeDescriptions(&b, a.DescribeExecute())
	}
	return b.String()
}

// DescribeUninstall renders what Uninstall would do, in the order it runs.
func (p *Plan) DescribeUninstall() string {
	var b strings.Builder
	b.WriteString("The following actions will be reverted:\n")
	for i := len(p.Actions) - 1; i >= 0; i-- {
		writeDescriptions(&b, p.Actions[i].DescribeRevert())
	}
	return b.String()
}

func writeDescriptions(b *strings.Builder, descs []action.Description) {
	for _, d := range descs {
		fmt.Fprintf(b, "* %s\n", d.Description)
		for _, line := range d.Explanation {
			fmt.Fprintf(b, "    %s\n", line)
		}
	}
}
