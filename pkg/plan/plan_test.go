package plan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// walkAction records the order it runs in and fails on demand.
type walkAction struct {
	kind       string
	order      *[]string
	executeErr error
	revertErr  error
}

func (a *walkAction) Kind() string     { return a.kind }
func (a *walkAction) Synopsis() string { return "Walk `" + a.kind + "`" }

func (a *walkAction) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe("Execute " + a.kind)}
}

func (a *walkAction) RevertDescription() []action.Description {
	return []action.Description{action.Describe("Revert " + a.kind)}
}

func (a *walkAction) Execute(ctx context.Context) error {
	*a.order = append(*a.order, "execute:"+a.kind)
	return a.executeErr
}

func (a *walkAction) Revert(ctx context.Context) error {
	*a.order = append(*a.order, "revert:"+a.kind)
	return a.revertErr
}

// eventRecorder is a test Observer.
type eventRecorder struct {
	events []string
}

func (r *eventRecorder) ActionStarted(kind, synopsis, op string) {
	r.events = append(r.events, "start:"+op+":"+kind)
}

func (r *eventRecorder) ActionFinished(kind, op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.events = append(r.events, "finish:"+op+":"+kind+":"+outcome)
}

func testWalkPlan(order *[]string, acts ...*walkAction) *Plan {
	stateful := make([]*action.StatefulAction, len(acts))
	for i, a := range acts {
		a.order = order
		stateful[i] = action.Stateful(a)
	}
	return New("test", map[string]any{}, stateful)
}

func TestInstallWalksForward(t *testing.T) {
	var order []string
	p := testWalkPlan(&order,
		&walkAction{kind: "one"},
		&walkAction{kind: "two"},
		&walkAction{kind: "three"},
	)

	obs := &eventRecorder{}
	if err := p.Install(context.Background(), obs); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	want := []string{"execute:one", "execute:two", "execute:three"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
	if len(obs.events) != 6 {
		t.Errorf("observer saw %d events, want 6", len(obs.events))
	}
	if obs.events[0] != "start:execute:one" || obs.events[1] != "finish:execute:one:ok" {
		t.Errorf("unexpected leading events: %v", obs.events[:2])
	}

	for _, a := range p.Actions {
		if a.State != action.Completed {
			t.Errorf("action %s state = %s, want completed", a.Action.Kind(), a.State)
		}
	}
}

func TestInstallStopsAtFirstFailure(t *testing.T) {
	var order []string
	p := testWalkPlan(&order,
		&walkAction{kind: "one"},
		&walkAction{kind: "two", executeErr: errors.New("boom")},
		&walkAction{kind: "three"},
	)

	err := p.Install(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the install to fail")
	}
	if action.ChildName(err) != "two" {
		t.Errorf("failing action = %q, want two", action.ChildName(err))
	}
	if len(order) != 2 {
		t.Errorf("actions ran after the failure: %v", order)
	}

	// The failed action stays in Progress, later ones untouched.
	if p.Actions[1].State != action.Progress {
		t.Errorf("failed action state = %s, want progress", p.Actions[1].State)
	}
	if p.Actions[2].State != action.Uncompleted {
		t.Errorf("unreached action state = %s, want uncompleted", p.Actions[2].State)
	}
}

func TestUninstallWalksReverseAndCollectsAll(t *testing.T) {
	var order []string
	p := testWalkPlan(&order,
		&walkAction{kind: "one", revertErr: errors.New("stuck")},
		&walkAction{kind: "two"},
		&walkAction{kind: "three", revertErr: errors.New("also stuck")},
	)
	for _, a := range p.Actions {
		a.State = action.Completed
	}

	err := p.Uninstall(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the uninstall failures")
	}

	want := []string{"revert:three", "revert:two", "revert:one"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}

	var agg *action.ChildrenError
	if !errors.As(err, &agg) {
		t.Fatalf("expected a ChildrenError, got %T: %v", err, err)
	}
	if len(agg.Errs) != 2 {
		t.Errorf("aggregated %d errors, want 2", len(agg.Errs))
	}

	if p.Actions[1].State != action.Uncompleted {
		t.Errorf("reverted action state = %s, want uncompleted", p.Actions[1].State)
	}
}

func TestInstallIsResumable(t *testing.T) {
	var order []string
	failing := &walkAction{kind: "two", executeErr: errors.New("boom")}
	p := testWalkPlan(&order, &walkAction{kind: "one"}, failing)

	if err := p.Install(context.Background(), nil); err == nil {
		t.Fatal("expected the first install to fail")
	}

	failing.executeErr = nil
	order = order[:0]
	for _, a := range p.Actions {
		a.Action.(*walkAction).order = &order
	}
	if err := p.Install(context.Background(), nil); err != nil {
		t.Fatalf("resumed install failed: %v", err)
	}

	// The completed first action was not re-run.
	if strings.Join(order, ",") != "execute:two" {
		t.Errorf("resumed order = %v, want only the failed action", order)
	}
}

func TestDescribeInstall(t *testing.T) {
	var order []string
	p := testWalkPlan(&order, &walkAction{kind: "one"}, &walkAction{kind: "two"})
	p.Actions[1].State = action.Skipped

	out := p.DescribeInstall()
	if !strings.Contains(out, "* Execute one") {
		t.Errorf("description missing the pending action:\n%s", out)
	}
	if strings.Contains(out, "Execute two") {
		t.Errorf("description includes the skipped action:\n%s", out)
	}
	if !strings.Contains(out, "planner: test") {
		t.Errorf("description missing the planner:\n%s", out)
	}
}
