// Package linux holds leaf actions specific to systemd hosts. The planners
// compose them; the engine itself knows nothing about systemd.
package linux

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindStartSystemdUnit tags StartSystemdUnit in receipts and traces.
const KindStartSystemdUnit = "start_systemd_unit"

// StartSystemdUnit enables and starts a unit, undone by stop and disable.
type StartSystemdUnit struct {
	Unit string `json:"unit"`
}

// PlanStartSystemdUnit records the unit. Whether the unit file exists is
// only knowable after the actions that install it run.
func PlanStartSystemdUnit(unit string) (*action.StatefulAction, error) {
	return action.Stateful(&StartSystemdUnit{Unit: unit}), nil
}

func (a *StartSystemdUnit) Kind() string { return KindStartSystemdUnit }

func (a *StartSystemdUnit) Synopsis() string {
	return fmt.Sprintf("Enable (and start) the systemd unit `%s`", a.Unit)
}

func (a *StartSystemdUnit) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		fmt.Sprintf("Run `systemctl enable --now %s`", a.Unit),
	)}
}

func (a *StartSystemdUnit) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Disable (and stop) the systemd unit `%s`", a.Unit),
		fmt.Sprintf("Run `systemctl disable --now %s`", a.Unit),
	)}
}

func (a *StartSystemdUnit) Execute(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "systemctl", "enable", "--now", a.Unit)
	return err
}

func (a *StartSystemdUnit) Revert(ctx context.Context) error {
	// Stop and disable separately, to cover a unit that is enabled but not
	// running.
	if _, err := action.RunCommand(ctx, nil, "systemctl", "stop", a.Unit); err != nil {
		return err
	}
	_, err := action.RunCommand(ctx, nil, "systemctl", "disable", a.Unit)
	return err
}
