package linux

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindSystemctlDaemonReload tags SystemctlDaemonReload in receipts and
// traces.
const KindSystemctlDaemonReload = "systemctl_daemon_reload"

// SystemctlDaemonReload makes systemd pick up unit files placed by earlier
// actions in the same sequence.
type SystemctlDaemonReload struct{}

func PlanSystemctlDaemonReload() (*action.StatefulAction, error) {
	return action.Stateful(&SystemctlDaemonReload{}), nil
}

func (a *SystemctlDaemonReload) Kind() string { return KindSystemctlDaemonReload }

func (a *SystemctlDaemonReload) Synopsis() string {
	return "Run `systemctl daemon-reload`"
}

func (a *SystemctlDaemonReload) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *SystemctlDaemonReload) RevertDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *SystemctlDaemonReload) Execute(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "systemctl", "daemon-reload")
	return err
}

// Revert reloads again so systemd forgets the units removed by the actions
// reverted before this one. Best effort: the units are already gone from
// disk, a failed reload does not resurrect them.
func (a *SystemctlDaemonReload) Revert(ctx context.Context) error {
	if _, err := action.RunCommand(ctx, nil, "systemctl", "daemon-reload"); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("systemctl daemon-reload failed during revert")
	}
	return nil
}
