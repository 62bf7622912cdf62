package macos

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindBootstrapLaunchctlService tags BootstrapLaunchctlService in receipts
// and traces.
const KindBootstrapLaunchctlService = "bootstrap_launchctl_service"

// BootstrapLaunchctlService loads a daemon definition into the system
// domain and bootout's it on revert.
type BootstrapLaunchctlService struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

func PlanBootstrapLaunchctlService(label, path string) (*action.StatefulAction, error) {
	return action.Stateful(&BootstrapLaunchctlService{Label: label, Path: path}), nil
}

func (a *BootstrapLaunchctlService) Kind() string { return KindBootstrapLaunchctlService }

func (a *BootstrapLaunchctlService) Synopsis() string {
	return fmt.Sprintf("Bootstrap the `%s` daemon", a.Label)
}

func (a *BootstrapLaunchctlService) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		fmt.Sprintf("Run `launchctl bootstrap system %s`", a.Path),
	)}
}

func (a *BootstrapLaunchctlService) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Stop the `%s` daemon", a.Label),
		fmt.Sprintf("Run `launchctl bootout system/%s`", a.Label),
	)}
}

func (a *BootstrapLaunchctlService) Execute(ctx context.Context) error {
	if _, err := action.RunCommand(ctx, nil, "launchctl", "bootstrap", "system", a.Path); err != nil {
		return err
	}
	_, err := action.RunCommand(ctx, nil, "launchctl", "kickstart", "-k", "system/"+a.Label)
	return err
}

func (a *BootstrapLaunchctlService) Revert(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "launchctl", "bootout", "system/"+a.Label)
	return err
}
