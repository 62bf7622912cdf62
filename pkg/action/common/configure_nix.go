package common

import (
	"context"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// KindConfigureNix tags ConfigureNix in receipts and traces.
const KindConfigureNix = "configure_nix"

// ConfigureNix makes the provisioned store usable: default profile, nix.conf
// and shell profiles are independent (disjoint paths) and run concurrently;
// init-service registration depends on all three and runs after.
type ConfigureNix struct {
	SetupDefaultProfile   *action.StatefulAction `json:"setup_default_profile"`
	PlaceNixConfiguration *action.StatefulAction `json:"place_nix_configuration"`
	ConfigureShellProfile *action.StatefulAction `json:"configure_shell_profile,omitempty"`
	ConfigureInitService  *action.StatefulAction `json:"configure_init_service"`
}

// PlanConfigureNix plans the three parallel configuration steps and the
// final init-service registration. Shell profile edits are omitted when the
// settings say profiles must not be modified.
func PlanConfigureNix(s settings.InstallSettings, init InitSystem, startDaemon bool) (*action.StatefulAction, error) {
	profile, err := base.PlanSetupDefaultProfile(ScratchDir)
	if err != nil {
		return nil, err
	}
	conf, err := PlanPlaceNixConfiguration(s.NixBuildGroupName, s.ExtraConf, s.Force)
	if err != nil {
		return nil, err
	}
	a := &ConfigureNix{
		SetupDefaultProfile:   profile,
		PlaceNixConfiguration: conf,
	}
	if s.ModifyProfile {
		shell, err := PlanConfigureShellProfile()
		if err != nil {
			return nil, err
		}
		a.ConfigureShellProfile = shell
	}
	initService, err := PlanConfigureInitService(init, startDaemon, s.SSLCertFile)
	if err != nil {
		return nil, err
	}
	a.ConfigureInitService = initService
	return action.Stateful(a), nil
}

// parallel returns the children that touch disjoint paths.
func (a *ConfigureNix) parallel() []*action.StatefulAction {
	children := []*action.StatefulAction{a.SetupDefaultProfile, a.PlaceNixConfiguration}
	if a.ConfigureShellProfile != nil {
		children = append(children, a.ConfigureShellProfile)
	}
	return children
}

func (a *ConfigureNix) Kind() string { return KindConfigureNix }

func (a *ConfigureNix) Synopsis() string {
	return "Configure Nix"
}

func (a *ConfigureNix) ExecuteDescription() []action.Description {
	var out []action.Description
	for _, child := range append(a.parallel(), a.ConfigureInitService) {
		out = append(out, child.DescribeExecute()...)
	}
	return out
}

func (a *ConfigureNix) RevertDescription() []action.Description {
	out := a.ConfigureInitService.DescribeRevert()
	children := a.parallel()
	for i := len(children) - 1; i >= 0; i-- {
		out = append(out, children[i].DescribeRevert()...)
	}
	return out
}

func (a *ConfigureNix) Execute(ctx context.Context) error {
	if err := action.ExecuteParallel(ctx, a.parallel()...); err != nil {
		return err
	}
	if err := a.ConfigureInitService.TryExecute(ctx); err != nil {
		return &action.ChildError{Name: a.ConfigureInitService.Action.Kind(), Err: err}
	}
	return nil
}

func (a *ConfigureNix) Revert(ctx context.Context) error {
	children := append(a.parallel(), a.ConfigureInitService)
	return action.RevertSequence(ctx, children...)
}
