package planner

import (
	"context"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/common"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// PlannerNameLinuxMulti identifies LinuxMulti in receipts.
const PlannerNameLinuxMulti = "linux-multi"

// LinuxMulti plans a multi-user install on a mutable, systemd-booted Linux.
type LinuxMulti struct {
	settings settings.InstallSettings
}

func NewLinuxMulti(s settings.InstallSettings) *LinuxMulti {
	return &LinuxMulti{settings: s}
}

func (p *LinuxMulti) Name() string { return PlannerNameLinuxMulti }

func (p *LinuxMulti) Settings() map[string]any { return p.settings.Map() }

func (p *LinuxMulti) Plan(ctx context.Context) (*plan.Plan, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	for _, check := range []func() error{
		checkNotNixOS,
		checkSystemdActive,
		checkNotWSL1,
		checkNixNotInstalled,
	} {
		if err := check(); err != nil {
			return nil, err
		}
	}

	nixDir, err := base.PlanCreateDirectory("/nix", "", "", 0o755)
	if err != nil {
		return nil, err
	}
	provision, err := common.PlanProvisionNix(p.settings, false)
	if err != nil {
		return nil, err
	}
	configure, err := common.PlanConfigureNix(p.settings, common.InitSystemd, true)
	if err != nil {
		return nil, err
	}

	return plan.New(p.Name(), p.Settings(), []*action.StatefulAction{
		nixDir, provision, configure,
	}), nil
}
