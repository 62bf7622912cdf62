package planner

import (
	"context"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/common"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/macos"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// PlannerNameMacosMulti identifies MacosMulti in receipts.
const PlannerNameMacosMulti = "macos-multi"

// DefaultVolumeLabel names the APFS volume backing /nix.
const DefaultVolumeLabel = "Nix Store"

// MacosMulti plans a multi-user install on macOS: an APFS volume mounted at
// a synthesized `/nix`, with launchd running the daemon. User creation is
// forced sequential; the directory-services tools misbehave when invoked
// concurrently.
type MacosMulti struct {
	settings      settings.InstallSettings
	VolumeLabel   string
	RootDisk      string
	CaseSensitive bool
}

func NewMacosMulti(s settings.InstallSettings) *MacosMulti {
	return &MacosMulti{settings: s, VolumeLabel: DefaultVolumeLabel}
}

func (p *MacosMulti) Name() string { return PlannerNameMacosMulti }

func (p *MacosMulti) Settings() map[string]any { return p.settings.Map() }

// rootDisk finds the whole disk backing `/`, unless the caller pinned one.
func (p *MacosMulti) rootDisk(ctx context.Context) (string, error) {
	if p.RootDisk != "" {
		return p.RootDisk, nil
	}
	out, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil", "info", "/")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, found := strings.Cut(line, ":")
		if found && strings.TrimSpace(key) == "Part of Whole" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", action.NewError(action.CodeMalformedOutput,
		"`diskutil info /` did not report the whole disk backing `/`")
}

func (p *MacosMulti) Plan(ctx context.Context) (*plan.Plan, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := checkNixNotInstalled(); err != nil {
		return nil, err
	}
	disk, err := p.rootDisk(ctx)
	if err != nil {
		return nil, err
	}

	volume, err := macos.PlanCreateNixVolume(disk, p.VolumeLabel, p.CaseSensitive)
	if err != nil {
		return nil, err
	}
	provision, err := common.PlanProvisionNix(p.settings, true)
	if err != nil {
		return nil, err
	}
	configure, err := common.PlanConfigureNix(p.settings, common.InitLaunchd, true)
	if err != nil {
		return nil, err
	}

	return plan.New(p.Name(), p.Settings(), []*action.StatefulAction{
		volume, provision, configure,
	}), nil
}
