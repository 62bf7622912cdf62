package planner

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/common"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/linux"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// PlannerNameOstree identifies Ostree in receipts.
const PlannerNameOstree = "ostree"

// DefaultOstreePersistence is where /nix's backing directory lives on the
// mutable side of an ostree deployment.
const DefaultOstreePersistence = "/var/home/nix"

const nixDirectoryUnit = `[Unit]
Description=Enable mount points in / for ostree
ConditionPathExists=!/nix
DefaultDependencies=no
Requires=local-fs-pre.target
After=local-fs-pre.target
[Service]
Type=oneshot
ExecStartPre=chattr -i /
ExecStart=mkdir -p /nix
ExecStopPost=chattr +i /
`

const ensureSymlinkedUnitsResolveUnit = `[Unit]
Description=Ensure Nix related units which are symlinked resolve
After=nix.mount
Requires=nix.mount
DefaultDependencies=no

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/usr/bin/systemctl daemon-reload
ExecStart=/usr/bin/systemctl restart --no-block nix-daemon.socket

[Install]
WantedBy=sysinit.target
`

// Ostree plans a multi-user install on immutable ostree deployments
// (Silverblue and friends): `/nix` cannot live on the sealed root, so a
// persistent directory is bind-mounted onto a synthesized `/nix` through
// systemd units.
type Ostree struct {
	settings    settings.InstallSettings
	Persistence string
}

func NewOstree(s settings.InstallSettings) *Ostree {
	return &Ostree{settings: s, Persistence: DefaultOstreePersistence}
}

func (p *Ostree) Name() string { return PlannerNameOstree }

func (p *Ostree) Settings() map[string]any { return p.settings.Map() }

func bindMountUnit(persistence string) string {
	return fmt.Sprintf(`[Unit]
Description=Mount `+"`%s`"+` on `+"`/nix`"+`
PropagatesStopTo=nix-daemon.service
PropagatesStopTo=nix-directory.service
After=nix-directory.service
Requires=nix-directory.service
ConditionPathIsDirectory=/nix
DefaultDependencies=no

[Mount]
What=%s
Where=/nix
Type=none
DirectoryMode=0755
Options=bind

[Install]
RequiredBy=nix-daemon.service
RequiredBy=nix-daemon.socket
`, persistence, persistence)
}

func (p *Ostree) Plan(ctx context.Context) (*plan.Plan, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	for _, check := range []func() error{
		checkNotNixOS,
		checkSystemdActive,
		checkNixNotInstalled,
	} {
		if err := check(); err != nil {
			return nil, err
		}
	}

	// First planned, so it is the last reverted: uninstall tears down the
	// mount units and needs a final daemon-reload after they are gone.
	daemonReload, err := linux.PlanSystemctlDaemonReload()
	if err != nil {
		return nil, err
	}
	persistenceDir, err := base.PlanCreateDirectory(p.Persistence, "", "", 0o755)
	if err != nil {
		return nil, err
	}
	nixDirUnit, err := base.PlanCreateFile(
		"/etc/systemd/system/nix-directory.service", "", "", 0o644, nixDirectoryUnit, p.settings.Force)
	if err != nil {
		return nil, err
	}
	mountUnit, err := base.PlanCreateFile(
		"/etc/systemd/system/nix.mount", "", "", 0o644, bindMountUnit(p.Persistence), p.settings.Force)
	if err != nil {
		return nil, err
	}
	resolveUnit, err := base.PlanCreateFile(
		"/etc/systemd/system/ensure-symlinked-units-resolve.service", "", "", 0o644,
		ensureSymlinkedUnitsResolveUnit, p.settings.Force)
	if err != nil {
		return nil, err
	}
	startMount, err := linux.PlanStartSystemdUnit("nix.mount")
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
	startResolve, err := linux.PlanStartSystemdUnit("ensure-symlinked-units-resolve.service")
	if err != nil {
		return nil, err
	}

	return plan.New(p.Name(), p.Settings(), []*action.StatefulAction{
		daemonReload,
		persistenceDir,
		nixDirUnit,
		mountUnit,
		resolveUnit,
		startMount,
		provision,
		configure,
		startResolve,
	}), nil
}
