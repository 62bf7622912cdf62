// Package planner holds the builtin planners: per-platform probes that
// decide whether an install can proceed here, and the action lists that
// carry it out. The engine consumes planners only through the plan.Planner
// interface.
package planner

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// Select picks the planner matching the probing host.
func Select(s settings.InstallSettings) (plan.Planner, error) {
	switch runtime.GOOS {
	case "darwin":
		return NewMacosMulti(s), nil
	case "linux":
		if _, err := os.Stat("/run/ostree-booted"); err == nil {
			return NewOstree(s), nil
		}
		return NewLinuxMulti(s), nil
	default:
		return nil, action.NewError(action.CodeUnsupported,
			"no builtin planner supports "+runtime.GOOS)
	}
}

// ByName resolves a planner by its receipt identity, for uninstalls forced
// onto a specific planner.
func ByName(name string, s settings.InstallSettings) (plan.Planner, error) {
	switch name {
	case PlannerNameLinuxMulti:
		return NewLinuxMulti(s), nil
	case PlannerNameOstree:
		return NewOstree(s), nil
	case PlannerNameMacosMulti:
		return NewMacosMulti(s), nil
	default:
		return nil, action.NewError(action.CodeUnsupported, "unknown planner "+name)
	}
}

// checkNotNixOS refuses to run on NixOS, which manages nix itself.
func checkNotNixOS() error {
	if _, err := os.Stat("/etc/NIXOS"); err == nil {
		return action.NewError(action.CodePrecondition,
			"NixOS already has nix installed; this installer has nothing to do here")
	}
	return nil
}

// checkNixNotInstalled refuses to touch a host that already has a nix on it.
func checkNixNotInstalled() error {
	if _, err := exec.LookPath("nix-env"); err == nil {
		return action.NewError(action.CodeExists,
			"`nix-env` is already on PATH; an existing nix install cannot be repaired or replaced by this installer")
	}
	return nil
}

// checkSystemdActive verifies the host is actually booted with systemd, not
// just that unit files happen to exist.
func checkSystemdActive() error {
	if _, err := os.Stat("/run/systemd/system"); err != nil {
		return action.NewError(action.CodePrecondition,
			"systemd is not active on this host")
	}
	return nil
}

// checkNotWSL1 refuses WSL1, whose syscall translation cannot host the nix
// daemon. WSL2 is a real kernel and is fine.
func checkNotWSL1() error {
	osrelease, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return nil
	}
	release := strings.ToLower(string(osrelease))
	if strings.Contains(release, "microsoft") && !strings.Contains(release, "wsl2") {
		return action.NewError(action.CodeUnsupported,
			"WSL1 cannot host the nix daemon; upgrade the distribution to WSL2")
	}
	return nil
}

func ensureContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return action.ErrCancelled
	}
	return nil
}
