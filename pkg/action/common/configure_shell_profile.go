package common

import (
	"context"
	"os"
	"path/filepath"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
)

// KindConfigureShellProfile tags ConfigureShellProfile in receipts and
// traces.
const KindConfigureShellProfile = "configure_shell_profile"

const profileNixFileShell = "/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.sh"
const profileNixFileFish = "/nix/var/nix/profiles/default/etc/profile.d/nix-daemon.fish"

// Bourne-family profile files we edit when their parent directory exists.
var profileTargets = []string{
	"/etc/bashrc",
	"/etc/profile.d/nix.sh",
	"/etc/zshenv",
	"/etc/bash.bashrc",
	"/etc/zsh/zshenv",
}

// Fish sysconf prefixes; a conf.d/nix.fish is dropped under each that
// exists.
var fishPrefixes = []string{
	"/etc/fish",
	"/usr/local/etc/fish",
	"/opt/homebrew/etc/fish",
	"/opt/local/etc/fish",
}

const shellProfileBuf = `
# Nix
if [ -e '` + profileNixFileShell + `' ]; then
    . '` + profileNixFileShell + `'
fi
# End Nix
`

const fishProfileBuf = `
# Nix
if test -e '` + profileNixFileFish + `'
    . '` + profileNixFileFish + `'
end
# End Nix
`

// ConfigureShellProfile inserts the nix loader block into every detected
// shell profile. The edits touch disjoint files and run concurrently.
type ConfigureShellProfile struct {
	CreateDirectories []*action.StatefulAction `json:"create_directories"`
	Edits             []*action.StatefulAction `json:"edits"`
}

// PlanConfigureShellProfile probes for profile files worth editing.
func PlanConfigureShellProfile() (*action.StatefulAction, error) {
	a := &ConfigureShellProfile{}

	for _, target := range profileTargets {
		if _, err := os.Stat(filepath.Dir(target)); err != nil {
			continue
		}
		edit, err := base.PlanCreateOrInsertIntoFile(target, "", "", 0o755, shellProfileBuf, base.End)
		if err != nil {
			return nil, err
		}
		a.Edits = append(a.Edits, edit)
	}

	for _, prefix := range fishPrefixes {
		if _, err := os.Stat(prefix); err != nil {
			continue
		}
		confD := filepath.Join(prefix, "conf.d")
		dir, err := base.PlanCreateDirectory(confD, "", "", 0o755)
		if err != nil {
			return nil, err
		}
		edit, err := base.PlanCreateOrInsertIntoFile(
			filepath.Join(confD, "nix.fish"), "", "", 0o755, fishProfileBuf, base.End)
		if err != nil {
			return nil, err
		}
		a.CreateDirectories = append(a.CreateDirectories, dir)
		a.Edits = append(a.Edits, edit)
	}

	return action.Stateful(a), nil
}

func (a *ConfigureShellProfile) Kind() string { return KindConfigureShellProfile }

func (a *ConfigureShellProfile) Synopsis() string {
	return "Configure the shell profiles"
}

func (a *ConfigureShellProfile) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"Update shell profiles to import Nix",
	)}
}

func (a *ConfigureShellProfile) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		"Unconfigure the shell profiles",
		"Update shell profiles to no longer import Nix",
	)}
}

func (a *ConfigureShellProfile) Execute(ctx context.Context) error {
	if err := action.ExecuteSequence(ctx, a.CreateDirectories...); err != nil {
		return err
	}
	return action.ExecuteParallel(ctx, a.Edits...)
}

func (a *ConfigureShellProfile) Revert(ctx context.Context) error {
	var errs []error
	if err := action.RevertSequence(ctx, a.Edits...); err != nil {
		errs = append(errs, err)
	}
	if err := action.RevertSequence(ctx, a.CreateDirectories...); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &action.ChildrenError{Errs: errs}
}
