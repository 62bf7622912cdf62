package macos

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateFstabEntry tags CreateFstabEntry in receipts and traces.
const KindCreateFstabEntry = "create_fstab_entry"

const fstabPath = "/etc/fstab"

// CreateFstabEntry appends the mount entry for the nix volume to /etc/fstab
// so the volume is not auto-mounted browsable but still known to the
// system.
type CreateFstabEntry struct {
	VolumeName string `json:"volume_name"`
}

func (a *CreateFstabEntry) entry() string {
	return fmt.Sprintf("NAME=%q /nix apfs rw,noauto,nobrowse,suid,owners", a.VolumeName)
}

// PlanCreateFstabEntry probes /etc/fstab for an existing entry.
func PlanCreateFstabEntry(volumeName string) (*action.StatefulAction, error) {
	a := &CreateFstabEntry{VolumeName: volumeName}
	existing, err := os.ReadFile(fstabPath)
	switch {
	case err == nil && strings.Contains(string(existing), a.entry()):
		return action.StatefulSkipped(a), nil
	case err == nil || os.IsNotExist(err):
		return action.Stateful(a), nil
	default:
		return nil, action.NewError(action.CodeIO, "probing fstab").WithPath(fstabPath).Wrap(err)
	}
}

func (a *CreateFstabEntry) Kind() string { return KindCreateFstabEntry }

func (a *CreateFstabEntry) Synopsis() string {
	return fmt.Sprintf("Add a `/etc/fstab` entry for the `%s` volume", a.VolumeName)
}

func (a *CreateFstabEntry) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis(), a.entry())}
}

func (a *CreateFstabEntry) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove the `/etc/fstab` entry for the `%s` volume", a.VolumeName),
	)}
}

func (a *CreateFstabEntry) Execute(ctx context.Context) error {
	existing, err := os.ReadFile(fstabPath)
	if err != nil && !os.IsNotExist(err) {
		return action.NewError(action.CodeIO, "reading fstab").WithPath(fstabPath).Wrap(err)
	}
	out := string(existing)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += a.entry() + "\n"
	if err := os.WriteFile(fstabPath, []byte(out), 0o644); err != nil {
		return action.NewError(action.CodeIO, "writing fstab").WithPath(fstabPath).Wrap(err)
	}
	return nil
}

func (a *CreateFstabEntry) Revert(ctx context.Context) error {
	existing, err := os.ReadFile(fstabPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return action.NewError(action.CodeIO, "reading fstab").WithPath(fstabPath).Wrap(err)
	}
	out := strings.Replace(string(existing), a.entry()+"\n", "", 1)
	out = strings.Replace(out, a.entry(), "", 1)
	if err := os.WriteFile(fstabPath, []byte(out), 0o644); err != nil {
		return action.NewError(action.CodeIO, "writing fstab").WithPath(fstabPath).Wrap(err)
	}
	return nil
}
