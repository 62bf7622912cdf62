package macos

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateApfsVolume tags CreateApfsVolume in receipts and traces.
const KindCreateApfsVolume = "create_apfs_volume"

// CreateApfsVolume adds an unmounted APFS volume to the disk; mounting is
// the volume daemon's job.
type CreateApfsVolume struct {
	Disk          string `json:"disk"`
	Name          string `json:"name"`
	CaseSensitive bool   `json:"case_sensitive"`
}

func PlanCreateApfsVolume(disk, name string, caseSensitive bool) (*action.StatefulAction, error) {
	return action.Stateful(&CreateApfsVolume{
		Disk: disk, Name: name, CaseSensitive: caseSensitive,
	}), nil
}

func (a *CreateApfsVolume) Kind() string { return KindCreateApfsVolume }

func (a *CreateApfsVolume) Synopsis() string {
	return fmt.Sprintf("Create an APFS volume on `%s` named `%s`", a.Disk, a.Name)
}

func (a *CreateApfsVolume) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *CreateApfsVolume) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove the APFS volume on `%s` named `%s`", a.Disk, a.Name),
	)}
}

func (a *CreateApfsVolume) Execute(ctx context.Context) error {
	fs := "APFS"
	if a.CaseSensitive {
		fs = "Case-sensitive APFS"
	}
	_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil",
		"apfs", "addVolume", a.Disk, fs, a.Name, "-nomount")
	return err
}

func (a *CreateApfsVolume) Revert(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil",
		"apfs", "deleteVolume", a.Name)
	return err
}
