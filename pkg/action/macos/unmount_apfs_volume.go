package macos

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindUnmountApfsVolume tags UnmountApfsVolume in receipts and traces.
const KindUnmountApfsVolume = "unmount_apfs_volume"

// UnmountApfsVolume force-unmounts the nix volume. During install it clears
// a leftover mount from a previous attempt (the caller tolerates failure
// there); its revert unmounts again so a deleteVolume that follows is not
// blocked by an active mount.
type UnmountApfsVolume struct {
	Disk string `json:"disk"`
	Name string `json:"name"`
}

func PlanUnmountApfsVolume(disk, name string) (*action.StatefulAction, error) {
	return action.Stateful(&UnmountApfsVolume{Disk: disk, Name: name}), nil
}

func (a *UnmountApfsVolume) Kind() string { return KindUnmountApfsVolume }

func (a *UnmountApfsVolume) Synopsis() string {
	return fmt.Sprintf("Unmount the `%s` volume", a.Name)
}

func (a *UnmountApfsVolume) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *UnmountApfsVolume) RevertDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *UnmountApfsVolume) Execute(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil", "unmount", "force", a.Name)
	return err
}

func (a *UnmountApfsVolume) Revert(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil", "unmount", "force", a.Name)
	return err
}
