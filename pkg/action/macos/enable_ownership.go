package macos

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindEnableOwnership tags EnableOwnership in receipts and traces.
const KindEnableOwnership = "enable_ownership"

// EnableOwnership makes macOS honor uid/gid on the mounted volume; without
// it every file appears owned by the mounting user and the build users
// cannot be isolated.
type EnableOwnership struct {
	Path string `json:"path"`
}

func PlanEnableOwnership(path string) (*action.StatefulAction, error) {
	return action.Stateful(&EnableOwnership{Path: path}), nil
}

func (a *EnableOwnership) Kind() string { return KindEnableOwnership }

func (a *EnableOwnership) Synopsis() string {
	return fmt.Sprintf("Enable ownership on `%s`", a.Path)
}

func (a *EnableOwnership) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *EnableOwnership) RevertDescription() []action.Description {
	return nil
}

func (a *EnableOwnership) Execute(ctx context.Context) error {
	_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil", "enableOwnership", a.Path)
	return err
}

// Revert is a no-op: ownership goes away with the volume.
func (a *EnableOwnership) Revert(ctx context.Context) error {
	return nil
}
