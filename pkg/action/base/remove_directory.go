package base

import (
	"context"
	"fmt"
	"os"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindRemoveDirectory tags RemoveDirectory in receipts and traces.
const KindRemoveDirectory = "remove_directory"

// RemoveDirectory deletes a directory tree during install (used to clear
// obstructions the user asked to force through). An absent directory is
// Skipped; its revert is intentionally a no-op since the removed content is
// gone.
type RemoveDirectory struct {
	Path string `json:"path"`
}

// PlanRemoveDirectory probes the path.
func PlanRemoveDirectory(path string) (*action.StatefulAction, error) {
	a := &RemoveDirectory{Path: path}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return action.StatefulSkipped(a), nil
		}
		return nil, action.NewError(action.CodeIO, "probing directory").WithPath(path).Wrap(err)
	}
	return action.Stateful(a), nil
}

func (a *RemoveDirectory) Kind() string { return KindRemoveDirectory }

func (a *RemoveDirectory) Synopsis() string {
	return fmt.Sprintf("Remove directory `%s`", a.Path)
}

func (a *RemoveDirectory) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *RemoveDirectory) RevertDescription() []action.Description {
	return nil
}

func (a *RemoveDirectory) Execute(ctx context.Context) error {
	if err := os.RemoveAll(a.Path); err != nil {
		return action.NewError(action.CodeIO, "removing directory").WithPath(a.Path).Wrap(err)
	}
	return nil
}

// Revert cannot restore what was removed.
func (a *RemoveDirectory) Revert(ctx context.Context) error {
	return nil
}
