package base

import (
	"context"
	"fmt"
	"os"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateDirectory tags CreateDirectory in receipts and traces.
const KindCreateDirectory = "create_directory"

// CreateDirectory creates a directory (and any missing parents), owned by
// the given user and group. If the directory already exists at plan time the
// action is Skipped and never removed on revert.
type CreateDirectory struct {
	Path  string      `json:"path"`
	User  string      `json:"user,omitempty"`
	Group string      `json:"group,omitempty"`
	Mode  os.FileMode `json:"mode"`
}

// PlanCreateDirectory probes the path and wraps the action in its initial
// state: Skipped when the directory already exists, Uncompleted otherwise. A
// path occupied by a non-directory is a contradictory state and fails
// planning.
func PlanCreateDirectory(path, userName, groupName string, mode os.FileMode) (*action.StatefulAction, error) {
	a := &CreateDirectory{Path: path, User: userName, Group: groupName, Mode: mode}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return action.StatefulSkipped(a), nil
	case err == nil:
		return nil, action.NewError(action.CodeMismatch,
			"exists but is not a directory").WithPath(path)
	case os.IsNotExist(err):
		return action.Stateful(a), nil
	default:
		return nil, action.NewError(action.CodeIO, "probing path").WithPath(path).Wrap(err)
	}
}

func (a *CreateDirectory) Kind() string { return KindCreateDirectory }

func (a *CreateDirectory) Synopsis() string {
	return fmt.Sprintf("Create directory `%s`", a.Path)
}

func (a *CreateDirectory) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *CreateDirectory) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove directory `%s`", a.Path),
	)}
}

func (a *CreateDirectory) Execute(ctx context.Context) error {
	if err := os.MkdirAll(a.Path, a.Mode); err != nil {
		return action.NewError(action.CodeIO, "creating directory").WithPath(a.Path).Wrap(err)
	}
	// MkdirAll honors umask; fix the mode up explicitly.
	if err := os.Chmod(a.Path, a.Mode); err != nil {
		return action.NewError(action.CodeIO, "setting mode").WithPath(a.Path).Wrap(err)
	}
	return chownPath(a.Path, a.User, a.Group)
}

func (a *CreateDirectory) Revert(ctx context.Context) error {
	if err := os.RemoveAll(a.Path); err != nil {
		return action.NewError(action.CodeIO, "removing directory").WithPath(a.Path).Wrap(err)
	}
	return nil
}
