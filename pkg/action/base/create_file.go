package base

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateFile tags CreateFile in receipts and traces.
const KindCreateFile = "create_file"

// CreateFile writes a file with the given content, mode and ownership. A
// pre-existing file with identical content is Skipped; different content is
// refused at plan time unless force is set.
type CreateFile struct {
	Path  string      `json:"path"`
	User  string      `json:"user,omitempty"`
	Group string      `json:"group,omitempty"`
	Mode  os.FileMode `json:"mode"`
	Buf   string      `json:"buf"`
	Force bool        `json:"force"`
}

// PlanCreateFile probes the path and decides the initial state.
func PlanCreateFile(path, userName, groupName string, mode os.FileMode, buf string, force bool) (*action.StatefulAction, error) {
	a := &CreateFile{Path: path, User: userName, Group: groupName, Mode: mode, Buf: buf, Force: force}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, []byte(buf)):
		return action.StatefulSkipped(a), nil
	case err == nil && !force:
		return nil, action.NewError(action.CodeExists,
			fmt.Sprintf("exists with different content than planned, consider removing it with `rm %s`", path),
		).WithPath(path)
	case err == nil:
		return action.Stateful(a), nil
	case os.IsNotExist(err):
		return action.Stateful(a), nil
	default:
		return nil, action.NewError(action.CodeIO, "probing file").WithPath(path).Wrap(err)
	}
}

func (a *CreateFile) Kind() string { return KindCreateFile }

func (a *CreateFile) Synopsis() string {
	return fmt.Sprintf("Create or overwrite file `%s`", a.Path)
}

func (a *CreateFile) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *CreateFile) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Delete file `%s`", a.Path),
	)}
}

func (a *CreateFile) Execute(ctx context.Context) error {
	if err := os.WriteFile(a.Path, []byte(a.Buf), a.Mode); err != nil {
		return action.NewError(action.CodeIO, "writing file").WithPath(a.Path).Wrap(err)
	}
	if err := os.Chmod(a.Path, a.Mode); err != nil {
		return action.NewError(action.CodeIO, "setting mode").WithPath(a.Path).Wrap(err)
	}
	return chownPath(a.Path, a.User, a.Group)
}

func (a *CreateFile) Revert(ctx context.Context) error {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return action.NewError(action.CodeIO, "removing file").WithPath(a.Path).Wrap(err)
	}
	return nil
}
