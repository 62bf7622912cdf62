package base

import (
	"context"
	"fmt"
	"os/user"
	"runtime"
	"strconv"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateGroup tags CreateGroup in receipts and traces.
const KindCreateGroup = "create_group"

// CreateGroup creates the build group through the platform's own group
// tooling. A group already present with the planned gid is Skipped; present
// with a different gid is a contradictory state and fails planning.
type CreateGroup struct {
	Name string `json:"name"`
	GID  int    `json:"gid"`
}

// PlanCreateGroup probes the group database.
func PlanCreateGroup(name string, gid int) (*action.StatefulAction, error) {
	a := &CreateGroup{Name: name, GID: gid}
	g, err := user.LookupGroup(name)
	if err == nil {
		if g.Gid != strconv.Itoa(gid) {
			return nil, action.NewError(action.CodeMismatch, fmt.Sprintf(
				"group `%s` exists with gid %s, planned %d", name, g.Gid, gid))
		}
		return action.StatefulSkipped(a), nil
	}
	if _, ok := err.(user.UnknownGroupError); ok {
		return action.Stateful(a), nil
	}
	return nil, action.NewError(action.CodePrecondition, "probing group "+name).Wrap(err)
}

func (a *CreateGroup) Kind() string { return KindCreateGroup }

func (a *CreateGroup) Synopsis() string {
	return fmt.Sprintf("Create group `%s` (gid %d)", a.Name, a.GID)
}

func (a *CreateGroup) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"The nix daemon requires a system group its build users share",
	)}
}

func (a *CreateGroup) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Delete group `%s` (gid %d)", a.Name, a.GID),
	)}
}

func (a *CreateGroup) Execute(ctx context.Context) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = action.RunCommand(ctx, nil, "/usr/sbin/dseditgroup",
			"-o", "create", "-i", strconv.Itoa(a.GID), a.Name)
	default:
		_, err = action.RunCommand(ctx, nil, "groupadd",
			"-g", strconv.Itoa(a.GID), "--system", a.Name)
	}
	return err
}

func (a *CreateGroup) Revert(ctx context.Context) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = action.RunCommand(ctx, nil, "/usr/sbin/dseditgroup", "-o", "delete", a.Name)
	default:
		_, err = action.RunCommand(ctx, nil, "groupdel", a.Name)
	}
	return err
}
