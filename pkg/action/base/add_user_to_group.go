package base

import (
	"context"
	"fmt"
	"os/user"
	"runtime"
	"strconv"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindAddUserToGroup tags AddUserToGroup in receipts and traces.
const KindAddUserToGroup = "add_user_to_group"

// AddUserToGroup adds an existing user to a supplementary group. Membership
// already present at plan time is Skipped.
type AddUserToGroup struct {
	Name      string `json:"name"`
	GroupName string `json:"group_name"`
	GID       int    `json:"gid"`
}

// PlanAddUserToGroup probes current group membership. A user that does not
// exist yet (it is created by a sibling action earlier in the sequence)
// plans as Uncompleted.
func PlanAddUserToGroup(name, groupName string, gid int) (*action.StatefulAction, error) {
	a := &AddUserToGroup{Name: name, GroupName: groupName, GID: gid}
	u, err := user.Lookup(name)
	if err != nil {
		if _, ok := err.(user.UnknownUserError); ok {
			return action.Stateful(a), nil
		}
		return nil, action.NewError(action.CodePrecondition, "probing user "+name).Wrap(err)
	}
	gids, err := u.GroupIds()
	if err != nil {
		return nil, action.NewError(action.CodePrecondition, "probing groups of "+name).Wrap(err)
	}
	for _, g := range gids {
		if g == strconv.Itoa(gid) {
			return action.StatefulSkipped(a), nil
		}
	}
	return action.Stateful(a), nil
}

func (a *AddUserToGroup) Kind() string { return KindAddUserToGroup }

func (a *AddUserToGroup) Synopsis() string {
	return fmt.Sprintf("Add user `%s` to group `%s`", a.Name, a.GroupName)
}

func (a *AddUserToGroup) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *AddUserToGroup) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove user `%s` from group `%s`", a.Name, a.GroupName),
	)}
}

func (a *AddUserToGroup) Execute(ctx context.Context) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = action.RunCommand(ctx, nil, "/usr/sbin/dseditgroup",
			"-o", "edit", "-t", "user", "-a", a.Name, a.GroupName)
	default:
		_, err = action.RunCommand(ctx, nil, "gpasswd", "-a", a.Name, a.GroupName)
	}
	return err
}

func (a *AddUserToGroup) Revert(ctx context.Context) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = action.RunCommand(ctx, nil, "/usr/sbin/dseditgroup",
			"-o", "edit", "-t", "user", "-d", a.Name, a.GroupName)
	default:
		_, err = action.RunCommand(ctx, nil, "gpasswd", "-d", a.Name, a.GroupName)
	}
	return err
}
