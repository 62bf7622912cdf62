package base

import (
	"context"
	"fmt"
	"os/user"
	"runtime"
	"strconv"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateUser tags CreateUser in receipts and traces.
const KindCreateUser = "create_user"

// CreateUser creates one build user through the platform's user tooling. A
// user already present with the planned uid is Skipped; a uid mismatch fails
// planning. On macOS the composite that owns these actions forces them
// sequential, since the directory-services tooling is not safe under
// concurrent invocation.
type CreateUser struct {
	Name      string `json:"name"`
	UID       int    `json:"uid"`
	GroupName string `json:"group_name"`
	GID       int    `json:"gid"`
}

// PlanCreateUser probes the user database.
func PlanCreateUser(name string, uid int, groupName string, gid int) (*action.StatefulAction, error) {
	a := &CreateUser{Name: name, UID: uid, GroupName: groupName, GID: gid}
	u, err := user.Lookup(name)
	if err == nil {
		if u.Uid != strconv.Itoa(uid) {
			return nil, action.NewError(action.CodeMismatch, fmt.Sprintf(
				"user `%s` exists with uid %s, planned %d", name, u.Uid, uid))
		}
		return action.StatefulSkipped(a), nil
	}
	if _, ok := err.(user.UnknownUserError); ok {
		return action.Stateful(a), nil
	}
	return nil, action.NewError(action.CodePrecondition, "probing user "+name).Wrap(err)
}

func (a *CreateUser) Kind() string { return KindCreateUser }

func (a *CreateUser) Synopsis() string {
	return fmt.Sprintf("Create user `%s` (uid %d) in group `%s`", a.Name, a.UID, a.GroupName)
}

func (a *CreateUser) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"The nix daemon acts as these system users when it builds",
	)}
}

func (a *CreateUser) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Delete user `%s` (uid %d)", a.Name, a.UID),
	)}
}

func (a *CreateUser) Execute(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin":
		return a.executeDarwin(ctx)
	default:
		_, err := action.RunCommand(ctx, nil, "useradd",
			"--home-dir", "/var/empty",
			"--comment", "Nix build user",
			"--gid", strconv.Itoa(a.GID),
			"--groups", a.GroupName,
			"--no-user-group",
			"--system",
			"--shell", "/sbin/nologin",
			"--uid", strconv.Itoa(a.UID),
			"--password", "!",
			a.Name,
		)
		return err
	}
}

func (a *CreateUser) executeDarwin(ctx context.Context) error {
	record := "/Users/" + a.Name
	steps := [][]string{
		{"create", record},
		{"create", record, "UniqueID", strconv.Itoa(a.UID)},
		{"create", record, "PrimaryGroupID", strconv.Itoa(a.GID)},
		{"create", record, "NFSHomeDirectory", "/var/empty"},
		{"create", record, "UserShell", "/sbin/nologin"},
		{"create", record, "IsHidden", "1"},
	}
	for _, step := range steps {
		args := append([]string{"."}, step...)
		if _, err := action.RunCommand(ctx, nil, "/usr/bin/dscl", args...); err != nil {
			return err
		}
	}
	return nil
}

func (a *CreateUser) Revert(ctx context.Context) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = action.RunCommand(ctx, nil, "/usr/bin/dscl", ".", "delete", "/Users/"+a.Name)
	default:
		_, err = action.RunCommand(ctx, nil, "userdel", a.Name)
	}
	return err
}
