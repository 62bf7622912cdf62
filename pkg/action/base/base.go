// Package base contains the OS-agnostic leaf actions: filesystem mutations,
// user and group management, and fetching the nix distribution. Each leaf is
// planned with read-only probes that decide its initial lifecycle state.
package base

import (
	"os"
	"os/user"
	"strconv"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// chownPath resolves the named user and group and applies ownership to path.
// Empty names leave the respective id unchanged.
func chownPath(path, userName, groupName string) error {
	uid, gid := -1, -1
	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return action.NewError(action.CodePrecondition, "looking up user "+userName).Wrap(err)
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return action.NewError(action.CodeMalformedOutput, "non-numeric uid for "+userName).Wrap(err)
		}
	}
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return action.NewError(action.CodePrecondition, "looking up group "+groupName).Wrap(err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return action.NewError(action.CodeMalformedOutput, "non-numeric gid for "+groupName).Wrap(err)
		}
	}
	if uid == -1 && gid == -1 {
		return nil
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return action.NewError(action.CodeIO, "changing ownership").WithPath(path).Wrap(err)
	}
	return nil
}
