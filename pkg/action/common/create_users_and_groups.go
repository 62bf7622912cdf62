package common

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// KindCreateUsersAndGroups tags CreateUsersAndGroups in receipts and traces.
const KindCreateUsersAndGroups = "create_users_and_groups"

// CreateUsersAndGroups creates the build group, then the build users, then
// their group memberships. The group must exist before any user; the users
// themselves touch disjoint entries and run concurrently unless the planner
// forced them sequential (macOS directory-services tooling is not safe under
// concurrent invocation).
type CreateUsersAndGroups struct {
	GroupName   string                   `json:"group_name"`
	GroupID     int                      `json:"group_id"`
	UserCount   int                      `json:"user_count"`
	CreateGroup *action.StatefulAction   `json:"create_group"`
	CreateUsers []*action.StatefulAction `json:"create_users"`
	AddToGroups []*action.StatefulAction `json:"add_to_groups"`

	// ForceSequential is per-platform policy set by the planner, not a
	// user knob.
	ForceSequential bool `json:"force_sequential"`
}

// PlanCreateUsersAndGroups plans the group and DaemonUserCount users from
// the settings.
func PlanCreateUsersAndGroups(s settings.InstallSettings, forceSequential bool) (*action.StatefulAction, error) {
	group, err := base.PlanCreateGroup(s.NixBuildGroupName, s.NixBuildGroupID)
	if err != nil {
		return nil, err
	}
	a := &CreateUsersAndGroups{
		GroupName:       s.NixBuildGroupName,
		GroupID:         s.NixBuildGroupID,
		UserCount:       s.DaemonUserCount,
		CreateGroup:     group,
		ForceSequential: forceSequential,
	}
	for i := 1; i <= s.DaemonUserCount; i++ {
		name := fmt.Sprintf("%s%d", s.NixBuildUserPrefix, i)
		uid := s.NixBuildUserIDBase + i
		user, err := base.PlanCreateUser(name, uid, s.NixBuildGroupName, s.NixBuildGroupID)
		if err != nil {
			return nil, err
		}
		membership, err := base.PlanAddUserToGroup(name, s.NixBuildGroupName, s.NixBuildGroupID)
		if err != nil {
			return nil, err
		}
		a.CreateUsers = append(a.CreateUsers, user)
		a.AddToGroups = append(a.AddToGroups, membership)
	}
	return action.Stateful(a), nil
}

func (a *CreateUsersAndGroups) Kind() string { return KindCreateUsersAndGroups }

func (a *CreateUsersAndGroups) Synopsis() string {
	return fmt.Sprintf("Create build users (uid range %d) and group (gid %d)",
		a.UserCount, a.GroupID)
}

func (a *CreateUsersAndGroups) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"The nix daemon requires system users (and a group they share) which it can act as in order to build",
		fmt.Sprintf("Create group `%s` (gid %d)", a.GroupName, a.GroupID),
		fmt.Sprintf("Create %d build users in that group", a.UserCount),
	)}
}

func (a *CreateUsersAndGroups) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove build users and group `%s` (gid %d)", a.GroupName, a.GroupID),
	)}
}

func (a *CreateUsersAndGroups) Execute(ctx context.Context) error {
	if err := a.CreateGroup.TryExecute(ctx); err != nil {
		return &action.ChildError{Name: a.CreateGroup.Action.Kind(), Err: err}
	}
	if a.ForceSequential {
		if err := action.ExecuteSequence(ctx, a.CreateUsers...); err != nil {
			return err
		}
		return action.ExecuteSequence(ctx, a.AddToGroups...)
	}
	if err := action.ExecuteParallel(ctx, a.CreateUsers...); err != nil {
		return err
	}
	return action.ExecuteParallel(ctx, a.AddToGroups...)
}

func (a *CreateUsersAndGroups) Revert(ctx context.Context) error {
	// Memberships, then users, then the group. Attempt everything.
	var errs []error
	if err := action.RevertSequence(ctx, a.AddToGroups...); err != nil {
		errs = append(errs, err)
	}
	if err := action.RevertSequence(ctx, a.CreateUsers...); err != nil {
		errs = append(errs, err)
	}
	if err := a.CreateGroup.TryRevert(ctx); err != nil {
		errs = append(errs, &action.ChildError{Name: a.CreateGroup.Action.Kind(), Err: err})
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &action.ChildrenError{Errs: errs}
}
