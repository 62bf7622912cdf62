package common

import (
	"context"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

// KindProvisionNix tags ProvisionNix in receipts and traces.
const KindProvisionNix = "provision_nix"

// ScratchDir is where the nix tarball is downloaded and unpacked before its
// store paths move into /nix/store.
const ScratchDir = "/nix/temp-install-dir"

// ProvisionNix gets the nix store paths onto the host. The fetch is spawned
// as a background task overlapping the users+tree chain, since neither
// depends on the other; if the chain fails the pending fetch is cancelled
// rather than awaited, and its cooperative cancel guarantees it commits no
// state afterwards. The move runs only after both halves succeed.
//
// When the fetch fails after the chain already completed, the chain's work
// is left in place rather than reverted here; the receipt records it as
// completed and the plan-level revert cleans it up.
type ProvisionNix struct {
	Fetch                *action.StatefulAction `json:"fetch"`
	CreateUsersAndGroups *action.StatefulAction `json:"create_users_and_groups"`
	CreateNixTree        *action.StatefulAction `json:"create_nix_tree"`
	MoveUnpackedNix      *action.StatefulAction `json:"move_unpacked_nix"`
}

// PlanProvisionNix plans the fetch, the users+tree chain and the final move.
func PlanProvisionNix(s settings.InstallSettings, forceSequentialUsers bool) (*action.StatefulAction, error) {
	fetch, err := base.PlanFetchAndUnpack(s.NixPackageURL, ScratchDir)
	if err != nil {
		return nil, err
	}
	users, err := PlanCreateUsersAndGroups(s, forceSequentialUsers)
	if err != nil {
		return nil, err
	}
	tree, err := PlanCreateNixTree()
	if err != nil {
		return nil, err
	}
	move, err := base.PlanMoveUnpackedNix(ScratchDir)
	if err != nil {
		return nil, err
	}
	return action.Stateful(&ProvisionNix{
		Fetch:                fetch,
		CreateUsersAndGroups: users,
		CreateNixTree:        tree,
		MoveUnpackedNix:      move,
	}), nil
}

func (a *ProvisionNix) Kind() string { return KindProvisionNix }

func (a *ProvisionNix) Synopsis() string {
	return "Provision Nix"
}

func (a *ProvisionNix) ExecuteDescription() []action.Description {
	var out []action.Description
	for _, child := range []*action.StatefulAction{
		a.Fetch, a.CreateUsersAndGroups, a.CreateNixTree, a.MoveUnpackedNix,
	} {
		out = append(out, child.DescribeExecute()...)
	}
	return out
}

func (a *ProvisionNix) RevertDescription() []action.Description {
	var out []action.Description
	for _, child := range []*action.StatefulAction{
		a.MoveUnpackedNix, a.CreateNixTree, a.CreateUsersAndGroups, a.Fetch,
	} {
		out = append(out, child.DescribeRevert()...)
	}
	return out
}

func (a *ProvisionNix) Execute(ctx context.Context) error {
	fetch := action.Spawn(ctx, a.Fetch.Action.Kind(), a.Fetch.TryExecute)

	if err := action.ExecuteSequence(ctx, a.CreateUsersAndGroups, a.CreateNixTree); err != nil {
		// The fetch's result will never be consumed; cancel it instead of
		// awaiting completion.
		fetch.Cancel()
		fetch.Wait()
		return err
	}
	if err := fetch.Wait(); err != nil {
		return &action.ChildError{Name: a.Fetch.Action.Kind(), Err: err}
	}

	if err := a.MoveUnpackedNix.TryExecute(ctx); err != nil {
		return &action.ChildError{Name: a.MoveUnpackedNix.Action.Kind(), Err: err}
	}
	return nil
}

func (a *ProvisionNix) Revert(ctx context.Context) error {
	return action.RevertSequence(ctx,
		a.Fetch, a.CreateUsersAndGroups, a.CreateNixTree, a.MoveUnpackedNix)
}
