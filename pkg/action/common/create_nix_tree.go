package common

import (
	"context"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
)

// KindCreateNixTree tags CreateNixTree in receipts and traces.
const KindCreateNixTree = "create_nix_tree"

// nixTreePaths is the /nix/var directory skeleton nix expects, in creation
// order (parents before children).
var nixTreePaths = []string{
	"/nix/var",
	"/nix/var/log",
	"/nix/var/log/nix",
	"/nix/var/log/nix/drvs",
	"/nix/var/nix",
	"/nix/var/nix/db",
	"/nix/var/nix/gcroots",
	"/nix/var/nix/gcroots/per-user",
	"/nix/var/nix/profiles",
	"/nix/var/nix/profiles/per-user",
	"/nix/var/nix/temproots",
	"/nix/var/nix/userpool",
	"/nix/var/nix/daemon-socket",
}

// CreateNixTree creates the fixed /nix/var directory skeleton. Sequential:
// each directory is the parent of the next.
type CreateNixTree struct {
	CreateDirectories []*action.StatefulAction `json:"create_directories"`
}

// PlanCreateNixTree plans one CreateDirectory per skeleton path.
func PlanCreateNixTree() (*action.StatefulAction, error) {
	a := &CreateNixTree{}
	for _, path := range nixTreePaths {
		child, err := base.PlanCreateDirectory(path, "", "", 0o755)
		if err != nil {
			return nil, err
		}
		a.CreateDirectories = append(a.CreateDirectories, child)
	}
	return action.Stateful(a), nil
}

func (a *CreateNixTree) Kind() string { return KindCreateNixTree }

func (a *CreateNixTree) Synopsis() string {
	return "Create a directory tree in `/nix`"
}

func (a *CreateNixTree) ExecuteDescription() []action.Description {
	var explanation []string
	for _, child := range a.CreateDirectories {
		for _, d := range child.DescribeExecute() {
			explanation = append(explanation, d.Description)
		}
	}
	return []action.Description{action.Describe(a.Synopsis(), explanation...)}
}

func (a *CreateNixTree) RevertDescription() []action.Description {
	return []action.Description{action.Describe("Remove the directory tree in `/nix`")}
}

func (a *CreateNixTree) Execute(ctx context.Context) error {
	return action.ExecuteSequence(ctx, a.CreateDirectories...)
}

func (a *CreateNixTree) Revert(ctx context.Context) error {
	return action.RevertSequence(ctx, a.CreateDirectories...)
}
