package base

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindMoveUnpackedNix tags MoveUnpackedNix in receipts and traces.
const KindMoveUnpackedNix = "move_unpacked_nix"

// MoveUnpackedNix moves the unpacked store paths from the scratch directory
// into /nix/store. The unpacked tarball contains a single nix-<version>-*
// directory whose store/ subtree holds the paths.
type MoveUnpackedNix struct {
	Src string `json:"src"`
}

// PlanMoveUnpackedNix records the scratch directory; whether it holds a
// usable unpack is only knowable after the fetch runs.
func PlanMoveUnpackedNix(src string) (*action.StatefulAction, error) {
	return action.Stateful(&MoveUnpackedNix{Src: src}), nil
}

func (a *MoveUnpackedNix) Kind() string { return KindMoveUnpackedNix }

func (a *MoveUnpackedNix) Synopsis() string {
	return "Move the downloaded Nix into `/nix`"
}

func (a *MoveUnpackedNix) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		fmt.Sprintf("Nix is being downloaded to `%s` and should be in `/nix`", a.Src),
	)}
}

func (a *MoveUnpackedNix) RevertDescription() []action.Description {
	return nil
}

func (a *MoveUnpackedNix) Execute(ctx context.Context) error {
	unpacked, err := a.findUnpacked()
	if err != nil {
		return err
	}

	srcStore := filepath.Join(unpacked, "store")
	entries, err := os.ReadDir(srcStore)
	if err != nil {
		return action.NewError(action.CodeIO, "reading unpacked store").WithPath(srcStore).Wrap(err)
	}
	for _, e := range entries {
		src := filepath.Join(srcStore, e.Name())
		dst := filepath.Join("/nix/store", e.Name())
		if _, err := os.Stat(dst); err == nil {
			// Store paths are content addressed, an existing path is the
			// same path.
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return action.NewError(action.CodeIO, "moving store path").WithPath(dst).Wrap(err)
		}
	}

	if err := os.RemoveAll(a.Src); err != nil {
		return action.NewError(action.CodeIO, "cleaning scratch directory").WithPath(a.Src).Wrap(err)
	}
	return nil
}

func (a *MoveUnpackedNix) findUnpacked() (string, error) {
	entries, err := os.ReadDir(a.Src)
	if err != nil {
		return "", action.NewError(action.CodeIO, "reading scratch directory").WithPath(a.Src).Wrap(err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "nix-") {
			return filepath.Join(a.Src, e.Name()), nil
		}
	}
	return "", action.NewError(action.CodeMalformedOutput,
		"unpacked tarball does not contain a nix-* directory").WithPath(a.Src)
}

// Revert is a no-op: the store paths are removed wholesale when the /nix
// tree is reverted.
func (a *MoveUnpackedNix) Revert(ctx context.Context) error {
	return nil
}
