// Package macos holds leaf actions specific to macOS hosts: the APFS volume
// dance that gives nix a writable `/nix` on a sealed system volume, and
// launchd integration.
package macos

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateSyntheticObjects tags CreateSyntheticObjects in receipts and
// traces.
const KindCreateSyntheticObjects = "create_synthetic_objects"

const apfsUtil = "/System/Library/Filesystems/apfs.fs/Contents/Resources/apfs.util"

// CreateSyntheticObjects asks apfs.util to materialize the firmlinks listed
// in /etc/synthetic.conf, so `/nix` appears on the sealed system volume.
type CreateSyntheticObjects struct{}

func PlanCreateSyntheticObjects() (*action.StatefulAction, error) {
	return action.Stateful(&CreateSyntheticObjects{}), nil
}

func (a *CreateSyntheticObjects) Kind() string { return KindCreateSyntheticObjects }

func (a *CreateSyntheticObjects) Synopsis() string {
	return "Create objects defined in `/etc/synthetic.conf`"
}

func (a *CreateSyntheticObjects) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"Run `"+apfsUtil+" -t`",
	)}
}

func (a *CreateSyntheticObjects) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		"Refresh the objects defined in `/etc/synthetic.conf`",
	)}
}

// Execute ignores apfs.util's exit status: the tool reports a non-zero exit
// on some macOS releases even when the synthetic objects were created. The
// actions that follow fail fast if `/nix` did not in fact appear.
func (a *CreateSyntheticObjects) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := action.RunCommand(ctx, nil, apfsUtil, "-t"); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("apfs.util -t reported failure; exit status is known unreliable")
	}
	return nil
}

// Revert re-runs apfs.util so the (by now reverted) synthetic.conf content
// is what the system reflects. Same exit-status caveat as Execute.
func (a *CreateSyntheticObjects) Revert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := action.RunCommand(ctx, nil, apfsUtil, "-t"); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("apfs.util -t reported failure; exit status is known unreliable")
	}
	return nil
}
