package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
)

// KindPlaceNixConfiguration tags PlaceNixConfiguration in receipts and
// traces.
const KindPlaceNixConfiguration = "place_nix_configuration"

// NixConfPath is the system-wide nix configuration file.
const NixConfPath = "/etc/nix/nix.conf"

// PlaceNixConfiguration writes /etc/nix/nix.conf, creating /etc/nix first.
type PlaceNixConfiguration struct {
	CreateDirectory *action.StatefulAction `json:"create_directory"`
	CreateFile      *action.StatefulAction `json:"create_file"`
}

// PlanPlaceNixConfiguration renders nix.conf from the build group name and
// any extra configuration lines, then plans the directory and file.
func PlanPlaceNixConfiguration(nixBuildGroupName, extraConf string, force bool) (*action.StatefulAction, error) {
	var buf strings.Builder
	if extraConf != "" {
		buf.WriteString(strings.TrimSpace(extraConf))
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "build-users-group = %s\n", nixBuildGroupName)
	buf.WriteString("experimental-features = nix-command flakes\n")
	buf.WriteString("auto-optimise-store = true\n")

	dir, err := base.PlanCreateDirectory("/etc/nix", "", "", 0o755)
	if err != nil {
		return nil, err
	}
	file, err := base.PlanCreateFile(NixConfPath, "", "", 0o664, buf.String(), force)
	if err != nil {
		return nil, err
	}
	return action.Stateful(&PlaceNixConfiguration{
		CreateDirectory: dir,
		CreateFile:      file,
	}), nil
}

func (a *PlaceNixConfiguration) Kind() string { return KindPlaceNixConfiguration }

func (a *PlaceNixConfiguration) Synopsis() string {
	return fmt.Sprintf("Place the Nix configuration in `%s`", NixConfPath)
}

func (a *PlaceNixConfiguration) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(
		a.Synopsis(),
		"This file configures the Nix daemon to be multi-user and have sane defaults",
	)}
}

func (a *PlaceNixConfiguration) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove the Nix configuration in `%s`", NixConfPath),
	)}
}

func (a *PlaceNixConfiguration) Execute(ctx context.Context) error {
	return action.ExecuteSequence(ctx, a.CreateDirectory, a.CreateFile)
}

func (a *PlaceNixConfiguration) Revert(ctx context.Context) error {
	return action.RevertSequence(ctx, a.CreateDirectory, a.CreateFile)
}
