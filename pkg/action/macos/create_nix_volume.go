package macos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action/base"
)

// KindCreateNixVolume tags CreateNixVolume in receipts and traces.
const KindCreateNixVolume = "create_nix_volume"

// NixVolumeMountdPath is the launchd daemon that mounts the nix volume at
// boot.
const NixVolumeMountdPath = "/Library/LaunchDaemons/org.nixos.darwin-store.plist"

const nixVolumeMountdLabel = "org.nixos.darwin-store"

// syntheticConfBuf needs the trailing newline; apfs.util misbehaves on a
// final line without one.
const syntheticConfBuf = "nix\n"

const mountWaitTimeout = 10 * time.Second

// CreateNixVolume is the whole APFS dance: declare the `/nix` firmlink,
// materialize it, create the volume, register its fstab entry, install and
// bootstrap the mount daemon, then wait for the mount to surface and enable
// ownership on it. Strictly sequential; every step needs the one before.
type CreateNixVolume struct {
	Disk string `json:"disk"`
	Name string `json:"name"`

	AppendSyntheticConf    *action.StatefulAction `json:"append_synthetic_conf"`
	CreateSyntheticObjects *action.StatefulAction `json:"create_synthetic_objects"`
	UnmountVolume          *action.StatefulAction `json:"unmount_volume"`
	CreateVolume           *action.StatefulAction `json:"create_volume"`
	CreateFstabEntry       *action.StatefulAction `json:"create_fstab_entry"`
	SetupVolumeDaemon      *action.StatefulAction `json:"setup_volume_daemon"`
	BootstrapVolumeDaemon  *action.StatefulAction `json:"bootstrap_volume_daemon"`
	EnableOwnership        *action.StatefulAction `json:"enable_ownership"`
}

// PlanCreateNixVolume plans the full chain for the given disk.
func PlanCreateNixVolume(disk, name string, caseSensitive bool) (*action.StatefulAction, error) {
	appendConf, err := base.PlanCreateOrInsertIntoFile(
		"/etc/synthetic.conf", "", "", 0o655, syntheticConfBuf, base.End)
	if err != nil {
		return nil, err
	}
	synthetic, err := PlanCreateSyntheticObjects()
	if err != nil {
		return nil, err
	}
	unmount, err := PlanUnmountApfsVolume(disk, name)
	if err != nil {
		return nil, err
	}
	volume, err := PlanCreateApfsVolume(disk, name, caseSensitive)
	if err != nil {
		return nil, err
	}
	fstab, err := PlanCreateFstabEntry(name)
	if err != nil {
		return nil, err
	}
	daemon, err := base.PlanCreateFile(
		NixVolumeMountdPath, "", "", 0o644, mountPlist(name), false)
	if err != nil {
		return nil, err
	}
	bootstrap, err := PlanBootstrapLaunchctlService(nixVolumeMountdLabel, NixVolumeMountdPath)
	if err != nil {
		return nil, err
	}
	ownership, err := PlanEnableOwnership("/nix")
	if err != nil {
		return nil, err
	}
	return action.Stateful(&CreateNixVolume{
		Disk:                   disk,
		Name:                   name,
		AppendSyntheticConf:    appendConf,
		CreateSyntheticObjects: synthetic,
		UnmountVolume:          unmount,
		CreateVolume:           volume,
		CreateFstabEntry:       fstab,
		SetupVolumeDaemon:      daemon,
		BootstrapVolumeDaemon:  bootstrap,
		EnableOwnership:        ownership,
	}), nil
}

func mountPlist(volumeName string) string {
	args := []string{"/usr/sbin/diskutil", "mount", "-mountPoint", "/nix", volumeName}
	var sb strings.Builder
	for _, arg := range args {
		fmt.Fprintf(&sb, "\t\t<string>%s</string>\n", arg)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple Computer//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>RunAtLoad</key>
	<true/>
	<key>Label</key>
	<string>` + nixVolumeMountdLabel + `</string>
	<key>ProgramArguments</key>
	<array>
` + sb.String() + `	</array>
</dict>
</plist>
`
}

func (a *CreateNixVolume) Kind() string { return KindCreateNixVolume }

func (a *CreateNixVolume) Synopsis() string {
	return fmt.Sprintf("Create an APFS volume `%s` for Nix on `%s`", a.Name, a.Disk)
}

func (a *CreateNixVolume) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *CreateNixVolume) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove the APFS volume `%s` on `%s`", a.Name, a.Disk),
	)}
}

func (a *CreateNixVolume) Execute(ctx context.Context) error {
	if err := action.ExecuteSequence(ctx, a.AppendSyntheticConf, a.CreateSyntheticObjects); err != nil {
		return err
	}
	// A leftover mount from a previous attempt; its absence is the normal
	// case, so a failure here is expected and dropped.
	if err := a.UnmountVolume.TryExecute(ctx); err != nil {
		zerolog.Ctx(ctx).Trace().Err(err).Msg("Unmounting pre-existing volume failed; continuing")
	}
	if err := action.ExecuteSequence(ctx,
		a.CreateVolume, a.CreateFstabEntry, a.SetupVolumeDaemon, a.BootstrapVolumeDaemon); err != nil {
		return err
	}
	if err := a.waitForMount(ctx); err != nil {
		return err
	}
	if err := a.EnableOwnership.TryExecute(ctx); err != nil {
		return &action.ChildError{Name: a.EnableOwnership.Action.Kind(), Err: err}
	}
	return nil
}

// waitForMount blocks until the volume daemon has mounted `/nix`, bounded
// by mountWaitTimeout. The primary signal is an fsnotify watch on `/` (the
// mount surfacing generates an event for the mount point); because mount
// events are not guaranteed to reach the watcher on every macOS release, a
// slow `diskutil info` poll runs alongside it.
func (a *CreateNixVolume) waitForMount(ctx context.Context) error {
	log := zerolog.Ctx(ctx)

	mounted := func() bool {
		_, err := action.RunCommand(ctx, nil, "/usr/sbin/diskutil", "info", "/nix")
		return err == nil
	}
	if mounted() {
		return nil
	}

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add("/"); err == nil {
			events = watcher.Events
		}
	}
	if events == nil {
		log.Debug().Msg("Filesystem watch unavailable, falling back to polling only")
	}

	deadline := time.NewTimer(mountWaitTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return action.ErrCancelled
		case <-deadline.C:
			return action.NewError(action.CodePrecondition,
				fmt.Sprintf("volume `%s` did not mount at /nix within %s", a.Name, mountWaitTimeout))
		case ev := <-events:
			if ev.Name == "/nix" && mounted() {
				return nil
			}
		case <-poll.C:
			if mounted() {
				return nil
			}
		}
	}
}

func (a *CreateNixVolume) Revert(ctx context.Context) error {
	// synthetic.conf and the firmlink are reverted last: the mount point
	// must be gone before the firmlink is.
	return action.RevertSequence(ctx,
		a.AppendSyntheticConf,
		a.CreateSyntheticObjects,
		a.CreateVolume,
		a.UnmountVolume,
		a.CreateFstabEntry,
		a.SetupVolumeDaemon,
		a.BootstrapVolumeDaemon,
		a.EnableOwnership,
	)
}
