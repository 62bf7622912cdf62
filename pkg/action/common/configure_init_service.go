package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindConfigureInitService tags ConfigureInitService in receipts and traces.
const KindConfigureInitService = "configure_init_service"

// InitSystem selects which init the daemon is registered with. Chosen by the
// planner, not probed here.
type InitSystem string

const (
	InitSystemd InitSystem = "systemd"
	InitLaunchd InitSystem = "launchd"
	InitNone    InitSystem = "none"
)

const (
	systemdServiceSrc  = "/nix/var/nix/profiles/default/lib/systemd/system/nix-daemon.service"
	systemdServiceDest = "/etc/systemd/system/nix-daemon.service"
	systemdSocketSrc   = "/nix/var/nix/profiles/default/lib/systemd/system/nix-daemon.socket"
	systemdSocketDest  = "/etc/systemd/system/nix-daemon.socket"
	tmpfilesSrc        = "/nix/var/nix/profiles/default/lib/tmpfiles.d/nix-daemon.conf"
	tmpfilesDest       = "/etc/tmpfiles.d/nix-daemon.conf"
	launchdPlistSrc    = "/nix/var/nix/profiles/default/Library/LaunchDaemons/org.nixos.nix-daemon.plist"
	launchdPlistDest   = "/Library/LaunchDaemons/org.nixos.nix-daemon.plist"
	launchdServiceName = "org.nixos.nix-daemon"
)

// ConfigureInitService registers the nix daemon with the host's init system:
// symlinked systemd units on Linux, a copied launchd plist on macOS, nothing
// when there is no init to integrate with. When an SSL cert file is
// configured it is handed to the daemon through the init system's own
// environment mechanism (a systemd drop-in or `launchctl setenv`), never the
// installer's process environment.
type ConfigureInitService struct {
	Init        InitSystem `json:"init"`
	StartDaemon bool       `json:"start_daemon"`
	SSLCertFile string     `json:"ssl_cert_file,omitempty"`
}

// PlanConfigureInitService verifies the selected init system is usable and
// that no conflicting unit files are in the way.
func PlanConfigureInitService(init InitSystem, startDaemon bool, sslCertFile string) (*action.StatefulAction, error) {
	switch init {
	case InitSystemd:
		if _, err := os.Stat("/run/systemd/system"); err != nil {
			return nil, action.NewError(action.CodePrecondition,
				"systemd was selected but the host does not appear to be booted with systemd")
		}
		if _, err := exec.LookPath("systemctl"); err != nil {
			return nil, action.NewError(action.CodePrecondition, "systemctl not found on PATH")
		}
		for _, check := range []struct{ src, dest string }{
			{systemdServiceSrc, systemdServiceDest},
			{systemdSocketSrc, systemdSocketDest},
		} {
			if err := checkUnitDest(check.src, check.dest); err != nil {
				return nil, err
			}
		}
	case InitLaunchd, InitNone:
	default:
		return nil, action.NewError(action.CodeUnsupported,
			fmt.Sprintf("unknown init system %q", init))
	}
	return action.Stateful(&ConfigureInitService{
		Init: init, StartDaemon: startDaemon, SSLCertFile: sslCertFile,
	}), nil
}

// checkUnitDest refuses a unit destination that is a foreign file or has
// drop-in overrides; a symlink already pointing at our source is fine.
func checkUnitDest(src, dest string) error {
	if fi, err := os.Lstat(dest); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return action.NewError(action.CodeExists, "a unit file not owned by this installer is present").WithPath(dest)
		}
		link, err := os.Readlink(dest)
		if err != nil {
			return action.NewError(action.CodeIO, "reading unit symlink").WithPath(dest).Wrap(err)
		}
		if link != src {
			return action.NewError(action.CodeExists,
				fmt.Sprintf("a unit symlink pointing at `%s` is present", link)).WithPath(dest)
		}
	}
	if _, err := os.Stat(dest + ".d"); err == nil {
		return action.NewError(action.CodeExists, "unit override directory is present").WithPath(dest + ".d")
	}
	return nil
}

func (a *ConfigureInitService) Kind() string { return KindConfigureInitService }

func (a *ConfigureInitService) Synopsis() string {
	switch a.Init {
	case InitSystemd:
		return "Configure Nix daemon related settings with systemd"
	case InitLaunchd:
		return "Configure Nix daemon related settings with launchctl"
	default:
		return "Leave the Nix daemon unconfigured"
	}
}

func (a *ConfigureInitService) ExecuteDescription() []action.Description {
	switch a.Init {
	case InitSystemd:
		explanation := []string{
			"Run `systemd-tmpfiles --create --prefix=/nix/var/nix`",
			fmt.Sprintf("Symlink `%s` to `%s`", systemdServiceSrc, systemdServiceDest),
			fmt.Sprintf("Symlink `%s` to `%s`", systemdSocketSrc, systemdSocketDest),
			"Run `systemctl daemon-reload`",
		}
		if a.StartDaemon {
			explanation = append(explanation,
				fmt.Sprintf("Run `systemctl enable --now %s`", systemdSocketSrc))
		}
		return []action.Description{action.Describe(a.Synopsis(), explanation...)}
	case InitLaunchd:
		explanation := []string{
			fmt.Sprintf("Copy `%s` to `%s`", launchdPlistSrc, launchdPlistDest),
		}
		if a.StartDaemon {
			explanation = append(explanation,
				fmt.Sprintf("Run `launchctl load %s`", launchdPlistDest))
		}
		return []action.Description{action.Describe(a.Synopsis(), explanation...)}
	default:
		return nil
	}
}

func (a *ConfigureInitService) RevertDescription() []action.Description {
	switch a.Init {
	case InitSystemd:
		return []action.Description{action.Describe(
			"Unconfigure Nix daemon related settings with systemd",
			fmt.Sprintf("Run `systemctl disable %s`", systemdSocketSrc),
			fmt.Sprintf("Run `systemctl disable %s`", systemdServiceSrc),
			"Run `systemd-tmpfiles --remove --prefix=/nix/var/nix`",
			"Run `systemctl daemon-reload`",
		)}
	case InitLaunchd:
		return []action.Description{action.Describe(
			"Unconfigure Nix daemon related settings with launchctl",
			fmt.Sprintf("Run `launchctl unload %s`", launchdPlistDest),
		)}
	default:
		return nil
	}
}

func (a *ConfigureInitService) Execute(ctx context.Context) error {
	switch a.Init {
	case InitSystemd:
		return a.executeSystemd(ctx)
	case InitLaunchd:
		return a.executeLaunchd(ctx)
	default:
		return nil
	}
}

func (a *ConfigureInitService) executeSystemd(ctx context.Context) error {
	if err := replaceSymlink(tmpfilesSrc, tmpfilesDest); err != nil {
		return err
	}
	if _, err := action.RunCommand(ctx, nil, "systemd-tmpfiles", "--create", "--prefix=/nix/var/nix"); err != nil {
		return err
	}
	if err := replaceSymlink(systemdServiceSrc, systemdServiceDest); err != nil {
		return err
	}
	if err := replaceSymlink(systemdSocketSrc, systemdSocketDest); err != nil {
		return err
	}
	if _, err := action.RunCommand(ctx, nil, "systemctl", "daemon-reload"); err != nil {
		return err
	}

	if a.SSLCertFile != "" {
		dropInDir := systemdServiceDest + ".d"
		if err := os.MkdirAll(dropInDir, 0o755); err != nil {
			return action.NewError(action.CodeIO, "creating drop-in directory").WithPath(dropInDir).Wrap(err)
		}
		dropIn := filepath.Join(dropInDir, "nix-ssl-cert-file.conf")
		conf := fmt.Sprintf("[Service]\nEnvironment=\"NIX_SSL_CERT_FILE=%s\"\n", a.SSLCertFile)
		if err := os.WriteFile(dropIn, []byte(conf), 0o644); err != nil {
			return action.NewError(action.CodeIO, "writing drop-in").WithPath(dropIn).Wrap(err)
		}
	}

	args := []string{"enable", systemdSocketSrc}
	if a.StartDaemon {
		args = append(args, "--now")
	}
	_, err := action.RunCommand(ctx, nil, "systemctl", args...)
	return err
}

func (a *ConfigureInitService) executeLaunchd(ctx context.Context) error {
	if err := copyFile(launchdPlistSrc, launchdPlistDest); err != nil {
		return err
	}
	if _, err := action.RunCommand(ctx, nil, "launchctl", "load", "-w", launchdPlistDest); err != nil {
		return err
	}
	if a.SSLCertFile != "" {
		if _, err := action.RunCommand(ctx, nil, "launchctl", "setenv",
			"NIX_SSL_CERT_FILE", a.SSLCertFile); err != nil {
			return err
		}
	}
	if a.StartDaemon {
		if _, err := action.RunCommand(ctx, nil, "launchctl", "kickstart", "-k",
			"system/"+launchdServiceName); err != nil {
			return err
		}
	}
	return nil
}

func (a *ConfigureInitService) Revert(ctx context.Context) error {
	switch a.Init {
	case InitSystemd:
		return a.revertSystemd(ctx)
	case InitLaunchd:
		_, err := action.RunCommand(ctx, nil, "launchctl", "unload", launchdPlistDest)
		return err
	default:
		return nil
	}
}

// revertSystemd attempts every teardown step and aggregates failures, so a
// wedged unit does not leave the symlinks behind.
func (a *ConfigureInitService) revertSystemd(ctx context.Context) error {
	var errs []error
	for _, unit := range []string{"nix-daemon.socket", "nix-daemon.service"} {
		if _, err := action.RunCommand(ctx, nil, "systemctl", "stop", unit); err != nil {
			errs = append(errs, err)
		}
		if _, err := action.RunCommand(ctx, nil, "systemctl", "disable", unit); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := action.RunCommand(ctx, nil, "systemd-tmpfiles", "--remove", "--prefix=/nix/var/nix"); err != nil {
		errs = append(errs, err)
	}
	if a.SSLCertFile != "" {
		if err := os.RemoveAll(systemdServiceDest + ".d"); err != nil {
			errs = append(errs, action.NewError(action.CodeIO, "removing drop-in directory").
				WithPath(systemdServiceDest+".d").Wrap(err))
		}
	}
	for _, dest := range []string{tmpfilesDest, systemdServiceDest, systemdSocketDest} {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			errs = append(errs, action.NewError(action.CodeIO, "removing symlink").WithPath(dest).Wrap(err))
		}
	}
	// daemon-reload after teardown is best effort: a failure here does not
	// mean the units are still registered.
	if _, err := action.RunCommand(ctx, nil, "systemctl", "daemon-reload"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func replaceSymlink(src, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return action.NewError(action.CodeIO, "removing stale symlink").WithPath(dest).Wrap(err)
	}
	if err := os.Symlink(src, dest); err != nil {
		return action.NewError(action.CodeIO, "creating symlink").WithPath(dest).Wrap(err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return action.NewError(action.CodeIO, "opening source").WithPath(src).Wrap(err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return action.NewError(action.CodeIO, "creating destination").WithPath(dest).Wrap(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return action.NewError(action.CodeIO, "copying file").WithPath(dest).Wrap(err)
	}
	return nil
}
