package base

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindSetupDefaultProfile tags SetupDefaultProfile in receipts and traces.
const KindSetupDefaultProfile = "setup_default_profile"

// SetupDefaultProfile registers the unpacked store paths in the nix
// database, installs nix and the CA certificate bundle into the system
// profile, and points NIX_SSL_CERT_FILE at the bundle for the commands it
// runs. The cert path travels in each subprocess's environment; the
// installer's own environment is never mutated.
type SetupDefaultProfile struct {
	UnpackedPath string `json:"unpacked_path"`
}

// PlanSetupDefaultProfile records the scratch path holding the unpacked
// tarball; the store paths inside it exist only after the fetch runs.
func PlanSetupDefaultProfile(unpackedPath string) (*action.StatefulAction, error) {
	return action.Stateful(&SetupDefaultProfile{UnpackedPath: unpackedPath}), nil
}

func (a *SetupDefaultProfile) Kind() string { return KindSetupDefaultProfile }

func (a *SetupDefaultProfile) Synopsis() string {
	return "Setup the default Nix profile"
}

func (a *SetupDefaultProfile) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *SetupDefaultProfile) RevertDescription() []action.Description {
	return []action.Description{action.Describe("Unset the default Nix profile")}
}

func (a *SetupDefaultProfile) Execute(ctx context.Context) error {
	nixPkg, err := a.findStorePath("-nix-")
	if err != nil {
		return err
	}
	cacertPkg, err := a.findStorePath("-nss-cacert-")
	if err != nil {
		return err
	}
	certFile := filepath.Join(cacertPkg, "etc/ssl/certs/ca-bundle.crt")

	// Load the valid-path metadata for the unpacked store paths.
	regPath := filepath.Join(a.unpackedRoot(), ".reginfo")
	reginfo, err := os.ReadFile(regPath)
	if err != nil {
		return action.NewError(action.CodeIO, "reading store registration info").WithPath(regPath).Wrap(err)
	}
	nixStore := filepath.Join(nixPkg, "bin/nix-store")
	env := map[string]string{
		"HOME":              "/root",
		"NIX_SSL_CERT_FILE": certFile,
	}
	if _, err := action.RunCommandStdin(ctx, reginfo, env, nixStore, "--load-db"); err != nil {
		return err
	}

	nixEnv := filepath.Join(nixPkg, "bin/nix-env")
	for _, pkg := range []string{nixPkg, cacertPkg} {
		if _, err := action.RunCommand(ctx, env, nixEnv,
			"--profile", "/nix/var/nix/profiles/default", "-i", pkg); err != nil {
			return err
		}
	}
	return nil
}

func (a *SetupDefaultProfile) Revert(ctx context.Context) error {
	if err := os.RemoveAll("/nix/var/nix/profiles/default"); err != nil {
		return action.NewError(action.CodeIO, "removing default profile").
			WithPath("/nix/var/nix/profiles/default").Wrap(err)
	}
	return nil
}

func (a *SetupDefaultProfile) unpackedRoot() string {
	entries, err := os.ReadDir(a.UnpackedPath)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.HasPrefix(e.Name(), "nix-") {
				return filepath.Join(a.UnpackedPath, e.Name())
			}
		}
	}
	return a.UnpackedPath
}

func (a *SetupDefaultProfile) findStorePath(marker string) (string, error) {
	entries, err := os.ReadDir("/nix/store")
	if err != nil {
		return "", action.NewError(action.CodeIO, "reading store").WithPath("/nix/store").Wrap(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), marker) && !strings.HasSuffix(e.Name(), ".drv") {
			return filepath.Join("/nix/store", e.Name()), nil
		}
	}
	return "", action.NewError(action.CodePrecondition,
		fmt.Sprintf("no store path matching `%s` found in /nix/store", marker))
}
