// Package settings holds the configurable knobs shared by every builtin
// planner. A planner's full settings snapshot is stored in the receipt and
// compared on uninstall; a receipt planned under different settings is
// refused.
package settings

import (
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"
)

// Default package URLs per target. The planner picks the one matching the
// probing host.
const (
	NixX8664LinuxURL    = "https://releases.nixos.org/nix/nix-2.11.1/nix-2.11.1-x86_64-linux.tar.xz"
	NixAarch64LinuxURL  = "https://releases.nixos.org/nix/nix-2.11.1/nix-2.11.1-aarch64-linux.tar.xz"
	NixX8664DarwinURL   = "https://releases.nixos.org/nix/nix-2.11.1/nix-2.11.1-x86_64-darwin.tar.xz"
	NixAarch64DarwinURL = "https://releases.nixos.org/nix/nix-2.11.1/nix-2.11.1-aarch64-darwin.tar.xz"
)

// InstallSettings are the knobs common to all builtin planners.
type InstallSettings struct {
	// ModifyProfile controls whether shell profiles are edited to load nix.
	ModifyProfile bool `json:"modify_profile" yaml:"modify_profile"`

	// DaemonUserCount is the number of build users to create.
	DaemonUserCount int `json:"daemon_user_count" yaml:"daemon_user_count" validate:"gte=1,lte=512"`

	// NixBuildGroupName is the build group's name.
	NixBuildGroupName string `json:"nix_build_group_name" yaml:"nix_build_group_name" validate:"required"`

	// NixBuildGroupID is the build group's gid.
	NixBuildGroupID int `json:"nix_build_group_id" yaml:"nix_build_group_id" validate:"gte=1"`

	// NixBuildUserPrefix is the build user name prefix; user numbers are
	// appended.
	NixBuildUserPrefix string `json:"nix_build_user_prefix" yaml:"nix_build_user_prefix" validate:"required"`

	// NixBuildUserIDBase is the first build user uid, ascending.
	NixBuildUserIDBase int `json:"nix_build_user_id_base" yaml:"nix_build_user_id_base" validate:"gte=1"`

	// NixPackageURL is where the nix tarball is fetched from.
	NixPackageURL string `json:"nix_package_url" yaml:"nix_package_url" validate:"required,url"`

	// ExtraConf holds extra lines for /etc/nix/nix.conf.
	ExtraConf string `json:"extra_conf,omitempty" yaml:"extra_conf,omitempty"`

	// SSLCertFile, when set, is threaded into the environment of any
	// subprocess that talks to the network during profile setup.
	SSLCertFile string `json:"ssl_cert_file,omitempty" yaml:"ssl_cert_file,omitempty" validate:"omitempty,filepath"`

	// Force recreates files found existing with different content instead
	// of refusing.
	Force bool `json:"force" yaml:"force"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the settings for the host's OS and architecture.
func Default() (InstallSettings, error) {
	return defaultFor(runtime.GOOS, runtime.GOARCH)
}

func defaultFor(goos, goarch string) (InstallSettings, error) {
	var url, userPrefix string
	var userIDBase int

	switch {
	case goos == "linux" && goarch == "amd64":
		url, userPrefix, userIDBase = NixX8664LinuxURL, "nixbld", 3000
	case goos == "linux" && goarch == "arm64":
		url, userPrefix, userIDBase = NixAarch64LinuxURL, "nixbld", 3000
	case goos == "darwin" && goarch == "amd64":
		url, userPrefix, userIDBase = NixX8664DarwinURL, "_nixbld", 300
	case goos == "darwin" && goarch == "arm64":
		url, userPrefix, userIDBase = NixAarch64DarwinURL, "_nixbld", 300
	default:
		return InstallSettings{}, fmt.Errorf("no default settings for %s/%s", goos, goarch)
	}

	return InstallSettings{
		ModifyProfile:      true,
		DaemonUserCount:    32,
		NixBuildGroupName:  "nixbld",
		NixBuildGroupID:    3000,
		NixBuildUserPrefix: userPrefix,
		NixBuildUserIDBase: userIDBase,
		NixPackageURL:      url,
	}, nil
}

// Validate checks the settings against their declared constraints.
func (s InstallSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Map flattens the settings for receipt compatibility comparison. Every knob
// appears; two planners are compatible only if these maps are equal.
func (s InstallSettings) Map() map[string]any {
	return map[string]any{
		"modify_profile":         s.ModifyProfile,
		"daemon_user_count":      s.DaemonUserCount,
		"nix_build_group_name":   s.NixBuildGroupName,
		"nix_build_group_id":     s.NixBuildGroupID,
		"nix_build_user_prefix":  s.NixBuildUserPrefix,
		"nix_build_user_id_base": s.NixBuildUserIDBase,
		"nix_package_url":        s.NixPackageURL,
		"extra_conf":             s.ExtraConf,
		"ssl_cert_file":          s.SSLCertFile,
		"force":                  s.Force,
	}
}
