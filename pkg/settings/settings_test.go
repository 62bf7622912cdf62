package settings

import (
	"strings"
	"testing"
)

func TestDefaultFor(t *testing.T) {
	tests := []struct {
		goos, goarch string
		wantURL      string
		wantPrefix   string
		wantUIDBase  int
	}{
		{"linux", "amd64", NixX8664LinuxURL, "nixbld", 3000},
		{"linux", "arm64", NixAarch64LinuxURL, "nixbld", 3000},
		{"darwin", "amd64", NixX8664DarwinURL, "_nixbld", 300},
		{"darwin", "arm64", NixAarch64DarwinURL, "_nixbld", 300},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			s, err := defaultFor(tt.goos, tt.goarch)
			if err != nil {
				t.Fatalf("defaultFor failed: %v", err)
			}
			if s.NixPackageURL != tt.wantURL {
				t.Errorf("url = %q, want %q", s.NixPackageURL, tt.wantURL)
			}
			if s.NixBuildUserPrefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", s.NixBuildUserPrefix, tt.wantPrefix)
			}
			if s.NixBuildUserIDBase != tt.wantUIDBase {
				t.Errorf("uid base = %d, want %d", s.NixBuildUserIDBase, tt.wantUIDBase)
			}
			if err := s.Validate(); err != nil {
				t.Errorf("defaults do not validate: %v", err)
			}
		})
	}

	if _, err := defaultFor("plan9", "386"); err == nil {
		t.Error("expected an error for an unsupported target")
	}
}

func TestValidate(t *testing.T) {
	base, err := defaultFor("linux", "amd64")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*InstallSettings)
	}{
		{"zero build users", func(s *InstallSettings) { s.DaemonUserCount = 0 }},
		{"too many build users", func(s *InstallSettings) { s.DaemonUserCount = 1000 }},
		{"empty group name", func(s *InstallSettings) { s.NixBuildGroupName = "" }},
		{"zero gid", func(s *InstallSettings) { s.NixBuildGroupID = 0 }},
		{"empty user prefix", func(s *InstallSettings) { s.NixBuildUserPrefix = "" }},
		{"not a url", func(s *InstallSettings) { s.NixPackageURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestMapCoversEveryKnob(t *testing.T) {
	s, err := defaultFor("linux", "amd64")
	if err != nil {
		t.Fatal(err)
	}
	m := s.Map()

	want := []string{
		"modify_profile", "daemon_user_count", "nix_build_group_name",
		"nix_build_group_id", "nix_build_user_prefix", "nix_build_user_id_base",
		"nix_package_url", "extra_conf", "ssl_cert_file", "force",
	}
	if len(m) != len(want) {
		t.Errorf("map has %d entries, want %d", len(m), len(want))
	}
	for _, key := range want {
		if _, ok := m[key]; !ok {
			t.Errorf("map missing %q", key)
		}
	}
	if m["nix_package_url"] != NixX8664LinuxURL {
		t.Errorf("nix_package_url = %v", m["nix_package_url"])
	}
}

func TestDefaultURLsAreVersioned(t *testing.T) {
	for _, url := range []string{NixX8664LinuxURL, NixAarch64LinuxURL, NixX8664DarwinURL, NixAarch64DarwinURL} {
		if !strings.HasPrefix(url, "https://releases.nixos.org/nix/") {
			t.Errorf("unexpected release host in %q", url)
		}
	}
}
