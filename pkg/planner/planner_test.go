package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

func testSettings(t *testing.T) settings.InstallSettings {
	t.Helper()
	s, err := settings.Default()
	if err != nil {
		t.Skipf("no default settings for this host: %v", err)
	}
	return s
}

func TestByName(t *testing.T) {
	s := testSettings(t)

	tests := []struct {
		name string
	}{
		{PlannerNameLinuxMulti},
		{PlannerNameOstree},
		{PlannerNameMacosMulti},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ByName(tt.name, s)
			if err != nil {
				t.Fatalf("ByName failed: %v", err)
			}
			if p.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.name)
			}
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	s := testSettings(t)

	_, err := ByName("windows-multi", s)
	if !errors.Is(err, &action.Error{Code: action.CodeUnsupported}) {
		t.Errorf("expected an unsupported error, got %v", err)
	}
}

func TestSettingsSnapshotIsComplete(t *testing.T) {
	s := testSettings(t)

	p, err := ByName(PlannerNameLinuxMulti, s)
	if err != nil {
		t.Fatal(err)
	}
	snapshot := p.Settings()
	if len(snapshot) != len(s.Map()) {
		t.Errorf("snapshot has %d knobs, want %d", len(snapshot), len(s.Map()))
	}
	if snapshot["nix_package_url"] != s.NixPackageURL {
		t.Errorf("snapshot url = %v, want %q", snapshot["nix_package_url"], s.NixPackageURL)
	}
}

func TestEnsureContext(t *testing.T) {
	if err := ensureContext(context.Background()); err != nil {
		t.Errorf("live context should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ensureContext(ctx); !action.IsCancelled(err) {
		t.Errorf("cancelled context should yield a cancellation error, got %v", err)
	}
}

func TestBindMountUnit(t *testing.T) {
	unit := bindMountUnit("/var/home/nix")

	if !strings.Contains(unit, "What=/var/home/nix") {
		t.Errorf("unit missing the persistence source:\n%s", unit)
	}
	if !strings.Contains(unit, "Where=/nix") {
		t.Errorf("unit missing the mount point:\n%s", unit)
	}
	if !strings.Contains(unit, "Options=bind") {
		t.Errorf("unit missing the bind option:\n%s", unit)
	}
}
