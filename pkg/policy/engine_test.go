package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
)

func testSettings() map[string]any {
	return map[string]any{
		"modify_profile":         true,
		"daemon_user_count":      32,
		"nix_build_group_name":   "nixbld",
		"nix_build_group_id":     30000,
		"nix_build_user_prefix":  "nixbld",
		"nix_build_user_id_base": 30000,
		"nix_package_url":        "https://releases.nixos.org/nix/nix-2.21.2/nix-2.21.2-x86_64-linux.tar.xz",
		"extra_conf":             "",
		"ssl_cert_file":          "",
		"force":                  false,
	}
}

func testPlan(settings map[string]any) *plan.Plan {
	return plan.New("linux-multi", settings, nil)
}

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expected := []string{"build-users", "package-url", "settings-hygiene"}
	for _, want := range expected {
		found := false
		for _, p := range policies {
			if p.Name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", want)
		}
	}
}

func TestEvaluatePlan(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name         string
		mutate       func(map[string]any)
		expectAllow  bool
		expectPolicy string
	}{
		{
			name:        "default settings are allowed",
			mutate:      func(map[string]any) {},
			expectAllow: true,
		},
		{
			name: "plain http package url is blocked",
			mutate: func(s map[string]any) {
				s["nix_package_url"] = "http://releases.nixos.org/nix/nix.tar.xz"
			},
			expectAllow:  false,
			expectPolicy: "package-url",
		},
		{
			name: "unknown package url scheme is blocked",
			mutate: func(s map[string]any) {
				s["nix_package_url"] = "ftp://releases.nixos.org/nix/nix.tar.xz"
			},
			expectAllow:  false,
			expectPolicy: "package-url",
		},
		{
			name: "local file package url is allowed",
			mutate: func(s map[string]any) {
				s["nix_package_url"] = "file:///tmp/nix.tar.xz"
			},
			expectAllow: true,
		},
		{
			name: "zero build users is blocked",
			mutate: func(s map[string]any) {
				s["daemon_user_count"] = 0
			},
			expectAllow:  false,
			expectPolicy: "build-users",
		},
		{
			name: "uid base in the system range is blocked",
			mutate: func(s map[string]any) {
				s["nix_build_user_id_base"] = 200
			},
			expectAllow:  false,
			expectPolicy: "build-users",
		},
		{
			name: "force only warns",
			mutate: func(s map[string]any) {
				s["force"] = true
			},
			expectAllow:  true,
			expectPolicy: "settings-hygiene",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(settings)

			result, err := eng.EvaluatePlan(context.Background(), testPlan(settings), &Context{Operation: "install"})
			if err != nil {
				t.Fatalf("EvaluatePlan failed: %v", err)
			}
			if len(result.Warnings) != 0 {
				t.Fatalf("Unexpected evaluation warnings: %v", result.Warnings)
			}
			if result.Allowed != tt.expectAllow {
				t.Errorf("Allowed = %v, want %v (violations: %+v)", result.Allowed, tt.expectAllow, result.Violations)
			}
			if tt.expectPolicy != "" {
				found := false
				for _, v := range result.Violations {
					if v.Policy == tt.expectPolicy {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected a violation from policy %s, got %+v", tt.expectPolicy, result.Violations)
				}
			}
		})
	}
}

func TestEvaluatePlanBlockingSeverities(t *testing.T) {
	tests := []struct {
		severity Severity
		blocking bool
	}{
		{SeverityInfo, false},
		{SeverityWarning, false},
		{SeverityError, true},
		{SeverityCritical, true},
	}

	for _, tt := range tests {
		v := Violation{Severity: tt.severity}
		if v.Blocking() != tt.blocking {
			t.Errorf("Blocking() for %s = %v, want %v", tt.severity, v.Blocking(), tt.blocking)
		}
	}
}

func TestLoadPoliciesUserRule(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	dir := t.TempDir()
	rule := `package site.policies.planner

import rego.v1

deny contains violation if {
	input.plan.planner == "linux-multi"
	violation := {
		"message": "linux-multi installs are not permitted on this fleet",
		"severity": "error",
	}
}`
	if err := os.WriteFile(filepath.Join(dir, "no-linux-multi.rego"), []byte(rule), 0o644); err != nil {
		t.Fatalf("Failed to write rule: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	result, err := eng.EvaluatePlan(context.Background(), testPlan(testSettings()), &Context{Operation: "install"})
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if result.Allowed {
		t.Errorf("Plan should be blocked by the user rule, got %+v", result)
	}
}

func TestLoadPoliciesOverridesBuiltin(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	// A user policy named after a built-in replaces it.
	dir := t.TempDir()
	rule := `package site.policies.fetch

import rego.v1

deny contains violation if {
	false
	violation := {"message": "unreachable", "severity": "error"}
}`
	if err := os.WriteFile(filepath.Join(dir, "package-url.rego"), []byte(rule), 0o644); err != nil {
		t.Fatalf("Failed to write rule: %v", err)
	}
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	settings := testSettings()
	settings["nix_package_url"] = "http://releases.nixos.org/nix/nix.tar.xz"

	result, err := eng.EvaluatePlan(context.Background(), testPlan(settings), &Context{Operation: "install"})
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Override should have disabled the package-url guard, got %+v", result.Violations)
	}
}
