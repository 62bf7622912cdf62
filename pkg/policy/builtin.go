package policy

// BuiltinPolicies returns the policies that ship with the installer. They
// encode guard rails that hold regardless of user-supplied rules.
func BuiltinPolicies() []Policy {
	return []Policy{
		packageURLPolicy(),
		buildUsersPolicy(),
		settingsHygienePolicy(),
	}
}

// packageURLPolicy rejects plans that would fetch the Nix tarball over an
// unauthenticated channel.
func packageURLPolicy() Policy {
	return Policy{
		Name:        "package-url",
		Description: "Requires the Nix package URL to use https or a local file",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"fetch", "security"},
		Rego: `package installer.policies.fetch

import rego.v1

deny contains violation if {
	url := input.plan.settings.nix_package_url
	startswith(url, "http://")
	violation := {
		"message": sprintf("Nix package URL %s uses plain http; use https or file://", [url]),
		"severity": "error",
	}
}

deny contains violation if {
	url := input.plan.settings.nix_package_url
	not startswith(url, "https://")
	not startswith(url, "http://")
	not startswith(url, "file://")
	violation := {
		"message": sprintf("Nix package URL %s has an unsupported scheme", [url]),
		"severity": "error",
	}
}`,
	}
}

// buildUsersPolicy sanity-checks the build user allocation before any
// users are created on the host.
func buildUsersPolicy() Policy {
	return Policy{
		Name:        "build-users",
		Description: "Checks the build user count and uid range for collisions with system ranges",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"users"},
		Rego: `package installer.policies.users

import rego.v1

deny contains violation if {
	n := input.plan.settings.daemon_user_count
	n < 1
	violation := {
		"message": "At least one build user is required for a multi-user install",
		"severity": "error",
	}
}

deny contains violation if {
	base := input.plan.settings.nix_build_user_id_base
	base < 300
	violation := {
		"message": sprintf("Build user id base %d overlaps the system uid range", [base]),
		"severity": "error",
	}
}

deny contains violation if {
	input.plan.planner != "macos-multi"
	base := input.plan.settings.nix_build_user_id_base
	base >= 300
	base < 1000
	violation := {
		"message": sprintf("Build user id base %d may collide with system accounts on this platform", [base]),
		"severity": "warning",
	}
}

deny contains violation if {
	n := input.plan.settings.daemon_user_count
	n > 128
	violation := {
		"message": sprintf("%d build users is unusually many; verify daemon_user_count", [n]),
		"severity": "warning",
	}
}`,
	}
}

// settingsHygienePolicy surfaces settings combinations that are legal but
// likely surprising.
func settingsHygienePolicy() Policy {
	return Policy{
		Name:        "settings-hygiene",
		Description: "Warns about legal but surprising settings combinations",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"settings"},
		Rego: `package installer.policies.settings

import rego.v1

deny contains violation if {
	input.plan.settings.modify_profile == false
	input.context.operation == "install"
	violation := {
		"message": "Shell profiles will not be touched; nix will not be on PATH for login shells",
		"severity": "info",
	}
}

deny contains violation if {
	input.plan.settings.force == true
	violation := {
		"message": "Force is set; existing files at managed paths will be overwritten",
		"severity": "warning",
	}
}`,
	}
}
