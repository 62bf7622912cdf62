// Package policy gates plan execution behind Rego rules.
//
// A small set of built-in policies always runs; operators can point the
// installer at a directory of their own .rego or .json rules to tighten
// (or annotate) what an install may do. Each policy contributes a `deny`
// set; a violation of severity error or critical blocks the plan, while
// info and warning violations are shown and ignored.
//
// Evaluating a plan:
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	result, err := eng.EvaluatePlan(ctx, p, &policy.Context{Operation: "install"})
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    fmt.Print(result.Render())
//	}
//
// A custom rule sees the plan document and the evaluation context as
// `input`:
//
//	package site.policies.mirror
//
//	import rego.v1
//
//	deny contains violation if {
//	    not startswith(input.plan.settings.nix_package_url, "https://mirror.internal/")
//	    violation := {
//	        "message": "Installs must fetch Nix from the internal mirror",
//	        "severity": "error",
//	    }
//	}
//
// A user policy whose name matches a built-in replaces it, which is the
// supported way to relax a built-in guard rail.
package policy
