package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed but do not
	// block the install.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the install.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that block the install and
	// indicate the plan should not be retried as-is.
	SeverityCritical Severity = "critical"
)

// Policy is one rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are collected from
	// the package's `deny` set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not carry
	// their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Violation is a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Blocking reports whether the violation should stop the plan.
func (v *Violation) Blocking() bool {
	return v.Severity == SeverityError || v.Severity == SeverityCritical
}

// Result is the outcome of evaluating every enabled policy against a plan.
type Result struct {
	// Allowed indicates if the plan may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate; they do not block.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document handed to each policy as `input`.
type Input struct {
	// Plan is the serialized plan under evaluation.
	Plan *PlanDocument `json:"plan"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// PlanDocument is the policy-facing view of a plan: its identity, the
// settings snapshot it was planned under, and the kinds of its actions.
type PlanDocument struct {
	ID       string         `json:"id"`
	Planner  string         `json:"planner"`
	Version  string         `json:"version"`
	Settings map[string]any `json:"settings"`

	// Kinds lists the kind of every top-level action, in plan order.
	Kinds []string `json:"kinds"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Operation is "install" or "uninstall".
	Operation string `json:"operation"`

	// DryRun indicates the plan is being described, not executed.
	DryRun bool `json:"dry_run"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}
