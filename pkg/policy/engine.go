package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
)

// Engine holds the compiled policies and evaluates plans against them.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy is a policy whose Rego has been parsed.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	builtin := BuiltinPolicies()
	for i := range builtin {
		if err := e.compileAndStore(&builtin[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtin[i].Name, err)
		}
	}

	e.logger.Debug().Int("count", len(builtin)).Msg("Built-in policies loaded")
	return e, nil
}

// LoadPolicies loads additional policies from files or directories. A
// policy with the same name as a built-in replaces it.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.compileAndStoreLocked(&policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// EvaluatePlan runs every enabled policy against the plan. The plan may
// proceed only if no blocking violation was produced. A policy that fails
// to evaluate is reported as a warning, not a block; a broken user rule
// should not strand an otherwise valid install.
func (e *Engine) EvaluatePlan(ctx context.Context, p *plan.Plan, evalCtx *Context) (*Result, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	if evalCtx == nil {
		evalCtx = &Context{Operation: "install"}
	}
	if evalCtx.Timestamp.IsZero() {
		evalCtx.Timestamp = time.Now()
	}

	input := &Input{
		Plan:    documentFor(p),
		Context: evalCtx,
	}

	var violations []Violation
	var warnings []string
	evaluated := make([]string, 0, len(e.policies))

	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		evaluated = append(evaluated, cp.policy.Name)

		vs, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("plan", p.ID).
				Msg("Policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}
		violations = append(violations, vs...)
	}

	allowed := true
	for i := range violations {
		if violations[i].Blocking() {
			allowed = false
			break
		}
	}

	duration := time.Since(start)
	e.logger.Debug().
		Str("plan_id", p.ID).
		Int("violations", len(violations)).
		Bool("allowed", allowed).
		Dur("duration", duration).
		Msg("Plan policy evaluation completed")

	return &Result{
		Allowed:           allowed,
		Violations:        violations,
		Warnings:          warnings,
		EvaluatedPolicies: evaluated,
		EvaluatedAt:       time.Now(),
		Duration:          duration,
	}, nil
}

// documentFor flattens a plan into its policy-facing view.
func documentFor(p *plan.Plan) *PlanDocument {
	kinds := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		kinds = append(kinds, a.Action.Kind())
	}
	return &PlanDocument{
		ID:       p.ID,
		Planner:  p.PlannerName,
		Version:  p.Version,
		Settings: p.Settings,
		Kinds:    kinds,
	}
}

// evaluatePolicy collects the deny set of one policy for the given input.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	query := cp.module.Package.Path.String() + ".deny"

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, makeViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

// makeViolation turns one deny result into a Violation. Rules may emit a
// bare string or an object with message/severity keys.
func makeViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

func (e *Engine) compileAndStore(policy *Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileAndStoreLocked(policy)
}

func (e *Engine) compileAndStoreLocked(policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled")
	return nil
}

// sortedNames returns policy names in a stable order so evaluation output
// does not jitter between runs. Callers hold at least the read lock.
func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}
	return policies
}

// Render formats a result for terminal output: one line per violation,
// prefixed with its severity.
func (r *Result) Render() string {
	var b strings.Builder
	for i := range r.Violations {
		v := &r.Violations[i]
		fmt.Fprintf(&b, "%s [%s]: %s\n", v.Severity, v.Policy, v.Message)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}
