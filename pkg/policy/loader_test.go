package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadFromPathsDirectory(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()

	rego := `# Blocks everything
package site.policies.block

import rego.v1

deny contains "blocked" if {
	true
}`
	if err := os.WriteFile(filepath.Join(dir, "block.rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write rego file: %v", err)
	}

	jsonPolicy := `{
	"name": "from-json",
	"description": "A policy defined in JSON",
	"rego": "package site.policies.fromjson\n\nimport rego.v1\n\ndeny contains \"nope\" if { true }",
	"severity": "warning",
	"enabled": true
}`
	if err := os.WriteFile(filepath.Join(dir, "from-json.json"), []byte(jsonPolicy), 0o644); err != nil {
		t.Fatalf("Failed to write json file: %v", err)
	}

	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a policy"), 0o644); err != nil {
		t.Fatalf("Failed to write readme: %v", err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}

	byName := map[string]Policy{}
	for _, p := range policies {
		byName[p.Name] = p
	}

	block, ok := byName["block"]
	if !ok {
		t.Fatal("Expected policy named after the .rego file")
	}
	if block.Severity != SeverityError {
		t.Errorf("Bare rego files should default to error severity, got %s", block.Severity)
	}
	if block.Description != "Blocks everything" {
		t.Errorf("Description = %q, want leading comment", block.Description)
	}

	fromJSON, ok := byName["from-json"]
	if !ok {
		t.Fatal("Expected policy from the JSON file")
	}
	if fromJSON.Severity != SeverityWarning {
		t.Errorf("JSON severity = %s, want warning", fromJSON.Severity)
	}
}

func TestLoadFromPathsMissing(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	_, err := loader.LoadFromPaths(context.Background(), []string{"/nonexistent/policies"})
	if err == nil {
		t.Fatal("Expected an error for a missing path")
	}
}

func TestLoadFromDirectorySkipsBadFiles(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write broken file: %v", err)
	}
	rego := `package site.policies.ok

import rego.v1

deny contains "x" if { false }`
	if err := os.WriteFile(filepath.Join(dir, "ok.rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write rego file: %v", err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Name != "ok" {
		t.Fatalf("Expected only the valid policy, got %+v", policies)
	}
}
