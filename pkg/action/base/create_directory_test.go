package base

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

func TestPlanCreateDirectory(t *testing.T) {
	dir := t.TempDir()

	t.Run("absent path plans uncompleted", func(t *testing.T) {
		sa, err := PlanCreateDirectory(filepath.Join(dir, "nix"), "", "", 0o755)
		if err != nil {
			t.Fatalf("planning failed: %v", err)
		}
		if sa.State != action.Uncompleted {
			t.Errorf("state = %s, want uncompleted", sa.State)
		}
	})

	t.Run("existing directory plans skipped", func(t *testing.T) {
		existing := filepath.Join(dir, "existing")
		if err := os.Mkdir(existing, 0o755); err != nil {
			t.Fatal(err)
		}
		sa, err := PlanCreateDirectory(existing, "", "", 0o755)
		if err != nil {
			t.Fatalf("planning failed: %v", err)
		}
		if sa.State != action.Skipped {
			t.Errorf("state = %s, want skipped", sa.State)
		}
	})

	t.Run("file in the way fails planning", func(t *testing.T) {
		occupied := filepath.Join(dir, "occupied")
		if err := os.WriteFile(occupied, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := PlanCreateDirectory(occupied, "", "", 0o755)
		if !errors.Is(err, &action.Error{Code: action.CodeMismatch}) {
			t.Errorf("expected a mismatch error, got %v", err)
		}
	})
}

func TestCreateDirectoryExecuteRevert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a", "b")

	sa, err := PlanCreateDirectory(path, "", "", 0o751)
	if err != nil {
		t.Fatalf("planning failed: %v", err)
	}
	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("created path is not a directory")
	}
	if info.Mode().Perm() != 0o751 {
		t.Errorf("mode = %o, want 751", info.Mode().Perm())
	}

	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("directory still present after revert")
	}
}

func TestDirectoryTreeInstallUninstall(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "nix")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}

	var tree []*action.StatefulAction
	for _, p := range []string{root, filepath.Join(root, "var"), filepath.Join(root, "store")} {
		sa, err := PlanCreateDirectory(p, "", "", 0o755)
		if err != nil {
			t.Fatalf("planning %s failed: %v", p, err)
		}
		tree = append(tree, sa)
	}

	if tree[0].State != action.Skipped {
		t.Fatalf("pre-existing root state = %s, want skipped", tree[0].State)
	}
	for _, sa := range tree[1:] {
		if sa.State != action.Uncompleted {
			t.Fatalf("child state = %s, want uncompleted", sa.State)
		}
	}

	if err := action.ExecuteSequence(ctx, tree...); err != nil {
		t.Fatalf("install walk failed: %v", err)
	}
	for _, p := range []string{filepath.Join(root, "var"), filepath.Join(root, "store")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s was not created: %v", p, err)
		}
	}
	if tree[0].State != action.Skipped {
		t.Errorf("root state after install = %s, want skipped", tree[0].State)
	}
	for _, sa := range tree[1:] {
		if sa.State != action.Completed {
			t.Errorf("child state after install = %s, want completed", sa.State)
		}
	}

	if err := action.RevertSequence(ctx, tree...); err != nil {
		t.Fatalf("uninstall walk failed: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("pre-existing root was removed: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("root still holds %d entries after uninstall", len(entries))
	}
}

func TestSkippedDirectorySurvivesRevert(t *testing.T) {
	ctx := context.Background()
	existing := filepath.Join(t.TempDir(), "keep")
	if err := os.Mkdir(existing, 0o755); err != nil {
		t.Fatal(err)
	}

	sa, err := PlanCreateDirectory(existing, "", "", 0o755)
	if err != nil {
		t.Fatalf("planning failed: %v", err)
	}
	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if _, err := os.Stat(existing); err != nil {
		t.Errorf("pre-existing directory was removed: %v", err)
	}
}
