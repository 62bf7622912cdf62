package base

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

func TestPlanCreateFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("identical content plans skipped", func(t *testing.T) {
		path := filepath.Join(dir, "same")
		if err := os.WriteFile(path, []byte("content\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		sa, err := PlanCreateFile(path, "", "", 0o644, "content\n", false)
		if err != nil {
			t.Fatalf("planning failed: %v", err)
		}
		if sa.State != action.Skipped {
			t.Errorf("state = %s, want skipped", sa.State)
		}
	})

	t.Run("different content without force is refused", func(t *testing.T) {
		path := filepath.Join(dir, "different")
		if err := os.WriteFile(path, []byte("theirs\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := PlanCreateFile(path, "", "", 0o644, "ours\n", false)
		if !errors.Is(err, &action.Error{Code: action.CodeExists}) {
			t.Errorf("expected an exists error, got %v", err)
		}
	})

	t.Run("different content with force plans uncompleted", func(t *testing.T) {
		path := filepath.Join(dir, "forced")
		if err := os.WriteFile(path, []byte("theirs\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		sa, err := PlanCreateFile(path, "", "", 0o644, "ours\n", true)
		if err != nil {
			t.Fatalf("planning failed: %v", err)
		}
		if sa.State != action.Uncompleted {
			t.Errorf("state = %s, want uncompleted", sa.State)
		}
	})
}

func TestCreateFileExecuteRevert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nix.conf")

	sa, err := PlanCreateFile(path, "", "", 0o664, "build-users-group = nixbld\n", false)
	if err != nil {
		t.Fatalf("planning failed: %v", err)
	}
	if err := sa.TryExecute(ctx); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file was not created: %v", err)
	}
	if string(data) != "build-users-group = nixbld\n" {
		t.Errorf("content = %q", data)
	}

	if err := sa.TryRevert(ctx); err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present after revert")
	}
}
