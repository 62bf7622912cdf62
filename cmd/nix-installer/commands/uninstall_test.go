package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
)

func defaultReceipt(t *testing.T) *plan.Plan {
	t.Helper()
	s, err := settings.Default()
	if err != nil {
		t.Skipf("no default settings on this host: %v", err)
	}
	return plan.New("linux-multi", s.Map(), nil)
}

func TestVerifyReceiptCompatible(t *testing.T) {
	p := defaultReceipt(t)

	t.Run("nothing requested takes the receipt at its word", func(t *testing.T) {
		if err := verifyReceiptCompatible(p, "", ""); err != nil {
			t.Errorf("unexpected refusal: %v", err)
		}
	})

	t.Run("matching planner and default settings pass", func(t *testing.T) {
		if err := verifyReceiptCompatible(p, "linux-multi", ""); err != nil {
			t.Errorf("unexpected refusal: %v", err)
		}
	})

	t.Run("planner mismatch is refused", func(t *testing.T) {
		err := verifyReceiptCompatible(p, "macos-multi", "")
		if err == nil || !strings.Contains(err.Error(), "refusing") {
			t.Errorf("expected a refusal, got %v", err)
		}
	})

	t.Run("config with different settings is refused", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "other.yaml")
		if err := os.WriteFile(cfg, []byte("daemon_user_count: 7\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		err := verifyReceiptCompatible(p, "", cfg)
		if err == nil || !strings.Contains(err.Error(), "refusing") {
			t.Errorf("expected a refusal, got %v", err)
		}
	})

	t.Run("config matching the receipt passes", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "same.yaml")
		if err := os.WriteFile(cfg, []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := verifyReceiptCompatible(p, "", cfg); err != nil {
			t.Errorf("unexpected refusal: %v", err)
		}
	})

	t.Run("unknown planner name is refused", func(t *testing.T) {
		if err := verifyReceiptCompatible(p, "solaris-multi", ""); err == nil {
			t.Error("expected an error for an unknown planner")
		}
	})
}
