package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// ReceiptVersion is bumped whenever the receipt format or the semantics of
// any serialized action change incompatibly. A receipt carrying any other
// version is refused outright; partially interpreting it risks reverting
// actions differently than they were applied.
const ReceiptVersion = "1"

// DefaultReceiptPath is where a successful install records its receipt.
const DefaultReceiptPath = "/nix/receipt.json"

// WriteReceipt serializes the plan, with action states as they are now, to
// path. Written after install (success or failure) so uninstall always has
// a faithful record.
func (p *Plan) WriteReceipt(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return action.NewError(action.CodeIO, "creating receipt directory").
			WithPath(filepath.Dir(path)).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return action.NewError(action.CodeIO, "writing receipt").WithPath(path).Wrap(err)
	}
	return nil
}

// ReadReceipt loads and validates a receipt. The version must match
// exactly; an unknown action kind inside surfaces from the catalog as a
// hard error.
func ReadReceipt(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, action.NewError(action.CodeIO, "reading receipt").WithPath(path).Wrap(err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding receipt %s: %w", path, err)
	}
	if p.Version != ReceiptVersion {
		return nil, fmt.Errorf(
			"receipt %s has version %q but this binary understands only %q; refusing to interpret it",
			path, p.Version, ReceiptVersion)
	}
	return &p, nil
}

// CheckCompatible reports whether this receipt can be safely reused by
// planner: the identity must match and the full settings snapshots must be
// equal. Anything else is a refusal, not a best effort.
func (p *Plan) CheckCompatible(planner Planner) error {
	if p.PlannerName != planner.Name() {
		return fmt.Errorf(
			"receipt was planned with `%s` but this is `%s`; refusing to reuse it",
			p.PlannerName, planner.Name())
	}
	if !settingsEqual(p.Settings, planner.Settings()) {
		return fmt.Errorf(
			"receipt was planned with different settings than the current ones; refusing to reuse it")
	}
	return nil
}

// settingsEqual compares snapshots through their canonical JSON encoding,
// which also absorbs the int-vs-float64 skew a decoded receipt carries.
func settingsEqual(a, b map[string]any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
