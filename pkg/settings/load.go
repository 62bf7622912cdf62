package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadFile applies overrides from a settings file on top of base. The format
// follows the extension: .cue, .yaml/.yml or .json. The merged result is
// validated before being returned.
func LoadFile(base InstallSettings, path string) (InstallSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return InstallSettings{}, fmt.Errorf("reading settings file: %w", err)
	}

	merged := base
	switch ext := filepath.Ext(path); ext {
	case ".cue":
		if err := decodeCUE(data, &merged); err != nil {
			return InstallSettings{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &merged); err != nil {
			return InstallSettings{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &merged); err != nil {
			return InstallSettings{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return InstallSettings{}, fmt.Errorf("unsupported settings file extension %q", ext)
	}

	if err := merged.Validate(); err != nil {
		return InstallSettings{}, err
	}
	return merged, nil
}

func decodeCUE(data []byte, into *InstallSettings) error {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return err
	}
	if err := val.Validate(); err != nil {
		return err
	}
	return val.Decode(into)
}
