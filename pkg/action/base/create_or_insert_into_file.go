package base

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindCreateOrInsertIntoFile tags CreateOrInsertIntoFile in receipts and
// traces.
const KindCreateOrInsertIntoFile = "create_or_insert_into_file"

// Position selects where inserted content lands within an existing file.
type Position string

const (
	// Beginning prepends the inserted content.
	Beginning Position = "beginning"
	// End appends the inserted content.
	End Position = "end"
)

// CreateOrInsertIntoFile inserts a block of content into a file, creating
// the file if absent, and removes exactly that block on revert. Used for
// shell profile edits, where the file is shared with content the installer
// does not own.
type CreateOrInsertIntoFile struct {
	Path     string      `json:"path"`
	User     string      `json:"user,omitempty"`
	Group    string      `json:"group,omitempty"`
	Mode     os.FileMode `json:"mode"`
	Buf      string      `json:"buf"`
	Position Position    `json:"position"`

	// Created records, at plan time, that the file did not exist; revert
	// then removes the file entirely once the block is gone.
	Created bool `json:"created"`
}

// PlanCreateOrInsertIntoFile probes the file: a file already containing the
// block is Skipped.
func PlanCreateOrInsertIntoFile(path, userName, groupName string, mode os.FileMode, buf string, position Position) (*action.StatefulAction, error) {
	a := &CreateOrInsertIntoFile{
		Path: path, User: userName, Group: groupName,
		Mode: mode, Buf: buf, Position: position,
	}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && strings.Contains(string(existing), buf):
		return action.StatefulSkipped(a), nil
	case err == nil:
		return action.Stateful(a), nil
	case os.IsNotExist(err):
		a.Created = true
		return action.Stateful(a), nil
	default:
		return nil, action.NewError(action.CodeIO, "probing file").WithPath(path).Wrap(err)
	}
}

func (a *CreateOrInsertIntoFile) Kind() string { return KindCreateOrInsertIntoFile }

func (a *CreateOrInsertIntoFile) Synopsis() string {
	return fmt.Sprintf("Create or insert into file `%s`", a.Path)
}

func (a *CreateOrInsertIntoFile) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *CreateOrInsertIntoFile) RevertDescription() []action.Description {
	return []action.Description{action.Describe(
		fmt.Sprintf("Remove inserted content from `%s`", a.Path),
	)}
}

func (a *CreateOrInsertIntoFile) Execute(ctx context.Context) error {
	existing, err := os.ReadFile(a.Path)
	if err != nil && !os.IsNotExist(err) {
		return action.NewError(action.CodeIO, "reading file").WithPath(a.Path).Wrap(err)
	}

	var out string
	switch a.Position {
	case Beginning:
		out = a.Buf + "\n" + string(existing)
	default:
		out = string(existing)
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += a.Buf + "\n"
	}

	if err := os.WriteFile(a.Path, []byte(out), a.Mode); err != nil {
		return action.NewError(action.CodeIO, "writing file").WithPath(a.Path).Wrap(err)
	}
	return chownPath(a.Path, a.User, a.Group)
}

func (a *CreateOrInsertIntoFile) Revert(ctx context.Context) error {
	existing, err := os.ReadFile(a.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return action.NewError(action.CodeIO, "reading file").WithPath(a.Path).Wrap(err)
	}

	out := strings.Replace(string(existing), a.Buf+"\n", "", 1)
	out = strings.Replace(out, a.Buf, "", 1)

	if a.Created && strings.TrimSpace(out) == "" {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return action.NewError(action.CodeIO, "removing file").WithPath(a.Path).Wrap(err)
		}
		return nil
	}
	if err := os.WriteFile(a.Path, []byte(out), a.Mode); err != nil {
		return action.NewError(action.CodeIO, "writing file").WithPath(a.Path).Wrap(err)
	}
	return nil
}
