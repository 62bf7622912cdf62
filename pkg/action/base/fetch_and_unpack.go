package base

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
)

// KindFetchAndUnpack tags FetchAndUnpack in receipts and traces.
const KindFetchAndUnpack = "fetch_and_unpack"

// FetchAndUnpack downloads a nix tarball and unpacks it into a scratch
// directory. The URL scheme is validated at plan time; the download honors
// context cancellation, and unpacking shells out to tar so xz decompression
// stays out of process.
type FetchAndUnpack struct {
	URL  string `json:"url"`
	Dest string `json:"dest"`
}

// PlanFetchAndUnpack validates the URL without touching the network.
func PlanFetchAndUnpack(rawURL, dest string) (*action.StatefulAction, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, action.NewError(action.CodePrecondition, "parsing package URL "+rawURL).Wrap(err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return nil, action.NewError(action.CodeUnsupported,
			fmt.Sprintf("unsupported URL scheme `%s` in package URL %s", u.Scheme, rawURL))
	}
	return action.Stateful(&FetchAndUnpack{URL: rawURL, Dest: dest}), nil
}

func (a *FetchAndUnpack) Kind() string { return KindFetchAndUnpack }

func (a *FetchAndUnpack) Synopsis() string {
	return fmt.Sprintf("Fetch `%s` and unpack it to `%s`", a.URL, a.Dest)
}

func (a *FetchAndUnpack) ExecuteDescription() []action.Description {
	return []action.Description{action.Describe(a.Synopsis())}
}

func (a *FetchAndUnpack) RevertDescription() []action.Description {
	return nil
}

func (a *FetchAndUnpack) Execute(ctx context.Context) error {
	if err := os.MkdirAll(a.Dest, 0o755); err != nil {
		return action.NewError(action.CodeIO, "creating scratch directory").WithPath(a.Dest).Wrap(err)
	}

	tarball := filepath.Join(a.Dest, "nix.tar.xz")
	u, err := url.Parse(a.URL)
	if err != nil {
		return action.NewError(action.CodePrecondition, "parsing package URL "+a.URL).Wrap(err)
	}
	if u.Scheme == "file" {
		tarball = u.Path
	} else if err := a.download(ctx, tarball); err != nil {
		return err
	}

	_, err = action.RunCommand(ctx, nil, "tar", "-xf", tarball, "-C", a.Dest)
	return err
}

func (a *FetchAndUnpack) download(ctx context.Context, tarball string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return action.NewError(action.CodeNetwork, "building request for "+a.URL).Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return action.ErrCancelled
		}
		return action.NewError(action.CodeNetwork, "fetching "+a.URL).Wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return action.NewError(action.CodeNetwork,
			fmt.Sprintf("fetching %s: unexpected status %s", a.URL, resp.Status))
	}

	f, err := os.Create(tarball)
	if err != nil {
		return action.NewError(action.CodeIO, "creating tarball").WithPath(tarball).Wrap(err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		if ctx.Err() != nil {
			return action.ErrCancelled
		}
		return action.NewError(action.CodeIO, "writing tarball").WithPath(tarball).Wrap(err)
	}
	return nil
}

// Revert is a no-op: the scratch directory is consumed (or cleaned up) by
// the move that follows, and reverting a download has nothing to undo.
func (a *FetchAndUnpack) Revert(ctx context.Context) error {
	return nil
}
