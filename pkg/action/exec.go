package action

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// RunCommand invokes an external command, waiting for it to exit. The
// context cancels the command cooperatively (awaiting an external process is
// a suspension point). extraEnv entries are appended to the inherited
// environment; anything an action needs the subprocess to see (such as an
// SSL certificate path) is passed here explicitly, never set process-wide.
//
// On a non-zero exit the captured stderr is folded into the returned command
// error. Stdout is returned for callers that parse tool output.
func RunCommand(ctx context.Context, extraEnv map[string]string, name string, arg ...string) ([]byte, error) {
	cmdline := name
	if len(arg) > 0 {
		cmdline = name + " " + strings.Join(arg, " ")
	}

	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Env = os.Environ()
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zerolog.Ctx(ctx).Trace().Str("command", cmdline).Msg("Running command")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.Bytes(), NewError(CodeCommand, msg).WithCommand(cmdline).Wrap(err)
	}
	return stdout.Bytes(), nil
}

// RunCommandStdin is RunCommand with bytes fed to the command's stdin.
func RunCommandStdin(ctx context.Context, stdin []byte, extraEnv map[string]string, name string, arg ...string) ([]byte, error) {
	cmdline := name
	if len(arg) > 0 {
		cmdline = name + " " + strings.Join(arg, " ")
	}

	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = os.Environ()
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zerolog.Ctx(ctx).Trace().Str("command", cmdline).Msg("Running command")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.Bytes(), NewError(CodeCommand, msg).WithCommand(cmdline).Wrap(err)
	}
	return stdout.Bytes(), nil
}
