package supervisor

import (
	"context"
	stdErrors "errors"
	"os"
	"os/exec"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
)

const waitDelay = 2 * time.Second

// Command is an argument vector; it is never handed to a shell.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

type CommandRunner func(ctx context.Context, cmd Command) Result

// NewExecRunner runs commands with os/exec and captures combined output.
// Only PATH is inherited from the controller's environment so the supervisor
// binary and its interpreter can be located.
func NewExecRunner() CommandRunner {
	return func(ctx context.Context, command Command) Result {
		cmd := exec.CommandContext(ctx, command.Path, command.Args...)
		cmd.Dir = command.Dir
		cmd.Env = append([]string{"PATH=" + os.Getenv("PATH")}, command.Env...)
		// supervisord daemonizes; children holding the output pipe must not block the caller.
		cmd.WaitDelay = waitDelay

		output, err := cmd.CombinedOutput()
		if err == nil {
			return Result{ExitCode: 0, Output: string(output)}
		}

		// A killed command also reports an ExitError, so the deadline is checked first.
		if ctx.Err() == context.DeadlineExceeded {
			return Result{ExitCode: -1, Output: string(output), Err: errors.NewTimeoutError("supervisor command timed out", ctx.Err())}
		}

		var exitErr *exec.ExitError
		if stdErrors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Output: string(output)}
		}

		return Result{ExitCode: -1, Output: string(output), Err: errors.NewIOError("failed to run "+command.Path, err)}
	}
}
