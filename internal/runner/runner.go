// Package runner provides a narrow subprocess-execution interface for
// refresh commands. The framework never needs to know what an extraction
// pipeline does internally: command string in, exit status out.
package runner

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kballard/go-shellquote"
)

// CommandRunner executes an external refresh command and reports whether it
// succeeded. Cancelling the context terminates the process; a terminated
// command is indistinguishable from a failed one.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run splits the command shell-style and executes it, waiting for exit.
func (r *ExecRunner) Run(ctx context.Context, command string) error {
	if command == "" {
		return fmt.Errorf("runner: empty command")
	}

	words, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("runner: cannot parse command %q: %w", command, err)
	}
	if len(words) == 0 {
		return fmt.Errorf("runner: empty command")
	}

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("runner: %q failed: %w (output: %s)", command, err, truncate(string(out), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FuncRunner adapts a plain function to the CommandRunner interface.
// Used by tests and by callers that refresh in-process.
type FuncRunner func(ctx context.Context, command string) error

// Run invokes the wrapped function.
func (f FuncRunner) Run(ctx context.Context, command string) error {
	return f(ctx, command)
}
