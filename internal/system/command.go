package system

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// NetworkRetries is the wait schedule for commands that talk to the
// network, such as key downloads and repository registration.
var NetworkRetries = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// Command describes one external command invocation.
type Command struct {
	Args  []string
	Stdin string

	// Target is the root the command runs in.  "" and "/" mean the host.
	Target string

	// Retries lists the waits between attempts.  A nil slice runs the
	// command exactly once.
	Retries []time.Duration
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Output holds what a command wrote.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// CommandError is returned when a command exits unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsHostRoot returns true if target denotes the running system.
func IsHostRoot(target string) bool {
	return target == "" || filepath.Clean(target) == "/"
}

// TargetArgs returns args prefixed to run inside target.
func TargetArgs(target string, args []string) []string {
	if IsHostRoot(target) {
		return args
	}
	return append([]string{"chroot", target}, args...)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Sleep waits between retries.  Defaults to the package Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Sleep: Sleep}
}

// Run executes cmd, retrying according to cmd.Retries.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	if len(cmd.Args) == 0 {
		return Output{}, errors.New("empty command")
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	args := TargetArgs(cmd.Target, cmd.Args)

	for attempt := 0; ; attempt++ {
		out, err := runOnce(ctx, args, cmd.Stdin)
		if err == nil {
			return out, nil
		}
		if attempt >= len(cmd.Retries) || ctx.Err() != nil {
			return out, err
		}

		wait := cmd.Retries[attempt]
		slog.Warn("command failed, retrying",
			"command", cmd.String(),
			"attempt", attempt+1,
			"wait", wait,
			"error", err)
		if err := sleep(ctx, wait); err != nil {
			return out, errors.Wrap(err, "retry wait")
		}
	}
}

func runOnce(ctx context.Context, args []string, stdin string) (Output, error) {
	slog.Debug("running command", "args", args)

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204 - argv built by this program
	c.Stdout = &stdout
	c.Stderr = &stderr
	if stdin != "" {
		c.Stdin = strings.NewReader(stdin)
	}

	err := c.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return out, &CommandError{
		Args:     args,
		ExitCode: exitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      err,
	}
}
