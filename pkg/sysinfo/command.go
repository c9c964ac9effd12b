package sysinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Command describes a process to run.
type Command struct {
	Name string
	Args []string
	// Shell runs Name (with Args appended) through sh -c, or cmd /C on Windows.
	Shell bool
	Dir   string
	// Env replaces the environment when non-nil.
	Env []string
	// Check turns a non-zero exit status into an error.
	Check bool
}

// Result is the captured outcome of a command.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ErrCommandFailed wraps non-zero exits when Command.Check is set.
var ErrCommandFailed = errors.New("command failed")

// IsProgramInstalled reports whether program resolves on PATH.
func IsProgramInstalled(program string) bool {
	_, err := exec.LookPath(program)
	return err == nil
}

// RunCommand runs c and captures its output. A process that starts and exits
// non-zero is reported through Result.ExitCode, not an error, unless Check is set.
func RunCommand(ctx context.Context, c Command) (*Result, error) {
	name, args := c.Name, c.Args
	if c.Shell {
		line := c.Name
		for _, a := range c.Args {
			line += " " + a
		}
		if IsWindows {
			name, args = "cmd", []string{"/C", line}
		} else {
			name, args = "sh", []string{"-c", line}
		}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if c.Check {
			return res, fmt.Errorf("%w: %s exited with %d: %s", ErrCommandFailed, name, res.ExitCode, res.Stderr)
		}
	default:
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}
