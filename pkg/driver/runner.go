package driver

import (
	"bytes"
	"context"
	stdErrors "errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
)

// CommandSpec describes one external command a driver runs.
type CommandSpec struct {
	Path             string        `yaml:"path"`
	Args             []string      `yaml:"args,omitempty"`
	Environment      []string      `yaml:"environment,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	WaitDelay        time.Duration `yaml:"wait_delay,omitempty"`
}

func (c CommandSpec) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// withName substitutes the {name} placeholder in every argument.
func (c CommandSpec) withName(name string) CommandSpec {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = strings.ReplaceAll(arg, "{name}", name)
	}
	c.Args = args
	return c
}

// CommandResult holds the captured streams of a completed command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. A non-zero exit is reported through
// CommandResult.ExitCode; an error means the command could not run to completion.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

type execRunner struct {
	logger logging.Logger
}

func NewExecRunner(logger logging.Logger) Runner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	if spec.Path == "" {
		return CommandResult{}, errors.NewValidationError("command path cannot be empty", nil)
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.WorkingDirectory
	if len(spec.Environment) > 0 {
		cmd.Env = append(os.Environ(), spec.Environment...)
	}
	// wait after the context kills the process, before abandoning its pipes
	cmd.WaitDelay = spec.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Tracef("Running command: %s", spec)

	err := cmd.Run()
	result := CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return result, errors.NewTimeoutError("command timed out", ctx.Err()).WithContext("command", spec.String())
	}
	if ctx.Err() == context.Canceled {
		return result, errors.NewCancelledError("command cancelled", ctx.Err()).WithContext("command", spec.String())
	}

	var exitErr *exec.ExitError
	if stdErrors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		r.logger.Tracef("Command exited, command: %s, exit code: %d", spec, result.ExitCode)
		return result, nil
	}
	if err != nil {
		return result, errors.NewDriverUnavailableError("failed to run command", err).WithContext("command", spec.String())
	}

	return result, nil
}
