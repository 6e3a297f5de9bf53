package routine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
)

// CommandResult is the captured output of a finished command.
type CommandResult struct {
	Name     string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned when a command cannot start or exits non-zero.
// Err is the underlying *exec.ExitError or start failure.
type CommandError struct {
	CommandResult
	Err error
}

func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return fmt.Sprintf("command %q: %v: %s", cmd, e.Err, stderr)
	}
	return fmt.Sprintf("command %q: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type commandConfig struct {
	dir    string
	env    []string
	stdin  io.Reader
	onLine func(line string)
}

// CommandOption configures RunCommand and ExecuteCommand.
type CommandOption func(*commandConfig)

// WithDir runs the command in dir instead of the current directory.
func WithDir(dir string) CommandOption {
	return func(c *commandConfig) {
		c.dir = dir
	}
}

// WithEnv adds KEY=VALUE pairs on top of the current environment.
func WithEnv(vars ...string) CommandOption {
	return func(c *commandConfig) {
		c.env = append(c.env, vars...)
	}
}

func WithStdin(r io.Reader) CommandOption {
	return func(c *commandConfig) {
		c.stdin = r
	}
}

// WithOutputLine streams stdout to fn one line at a time while the command
// runs. The output is still captured in CommandResult.Stdout.
func WithOutputLine(fn func(line string)) CommandOption {
	return func(c *commandConfig) {
		c.onLine = fn
	}
}

// RunCommand runs name with args and waits for it to exit. The command is
// killed when ctx is done.
func RunCommand(ctx context.Context, name string, args []string, opts ...CommandOption) (CommandResult, error) {
	var cfg commandConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = cfg.dir
	cmd.Stdin = cfg.stdin
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var lines *lineWriter
	if cfg.onLine != nil {
		lines = &lineWriter{fn: cfg.onLine}
		cmd.Stdout = io.MultiWriter(&stdout, lines)
	}

	err := cmd.Run()
	if lines != nil {
		lines.flush()
	}

	res := CommandResult{
		Name:     name,
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(), // -1 when it never started
	}
	if err != nil {
		return res, &CommandError{CommandResult: res, Err: err}
	}

	return res, nil
}

// ExecuteCommand runs a command on behalf of the routine. The routine option
// dir, when set, is the default working directory.
func (r *Routine) ExecuteCommand(ctx context.Context, name string, args []string, opts ...CommandOption) (CommandResult, error) {
	if dir := r.options.GetString("dir", ""); dir != "" {
		opts = append([]CommandOption{WithDir(dir)}, opts...)
	}

	r.logger.Debug("running command", "routine", r.Key(), "name", name, "args", args)

	res, err := RunCommand(ctx, name, args, opts...)
	if err != nil {
		r.logger.Debug("command failed", "routine", r.Key(), "name", name, "exit", res.ExitCode, "error", err)
	}
	return res, err
}

// lineWriter calls fn for every complete line written to it.
type lineWriter struct {
	fn  func(string)
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}
