package plan

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/routine"
)

// ValueEnv carries the task input into shell commands.
const ValueEnv = "WORKPIPE_VALUE"

// CommandError is the failure of a run task.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// shellAction runs command through the configured shell. Config keys: shell,
// dir and env (a map of extra variables). Output lines are logged at debug
// level as they arrive.
func shellAction(title, command string, cfg pipe.Options, logger *slog.Logger) pipe.Action {
	return func(ctx *pipe.Context, value any) (any, error) {
		env := append([]string{ValueEnv + "=" + formatValue(value)}, extraEnv(cfg["env"])...)

		res, err := routine.RunCommand(ctx, cfg.GetString("shell", "sh"), []string{"-c", command},
			routine.WithDir(cfg.GetString("dir", "")),
			routine.WithEnv(env...),
			routine.WithOutputLine(func(line string) {
				logger.Debug("task output", "task", title, "line", line)
			}),
		)
		if err != nil {
			cmdErr := &CommandError{Command: command, Err: err}
			var runErr *routine.CommandError
			if errors.As(err, &runErr) {
				cmdErr.Stderr = strings.TrimSpace(runErr.Stderr)
				cmdErr.Err = runErr.Err
			}
			return nil, cmdErr
		}

		out := strings.TrimSpace(res.Stdout)
		if out == "" {
			return value, nil
		}
		return out, nil
	}
}

// formatValue renders a value for the environment. Lists become one item per
// line.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		lines := make([]string, len(v))
		for i, item := range v {
			lines[i] = formatValue(item)
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(v)
	}
}

func extraEnv(raw any) []string {
	vars, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+formatValue(vars[k]))
	}
	return env
}
