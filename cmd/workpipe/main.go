// Command workpipe runs a pipeline plan written in YAML or TOML.
//
//	workpipe [-log-level info] [-log-format text|json] [-watch] plan.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/monitor"
	"github.com/ib-77/workpipe/pkg/pipe/plan"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("workpipe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	level := fs.String("log-level", "info", "log level: debug, info, warn or error")
	format := fs.String("log-format", "text", "log format: text or json")
	watch := fs.Bool("watch", false, "run again whenever the plan file changes")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: workpipe [flags] plan.yaml")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)

	logger, err := newLogger(stderr, *level, *format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := execute(ctx, path, logger)
	if !*watch {
		return code
	}

	err = plan.Watch(ctx, path, func() {
		execute(ctx, path, logger)
	}, plan.WithLogger(logger))
	if err != nil {
		logger.Error("watch stopped", "path", path, "error", err)
		return 1
	}
	return code
}

// execute loads, builds and runs the plan once and returns the exit code.
func execute(ctx context.Context, path string, logger *slog.Logger) int {
	p, err := plan.Load(path)
	if err != nil {
		logger.Error("loading plan", "error", err)
		return 1
	}

	root, err := plan.Build(p, plan.WithLogger(logger))
	if err != nil {
		logger.Error("building plan", "error", err)
		return 1
	}

	m := monitor.New(monitor.WithLogger(logger)).Monitor(root)
	defer monitor.NewLogReporter(logger).Attach(m)()

	summary := monitor.NewSummary()
	defer summary.Track(m)()

	out, err := root.Run(p.NewContext(ctx), p.Value)
	if err != nil {
		if pipe.IsCancellationError(err) || ctx.Err() != nil {
			logger.Warn("plan interrupted", "plan", p.Title, "summary", summary.String())
		} else {
			causes := pipe.GetErrors(err)
			logger.Error("plan failed", "plan", p.Title, "failures", len(causes), "summary", summary.String())
			for _, cause := range causes {
				logger.Error("failure", "plan", p.Title, "error", cause)
			}
		}
		return 1
	}

	logger.Info("plan passed", "plan", p.Title, "output", out, "summary", summary.String())
	return 0
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
