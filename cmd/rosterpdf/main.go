// Command rosterpdf exports YAML rosters as single-page PDF tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/wudi/rosterpdf/builder"
	"github.com/wudi/rosterpdf/export"
	"github.com/wudi/rosterpdf/observability"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "rosterpdf: %v\n", err)
		return exitCodeFor(err)
	}

	logger := newLogger(stderr, opts)
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	jobs, err := loadJobs(opts)
	if err != nil {
		logger.Error("load failed", observability.Error("error", err))
		return exitCodeFor(err)
	}

	e, err := export.New(
		export.WithLogger(logger),
		export.WithTracer(observability.LogTracer(logger)),
		export.WithBuilderConfig(builder.Config{
			SubsetFonts: !opts.noSubset,
			Producer:    "rosterpdf " + Version,
		}),
	)
	if err != nil {
		logger.Error("init failed", observability.Error("error", err))
		return ExitGeneral
	}

	workers := opts.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	code := ExitSuccess
	for _, res := range runBatch(ctx, e, jobs, workers, opts.verify) {
		if res.err != nil {
			logger.Error("export failed", observability.String("output", res.job.output), observability.Error("error", res.err))
			if c := exitCodeFor(res.err); c > code {
				code = c
			}
			continue
		}
		logger.Info("exported",
			observability.String("output", res.job.output),
			observability.Int("rows", len(res.job.records)),
			observability.Int(observability.MetricOutputBytes, res.bytes),
			observability.Duration(observability.MetricStageTime, res.duration))
	}
	return code
}

func newLogger(w io.Writer, opts *options) observability.Logger {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelError
	}
	return observability.NewSlog(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
