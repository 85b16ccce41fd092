package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// errUsage marks invalid flags or arguments.
var errUsage = errors.New("usage error")

type options struct {
	output   string
	sample   bool
	title    string
	titleSet bool
	noSubset bool
	verify   bool
	workers  int
	verbose  bool
	quiet    bool
	inputs   []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("rosterpdf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rosterpdf [flags] [roster.yaml ...]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.StringVarP(&opts.output, "output", "o", "", "destination file (single input only)")
	fs.BoolVar(&opts.sample, "sample", false, "export the built-in sample roster")
	fs.StringVar(&opts.title, "title", "", "override the document title")
	fs.BoolVar(&opts.noSubset, "no-subset", false, "embed complete font programs")
	fs.BoolVar(&opts.verify, "verify", false, "check the cross-reference table of each produced file")
	fs.IntVarP(&opts.workers, "workers", "w", 0, "parallel exports (0 = auto)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	opts.titleSet = fs.Changed("title")
	opts.inputs = fs.Args()

	switch {
	case opts.verbose && opts.quiet:
		return nil, fmt.Errorf("%w: --verbose and --quiet are mutually exclusive", errUsage)
	case opts.workers < 0:
		return nil, fmt.Errorf("%w: --workers must not be negative", errUsage)
	case !opts.sample && len(opts.inputs) == 0:
		return nil, fmt.Errorf("%w: no input given (use --sample or pass roster files)", errUsage)
	case opts.output != "" && jobCount(&opts) > 1:
		return nil, fmt.Errorf("%w: --output needs exactly one input", errUsage)
	}
	return &opts, nil
}

func jobCount(opts *options) int {
	n := len(opts.inputs)
	if opts.sample {
		n++
	}
	return n
}
