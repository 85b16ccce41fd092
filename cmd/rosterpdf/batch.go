package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/rosterpdf/export"
	"github.com/wudi/rosterpdf/roster"
)

// defaultName is used when the title gives no usable file name.
const defaultName = "document.pdf"

// job is one roster to export.
type job struct {
	input   string // empty for the sample roster
	output  string
	title   string
	records []roster.Record
}

type result struct {
	job      job
	bytes    int
	err      error
	duration time.Duration
}

// loadJobs reads every input and resolves its destination.
func loadJobs(opts *options) ([]job, error) {
	var jobs []job
	if opts.sample {
		j := job{records: roster.Sample(), title: opts.title}
		j.output = resolveOutput(opts.output, "", j.title)
		jobs = append(jobs, j)
	}
	for _, in := range opts.inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", errReadInput, in, err)
		}
		doc, err := roster.Load(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		j := job{input: in, title: doc.Title, records: doc.Rows}
		if opts.titleSet {
			j.title = opts.title
		}
		j.output = resolveOutput(opts.output, in, j.title)
		jobs = append(jobs, j)
	}
	if err := checkDistinctOutputs(jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// checkDistinctOutputs rejects batches in which two jobs would replace each
// other's file.
func checkDistinctOutputs(jobs []job) error {
	seen := make(map[string]job, len(jobs))
	for _, j := range jobs {
		key := filepath.Clean(j.output)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s and %s both write %s; use --title or -o to separate them",
				errUsage, inputName(prev), inputName(j), j.output)
		}
		seen[key] = j
	}
	return nil
}

func inputName(j job) string {
	if j.input == "" {
		return "--sample"
	}
	return j.input
}

// resolveOutput picks the destination: the explicit flag, else the title as
// a file name next to the input, else document.pdf.
func resolveOutput(flagOutput, input, title string) string {
	if flagOutput != "" {
		return flagOutput
	}
	name := sanitizeFileName(title)
	if name == "" {
		name = defaultName
	} else {
		name += ".pdf"
	}
	if input == "" {
		return name
	}
	return filepath.Join(filepath.Dir(input), name)
}

func sanitizeFileName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

// runBatch exports jobs with at most workers running at once. Every job
// runs to completion; failures are reported per job.
func runBatch(ctx context.Context, e *export.Exporter, jobs []job, workers int, verify bool) []result {
	results := make([]result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i] = exportOne(ctx, e, j, verify)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func exportOne(ctx context.Context, e *export.Exporter, j job, verify bool) result {
	start := time.Now()
	res := result{job: j}
	data, err := e.Render(ctx, j.title, j.records)
	if err != nil {
		res.err = err
		return res
	}
	if verify {
		if _, err := e.Check(ctx, data, j.title, len(j.records)); err != nil {
			res.err = fmt.Errorf("%s: %w", j.output, err)
			return res
		}
	}
	if err := e.WriteFile(ctx, data, j.output); err != nil {
		res.err = err
		return res
	}
	res.bytes = len(data)
	res.duration = time.Since(start)
	return res
}
