// Package export runs the whole pipeline for one roster: layout, drawing
// primitives, object graph, serialization and the final write.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wudi/rosterpdf/builder"
	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/layout"
	"github.com/wudi/rosterpdf/observability"
	"github.com/wudi/rosterpdf/roster"
	"github.com/wudi/rosterpdf/writer"
)

var (
	// ErrConsistency marks an internal defect such as a dangling reference
	// or invalid geometry. Nothing is written when it is returned.
	ErrConsistency = errors.New("export: inconsistent document")
	// ErrWrite marks a failure of the destination.
	ErrWrite = errors.New("export: write failed")
)

// DefaultProducer is written to the info dictionary.
const DefaultProducer = "rosterpdf"

// Exporter turns a title and records into a PDF document. It holds no
// per-export state and may be used from several goroutines.
type Exporter struct {
	provider   *fonts.Provider
	logger     observability.Logger
	tracer     observability.Tracer
	writerCfg  writer.Config
	builderCfg builder.Config
	layoutOpts []layout.Option
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithProvider replaces the embedded Go fonts.
func WithProvider(p *fonts.Provider) Option {
	return func(e *Exporter) { e.provider = p }
}

func WithLogger(l observability.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

func WithTracer(t observability.Tracer) Option {
	return func(e *Exporter) { e.tracer = t }
}

func WithWriterConfig(cfg writer.Config) Option {
	return func(e *Exporter) { e.writerCfg = cfg }
}

// WithBuilderConfig controls font subsetting and the producer string.
func WithBuilderConfig(cfg builder.Config) Option {
	return func(e *Exporter) { e.builderCfg = cfg }
}

// WithLayoutOptions passes options through to the layout engine.
func WithLayoutOptions(opts ...layout.Option) Option {
	return func(e *Exporter) { e.layoutOpts = append(e.layoutOpts, opts...) }
}

// New returns an exporter with subsetting enabled, the Go fonts, and no
// logging or tracing.
func New(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		logger:     observability.NopLogger{},
		tracer:     observability.NopTracer(),
		writerCfg:  writer.Config{Version: writer.PDF17},
		builderCfg: builder.Config{SubsetFonts: true, Producer: DefaultProducer},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		p, err := fonts.Default()
		if err != nil {
			return nil, fmt.Errorf("export: load fonts: %w", err)
		}
		e.provider = p
	}
	return e, nil
}

// Render produces the complete document bytes.
func (e *Exporter) Render(ctx context.Context, title string, records []roster.Record) ([]byte, error) {
	table, err := e.layout(ctx, title, records)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := contentstream.Compose(table)

	g, err := e.build(ctx, page, title)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.serialize(ctx, g)
}

func (e *Exporter) layout(ctx context.Context, title string, records []roster.Record) (*layout.Table, error) {
	_, span := e.tracer.StartSpan(ctx, "export.layout")
	defer span.Finish()
	span.SetTag(observability.MetricRowCount, len(records))

	table, err := layout.NewEngine(e.provider, e.layoutOpts...).Compute(title, records)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: %w", ErrConsistency, err)
	}
	return table, nil
}

func (e *Exporter) build(ctx context.Context, page *contentstream.Page, title string) (*builder.Graph, error) {
	_, span := e.tracer.StartSpan(ctx, "export.build")
	defer span.Finish()

	g, err := builder.NewBuilder(e.provider, e.builderCfg).
		SetPage(page).
		SetInfo(builder.Info{Title: title}).
		Build()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: %w", ErrConsistency, err)
	}
	span.SetTag(observability.MetricObjectCount, len(g.Objects))
	glyphs, fontBytes := 0, 0
	for _, st := range g.FontStats {
		glyphs += st.Glyphs
		fontBytes += st.Bytes
		e.logger.Debug("font embedded",
			observability.String("resource", st.Resource),
			observability.String("base_font", st.BaseFont),
			observability.Int(observability.MetricGlyphCount, st.Glyphs),
			observability.Int(observability.MetricFontBytes, st.Bytes))
	}
	span.SetTag(observability.MetricGlyphCount, glyphs)
	span.SetTag(observability.MetricFontBytes, fontBytes)
	return g, nil
}

func (e *Exporter) serialize(ctx context.Context, g *builder.Graph) ([]byte, error) {
	_, span := e.tracer.StartSpan(ctx, "export.serialize")
	defer span.Finish()

	w := (&writer.WriterBuilder{}).WithInterceptor(logInterceptor{l: e.logger}).Build()
	data, err := w.Serialize(ctx, g, e.writerCfg)
	if err != nil {
		span.SetError(err)
		if errors.Is(err, writer.ErrDanglingReference) {
			return nil, fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		return nil, err
	}
	span.SetTag(observability.MetricOutputBytes, len(data))
	e.logger.Debug("document serialized",
		observability.Int(observability.MetricObjectCount, len(g.Objects)),
		observability.Int(observability.MetricOutputBytes, len(data)))
	return data, nil
}

// Export renders the document and hands it to w in a single write. Nothing
// reaches w if rendering fails.
func (e *Exporter) Export(ctx context.Context, title string, records []roster.Record, w io.Writer) error {
	data, err := e.Render(ctx, title, records)
	if err != nil {
		return err
	}

	_, span := e.tracer.StartSpan(ctx, "export.write")
	defer span.Finish()
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// ExportFile writes the document to path atomically: the bytes go to a
// temporary file in the same directory which is renamed over path once
// synced. On failure path is left untouched.
func (e *Exporter) ExportFile(ctx context.Context, title string, records []roster.Record, path string) error {
	data, err := e.Render(ctx, title, records)
	if err != nil {
		return err
	}
	return e.WriteFile(ctx, data, path)
}

// WriteFile stores rendered document bytes at path with the same atomic
// replacement as ExportFile.
func (e *Exporter) WriteFile(ctx context.Context, data []byte, path string) (err error) {
	_, span := e.tracer.StartSpan(ctx, "export.write")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	span.SetTag("path", path)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	e.logger.Debug("document written", observability.String("path", path), observability.Int(observability.MetricOutputBytes, len(data)))
	return nil
}
