package export

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/rosterpdf/builder"
	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/ir/raw"
	"github.com/wudi/rosterpdf/layout"
	"github.com/wudi/rosterpdf/observability"
	"github.com/wudi/rosterpdf/roster"
	"github.com/wudi/rosterpdf/writer"
	"github.com/wudi/rosterpdf/xref"
)

func newExporter(t *testing.T, opts ...Option) *Exporter {
	t.Helper()
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	return e
}

// decodePage reads back the drawing primitives of the single page.
func decodePage(t *testing.T, data []byte) []contentstream.DrawOp {
	t.Helper()
	ops, err := decodePageOps(context.Background(), data)
	if err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return ops
}

func split(ops []contentstream.DrawOp) (rects int, texts []string) {
	for _, op := range ops {
		switch v := op.(type) {
		case contentstream.StrokeRect:
			rects++
		case contentstream.DrawText:
			texts = append(texts, v.Text)
		}
	}
	return rects, texts
}

func TestScenarioSingleRow(t *testing.T) {
	data, err := newExporter(t).Render(context.Background(), "Report", []roster.Record{{Number: 1, LastName: "Smith", FirstName: "Anna"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := xref.Verify(data); err != nil {
		t.Fatalf("verify: %v", err)
	}

	rects, texts := split(decodePage(t, data))
	if rects != 6 {
		t.Fatalf("rectangles = %d, want 6", rects)
	}
	if len(texts) != 7 {
		t.Fatalf("texts = %q", texts)
	}
	if texts[0] != "Report" {
		t.Fatalf("title = %q", texts[0])
	}
	if diff := cmp.Diff([]string{"Номер", "Фамилия", "Имя"}, texts[1:4]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "Smith", "Anna"}, texts[4:]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestScenarioEmptyRecords(t *testing.T) {
	data, err := newExporter(t).Render(context.Background(), "Empty", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	report, err := xref.Verify(data)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Root.Num != 1 || report.Info.IsZero() {
		t.Fatalf("report = %+v", report)
	}
	rects, texts := split(decodePage(t, data))
	if rects != 3 || len(texts) != 4 {
		t.Fatalf("rects=%d texts=%q", rects, texts)
	}
}

func TestScenarioOrdinalAssignment(t *testing.T) {
	records := roster.NewTable(roster.Record{LastName: "A"}, roster.Record{LastName: "B"}).Records()
	data, err := newExporter(t).Render(context.Background(), "", records)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	_, texts := split(decodePage(t, data))
	// No title: three header labels, then two rows of three cells.
	if len(texts) != 9 {
		t.Fatalf("texts = %q", texts)
	}
	if diff := cmp.Diff([]string{"1", "A", "", "2", "B", ""}, texts[3:]); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if bytes.Contains(data, []byte("/Title")) {
		t.Fatalf("empty title written to info dictionary")
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestScenarioWriteFailure(t *testing.T) {
	e := newExporter(t)
	diskFull := errors.New("disk full")
	err := e.Export(context.Background(), "Report", roster.Sample(), failingWriter{err: diskFull})
	if !errors.Is(err, ErrWrite) || !errors.Is(err, diskFull) {
		t.Fatalf("error = %v, want ErrWrite wrapping disk full", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "out.pdf")
	err = e.ExportFile(context.Background(), "Report", roster.Sample(), path)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("error = %v, want ErrWrite", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("file exists after failed export: %v", statErr)
	}
}

func TestExportFile(t *testing.T) {
	e := newExporter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.pdf")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.ExportFile(context.Background(), "Группа", roster.Sample(), path); err != nil {
		t.Fatalf("export file: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want, err := e.Render(context.Background(), "Группа", roster.Sample())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("file content differs from rendered bytes")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory holds %d entries, want 1", len(entries))
	}
}

func TestExportWritesOnce(t *testing.T) {
	var buf bytes.Buffer
	if err := newExporter(t).Export(context.Background(), "Report", roster.Sample(), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := xref.Verify(buf.Bytes()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRenderDeterministic(t *testing.T) {
	for _, subset := range []bool{true, false} {
		e := newExporter(t, WithBuilderConfig(builder.Config{SubsetFonts: subset}))
		a, err := e.Render(context.Background(), "Report", roster.Sample())
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		b, err := e.Render(context.Background(), "Report", roster.Sample())
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("subset=%v: output differs between runs", subset)
		}
	}
}

func TestSubsettingShrinksOutput(t *testing.T) {
	full, err := newExporter(t, WithBuilderConfig(builder.Config{})).Render(context.Background(), "Report", roster.Sample())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	small, err := newExporter(t).Render(context.Background(), "Report", roster.Sample())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(small) >= len(full) {
		t.Fatalf("subset output %d bytes, full %d bytes", len(small), len(full))
	}
	if _, err := xref.Verify(small); err != nil {
		t.Fatalf("verify subset: %v", err)
	}
}

func TestCyrillicTitleRoundTrip(t *testing.T) {
	const title = "Список группы"
	data, err := newExporter(t).Render(context.Background(), title, roster.Sample())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	_, texts := split(decodePage(t, data))
	if texts[0] != title {
		t.Fatalf("title = %q, want %q", texts[0], title)
	}
	if !bytes.Contains(data, []byte("/Title <FEFF")) {
		t.Fatalf("info title not written as UTF-16BE")
	}
}

func TestConsistencyErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want error
	}{
		{"zero row height", []Option{WithLayoutOptions(layout.WithRowHeight(0))}, layout.ErrInvalidGeometry},
		{"unknown font", []Option{WithLayoutOptions(layout.WithFonts(
			fonts.FontRef{Family: "Missing", Size: 16},
			fonts.FontRef{Family: "Missing", Size: 12},
			fonts.FontRef{Family: "Missing", Size: 12}))}, builder.ErrUnknownFont},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := newExporter(t, tt.opts...).Export(context.Background(), "Report", roster.Sample(), &buf)
			if !errors.Is(err, ErrConsistency) || !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want ErrConsistency wrapping %v", err, tt.want)
			}
			if buf.Len() != 0 {
				t.Fatalf("%d bytes written despite error", buf.Len())
			}
		})
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExporter(t).Render(ctx, "Report", roster.Sample())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestWriterVersion(t *testing.T) {
	data, err := newExporter(t, WithWriterConfig(writer.Config{Version: "1.4"})).Render(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.4\n")) {
		t.Fatalf("header = %q", data[:9])
	}
}

func TestObjectType(t *testing.T) {
	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	tests := []struct {
		obj  raw.Object
		want string
	}{
		{catalog, "Catalog"},
		{raw.Dict(), "dict"},
		{raw.NewStream(nil, []byte("q Q")), "stream"},
		{raw.NewArray(), "object"},
	}
	for _, tt := range tests {
		if got := objectType(tt.obj); got != tt.want {
			t.Fatalf("objectType(%T) = %q, want %q", tt.obj, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	e := newExporter(t)
	records := roster.Sample()
	data, err := e.Render(context.Background(), "Report", records)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	report, err := e.Check(context.Background(), data, "Report", len(records))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.Rects != 3*(len(records)+1) {
		t.Fatalf("rectangles = %d", report.Rects)
	}
	want := []string{"Report", "Номер", "Фамилия", "Имя",
		"1", "Иванов", "Иван",
		"2", "Сидоров", "Сидор",
		"3", "Петров", "Петр"}
	if diff := cmp.Diff(want, report.Texts); diff != "" {
		t.Fatalf("texts mismatch (-want +got):\n%s", diff)
	}
	if report.XRef.Root.Num != 1 {
		t.Fatalf("root = %v", report.XRef.Root)
	}
}

func TestCheckFailures(t *testing.T) {
	e := newExporter(t)
	data, err := e.Render(context.Background(), "Report", roster.Sample())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	tests := []struct {
		name  string
		data  []byte
		title string
		rows  int
		want  error
	}{
		{"row count", data, "Report", 4, ErrContent},
		{"missing title", data, "", 3, ErrContent},
		{"broken xref", bytes.Replace(data, []byte("startxref"), []byte("startxrex"), 1), "Report", 3, xref.ErrBrokenXRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Check(context.Background(), tt.data, tt.title, tt.rows); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildReportsFontMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	e := newExporter(t, WithLogger(logger), WithTracer(observability.LogTracer(logger)))
	if _, err := e.Render(context.Background(), "Report", roster.Sample()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if got := strings.Count(out, "msg=\"font embedded\""); got != 2 {
		t.Fatalf("logged %d embedded fonts, want 2:\n%s", got, out)
	}
	for _, key := range []string{observability.MetricGlyphCount + "=", observability.MetricFontBytes + "="} {
		if !strings.Contains(out, "span=export.build") || !strings.Contains(out, key) {
			t.Fatalf("build span lacks %s:\n%s", key, out)
		}
	}
}
