package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/wudi/rosterpdf/coords"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/roster"
)

// fixedMeasurer gives every rune the same width.
type fixedMeasurer float64

func (m fixedMeasurer) Measure(text string, _ fonts.FontRef) float64 {
	return float64(len([]rune(text))) * float64(m)
}

func TestEngineDefaults(t *testing.T) {
	e := NewEngine(nil)
	if e.PageWidth != 595.28 || e.PageHeight != 841.89 {
		t.Fatalf("page size = %vx%v", e.PageWidth, e.PageHeight)
	}
	if e.Margin != 40 || e.RowHeight != 20 || e.HeaderTop != 100 || e.TitleBaseline != 60 {
		t.Fatalf("unexpected defaults: %+v", e)
	}
	if e.TitleFont.Size != 16 || e.TitleFont.Weight != fonts.Bold {
		t.Fatalf("title font = %+v", e.TitleFont)
	}
	if e.HeaderLabels != [Columns]string{"Номер", "Фамилия", "Имя"} {
		t.Fatalf("labels = %v", e.HeaderLabels)
	}
}

func TestComputeScenario(t *testing.T) {
	e := NewEngine(fixedMeasurer(10))
	tbl, err := e.Compute("Report", []roster.Record{{Number: 1, LastName: "Smith", FirstName: "Anna"}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(tbl.Header) != Columns || len(tbl.Rows) != 1 || len(tbl.Rows[0]) != Columns {
		t.Fatalf("unexpected shape: header=%d rows=%d", len(tbl.Header), len(tbl.Rows))
	}

	cw := (595.28 - 80) / 3
	for i, c := range tbl.Header {
		want := Rect{X: 40 + float64(i)*cw, Y: 100, Width: cw, Height: 20}
		if c.Rect != want {
			t.Fatalf("header %d rect = %+v, want %+v", i, c.Rect, want)
		}
		if c.Origin != (coords.Point{X: want.X + 5, Y: 115}) {
			t.Fatalf("header %d origin = %+v", i, c.Origin)
		}
	}
	row := tbl.Rows[0]
	if row[0].Text != "1" || row[1].Text != "Smith" || row[2].Text != "Anna" {
		t.Fatalf("row texts = %q %q %q", row[0].Text, row[1].Text, row[2].Text)
	}
	if row[0].Rect.Y != 120 {
		t.Fatalf("row y = %v", row[0].Rect.Y)
	}
	if row[0].Font != e.BodyFont || tbl.Header[0].Font != e.HeaderFont {
		t.Fatalf("fonts not applied")
	}
	if tbl.TitleOrigin != (coords.Point{X: (595.28 - 60) / 2, Y: 60}) {
		t.Fatalf("title origin = %+v", tbl.TitleOrigin)
	}
}

func TestComputeRowCount(t *testing.T) {
	e := NewEngine(fixedMeasurer(1))
	for _, n := range []int{0, 1, 5, 60} {
		records := make([]roster.Record, n)
		tbl, err := e.Compute("t", records)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if len(tbl.Rows) != n {
			t.Fatalf("rows = %d, want %d", len(tbl.Rows), n)
		}
		if n > 0 {
			last := tbl.Rows[n-1][0].Rect.Y
			if want := 100 + 20*float64(n); last != want {
				t.Fatalf("last row y = %v, want %v", last, want)
			}
		}
	}
}

func TestComputeCentersTitle(t *testing.T) {
	p, err := fonts.Default()
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}
	e := NewEngine(p)
	for _, title := range []string{"Report", "Список группы", "W"} {
		tbl, err := e.Compute(title, nil)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		w := p.Measure(title, e.TitleFont)
		left := tbl.TitleOrigin.X
		right := e.PageWidth - (left + w)
		if math.Abs(left-right) > 1e-9 {
			t.Fatalf("%q not centered: left %v right %v", title, left, right)
		}
	}
}

func TestComputeWideTitleNotClamped(t *testing.T) {
	e := NewEngine(fixedMeasurer(100))
	tbl, err := e.Compute("abcdefghij", nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if tbl.TitleOrigin.X >= 0 {
		t.Fatalf("title x = %v, want negative", tbl.TitleOrigin.X)
	}
}

func TestComputeEmpty(t *testing.T) {
	e := NewEngine(fixedMeasurer(10))
	tbl, err := e.Compute("", nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if tbl.Title != "" || tbl.TitleOrigin != (coords.Point{}) {
		t.Fatalf("unexpected title placement %+v", tbl.TitleOrigin)
	}
	if len(tbl.Header) != Columns || len(tbl.Rows) != 0 {
		t.Fatalf("expected header only")
	}
}

func TestComputeInvalidGeometry(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"negative page", []Option{WithPageSize(-1, 100)}},
		{"zero row height", []Option{WithRowHeight(0)}},
		{"margins wider than page", []Option{WithMargin(400)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(fixedMeasurer(1), tt.opts...).Compute("x", nil)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Fatalf("error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	e := NewEngine(nil,
		WithPaperSize(PaperSize{Width: 612, Height: 792}),
		WithTextInset(2, 3),
		WithHeaderTop(50),
		WithTitleBaseline(30),
		WithHeaderLabels([Columns]string{"No", "Last", "First"}),
	)
	tbl, err := e.Compute("", []roster.Record{{Number: 4}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if tbl.Page.Width != 612 || tbl.Header[1].Text != "Last" {
		t.Fatalf("options not applied: %+v", tbl.Header[1])
	}
	if got := tbl.Rows[0][0].Origin; got != (coords.Point{X: 42, Y: 73}) {
		t.Fatalf("origin = %+v", got)
	}
}
