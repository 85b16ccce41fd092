// Package layout computes the page geometry of a roster: the title position
// and one rectangle per table cell, in points with a top-left origin.
package layout

import (
	"errors"
	"fmt"

	"github.com/wudi/rosterpdf/coords"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/roster"
)

// ErrInvalidGeometry is returned for page settings or rectangles that cannot
// describe a drawable table.
var ErrInvalidGeometry = errors.New("layout: invalid geometry")

// PaperSize is a page size in points.
type PaperSize struct {
	Width, Height float64
}

var A4 = PaperSize{Width: 595.28, Height: 841.89}

// Columns is the number of table columns.
const Columns = 3

// Rect is an axis-aligned rectangle. Y grows downwards.
type Rect struct {
	X, Y, Width, Height float64
}

// Validate rejects negative extents.
func (r Rect) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: rect %vx%v at (%v,%v)", ErrInvalidGeometry, r.Width, r.Height, r.X, r.Y)
	}
	return nil
}

// Cell is one bordered table cell and the text drawn inside it.
type Cell struct {
	Rect   Rect
	Text   string
	Font   fonts.FontRef
	Origin coords.Point // text baseline start
}

// Table is the computed geometry of a single roster page.
type Table struct {
	Page        Rect
	Title       string
	TitleFont   fonts.FontRef
	TitleOrigin coords.Point
	Header      []Cell
	Rows        [][]Cell
}

// Measurer reports the rendered width of text in points.
type Measurer interface {
	Measure(text string, ref fonts.FontRef) float64
}

// Engine lays out rosters. It holds no per-call state and may be shared.
type Engine struct {
	m Measurer

	PageWidth     float64
	PageHeight    float64
	Margin        float64 // left and right table margin
	RowHeight     float64
	HeaderTop     float64
	TitleBaseline float64
	InsetX        float64
	InsetY        float64

	TitleFont    fonts.FontRef
	HeaderFont   fonts.FontRef
	BodyFont     fonts.FontRef
	HeaderLabels [Columns]string
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithPageSize sets the page dimensions.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.PageWidth = width
		e.PageHeight = height
	}
}

// WithPaperSize sets the page dimensions using a standard paper size.
func WithPaperSize(size PaperSize) Option {
	return WithPageSize(size.Width, size.Height)
}

// WithMargin sets the horizontal distance between page edge and table.
func WithMargin(margin float64) Option {
	return func(e *Engine) { e.Margin = margin }
}

func WithRowHeight(h float64) Option {
	return func(e *Engine) { e.RowHeight = h }
}

// WithHeaderTop sets the y coordinate of the header row's top edge.
func WithHeaderTop(y float64) Option {
	return func(e *Engine) { e.HeaderTop = y }
}

func WithTitleBaseline(y float64) Option {
	return func(e *Engine) { e.TitleBaseline = y }
}

// WithTextInset sets the offset of cell text from the cell's top-left corner.
func WithTextInset(dx, dy float64) Option {
	return func(e *Engine) {
		e.InsetX = dx
		e.InsetY = dy
	}
}

func WithFonts(title, header, body fonts.FontRef) Option {
	return func(e *Engine) {
		e.TitleFont = title
		e.HeaderFont = header
		e.BodyFont = body
	}
}

func WithHeaderLabels(labels [Columns]string) Option {
	return func(e *Engine) { e.HeaderLabels = labels }
}

// NewEngine creates a layout engine with the roster defaults: A4, 40pt
// margins, 20pt rows starting at y=100, the title baseline at y=60.
func NewEngine(m Measurer, opts ...Option) *Engine {
	e := &Engine{
		m:             m,
		PageWidth:     A4.Width,
		PageHeight:    A4.Height,
		Margin:        40,
		RowHeight:     20,
		HeaderTop:     100,
		TitleBaseline: 60,
		InsetX:        5,
		InsetY:        15,
		TitleFont:     fonts.FontRef{Family: fonts.DefaultFamily, Weight: fonts.Bold, Size: 16},
		HeaderFont:    fonts.FontRef{Family: fonts.DefaultFamily, Weight: fonts.Bold, Size: 12},
		BodyFont:      fonts.FontRef{Family: fonts.DefaultFamily, Weight: fonts.Regular, Size: 12},
		HeaderLabels:  [Columns]string{"Номер", "Фамилия", "Имя"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ColumnWidth returns the width of each of the equal table columns.
func (e *Engine) ColumnWidth() float64 {
	return (e.PageWidth - 2*e.Margin) / Columns
}

// Compute lays out title and records. Every record gets a row, even rows
// that fall below the bottom of the page. The title is centered on its
// measured width and is not clamped, so a title wider than the page starts
// at a negative x.
func (e *Engine) Compute(title string, records []roster.Record) (*Table, error) {
	if e.PageWidth <= 0 || e.PageHeight <= 0 {
		return nil, fmt.Errorf("%w: page size %vx%v", ErrInvalidGeometry, e.PageWidth, e.PageHeight)
	}
	if e.RowHeight <= 0 {
		return nil, fmt.Errorf("%w: row height %v", ErrInvalidGeometry, e.RowHeight)
	}

	t := &Table{
		Page:      Rect{Width: e.PageWidth, Height: e.PageHeight},
		Title:     title,
		TitleFont: e.TitleFont,
		Rows:      make([][]Cell, 0, len(records)),
	}
	if title != "" {
		w := 0.0
		if e.m != nil {
			w = e.m.Measure(title, e.TitleFont)
		}
		t.TitleOrigin = coords.Point{X: (e.PageWidth - w) / 2, Y: e.TitleBaseline}
	}

	header, err := e.row(e.HeaderTop, e.HeaderLabels, e.HeaderFont)
	if err != nil {
		return nil, err
	}
	t.Header = header

	for k, rec := range records {
		y := e.HeaderTop + e.RowHeight*float64(k+1)
		row, err := e.row(y, rec.Cells(), e.BodyFont)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (e *Engine) row(y float64, texts [Columns]string, font fonts.FontRef) ([]Cell, error) {
	cw := e.ColumnWidth()
	cells := make([]Cell, Columns)
	for i, text := range texts {
		r := Rect{X: e.Margin + float64(i)*cw, Y: y, Width: cw, Height: e.RowHeight}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		cells[i] = Cell{
			Rect:   r,
			Text:   text,
			Font:   font,
			Origin: coords.Point{X: r.X + e.InsetX, Y: r.Y + e.InsetY},
		}
	}
	return cells, nil
}
