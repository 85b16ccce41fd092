package contentstream

import (
	"strconv"

	"github.com/wudi/rosterpdf/coords"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/ir/raw"
	"github.com/wudi/rosterpdf/layout"
)

// DrawOp is a single drawing primitive in top-left page space.
type DrawOp interface {
	isDrawOp()
}

// StrokeRect outlines a rectangle with the default 1pt black pen.
type StrokeRect struct {
	Rect layout.Rect
}

// DrawText places a single line of text with its baseline starting at Origin.
type DrawText struct {
	Text   string
	Origin coords.Point
	Font   fonts.FontRef
}

func (StrokeRect) isDrawOp() {}
func (DrawText) isDrawOp()   {}

// Page is the ordered list of primitives for one page. Doc is the catalog
// the page belongs to; it is set when the page is added to a document.
type Page struct {
	Size layout.Rect
	Ops  []DrawOp
	Doc  raw.ObjectRef
}

// Compose turns a computed table into drawing primitives. The title comes
// first, then each header cell and each data cell as a border followed by its
// text.
func Compose(t *layout.Table) *Page {
	p := &Page{Size: t.Page}
	if t.Title != "" {
		p.Ops = append(p.Ops, DrawText{Text: t.Title, Origin: t.TitleOrigin, Font: t.TitleFont})
	}
	p.addCells(t.Header)
	for _, row := range t.Rows {
		p.addCells(row)
	}
	return p
}

func (p *Page) addCells(cells []layout.Cell) {
	for _, c := range cells {
		p.Ops = append(p.Ops,
			StrokeRect{Rect: c.Rect},
			DrawText{Text: c.Text, Origin: c.Origin, Font: c.Font},
		)
	}
}

// Fonts returns the distinct faces used by text operations in first-use
// order.
func (p *Page) Fonts() []fonts.FaceKey {
	var out []fonts.FaceKey
	seen := make(map[fonts.FaceKey]bool)
	for _, op := range p.Ops {
		dt, ok := op.(DrawText)
		if !ok {
			continue
		}
		key := dt.Font.Face()
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// ResourceName is the /Font resource name of the i-th face in Fonts order.
func ResourceName(i int) string { return "F" + strconv.Itoa(i+1) }

// ResourceNames maps each face of the page to its resource name.
func (p *Page) ResourceNames() map[fonts.FaceKey]string {
	faces := p.Fonts()
	out := make(map[fonts.FaceKey]string, len(faces))
	for i, f := range faces {
		out[f] = ResourceName(i)
	}
	return out
}

// Rects returns the rectangles of all StrokeRect operations in paint order.
func (p *Page) Rects() []layout.Rect {
	var out []layout.Rect
	for _, op := range p.Ops {
		if r, ok := op.(StrokeRect); ok {
			out = append(out, r.Rect)
		}
	}
	return out
}
