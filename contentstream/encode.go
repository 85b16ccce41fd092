package contentstream

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/rosterpdf/coords"
	"github.com/wudi/rosterpdf/fonts"
)

// GlyphEncoder converts text to the character codes of a font resource.
type GlyphEncoder interface {
	EncodeText(text string, ref fonts.FontRef) []byte
}

// Encode writes the page's primitives as PDF content stream operators,
// flipping from top-left page space to PDF user space.
func Encode(p *Page, enc GlyphEncoder) []byte {
	flip := coords.FlipY(p.Size.Height)
	names := p.ResourceNames()

	var buf bytes.Buffer
	for _, op := range p.Ops {
		switch v := op.(type) {
		case StrokeRect:
			r := v.Rect
			p0 := flip.Transform(coords.Point{X: r.X, Y: r.Y})
			p1 := flip.Transform(coords.Point{X: r.X + r.Width, Y: r.Y + r.Height})
			fmt.Fprintf(&buf, "%s %s m\n", Number(p0.X), Number(p0.Y))
			fmt.Fprintf(&buf, "%s %s l\n", Number(p1.X), Number(p0.Y))
			fmt.Fprintf(&buf, "%s %s l\n", Number(p1.X), Number(p1.Y))
			fmt.Fprintf(&buf, "%s %s l\n", Number(p0.X), Number(p1.Y))
			buf.WriteString("h\nS\n")
		case DrawText:
			o := flip.Transform(v.Origin)
			buf.WriteString("BT\n")
			fmt.Fprintf(&buf, "/%s %s Tf\n", names[v.Font.Face()], Number(v.Font.Size))
			fmt.Fprintf(&buf, "1 0 0 1 %s %s Tm\n", Number(o.X), Number(o.Y))
			fmt.Fprintf(&buf, "<%X> Tj\n", enc.EncodeText(v.Text, v.Font))
			buf.WriteString("ET\n")
		}
	}
	return buf.Bytes()
}

// Number formats v with at most three decimals and never in exponent form.
func Number(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
