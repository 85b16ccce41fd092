package contentstream

import (
	"errors"
	"fmt"
	"math"

	"github.com/wudi/rosterpdf/coords"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/layout"
)

// GlyphDecoder converts character codes of a font resource back to text.
type GlyphDecoder interface {
	DecodeGlyphs(codes []byte, ref fonts.FontRef) string
}

// Decode parses a content stream produced by Encode back into drawing
// primitives in top-left page space. resources maps /Font resource names to
// faces. Only the operators Encode emits are understood; stroked paths must
// be axis-aligned rectangles.
func Decode(ctx Context, data []byte, pageHeight float64, resources map[string]fonts.FaceKey, dec GlyphDecoder) ([]DrawOp, error) {
	unflip, err := coords.FlipY(pageHeight).Inverse()
	if err != nil {
		return nil, err
	}
	d := &decoder{unflip: unflip, resources: resources, dec: dec}

	p := NewProcessor()
	p.RegisterHandler("m", HandlerFunc(d.moveTo))
	p.RegisterHandler("l", HandlerFunc(d.lineTo))
	p.RegisterHandler("re", HandlerFunc(d.rect))
	p.RegisterHandler("h", HandlerFunc(func(*ExecutionContext, []Operand) error { return nil }))
	p.RegisterHandler("S", HandlerFunc(d.stroke))
	p.RegisterHandler("BT", HandlerFunc(d.beginText))
	p.RegisterHandler("ET", HandlerFunc(d.endText))
	p.RegisterHandler("Tf", HandlerFunc(d.setFont))
	p.RegisterHandler("Tm", HandlerFunc(d.setMatrix))
	p.RegisterHandler("Td", HandlerFunc(d.moveText))
	p.RegisterHandler("Tj", HandlerFunc(d.showText))

	if err := p.Process(ctx, data, &GraphicsState{CTM: coords.Identity(), LineWidth: 1}); err != nil {
		return nil, err
	}
	return d.ops, nil
}

type decoder struct {
	unflip    coords.Matrix
	resources map[string]fonts.FaceKey
	dec       GlyphDecoder

	path []coords.Point
	ops  []DrawOp
}

func numbers(operands []Operand, n int) ([]float64, error) {
	if len(operands) != n {
		return nil, fmt.Errorf("want %d operands, got %d", n, len(operands))
	}
	out := make([]float64, n)
	for i, o := range operands {
		num, ok := o.(NumberOperand)
		if !ok {
			return nil, fmt.Errorf("operand %d is a %s", i, o.Type())
		}
		out[i] = num.Value
	}
	return out, nil
}

func (d *decoder) moveTo(_ *ExecutionContext, ops []Operand) error {
	v, err := numbers(ops, 2)
	if err != nil {
		return err
	}
	d.path = append(d.path[:0], coords.Point{X: v[0], Y: v[1]})
	return nil
}

func (d *decoder) lineTo(_ *ExecutionContext, ops []Operand) error {
	v, err := numbers(ops, 2)
	if err != nil {
		return err
	}
	if len(d.path) == 0 {
		return errors.New("no current point")
	}
	d.path = append(d.path, coords.Point{X: v[0], Y: v[1]})
	return nil
}

func (d *decoder) rect(_ *ExecutionContext, ops []Operand) error {
	v, err := numbers(ops, 4)
	if err != nil {
		return err
	}
	x, y, w, h := v[0], v[1], v[2], v[3]
	d.path = append(d.path[:0],
		coords.Point{X: x, Y: y}, coords.Point{X: x + w, Y: y},
		coords.Point{X: x + w, Y: y + h}, coords.Point{X: x, Y: y + h})
	return nil
}

func (d *decoder) stroke(_ *ExecutionContext, _ []Operand) error {
	if len(d.path) != 4 {
		return fmt.Errorf("path with %d points is not a rectangle", len(d.path))
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range d.path {
		q := d.unflip.Transform(pt)
		minX, maxX = math.Min(minX, q.X), math.Max(maxX, q.X)
		minY, maxY = math.Min(minY, q.Y), math.Max(maxY, q.Y)
	}
	for _, pt := range d.path {
		q := d.unflip.Transform(pt)
		if (q.X != minX && q.X != maxX) || (q.Y != minY && q.Y != maxY) {
			return errors.New("path is not an axis-aligned rectangle")
		}
	}
	d.ops = append(d.ops, StrokeRect{Rect: layout.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}})
	d.path = d.path[:0]
	return nil
}

func (d *decoder) beginText(ec *ExecutionContext, _ []Operand) error {
	if ec.TextState.InText {
		return errors.New("nested BT")
	}
	ec.TextState.InText = true
	ec.TextState.TextMatrix = coords.Identity()
	ec.TextState.TextLineMatrix = coords.Identity()
	return nil
}

func (d *decoder) endText(ec *ExecutionContext, _ []Operand) error {
	if !ec.TextState.InText {
		return errors.New("ET without BT")
	}
	ec.TextState.InText = false
	return nil
}

func (d *decoder) setFont(ec *ExecutionContext, ops []Operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("want 2 operands, got %d", len(ops))
	}
	name, ok := ops[0].(NameOperand)
	if !ok {
		return errors.New("font operand is not a name")
	}
	size, ok := ops[1].(NumberOperand)
	if !ok {
		return errors.New("size operand is not a number")
	}
	if _, ok := d.resources[name.Value]; !ok {
		return fmt.Errorf("unknown font resource /%s", name.Value)
	}
	ec.TextState.Font = name.Value
	ec.TextState.FontSize = size.Value
	return nil
}

func (d *decoder) setMatrix(ec *ExecutionContext, ops []Operand) error {
	v, err := numbers(ops, 6)
	if err != nil {
		return err
	}
	m := coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
	ec.TextState.TextMatrix = m
	ec.TextState.TextLineMatrix = m
	return nil
}

func (d *decoder) moveText(ec *ExecutionContext, ops []Operand) error {
	v, err := numbers(ops, 2)
	if err != nil {
		return err
	}
	ec.TextState.TextLineMatrix = coords.Translate(v[0], v[1]).Multiply(ec.TextState.TextLineMatrix)
	ec.TextState.TextMatrix = ec.TextState.TextLineMatrix
	return nil
}

func (d *decoder) showText(ec *ExecutionContext, ops []Operand) error {
	ts := ec.TextState
	if !ts.InText {
		return errors.New("Tj outside BT")
	}
	if ts.Font == "" {
		return errors.New("no font selected")
	}
	if len(ops) != 1 {
		return fmt.Errorf("want 1 operand, got %d", len(ops))
	}
	str, ok := ops[0].(StringOperand)
	if !ok {
		return errors.New("operand is not a string")
	}
	face := d.resources[ts.Font]
	ref := fonts.FontRef{Family: face.Family, Weight: face.Weight, Size: ts.FontSize}
	origin := d.unflip.Transform(coords.Point{X: ts.TextMatrix[4], Y: ts.TextMatrix[5]})
	d.ops = append(d.ops, DrawText{Text: d.dec.DecodeGlyphs(str.Value, ref), Origin: origin, Font: ref})
	return nil
}
