package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/rosterpdf/builder"
	"github.com/wudi/rosterpdf/ir/raw"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("object %s is nil", ref)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// Write serializes g completely before issuing a single write to out.
func (w *impl) Write(ctx Context, g *builder.Graph, out io.Writer, cfg Config) error {
	data, err := w.Serialize(ctx, g, cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func (w *impl) Serialize(ctx Context, g *builder.Graph, cfg Config) ([]byte, error) {
	if g == nil || len(g.Objects) == 0 {
		return nil, errors.New("writer: empty object graph")
	}
	if err := checkReferences(g); err != nil {
		return nil, err
	}

	ordered := make([]raw.ObjectRef, 0, len(g.Objects))
	for ref := range g.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", pdfVersion(cfg))
	offsets := make(map[int]int64, len(ordered))
	for _, ref := range ordered {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		obj := g.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return nil, err
			}
		}
		offset := int64(buf.Len())
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return nil, err
		}
		buf.Write(serialized)
		offsets[ref.Num] = offset
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, obj, int64(len(serialized))); err != nil {
				return nil, err
			}
		}
	}

	xrefOffset := buf.Len()
	size := ordered[len(ordered)-1].Num + 1
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f\r\n")
	for i := 1; i < size; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
		} else {
			buf.WriteString("0000000000 65535 f\r\n")
		}
	}

	trailer := buildTrailer(size, g.Root, g.Info, fileID(buf.Bytes()[:xrefOffset]))
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func checkReferences(g *builder.Graph) error {
	if _, ok := g.Objects[g.Root]; !ok {
		return fmt.Errorf("%w: trailer /Root %s", ErrDanglingReference, g.Root)
	}
	if !g.Info.IsZero() {
		if _, ok := g.Objects[g.Info]; !ok {
			return fmt.Errorf("%w: trailer /Info %s", ErrDanglingReference, g.Info)
		}
	}
	for ref, obj := range g.Objects {
		if ref.IsZero() {
			return fmt.Errorf("%w: object number 0 is reserved", ErrDanglingReference)
		}
		for _, target := range raw.References(obj) {
			if _, ok := g.Objects[target]; !ok {
				return fmt.Errorf("%w: %s in object %s", ErrDanglingReference, target, ref)
			}
		}
	}
	return nil
}

func cancelled(ctx Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		if c, ok := ctx.(interface{ Err() error }); ok && c.Err() != nil {
			return c.Err()
		}
		return errors.New("writer: cancelled")
	default:
		return nil
	}
}
