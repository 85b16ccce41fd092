package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFamily is the family served by Default. The Go fonts cover the Latin
// and Cyrillic ranges the roster needs.
const DefaultFamily = "Go"

// Provider resolves FontRefs to faces. It is read-only after construction.
type Provider struct {
	faces map[FaceKey]*Face
}

// NewProvider indexes faces by their key. Later faces win on duplicates.
func NewProvider(faces ...*Face) *Provider {
	p := &Provider{faces: make(map[FaceKey]*Face, len(faces))}
	for _, f := range faces {
		if f != nil {
			p.faces[f.Key] = f
		}
	}
	return p
}

var (
	defaultOnce     sync.Once
	defaultProvider *Provider
	defaultErr      error
)

// Default returns the shared provider for the Go Regular and Go Bold faces.
func Default() (*Provider, error) {
	defaultOnce.Do(func() {
		regular, err := LoadTrueType(DefaultFamily, Regular, goregular.TTF)
		if err != nil {
			defaultErr = fmt.Errorf("load %s regular: %w", DefaultFamily, err)
			return
		}
		bold, err := LoadTrueType(DefaultFamily, Bold, gobold.TTF)
		if err != nil {
			defaultErr = fmt.Errorf("load %s bold: %w", DefaultFamily, err)
			return
		}
		defaultProvider = NewProvider(regular, bold)
	})
	return defaultProvider, defaultErr
}

// Face returns the face for ref, ignoring its size.
func (p *Provider) Face(ref FontRef) (*Face, bool) {
	f, ok := p.faces[ref.Face()]
	return f, ok
}

// WidthOf returns the advance of r in 1/1000 em. Runes outside the table, and
// faces the provider does not know, fall back to DefaultAdvance.
func (p *Provider) WidthOf(r rune, ref FontRef) int {
	f, ok := p.Face(ref)
	if !ok {
		return DefaultAdvance
	}
	g, ok := f.Lookup(r)
	if !ok {
		return DefaultAdvance
	}
	return g.Advance
}

// GlyphOf returns the glyph ID for r, 0 (.notdef) when unmapped.
func (p *Provider) GlyphOf(r rune, ref FontRef) uint16 {
	f, ok := p.Face(ref)
	if !ok {
		return 0
	}
	g, _ := f.Lookup(r)
	return g.ID
}

// EncodeText returns text as two-byte big-endian glyph IDs, the code layout
// of the Identity-H encoding.
func (p *Provider) EncodeText(text string, ref FontRef) []byte {
	runes := Runes(text)
	out := make([]byte, 0, 2*len(runes))
	for _, r := range runes {
		gid := p.GlyphOf(r, ref)
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out
}
