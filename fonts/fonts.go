package fonts

import (
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// DefaultAdvance is the width, in 1/1000 em, reported for runes the metrics
// table does not cover. It is also written as the CID font /DW so that
// .notdef glyphs render with the advance they were measured with.
const DefaultAdvance = 500

// Weight selects the regular or bold member of a family.
type Weight int

const (
	Regular Weight = iota
	Bold
)

func (w Weight) String() string {
	if w == Bold {
		return "Bold"
	}
	return "Regular"
}

// FaceKey identifies a face independently of the size it is used at.
type FaceKey struct {
	Family string
	Weight Weight
}

func (k FaceKey) String() string { return k.Family + "-" + k.Weight.String() }

// FontRef names a face at a given size in points.
type FontRef struct {
	Family string
	Weight Weight
	Size   float64
}

// Face drops the size from r.
func (r FontRef) Face() FaceKey { return FaceKey{Family: r.Family, Weight: r.Weight} }

// Glyph is one entry of the metrics table.
type Glyph struct {
	ID      uint16
	Advance int // 1/1000 em
}

// Face is a parsed TrueType font together with its metrics table. A Face is
// immutable once LoadTrueType returns and may be shared between goroutines.
type Face struct {
	Key            FaceKey
	PostScriptName string
	Data           []byte
	UnitsPerEm     int
	NumGlyphs      int

	// Descriptor metrics, in 1/1000 em with PDF sign conventions.
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	StemV       float64
	BBox        [4]float64

	glyphs   map[rune]Glyph
	advances map[uint16]int
}

// supportedRanges lists the code points the metrics table is built for:
// Basic Latin, Latin-1 and Latin Extended-A, Cyrillic, general punctuation.
var supportedRanges = [][2]rune{
	{0x0020, 0x007E},
	{0x00A0, 0x017F},
	{0x0400, 0x04FF},
	{0x2010, 0x2026},
}

// LoadTrueType parses a TrueType font and builds the metrics table for the
// supported ranges. Advances are scaled to 1000 units per em.
func LoadTrueType(family string, weight Weight, data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(family)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	f := &Face{
		Key:            FaceKey{Family: family, Weight: weight},
		PostScriptName: baseName,
		Data:           data,
		UnitsPerEm:     int(unitsPerEm),
		NumGlyphs:      font.NumGlyphs(),
		ItalicAngle:    italicAngle(font),
		StemV:          80,
		glyphs:         make(map[rune]Glyph),
		advances:       make(map[uint16]int),
	}
	if weight == Bold {
		f.StemV = 140
	}

	for _, rng := range supportedRanges {
		for r := rng[0]; r <= rng[1]; r++ {
			gid, err := font.GlyphIndex(buf, r)
			if err != nil || gid == 0 {
				continue
			}
			adv, err := font.GlyphAdvance(buf, gid, ppem, xfont.HintingNone)
			if err != nil {
				continue
			}
			w := int(math.Round(scaleFixed(adv, unitsPerEm)))
			f.glyphs[r] = Glyph{ID: uint16(gid), Advance: w}
			f.advances[uint16(gid)] = w
		}
	}
	if len(f.glyphs) == 0 {
		return nil, fmt.Errorf("font %s maps none of the supported characters", baseName)
	}

	metrics, err := font.Metrics(buf, ppem, xfont.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	f.Ascent = math.Round(scaleFixed(metrics.Ascent, unitsPerEm))
	f.Descent = -math.Round(scaleFixed(metrics.Descent, unitsPerEm))
	f.CapHeight = math.Round(scaleFixed(metrics.CapHeight, unitsPerEm))
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}

	// sfnt reports bounds with the y axis pointing down.
	bounds, err := font.Bounds(buf, ppem, xfont.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("read bounds: %w", err)
	}
	f.BBox = [4]float64{
		math.Round(scaleFixed(bounds.Min.X, unitsPerEm)),
		math.Round(-scaleFixed(bounds.Max.Y, unitsPerEm)),
		math.Round(scaleFixed(bounds.Max.X, unitsPerEm)),
		math.Round(-scaleFixed(bounds.Min.Y, unitsPerEm)),
	}
	return f, nil
}

// Lookup returns the table entry for r.
func (f *Face) Lookup(r rune) (Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

// Advance returns the width of glyph id in 1/1000 em, or DefaultAdvance for
// glyphs outside the table.
func (f *Face) Advance(id uint16) int {
	if w, ok := f.advances[id]; ok {
		return w
	}
	return DefaultAdvance
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
