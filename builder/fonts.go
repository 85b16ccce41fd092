package builder

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/ir/raw"
)

// fontUsage records the glyphs one face draws on the page.
type fontUsage struct {
	face    *fonts.Face
	glyphs  map[uint16]bool
	unicode map[uint16]rune // first code point drawn with each glyph
}

func collectUsage(page *contentstream.Page, provider *fonts.Provider) (map[fonts.FaceKey]*fontUsage, error) {
	out := make(map[fonts.FaceKey]*fontUsage)
	for _, op := range page.Ops {
		dt, ok := op.(contentstream.DrawText)
		if !ok {
			continue
		}
		key := dt.Font.Face()
		u, ok := out[key]
		if !ok {
			face, found := provider.Face(dt.Font)
			if !found {
				return nil, fmt.Errorf("%w: %s", ErrUnknownFont, key)
			}
			u = &fontUsage{face: face, glyphs: make(map[uint16]bool), unicode: make(map[uint16]rune)}
			out[key] = u
		}
		for _, r := range fonts.Runes(dt.Text) {
			g, ok := u.face.Lookup(r)
			if !ok {
				continue
			}
			u.glyphs[g.ID] = true
			if _, seen := u.unicode[g.ID]; !seen {
				u.unicode[g.ID] = r
			}
		}
	}
	return out, nil
}

func (u *fontUsage) widths() map[int]int {
	out := make(map[int]int, len(u.glyphs))
	for gid := range u.glyphs {
		out[int(gid)] = u.face.Advance(gid)
	}
	return out
}

// subsetTag derives the six-letter subset prefix from the glyph set so equal
// inputs produce equal names.
func subsetTag(glyphs map[uint16]bool) string {
	ids := make([]int, 0, len(glyphs))
	for gid := range glyphs {
		ids = append(ids, int(gid))
	}
	sort.Ints(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte{byte(id >> 8), byte(id)})
	}
	sum := h.Sum(nil)
	tag := make([]byte, 6)
	for i := range tag {
		tag[i] = 'A' + sum[i]%26
	}
	return string(tag)
}

// addFont emits the Type0 font, its CIDFontType2 descendant, the font
// descriptor, the embedded program and the ToUnicode CMap, in that order.
func (b *objectBuilder) addFont(u *fontUsage, subset bool) (raw.ObjectRef, FontStats, error) {
	fontRef := b.nextRef()
	cidRef := b.nextRef()
	descRef := b.nextRef()
	fileRef := b.nextRef()
	cmapRef := b.nextRef()

	base := pdfNameLiteral(u.face.PostScriptName)
	program := u.face.Data
	if subset {
		data, err := fonts.Subset(u.face.Data, u.glyphs)
		if err != nil {
			return raw.ObjectRef{}, FontStats{}, fmt.Errorf("subset: %w", err)
		}
		program = data
		base = subsetTag(u.glyphs) + "+" + base
	}

	fontDict := raw.Dict()
	fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
	fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	fontDict.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.RefTo(cidRef)))
	fontDict.Set(raw.NameLiteral("ToUnicode"), raw.RefTo(cmapRef))
	b.objects[fontRef] = fontDict

	cs := raw.Dict()
	cs.Set(raw.NameLiteral("Registry"), raw.Str([]byte("Adobe")))
	cs.Set(raw.NameLiteral("Ordering"), raw.Str([]byte("Identity")))
	cs.Set(raw.NameLiteral("Supplement"), raw.NumberInt(0))

	cidDict := raw.Dict()
	cidDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	cidDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	cidDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
	cidDict.Set(raw.NameLiteral("CIDSystemInfo"), cs)
	cidDict.Set(raw.NameLiteral("FontDescriptor"), raw.RefTo(descRef))
	cidDict.Set(raw.NameLiteral("DW"), raw.NumberInt(fonts.DefaultAdvance))
	if w := u.widths(); len(w) > 0 {
		cidDict.Set(raw.NameLiteral("W"), encodeCIDWidths(w))
	}
	cidDict.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	b.objects[cidRef] = cidDict

	f := u.face
	desc := raw.Dict()
	desc.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	desc.Set(raw.NameLiteral("FontName"), raw.NameLiteral(base))
	desc.Set(raw.NameLiteral("Flags"), raw.NumberInt(32)) // nonsymbolic
	desc.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(f.ItalicAngle))
	desc.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(f.Ascent))
	desc.Set(raw.NameLiteral("Descent"), raw.NumberFloat(f.Descent))
	desc.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(f.CapHeight))
	desc.Set(raw.NameLiteral("StemV"), raw.NumberFloat(f.StemV))
	desc.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(f.BBox[0]),
		raw.NumberFloat(f.BBox[1]),
		raw.NumberFloat(f.BBox[2]),
		raw.NumberFloat(f.BBox[3]),
	))
	desc.Set(raw.NameLiteral("FontFile2"), raw.RefTo(fileRef))
	b.objects[descRef] = desc

	fileDict := raw.Dict()
	fileDict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(program))))
	b.objects[fileRef] = raw.NewStream(fileDict, program)

	b.objects[cmapRef] = raw.NewStream(nil, buildToUnicodeCMap(base, u.unicode))
	return fontRef, FontStats{BaseFont: base, Glyphs: len(u.glyphs), Bytes: len(program)}, nil
}

// buildToUnicodeCMap maps each drawn glyph ID back to the code point it was
// drawn for. Entries are grouped in bfchar blocks of at most 100.
func buildToUnicodeCMap(baseFont string, toUnicode map[uint16]rune) []byte {
	keys := make([]int, 0, len(toUnicode))
	for cid := range toUnicode {
		keys = append(keys, int(cid))
	}
	sort.Ints(keys)

	name := strings.ReplaceAll(baseFont, "+", "-") + "-UTF16"
	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s def\n", name)
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n")
	buf.WriteString("<0000> <FFFF>\n")
	buf.WriteString("endcodespacerange\n")
	for i := 0; i < len(keys); {
		chunk := len(keys) - i
		if chunk > 100 {
			chunk = 100
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", chunk)
		for j := 0; j < chunk; j++ {
			cid := keys[i+j]
			fmt.Fprintf(&buf, "<%04X> <%s>\n", cid, utf16Hex([]rune{toUnicode[uint16(cid)]}))
		}
		buf.WriteString("endbfchar\n")
		i += chunk
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}

// encodeCIDWidths writes widths in the compact "first last width" form of
// the /W array, merging runs of consecutive glyphs with equal advances.
func encodeCIDWidths(widths map[int]int) *raw.ArrayObj {
	arr := raw.NewArray()
	if len(widths) == 0 {
		return arr
	}
	codes := make([]int, 0, len(widths))
	for c := range widths {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	start := codes[0]
	prev := codes[0]
	current := widths[codes[0]]
	flush := func() {
		arr.Append(raw.NumberInt(int64(start)))
		arr.Append(raw.NumberInt(int64(prev)))
		arr.Append(raw.NumberInt(int64(current)))
	}
	for _, code := range codes[1:] {
		w := widths[code]
		if w == current && code == prev+1 {
			prev = code
			continue
		}
		flush()
		start, prev, current = code, code, w
	}
	flush()
	return arr
}

// pdfNameLiteral keeps the characters that are safe in font names and
// replaces the rest with '-'.
func pdfNameLiteral(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' || ch == '.' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('-')
	}
	if b.Len() == 0 {
		return "CustomTT"
	}
	return b.String()
}
