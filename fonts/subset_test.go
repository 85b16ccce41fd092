package fonts

import (
	"encoding/binary"
	"testing"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

func TestSubsetKeepsGlyphIDs(t *testing.T) {
	orig, err := sfnt.Parse(gobold.TTF)
	if err != nil {
		t.Fatalf("parse original: %v", err)
	}
	var buf sfnt.Buffer
	used := map[uint16]bool{}
	for _, r := range "Report Иванов" {
		gid, err := orig.GlyphIndex(&buf, r)
		if err != nil {
			t.Fatalf("glyph index %q: %v", r, err)
		}
		used[uint16(gid)] = true
	}

	out, err := Subset(gobold.TTF, used)
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if len(out) >= len(gobold.TTF) {
		t.Fatalf("subset not smaller: %d >= %d", len(out), len(gobold.TTF))
	}

	sub, err := sfnt.Parse(out)
	if err != nil {
		t.Fatalf("parse subset: %v", err)
	}
	if sub.NumGlyphs() > orig.NumGlyphs() {
		t.Fatalf("subset has more glyphs than the original")
	}
	ppem := fixed.Int26_6(orig.UnitsPerEm() << 6)
	for gid := range used {
		want, err := orig.GlyphAdvance(&buf, sfnt.GlyphIndex(gid), ppem, xfont.HintingNone)
		if err != nil {
			t.Fatalf("original advance %d: %v", gid, err)
		}
		got, err := sub.GlyphAdvance(&buf, sfnt.GlyphIndex(gid), ppem, xfont.HintingNone)
		if err != nil {
			t.Fatalf("subset advance %d: %v", gid, err)
		}
		if got != want {
			t.Fatalf("advance of glyph %d: got %v want %v", gid, got, want)
		}
		if _, err := sub.LoadGlyph(&buf, sfnt.GlyphIndex(gid), ppem, nil); err != nil {
			t.Fatalf("load glyph %d: %v", gid, err)
		}
	}
}

func TestSubsetDeterministic(t *testing.T) {
	used := map[uint16]bool{36: true, 40: true, 41: true}
	a, err := Subset(gobold.TTF, used)
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	b, err := Subset(gobold.TTF, used)
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("subset output differs between runs")
	}
}

func TestSubsetChecksumAdjustment(t *testing.T) {
	out, err := Subset(gobold.TTF, map[uint16]bool{36: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if sum := calcChecksum(out); sum != 0xB1B0AFBA {
		t.Fatalf("whole-file checksum = %#x", sum)
	}
	numTables := int(binary.BigEndian.Uint16(out[4:6]))
	for i := 0; i < numTables; i++ {
		rec := out[12+16*i:]
		if string(rec[:4]) != "head" {
			continue
		}
		off := binary.BigEndian.Uint32(rec[8:12])
		if f := binary.BigEndian.Uint16(out[off+50:]); f != 1 {
			t.Fatalf("indexToLocFormat = %d, want 1", f)
		}
		return
	}
	t.Fatalf("head table missing")
}

func TestSubsetRejectsGarbage(t *testing.T) {
	if _, err := Subset([]byte("nope"), nil); err == nil {
		t.Fatalf("expected error")
	}
}
