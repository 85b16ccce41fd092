package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/go-text/typesetting/font/opentype"
)

// Subset strips the outlines of every glyph not in used from a TrueType
// program. Glyph IDs are preserved so the result can still be addressed
// with Identity-H and /CIDToGIDMap /Identity. Glyph 0 and the components of
// composite glyphs are always kept. Fonts without glyf outlines are returned
// unchanged.
func Subset(data []byte, used map[uint16]bool) ([]byte, error) {
	loader, err := opentype.NewLoader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}
	p := &ttTables{loader: loader}
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !p.has(tag) {
			return data, nil
		}
	}

	head, err := p.read("head")
	if err != nil {
		return nil, err
	}
	if len(head) < 54 {
		return nil, fmt.Errorf("head table truncated")
	}
	indexToLocFormat := int16(binary.BigEndian.Uint16(head[50:52]))

	maxp, err := p.read("maxp")
	if err != nil {
		return nil, err
	}
	if len(maxp) < 6 {
		return nil, fmt.Errorf("maxp table truncated")
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:6]))

	closure := map[int]bool{0: true}
	for gid := range used {
		if int(gid) < numGlyphs {
			closure[int(gid)] = true
		}
	}
	loca, err := p.read("loca")
	if err != nil {
		return nil, err
	}
	glyf, err := p.read("glyf")
	if err != nil {
		return nil, err
	}
	locs := &locaTable{data: loca, long: indexToLocFormat != 0}
	if err := locs.check(numGlyphs); err != nil {
		return nil, err
	}
	addComponents(closure, glyf, locs, numGlyphs)

	newNumGlyphs := 0
	for gid := range closure {
		if gid+1 > newNumGlyphs {
			newNumGlyphs = gid + 1
		}
	}

	newGlyf, newLoca := rebuildGlyfLoca(closure, glyf, locs, newNumGlyphs)

	hhea, err := p.read("hhea")
	if err != nil {
		return nil, err
	}
	if len(hhea) < 36 {
		return nil, fmt.Errorf("hhea table truncated")
	}
	hmtx, err := p.read("hmtx")
	if err != nil {
		return nil, err
	}
	newHmtx, err := rebuildHmtx(hmtx, int(binary.BigEndian.Uint16(hhea[34:36])), newNumGlyphs)
	if err != nil {
		return nil, err
	}

	newHead := append([]byte(nil), head...)
	binary.BigEndian.PutUint16(newHead[50:], 1) // loca is always written in long format
	newHhea := append([]byte(nil), hhea...)
	binary.BigEndian.PutUint16(newHhea[34:], uint16(newNumGlyphs))
	newMaxp := append([]byte(nil), maxp...)
	binary.BigEndian.PutUint16(newMaxp[4:], uint16(newNumGlyphs))

	w := &ttWriter{}
	w.AddTable("glyf", newGlyf)
	w.AddTable("loca", newLoca)
	w.AddTable("hmtx", newHmtx)
	w.AddTable("maxp", newMaxp)
	w.AddTable("head", newHead)
	w.AddTable("hhea", newHhea)
	for _, tag := range []string{"cmap", "name", "OS/2", "post", "cvt ", "fpgm", "prep", "gasp"} {
		if !p.has(tag) {
			continue
		}
		data, err := p.read(tag)
		if err != nil {
			return nil, err
		}
		if tag == "post" {
			data = postWithoutNames(data)
		}
		w.AddTable(tag, data)
	}
	return w.Bytes(), nil
}

// postWithoutNames downgrades post to version 3.0. Version 2.0 carries one
// name per glyph and would disagree with the trimmed maxp.numGlyphs.
func postWithoutNames(post []byte) []byte {
	if len(post) < 32 {
		return post
	}
	out := append([]byte(nil), post[:32]...)
	binary.BigEndian.PutUint32(out[0:], 0x00030000)
	return out
}

type ttTables struct {
	loader *opentype.Loader
}

func tagOf(s string) opentype.Tag { return opentype.NewTag(s[0], s[1], s[2], s[3]) }

func (p *ttTables) has(tag string) bool { return p.loader.HasTable(tagOf(tag)) }

func (p *ttTables) read(tag string) ([]byte, error) {
	data, err := p.loader.RawTable(tagOf(tag))
	if err != nil {
		return nil, fmt.Errorf("read %s table: %w", tag, err)
	}
	return data, nil
}

type locaTable struct {
	data []byte
	long bool
}

func (l *locaTable) check(numGlyphs int) error {
	need := (numGlyphs + 1) * 2
	if l.long {
		need = (numGlyphs + 1) * 4
	}
	if len(l.data) < need {
		return fmt.Errorf("loca table truncated")
	}
	return nil
}

func (l *locaTable) at(gid int) uint32 {
	if !l.long {
		return uint32(binary.BigEndian.Uint16(l.data[gid*2:])) * 2
	}
	return binary.BigEndian.Uint32(l.data[gid*4:])
}

// addComponents extends closure with the components of composite glyphs.
func addComponents(closure map[int]bool, glyf []byte, locs *locaTable, numGlyphs int) {
	queue := make([]int, 0, len(closure))
	for gid := range closure {
		queue = append(queue, gid)
	}
	sort.Ints(queue)

	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]

		start, end := locs.at(gid), locs.at(gid+1)
		if start >= end || start+10 > uint32(len(glyf)) {
			continue
		}
		numContours := int16(binary.BigEndian.Uint16(glyf[start : start+2]))
		if numContours >= 0 {
			continue
		}

		offset := start + 10
		for offset+4 <= uint32(len(glyf)) {
			flags := binary.BigEndian.Uint16(glyf[offset : offset+2])
			sub := int(binary.BigEndian.Uint16(glyf[offset+2 : offset+4]))
			if sub < numGlyphs && !closure[sub] {
				closure[sub] = true
				queue = append(queue, sub)
			}
			offset += 4
			if flags&0x0001 != 0 { // ARG_1_AND_2_ARE_WORDS
				offset += 4
			} else {
				offset += 2
			}
			switch {
			case flags&0x0008 != 0: // WE_HAVE_A_SCALE
				offset += 2
			case flags&0x0040 != 0: // WE_HAVE_AN_X_AND_Y_SCALE
				offset += 4
			case flags&0x0080 != 0: // WE_HAVE_A_TWO_BY_TWO
				offset += 8
			}
			if flags&0x0020 == 0 { // MORE_COMPONENTS
				break
			}
		}
	}
}

func rebuildGlyfLoca(closure map[int]bool, glyf []byte, locs *locaTable, numGlyphs int) ([]byte, []byte) {
	var newGlyf bytes.Buffer
	newLoca := make([]byte, 4*(numGlyphs+1))
	for gid := 0; gid < numGlyphs; gid++ {
		binary.BigEndian.PutUint32(newLoca[4*gid:], uint32(newGlyf.Len()))
		if !closure[gid] {
			continue
		}
		start, end := locs.at(gid), locs.at(gid+1)
		if start < end && end <= uint32(len(glyf)) {
			newGlyf.Write(glyf[start:end])
			// glyph records stay 4-byte aligned in long loca
			for newGlyf.Len()%4 != 0 {
				newGlyf.WriteByte(0)
			}
		}
	}
	binary.BigEndian.PutUint32(newLoca[4*numGlyphs:], uint32(newGlyf.Len()))
	return newGlyf.Bytes(), newLoca
}

// rebuildHmtx writes one full longHorMetric per kept glyph; hhea is patched
// to match by the caller.
func rebuildHmtx(hmtx []byte, numOfHMetrics, numGlyphs int) ([]byte, error) {
	if numOfHMetrics == 0 || len(hmtx) < numOfHMetrics*4 {
		return nil, fmt.Errorf("hmtx table truncated")
	}
	out := make([]byte, 0, numGlyphs*4)
	for gid := 0; gid < numGlyphs; gid++ {
		var adv, lsb uint16
		if gid < numOfHMetrics {
			adv = binary.BigEndian.Uint16(hmtx[gid*4:])
			lsb = binary.BigEndian.Uint16(hmtx[gid*4+2:])
		} else {
			adv = binary.BigEndian.Uint16(hmtx[(numOfHMetrics-1)*4:])
			off := numOfHMetrics*4 + (gid-numOfHMetrics)*2
			if off+2 <= len(hmtx) {
				lsb = binary.BigEndian.Uint16(hmtx[off:])
			}
		}
		out = binary.BigEndian.AppendUint16(out, adv)
		out = binary.BigEndian.AppendUint16(out, lsb)
	}
	return out, nil
}

type ttWriter struct {
	tables []tableData
}

type tableData struct {
	tag  string
	data []byte
}

func (w *ttWriter) AddTable(tag string, data []byte) {
	w.tables = append(w.tables, tableData{tag, data})
}

// Bytes assembles the font file: sorted table directory, 4-byte aligned
// tables, and head.checkSumAdjustment computed over the whole file.
func (w *ttWriter) Bytes() []byte {
	sort.Slice(w.tables, func(i, j int) bool { return w.tables[i].tag < w.tables[j].tag })

	numTables := len(w.tables)
	entrySelector := 0
	for (1 << (entrySelector + 1)) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16
	rangeShift := numTables*16 - searchRange

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00})
	binary.Write(&buf, binary.BigEndian, uint16(numTables))
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(rangeShift))

	headOffset := -1
	offset := 12 + 16*numTables
	for _, t := range w.tables {
		data := t.data
		if t.tag == "head" {
			headOffset = offset
			data = append([]byte(nil), data...)
			binary.BigEndian.PutUint32(data[8:], 0)
		}
		buf.WriteString(t.tag)
		binary.Write(&buf, binary.BigEndian, calcChecksum(data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		offset += (len(data) + 3) &^ 3
	}
	for _, t := range w.tables {
		buf.Write(t.data)
		for k := 0; k < (4-len(t.data)%4)%4; k++ {
			buf.WriteByte(0)
		}
	}

	out := buf.Bytes()
	if headOffset >= 0 {
		binary.BigEndian.PutUint32(out[headOffset+8:], 0)
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xB1B0AFBA-calcChecksum(out))
	}
	return out
}

func calcChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}
