package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf16"

	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/layout"
	"github.com/wudi/rosterpdf/observability"
	"github.com/wudi/rosterpdf/xref"
)

// ErrContent marks a document whose page does not draw the table it was
// rendered from.
var ErrContent = errors.New("export: page content mismatch")

// CheckReport describes a document read back by Check.
type CheckReport struct {
	XRef  *xref.Report
	Ops   []contentstream.DrawOp
	Rects int
	// Texts holds the decoded text operations in paint order.
	Texts []string
}

// Check reads rendered bytes back. The cross-reference table must verify,
// and the page must stroke one rectangle per cell of the header and of each
// of rows records, with one text per cell plus the title when it is not
// empty. Text is recovered through the ToUnicode maps of the page fonts.
func (e *Exporter) Check(ctx context.Context, data []byte, title string, rows int) (*CheckReport, error) {
	_, span := e.tracer.StartSpan(ctx, "export.check")
	defer span.Finish()
	span.SetTag(observability.MetricRowCount, rows)

	report, err := check(ctx, data, title, rows)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag(observability.MetricObjectCount, report.XRef.Objects)
	return report, nil
}

func check(ctx context.Context, data []byte, title string, rows int) (*CheckReport, error) {
	xrep, err := xref.Verify(data)
	if err != nil {
		return nil, err
	}
	ops, err := decodePageOps(ctx, data)
	if err != nil {
		return nil, err
	}

	report := &CheckReport{XRef: xrep, Ops: ops}
	for _, op := range ops {
		switch v := op.(type) {
		case contentstream.StrokeRect:
			report.Rects++
		case contentstream.DrawText:
			report.Texts = append(report.Texts, v.Text)
		}
	}

	wantRects := layout.Columns * (rows + 1)
	wantTexts := wantRects
	if title != "" {
		wantTexts++
	}
	if report.Rects != wantRects {
		return nil, fmt.Errorf("%w: %d rectangles for %d rows, want %d", ErrContent, report.Rects, rows, wantRects)
	}
	if len(report.Texts) != wantTexts {
		return nil, fmt.Errorf("%w: %d text operations, want %d", ErrContent, len(report.Texts), wantTexts)
	}
	return report, nil
}

type pdfObject struct {
	dict   string
	stream []byte
}

var (
	lengthRe   = regexp.MustCompile(`/Length (\d+)`)
	pagesRe    = regexp.MustCompile(`/Pages (\d+) 0 R`)
	kidsRe     = regexp.MustCompile(`/Kids \[(\d+) 0 R\]`)
	fontResRe  = regexp.MustCompile(`/(F\d+) (\d+) 0 R`)
	contentsRe = regexp.MustCompile(`/Contents (\d+) 0 R`)
	toUniRe    = regexp.MustCompile(`/ToUnicode (\d+) 0 R`)
	mediaBoxRe = regexp.MustCompile(`/MediaBox \[0 0 [\d.]+ ([\d.]+)\]`)
	bfcharRe   = regexp.MustCompile(`<([0-9A-F]{4})> <([0-9A-F]+)>`)
)

// readObjects splits a document into its indirect objects using the
// cross-reference table.
func readObjects(ctx context.Context, data []byte) (map[int]pdfObject, int, error) {
	tbl, err := xref.NewResolver().Resolve(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	out := make(map[int]pdfObject)
	for _, num := range tbl.Objects() {
		off, _, _ := tbl.Lookup(num)
		body := data[off:]
		body = body[bytes.IndexByte(body, '\n')+1:]
		end := bytes.Index(body, []byte("\nendobj"))
		if end < 0 {
			return nil, 0, fmt.Errorf("%w: object %d has no endobj", ErrContent, num)
		}
		si := bytes.Index(body, []byte("\nstream\n"))
		if si < 0 || si > end {
			out[num] = pdfObject{dict: string(body[:end])}
			continue
		}
		dict := string(body[:si])
		m := lengthRe.FindStringSubmatch(dict)
		if m == nil {
			return nil, 0, fmt.Errorf("%w: object %d stream without /Length", ErrContent, num)
		}
		n, _ := strconv.Atoi(m[1])
		start := si + len("\nstream\n")
		if start+n > len(body) {
			return nil, 0, fmt.Errorf("%w: object %d stream overruns the file", ErrContent, num)
		}
		out[num] = pdfObject{dict: dict, stream: body[start : start+n]}
	}
	return out, tbl.Trailer().Root.Num, nil
}

// follow resolves the first reference re captures in dict.
func follow(objs map[int]pdfObject, dict string, re *regexp.Regexp, what string) (pdfObject, error) {
	m := re.FindStringSubmatch(dict)
	if m == nil {
		return pdfObject{}, fmt.Errorf("%w: %s missing", ErrContent, what)
	}
	num, _ := strconv.Atoi(m[len(m)-1])
	obj, ok := objs[num]
	if !ok {
		return pdfObject{}, fmt.Errorf("%w: %s object %d missing", ErrContent, what, num)
	}
	return obj, nil
}

// decodePageOps walks catalog, page tree and page to the content stream and
// decodes it into drawing primitives.
func decodePageOps(ctx context.Context, data []byte) ([]contentstream.DrawOp, error) {
	objs, root, err := readObjects(ctx, data)
	if err != nil {
		return nil, err
	}
	pages, err := follow(objs, objs[root].dict, pagesRe, "/Pages")
	if err != nil {
		return nil, err
	}
	page, err := follow(objs, pages.dict, kidsRe, "/Kids")
	if err != nil {
		return nil, err
	}
	content, err := follow(objs, page.dict, contentsRe, "/Contents")
	if err != nil {
		return nil, err
	}

	resources := make(map[string]fonts.FaceKey)
	dec := make(cmapDecoder)
	for _, fm := range fontResRe.FindAllStringSubmatch(page.dict, -1) {
		num, _ := strconv.Atoi(fm[2])
		cmap, err := follow(objs, objs[num].dict, toUniRe, "/ToUnicode of "+fm[1])
		if err != nil {
			return nil, err
		}
		resources[fm[1]] = fonts.FaceKey{Family: fm[1]}
		dec[fm[1]] = parseToUnicode(cmap.stream)
	}

	mb := mediaBoxRe.FindStringSubmatch(page.dict)
	if mb == nil {
		return nil, fmt.Errorf("%w: page without /MediaBox", ErrContent)
	}
	height, _ := strconv.ParseFloat(mb[1], 64)
	ops, err := contentstream.Decode(ctx, content.stream, height, resources, dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContent, err)
	}
	return ops, nil
}

// cmapDecoder maps glyph codes back to text through the ToUnicode CMaps of
// the page, keyed by font resource name.
type cmapDecoder map[string]map[uint16]string

func (d cmapDecoder) DecodeGlyphs(codes []byte, ref fonts.FontRef) string {
	var s []byte
	for i := 0; i+1 < len(codes); i += 2 {
		s = append(s, d[ref.Family][uint16(codes[i])<<8|uint16(codes[i+1])]...)
	}
	return string(s)
}

func parseToUnicode(cmap []byte) map[uint16]string {
	out := make(map[uint16]string)
	for _, section := range bytes.Split(cmap, []byte("beginbfchar"))[1:] {
		if end := bytes.Index(section, []byte("endbfchar")); end >= 0 {
			section = section[:end]
		}
		for _, m := range bfcharRe.FindAllSubmatch(section, -1) {
			cid, _ := strconv.ParseUint(string(m[1]), 16, 16)
			var units []uint16
			for i := 0; i+4 <= len(m[2]); i += 4 {
				u, _ := strconv.ParseUint(string(m[2][i:i+4]), 16, 16)
				units = append(units, uint16(u))
			}
			out[uint16(cid)] = string(utf16.Decode(units))
		}
	}
	return out
}
