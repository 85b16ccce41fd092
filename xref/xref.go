// Package xref reads the classic cross-reference table of a finished PDF
// and checks that the file's indirect references resolve through it.
package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/rosterpdf/ir/raw"
)

// ErrBrokenXRef is returned when the cross-reference data is missing,
// malformed or disagrees with the objects in the file.
var ErrBrokenXRef = errors.New("xref: broken cross-reference table")

// Table holds object offsets for a classic xref table.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
	Trailer() Trailer
	Type() string
}

// Trailer is the subset of the trailer dictionary the verifier needs.
type Trailer struct {
	Size int
	Root raw.ObjectRef
	Info raw.ObjectRef
	ID   bool
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

// NewResolver returns a classic-table resolver.
func NewResolver() Resolver {
	return tableResolver{}
}

type tableResolver struct{}

func (tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseClassic(readAll(r))
}

func parseClassic(data []byte) (Table, error) {
	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, fmt.Errorf("%w: startxref not found", ErrBrokenXRef)
	}
	rest := data[startxref+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	var offset int64
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse startxref: %v", ErrBrokenXRef, err)
		}
		offset = val
		break
	}

	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("%w: xref offset out of range: %d", ErrBrokenXRef, offset)
	}

	tableData := data[offset:]
	sc := bufio.NewScanner(bytes.NewReader(tableData))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, fmt.Errorf("%w: xref keyword not found at offset %d", ErrBrokenXRef, offset)
	}

	entries := make(map[int]entry)
	var trailerText strings.Builder
	inTrailer := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if inTrailer {
			if line == "startxref" {
				break
			}
			trailerText.WriteString(line)
			trailerText.WriteByte('\n')
			continue
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			inTrailer = true
			trailerText.WriteString(strings.TrimPrefix(line, "trailer"))
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: invalid xref subsection header: %q", ErrBrokenXRef, line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: parse xref start: %v", ErrBrokenXRef, err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: parse xref count: %v", ErrBrokenXRef, err)
		}

		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, fmt.Errorf("%w: unexpected end of xref section", ErrBrokenXRef)
			}
			entryLine := strings.TrimSpace(sc.Text())
			fields := strings.Fields(entryLine)
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: invalid xref entry: %q", ErrBrokenXRef, entryLine)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: parse xref offset: %v", ErrBrokenXRef, err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: parse xref gen: %v", ErrBrokenXRef, err)
			}
			if len(fields[2]) == 0 || fields[2][0] != 'n' {
				continue // free entry
			}
			entries[startObj+i] = entry{offset: off, gen: gen}
		}
	}
	if !inTrailer {
		return nil, fmt.Errorf("%w: trailer not found", ErrBrokenXRef)
	}

	return &table{entries: entries, trailer: parseTrailer(trailerText.String())}, nil
}

var (
	sizeRe = regexp.MustCompile(`/Size\s+(\d+)`)
	rootRe = regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	infoRe = regexp.MustCompile(`/Info\s+(\d+)\s+(\d+)\s+R`)
)

func parseTrailer(s string) Trailer {
	var tr Trailer
	if m := sizeRe.FindStringSubmatch(s); m != nil {
		tr.Size, _ = strconv.Atoi(m[1])
	}
	tr.Root = refFrom(rootRe.FindStringSubmatch(s))
	tr.Info = refFrom(infoRe.FindStringSubmatch(s))
	tr.ID = strings.Contains(s, "/ID")
	return tr
}

func refFrom(m []string) raw.ObjectRef {
	if m == nil {
		return raw.ObjectRef{}
	}
	num, _ := strconv.Atoi(m[1])
	gen, _ := strconv.Atoi(m[2])
	return raw.ObjectRef{Num: num, Gen: gen}
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries map[int]entry
	trailer Trailer
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() Trailer { return t.trailer }

func (t *table) Type() string { return "table" }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
