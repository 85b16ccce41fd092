package xref

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wudi/rosterpdf/ir/raw"
)

// Report summarizes a successful verification.
type Report struct {
	Objects    int
	Size       int
	Root       raw.ObjectRef
	Info       raw.ObjectRef
	References int
}

var refRe = regexp.MustCompile(`(\d+)\s+(\d+)\s+R\b`)

// Verify parses the classic xref table of data and checks that every in-use
// entry points at its object header, that the trailer /Root and /Info
// resolve, and that every indirect reference in the body names an in-use
// entry. Failures wrap ErrBrokenXRef.
func Verify(data []byte) (*Report, error) {
	tbl, err := parseClassic(data)
	if err != nil {
		return nil, err
	}
	tr := tbl.Trailer()
	objects := tbl.Objects()

	maxNum := 0
	for _, num := range objects {
		off, gen, _ := tbl.Lookup(num)
		if off <= 0 || off >= int64(len(data)) {
			return nil, fmt.Errorf("%w: object %d offset %d out of range", ErrBrokenXRef, num, off)
		}
		header := fmt.Sprintf("%d %d obj", num, gen)
		if !bytes.HasPrefix(data[off:], []byte(header)) {
			return nil, fmt.Errorf("%w: object %d entry does not point at %q", ErrBrokenXRef, num, header)
		}
		maxNum = max(maxNum, num)
	}
	if tr.Size != maxNum+1 {
		return nil, fmt.Errorf("%w: trailer /Size %d, highest object %d", ErrBrokenXRef, tr.Size, maxNum)
	}
	if !tr.ID {
		return nil, fmt.Errorf("%w: trailer lacks /ID", ErrBrokenXRef)
	}

	inUse := func(ref raw.ObjectRef) bool {
		_, gen, ok := tbl.Lookup(ref.Num)
		return ok && gen == ref.Gen
	}
	if tr.Root.IsZero() || !inUse(tr.Root) {
		return nil, fmt.Errorf("%w: trailer /Root %s does not resolve", ErrBrokenXRef, tr.Root)
	}
	if !tr.Info.IsZero() && !inUse(tr.Info) {
		return nil, fmt.Errorf("%w: trailer /Info %s does not resolve", ErrBrokenXRef, tr.Info)
	}

	// Every header found in the body must agree with the table.
	scanned, err := scanObjects(context.Background(), data)
	if err != nil {
		return nil, err
	}
	for num, e := range scanned {
		off, _, ok := tbl.Lookup(num)
		if !ok || off != e.offset {
			return nil, fmt.Errorf("%w: object %d at offset %d is not indexed", ErrBrokenXRef, num, e.offset)
		}
	}

	body := data
	if idx := bytes.LastIndex(data, []byte("\nxref")); idx >= 0 {
		body = data[:idx]
	}
	refs := 0
	for _, m := range refRe.FindAllSubmatch(stripOpaque(body), -1) {
		num, _ := strconv.Atoi(string(m[1]))
		gen, _ := strconv.Atoi(string(m[2]))
		ref := raw.ObjectRef{Num: num, Gen: gen}
		if !inUse(ref) {
			return nil, fmt.Errorf("%w: reference %s does not resolve", ErrBrokenXRef, ref)
		}
		refs++
	}

	return &Report{
		Objects:    len(objects),
		Size:       tr.Size,
		Root:       tr.Root,
		Info:       tr.Info,
		References: refs,
	}, nil
}

// stripOpaque blanks out comments, strings and stream payloads so that
// only dictionary and array syntax remains.
func stripOpaque(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		switch c := data[i]; {
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			depth := 0
			for ; i < len(data); i++ {
				if data[i] == '\\' {
					i++
					continue
				}
				if data[i] == '(' {
					depth++
				} else if data[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
			out = append(out, ' ')
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			out = append(out, '<', '<')
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				i = len(data)
			} else {
				i += end + 1
			}
			out = append(out, ' ')
		case bytes.HasPrefix(data[i:], []byte("endstream")):
			out = append(out, "endstream"...)
			i += len("endstream")
		case bytes.HasPrefix(data[i:], []byte("stream")):
			end := bytes.Index(data[i:], []byte("endstream"))
			if end < 0 {
				i = len(data)
			} else {
				i += end
			}
			out = append(out, ' ')
		default:
			out = append(out, c)
			i++
		}
	}
	return out
}
