package xref

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
)

var objHeaderRe = regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)

// scanObjects finds every "N G obj" header that starts a line outside stream
// data and returns its offset. Later definitions of the same number win.
func scanObjects(ctx context.Context, data []byte) (map[int]entry, error) {
	found := make(map[int]entry)
	pos := 0
	for pos < len(data) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc := objHeaderRe.FindSubmatchIndex(data[pos:])
		if loc == nil {
			break
		}
		num, _ := strconv.Atoi(string(data[pos+loc[2] : pos+loc[3]]))
		gen, _ := strconv.Atoi(string(data[pos+loc[4] : pos+loc[5]]))
		found[num] = entry{offset: int64(pos + loc[0]), gen: gen}
		pos += loc[1]

		end := bytes.Index(data[pos:], []byte("endobj"))
		if end < 0 {
			break
		}
		// Stream payloads may contain the endobj keyword.
		if s := bytes.Index(data[pos:pos+end], []byte("stream")); s >= 0 {
			se := bytes.Index(data[pos+s:], []byte("endstream"))
			if se < 0 {
				break
			}
			eo := bytes.Index(data[pos+s+se:], []byte("endobj"))
			if eo < 0 {
				break
			}
			end = s + se + eo
		}
		pos += end + len("endobj")
	}
	return found, nil
}
