package builder

import (
	"unicode/utf16"

	"github.com/wudi/rosterpdf/ir/raw"
)

func infoDict(info Info) *raw.DictObj {
	if info.Title == "" && info.Producer == "" {
		return nil
	}
	d := raw.Dict()
	if info.Title != "" {
		d.Set(raw.NameLiteral("Title"), TextString(info.Title))
	}
	if info.Producer != "" {
		d.Set(raw.NameLiteral("Producer"), TextString(info.Producer))
	}
	return d
}

// TextString encodes s as a PDF text string: printable ASCII is kept as a
// literal, anything else is written as UTF-16BE with a byte order mark.
func TextString(s string) raw.StringObj {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			ascii = false
			break
		}
	}
	if ascii {
		return raw.Str([]byte(s))
	}
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2+2*len(units))
	out = append(out, 0xFE, 0xFF)
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return raw.HexStr(out)
}
