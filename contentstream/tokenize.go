package contentstream

import (
	"encoding/hex"
	"fmt"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokName
	tokString
	tokHexString
	tokArrayOpen
	tokArrayClose
)

type token struct {
	kind tokenKind
	text string
	data []byte
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// tokenize splits a content stream into operands and operators. Literal
// strings may contain balanced parentheses and backslash escapes.
func tokenize(src []byte) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isWhite(c):
			i++
		case c == '%':
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				i++
			}
		case c == '[':
			out = append(out, token{kind: tokArrayOpen, text: "["})
			i++
		case c == ']':
			out = append(out, token{kind: tokArrayClose, text: "]"})
			i++
		case c == '<':
			end := i + 1
			for end < len(src) && src[end] != '>' {
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("unterminated hex string at %d", i)
			}
			data, err := decodeHex(src[i+1 : end])
			if err != nil {
				return nil, fmt.Errorf("hex string at %d: %w", i, err)
			}
			out = append(out, token{kind: tokHexString, data: data})
			i = end + 1
		case c == '(':
			data, next, err := readLiteral(src, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: tokString, data: data})
			i = next
		case c == '/':
			end := i + 1
			for end < len(src) && !isWhite(src[end]) && !isDelim(src[end]) {
				end++
			}
			out = append(out, token{kind: tokName, text: string(src[i+1 : end])})
			i = end
		default:
			end := i
			for end < len(src) && !isWhite(src[end]) && !isDelim(src[end]) {
				end++
			}
			if end == i {
				return nil, fmt.Errorf("unexpected %q at %d", c, i)
			}
			word := string(src[i:end])
			kind := tokOperator
			if isNumeric(word) {
				kind = tokNumber
			}
			out = append(out, token{kind: kind, text: word})
			i = end
		}
	}
	return out, nil
}

func isNumeric(s string) bool {
	digits := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

func decodeHex(b []byte) ([]byte, error) {
	clean := make([]byte, 0, len(b)+1)
	for _, c := range b {
		if !isWhite(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	if _, err := hex.Decode(out, clean); err != nil {
		return nil, err
	}
	return out, nil
}

func readLiteral(src []byte, start int) ([]byte, int, error) {
	var out []byte
	depth := 0
	for i := start; i < len(src); i++ {
		c := src[i]
		switch c {
		case '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, i + 1, nil
			}
			out = append(out, c)
		case '\\':
			i++
			if i >= len(src) {
				break
			}
			switch e := src[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := 0
					n := 0
					for n < 3 && i < len(src) && src[i] >= '0' && src[i] <= '7' {
						v = v*8 + int(src[i]-'0')
						i++
						n++
					}
					i--
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return nil, 0, fmt.Errorf("unterminated string at %d", start)
}
