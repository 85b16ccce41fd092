package fonts

import "golang.org/x/text/unicode/norm"

// Runes returns the NFC form of text as runes. Measurement and glyph
// encoding both go through it, so a decomposed "й" is measured and drawn as
// the single precomposed glyph.
func Runes(text string) []rune {
	return []rune(norm.NFC.String(text))
}

// Measure returns the rendered width of text in points when set in ref.
func (p *Provider) Measure(text string, ref FontRef) float64 {
	if text == "" {
		return 0
	}
	units := 0
	for _, r := range Runes(text) {
		units += p.WidthOf(r, ref)
	}
	return float64(units) * ref.Size / 1000
}
