// Package yamlutil decodes roster files. Decoding is strict, so a misspelled
// key such as "lastname" fails instead of leaving a column blank.
package yamlutil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxRosterSize bounds the size of a roster file accepted by Decode.
var MaxRosterSize = 1 << 20

var (
	ErrEmpty    = errors.New("yamlutil: roster file is empty")
	ErrTooLarge = errors.New("yamlutil: roster file too large")
)

// Decode fills v from YAML data and rejects keys v does not declare.
func Decode(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxRosterSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), MaxRosterSize)
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}
