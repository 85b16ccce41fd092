package roster

import (
	"errors"
	"fmt"

	"github.com/wudi/rosterpdf/internal/yamlutil"
)

// ErrParse is returned when a roster document cannot be decoded.
var ErrParse = errors.New("roster: parse")

// Document is the on-disk shape of a roster:
//
//	title: Group 7
//	rows:
//	  - lastName: Smith
//	    firstName: Anna
type Document struct {
	Title string   `yaml:"title"`
	Rows  []Record `yaml:"rows"`
}

// Load decodes a YAML roster. Unknown keys are rejected. Rows are inserted
// into an empty table, so unnumbered rows receive their position.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := yamlutil.Decode(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	doc.Rows = NewTable(doc.Rows...).Records()
	return &doc, nil
}
