// Package roster holds the records rendered into the table and the rules
// applied when they are added to a roster.
package roster

import "strconv"

// Record is one row of the roster.
type Record struct {
	Number    int    `yaml:"number"`
	LastName  string `yaml:"lastName"`
	FirstName string `yaml:"firstName"`
}

// Cells returns the column texts in table order.
func (r Record) Cells() [3]string {
	return [3]string{strconv.Itoa(r.Number), r.LastName, r.FirstName}
}

// Table is an ordered collection of records. The zero value is empty and
// ready to use.
type Table struct {
	records []Record
}

// NewTable returns a table holding records, normalised as by Insert.
func NewTable(records ...Record) *Table {
	t := &Table{}
	t.Insert(records...)
	return t
}

// Insert appends records to the table.
func (t *Table) Insert(records ...Record) {
	t.InsertAt(len(t.records), records...)
}

// InsertAt inserts records before position index, clamped to [0, Len()].
// A record whose Number is 0 is numbered from a counter that starts at index
// and advances only for such records, so records inserted together with
// explicit numbers keep them.
func (t *Table) InsertAt(index int, records ...Record) {
	if len(records) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(t.records) {
		index = len(t.records)
	}

	added := make([]Record, len(records))
	copy(added, records)
	counter := index
	for i := range added {
		if added[i].Number == 0 {
			counter++
			added[i].Number = counter
		}
	}

	out := make([]Record, 0, len(t.records)+len(added))
	out = append(out, t.records[:index]...)
	out = append(out, added...)
	out = append(out, t.records[index:]...)
	t.records = out
}

// Records returns a copy of the table contents in display order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Table) Len() int { return len(t.records) }

// Sample returns the roster the desktop form opens with.
func Sample() []Record {
	return []Record{
		{Number: 1, LastName: "Иванов", FirstName: "Иван"},
		{Number: 2, LastName: "Сидоров", FirstName: "Сидор"},
		{Number: 3, LastName: "Петров", FirstName: "Петр"},
	}
}
