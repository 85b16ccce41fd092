package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// IsZero reports whether r is the unset reference. Object number 0 is the
// head of the free list and never names a live object.
func (r ObjectRef) IsZero() bool { return r.Num == 0 }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents an unfiltered PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// References returns every indirect reference reachable from obj without
// following the references themselves, in traversal order. Dictionary keys
// are visited in sorted order so the result is stable.
func References(obj Object) []ObjectRef {
	var out []ObjectRef
	var walk func(o Object)
	walk = func(o Object) {
		switch v := o.(type) {
		case RefObj:
			out = append(out, v.R)
		case *ArrayObj:
			for _, it := range v.Items {
				walk(it)
			}
		case *DictObj:
			for _, k := range v.SortedKeys() {
				walk(v.KV[k])
			}
		case *StreamObj:
			if v.Dict != nil {
				walk(v.Dict)
			}
		}
	}
	walk(obj)
	return out
}
