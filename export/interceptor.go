package export

import (
	"github.com/wudi/rosterpdf/ir/raw"
	"github.com/wudi/rosterpdf/observability"
	"github.com/wudi/rosterpdf/writer"
)

// logInterceptor reports every serialized object at debug level.
type logInterceptor struct{ l observability.Logger }

func (logInterceptor) BeforeWrite(writer.Context, raw.ObjectRef, raw.Object) error { return nil }

func (i logInterceptor) AfterWrite(_ writer.Context, ref raw.ObjectRef, obj raw.Object, n int64) error {
	i.l.Debug("object written",
		observability.String("ref", ref.String()),
		observability.String("type", objectType(obj)),
		observability.Int64("bytes", n))
	return nil
}

func objectType(obj raw.Object) string {
	var dict *raw.DictObj
	switch v := obj.(type) {
	case *raw.DictObj:
		dict = v
	case *raw.StreamObj:
		if v.Dict == nil {
			return "stream"
		}
		dict = v.Dict
	default:
		return "object"
	}
	if t, ok := dict.Get(raw.NameLiteral("Type")); ok {
		if n, ok := t.(raw.NameObj); ok {
			return n.Value()
		}
	}
	if _, ok := obj.(*raw.StreamObj); ok {
		return "stream"
	}
	return "dict"
}
