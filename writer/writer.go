// Package writer serializes an object graph as a classic PDF file: header,
// indirect objects, cross-reference table and trailer.
package writer

import (
	"errors"
	"io"

	"github.com/wudi/rosterpdf/builder"
	"github.com/wudi/rosterpdf/ir/raw"
)

type PDFVersion string

const (
	PDF17 PDFVersion = "1.7"
)

// ErrDanglingReference is returned when an object, or the trailer, refers to
// an identity the graph does not contain. Nothing is written in that case.
var ErrDanglingReference = errors.New("writer: dangling reference")

type Config struct {
	Version PDFVersion
}

type Writer interface {
	Write(ctx Context, g *builder.Graph, w io.Writer, cfg Config) error
	Serialize(ctx Context, g *builder.Graph, cfg Config) ([]byte, error)
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes each object as it is serialized.
type Interceptor interface {
	BeforeWrite(ctx Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx Context, ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// New returns a writer without interceptors.
func New() Writer { return (&WriterBuilder{}).Build() }

type Context interface{ Done() <-chan struct{} }
