// Package builder assembles the object graph of a single-page document from
// composed drawing primitives.
package builder

import (
	"errors"
	"fmt"

	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/ir/raw"
)

var (
	// ErrNoPage is returned by Build when no page was set.
	ErrNoPage = errors.New("builder: no page")
	// ErrUnknownFont is returned when a text operation names a face the
	// provider cannot supply.
	ErrUnknownFont = errors.New("builder: unknown font")
)

// Config controls how fonts and metadata are emitted.
type Config struct {
	// SubsetFonts embeds only the glyphs the page draws.
	SubsetFonts bool
	// Producer is written to the /Producer entry of the info dictionary.
	Producer string
}

// Info carries the document information dictionary entries.
type Info struct {
	Title    string
	Producer string
}

// Graph is a complete set of indirect objects ready for serialization.
type Graph struct {
	Objects map[raw.ObjectRef]raw.Object
	Root    raw.ObjectRef
	Info    raw.ObjectRef // zero when the document has no info dictionary
	Order   []raw.ObjectRef

	// Fonts maps /Font resource names on the page to their faces.
	Fonts map[string]fonts.FaceKey
	// FontStats describes each embedded program in resource order.
	FontStats []FontStats
}

// FontStats records what was embedded for one face.
type FontStats struct {
	Resource string
	BaseFont string
	Glyphs   int
	Bytes    int
}

// Lookup returns the object with identity ref.
func (g *Graph) Lookup(ref raw.ObjectRef) (raw.Object, bool) {
	obj, ok := g.Objects[ref]
	return obj, ok
}

// DocumentBuilder provides a fluent API for document construction.
type DocumentBuilder interface {
	SetPage(page *contentstream.Page) DocumentBuilder
	SetInfo(info Info) DocumentBuilder
	Build() (*Graph, error)
}

type docBuilder struct {
	provider *fonts.Provider
	cfg      Config
	page     *contentstream.Page
	info     Info
}

// NewBuilder returns a builder that resolves faces through provider.
func NewBuilder(provider *fonts.Provider, cfg Config) DocumentBuilder {
	return &docBuilder{provider: provider, cfg: cfg, info: Info{Producer: cfg.Producer}}
}

func (b *docBuilder) SetPage(page *contentstream.Page) DocumentBuilder {
	b.page = page
	return b
}

func (b *docBuilder) SetInfo(info Info) DocumentBuilder {
	if info.Producer == "" {
		info.Producer = b.cfg.Producer
	}
	b.info = info
	return b
}

// Build assigns identities in a fixed order: catalog, page tree, page, the
// five objects of each face in first-use order, content stream, info.
func (b *docBuilder) Build() (*Graph, error) {
	if b.page == nil {
		return nil, ErrNoPage
	}
	ob := newObjectBuilder()

	catalogRef := ob.nextRef()
	pagesRef := ob.nextRef()
	pageRef := ob.nextRef()
	b.page.Doc = catalogRef

	faces := b.page.Fonts()
	usage, err := collectUsage(b.page, b.provider)
	if err != nil {
		return nil, err
	}
	fontRes := raw.Dict()
	resourceFaces := make(map[string]fonts.FaceKey, len(faces))
	stats := make([]FontStats, 0, len(faces))
	for i, key := range faces {
		u := usage[key]
		ref, st, err := ob.addFont(u, b.cfg.SubsetFonts)
		if err != nil {
			return nil, fmt.Errorf("font %s: %w", key, err)
		}
		name := contentstream.ResourceName(i)
		fontRes.Set(raw.NameLiteral(name), raw.RefTo(ref))
		resourceFaces[name] = key
		st.Resource = name
		stats = append(stats, st)
	}

	contentRef := ob.nextRef()
	ob.objects[contentRef] = raw.NewStream(nil, contentstream.Encode(b.page, b.provider))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.RefTo(pagesRef))
	ob.objects[catalogRef] = catalog

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.RefTo(pageRef)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	ob.objects[pagesRef] = pages

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.RefTo(pagesRef))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0),
		raw.NumberFloat(b.page.Size.Width), raw.NumberFloat(b.page.Size.Height),
	))
	resources := raw.Dict()
	if fontRes.Len() > 0 {
		resources.Set(raw.NameLiteral("Font"), fontRes)
	}
	page.Set(raw.NameLiteral("Resources"), resources)
	page.Set(raw.NameLiteral("Contents"), raw.RefTo(contentRef))
	ob.objects[pageRef] = page

	g := &Graph{
		Objects:   ob.objects,
		Root:      catalogRef,
		Fonts:     resourceFaces,
		FontStats: stats,
	}
	if info := infoDict(b.info); info != nil {
		g.Info = ob.nextRef()
		ob.objects[g.Info] = info
	}
	g.Order = ob.order
	return g, nil
}

// Build is shorthand for NewBuilder(provider, cfg).SetPage(page) with the
// page's title, when given, as the document title.
func Build(page *contentstream.Page, title string, provider *fonts.Provider, cfg Config) (*Graph, error) {
	return NewBuilder(provider, cfg).SetPage(page).SetInfo(Info{Title: title}).Build()
}

type objectBuilder struct {
	objects map[raw.ObjectRef]raw.Object
	order   []raw.ObjectRef
	objNum  int
}

func newObjectBuilder() *objectBuilder {
	return &objectBuilder{objects: make(map[raw.ObjectRef]raw.Object), objNum: 1}
}

func (b *objectBuilder) nextRef() raw.ObjectRef {
	ref := raw.ObjectRef{Num: b.objNum, Gen: 0}
	b.objNum++
	b.order = append(b.order, ref)
	return ref
}
