package builder

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/rosterpdf/contentstream"
	"github.com/wudi/rosterpdf/fonts"
	"github.com/wudi/rosterpdf/ir/raw"
	"github.com/wudi/rosterpdf/layout"
	"github.com/wudi/rosterpdf/roster"
)

func composePage(t *testing.T, title string, records []roster.Record) (*contentstream.Page, *fonts.Provider) {
	t.Helper()
	p, err := fonts.Default()
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}
	tbl, err := layout.NewEngine(p).Compute(title, records)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return contentstream.Compose(tbl), p
}

func dict(t *testing.T, g *Graph, ref raw.ObjectRef) *raw.DictObj {
	t.Helper()
	obj, ok := g.Lookup(ref)
	if !ok {
		t.Fatalf("object %s missing", ref)
	}
	switch v := obj.(type) {
	case *raw.DictObj:
		return v
	case *raw.StreamObj:
		return v.Dict
	}
	t.Fatalf("object %s is a %s", ref, obj.Type())
	return nil
}

func name(t *testing.T, d *raw.DictObj, key string) string {
	t.Helper()
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		t.Fatalf("key /%s missing", key)
	}
	n, ok := v.(raw.NameObj)
	if !ok {
		t.Fatalf("/%s is a %s", key, v.Type())
	}
	return n.Value()
}

func TestBuildIdentityOrder(t *testing.T) {
	page, p := composePage(t, "Report", []roster.Record{{Number: 1, LastName: "Smith", FirstName: "Anna"}})
	g, err := Build(page, "Report", p, Config{SubsetFonts: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// catalog, pages, page, 2 faces x 5 objects, content, info
	if len(g.Order) != 15 || len(g.Objects) != 15 {
		t.Fatalf("order=%d objects=%d, want 15", len(g.Order), len(g.Objects))
	}
	for i, ref := range g.Order {
		if ref.Num != i+1 {
			t.Fatalf("identity %d at position %d", ref.Num, i)
		}
	}
	if g.Root.Num != 1 || g.Info.Num != 15 || page.Doc != g.Root {
		t.Fatalf("root=%v info=%v doc=%v", g.Root, g.Info, page.Doc)
	}

	wantTypes := []string{"Catalog", "Pages", "Page", "Font", "Font", "FontDescriptor"}
	for i, want := range wantTypes {
		if got := name(t, dict(t, g, g.Order[i]), "Type"); got != want {
			t.Fatalf("object %d /Type = %s, want %s", i+1, got, want)
		}
	}
	if got := name(t, dict(t, g, g.Order[3]), "Subtype"); got != "Type0" {
		t.Fatalf("object 4 subtype %s", got)
	}
	if got := name(t, dict(t, g, g.Order[4]), "Subtype"); got != "CIDFontType2" {
		t.Fatalf("object 5 subtype %s", got)
	}
}

func TestBuildReferencesResolve(t *testing.T) {
	page, p := composePage(t, "Список", roster.Sample())
	g, err := Build(page, "Список", p, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for ref, obj := range g.Objects {
		for _, target := range raw.References(obj) {
			if _, ok := g.Objects[target]; !ok {
				t.Fatalf("object %s references missing %s", ref, target)
			}
		}
	}
}

func TestBuildFontResources(t *testing.T) {
	page, p := composePage(t, "Report", nil)
	g, err := Build(page, "Report", p, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := map[string]fonts.FaceKey{"F1": {Family: fonts.DefaultFamily, Weight: fonts.Bold}}
	if diff := cmp.Diff(want, g.Fonts); diff != "" {
		t.Fatalf("font resources mismatch (-want +got):\n%s", diff)
	}

	pageDict := dict(t, g, raw.ObjectRef{Num: 3})
	res, _ := pageDict.Get(raw.NameLiteral("Resources"))
	fontRes, _ := res.(*raw.DictObj).Get(raw.NameLiteral("Font"))
	f1, ok := fontRes.(*raw.DictObj).Get(raw.NameLiteral("F1"))
	if !ok || f1.(raw.RefObj).Ref().Num != 4 {
		t.Fatalf("/F1 = %v", f1)
	}
}

func TestBuildSubsetName(t *testing.T) {
	page, p := composePage(t, "Report", nil)
	full, err := Build(page, "", p, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sub, err := Build(page, "", p, Config{SubsetFonts: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fullName := name(t, dict(t, full, raw.ObjectRef{Num: 4}), "BaseFont")
	subName := name(t, dict(t, sub, raw.ObjectRef{Num: 4}), "BaseFont")
	if len(subName) != len(fullName)+7 || subName[6] != '+' || subName[7:] != fullName {
		t.Fatalf("subset name %q for %q", subName, fullName)
	}

	fullFile := full.Objects[raw.ObjectRef{Num: 7}].(*raw.StreamObj)
	subFile := sub.Objects[raw.ObjectRef{Num: 7}].(*raw.StreamObj)
	if len(subFile.Data) >= len(fullFile.Data) {
		t.Fatalf("subset program not smaller: %d >= %d", len(subFile.Data), len(fullFile.Data))
	}

	if len(sub.FontStats) != 1 || len(full.FontStats) != 1 {
		t.Fatalf("font stats: full=%+v sub=%+v", full.FontStats, sub.FontStats)
	}
	want := FontStats{Resource: "F1", BaseFont: subName, Glyphs: full.FontStats[0].Glyphs, Bytes: len(subFile.Data)}
	if diff := cmp.Diff(want, sub.FontStats[0]); diff != "" {
		t.Fatalf("subset stats mismatch (-want +got):\n%s", diff)
	}
	if full.FontStats[0].Glyphs == 0 || full.FontStats[0].Bytes != len(fullFile.Data) {
		t.Fatalf("full stats = %+v", full.FontStats[0])
	}
}

func TestBuildToUnicode(t *testing.T) {
	page, p := composePage(t, "Ab", nil)
	g, err := Build(page, "Ab", p, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cmap := g.Objects[raw.ObjectRef{Num: 8}].(*raw.StreamObj).Data
	ref := fonts.FontRef{Family: fonts.DefaultFamily, Weight: fonts.Bold}
	for _, r := range "Ab" {
		entry := fmt.Sprintf("<%04X> <%04X>", p.GlyphOf(r, ref), r)
		if !bytes.Contains(cmap, []byte(entry)) {
			t.Fatalf("cmap lacks %q:\n%s", entry, cmap)
		}
	}
}

func TestBuildInfo(t *testing.T) {
	page, p := composePage(t, "", nil)

	g, err := Build(page, "", p, Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !g.Info.IsZero() {
		t.Fatalf("unexpected info dictionary %v", g.Info)
	}

	g, err = NewBuilder(p, Config{Producer: "rosterpdf"}).SetPage(page).SetInfo(Info{Title: "Отчёт"}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	info := dict(t, g, g.Info)
	title, _ := info.Get(raw.NameLiteral("Title"))
	s := title.(raw.StringObj)
	if !s.IsHex() || !bytes.HasPrefix(s.Value(), []byte{0xFE, 0xFF}) {
		t.Fatalf("title not UTF-16BE: %v", s)
	}
	producer, _ := info.Get(raw.NameLiteral("Producer"))
	if string(producer.(raw.StringObj).Value()) != "rosterpdf" {
		t.Fatalf("producer = %v", producer)
	}
}

func TestBuildErrors(t *testing.T) {
	p, err := fonts.Default()
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}
	if _, err := NewBuilder(p, Config{}).Build(); !errors.Is(err, ErrNoPage) {
		t.Fatalf("error = %v, want ErrNoPage", err)
	}

	page := &contentstream.Page{
		Size: layout.Rect{Width: 100, Height: 100},
		Ops:  []contentstream.DrawOp{contentstream.DrawText{Text: "x", Font: fonts.FontRef{Family: "Missing", Size: 10}}},
	}
	if _, err := Build(page, "", p, Config{}); !errors.Is(err, ErrUnknownFont) {
		t.Fatalf("error = %v, want ErrUnknownFont", err)
	}
}

func TestEncodeCIDWidths(t *testing.T) {
	got := encodeCIDWidths(map[int]int{1: 500, 2: 500, 3: 600, 5: 600})
	var nums []int64
	for _, it := range got.Items {
		nums = append(nums, it.(raw.NumberObj).Int())
	}
	want := []int64{1, 2, 500, 3, 3, 600, 5, 5, 600}
	if diff := cmp.Diff(want, nums); diff != "" {
		t.Fatalf("widths mismatch (-want +got):\n%s", diff)
	}
}

func TestTextString(t *testing.T) {
	if s := TextString("Report 1"); s.IsHex() || string(s.Value()) != "Report 1" {
		t.Fatalf("ascii title = %v", s)
	}
	s := TextString("Я")
	if want := []byte{0xFE, 0xFF, 0x04, 0x2F}; !bytes.Equal(s.Value(), want) {
		t.Fatalf("UTF-16 = % X, want % X", s.Value(), want)
	}
}
