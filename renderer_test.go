package slidepreview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRenderer resolves no system fonts, so every face is the generic one.
func testRenderer() *Renderer {
	return NewRenderer(NewFontManager(NewFontRegistry(nil), nil), nil, nil)
}

func fastOptions() RenderOptions {
	opts := DefaultRenderOptions()
	opts.Scale = 0.25
	opts.Quality = QualityLow
	return opts
}

func TestRenderTextAndChart(t *testing.T) {
	doc := readDeck(t, helloChartDeck())
	slides, err := testRenderer().RenderPresentation(context.Background(), doc, DefaultRenderOptions())
	require.NoError(t, err)
	require.Len(t, slides, 1)

	s := slides[0]
	assert.Equal(t, 1920, s.Width)
	assert.Equal(t, 1080, s.Height)
	assert.InDelta(t, 16.0/9, s.AspectRatio, 1e-3)
	assert.Equal(t, "image/png", s.MIME)
	assert.NotEmpty(t, s.Data)
	assert.True(t, strings.HasPrefix(s.DataURI(), "data:image/png;base64,"))

	require.Len(t, s.Elements, 2)
	text := s.Elements[0]
	assert.Equal(t, KindText, text.Type)
	assert.True(t, text.Rendered)
	assert.Empty(t, text.FallbackType)
	assert.Empty(t, text.Warning)

	chart := s.Elements[1]
	assert.Equal(t, KindChart, chart.Type)
	assert.True(t, chart.Rendered)
	assert.Equal(t, FallbackRasterized, chart.FallbackType)
	assert.Equal(t, "Chart was rasterized as a static image", chart.Warning)
	assert.True(t, strings.HasPrefix(chart.FallbackImage, "data:image/png;base64,"))
	assert.Contains(t, s.Warnings, "Chart was rasterized as a static image")

	r, g, b, _ := s.Image.At(5, 5).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "background is white")
}

func TestRenderChartWithoutFallbacks(t *testing.T) {
	doc := readDeck(t, helloChartDeck())
	opts := fastOptions()
	opts.EnableFallbacks = false

	slides, err := testRenderer().RenderPresentation(context.Background(), doc, opts)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	require.Len(t, slides[0].Elements, 2)

	chart := slides[0].Elements[1]
	assert.False(t, chart.Rendered)
	assert.Equal(t, "Chart is not supported", chart.Warning)
	assert.Empty(t, chart.FallbackImage)
	assert.True(t, slides[0].Elements[0].Rendered)
}

func TestRenderKeepsSlideCount(t *testing.T) {
	d := helloChartDeck()
	d.Slides = append(d.Slides,
		testSlide{Raw: `<p:sld ` + testNS + `><p:cSld><p:spTree></p:cSld></p:sld>`},
		testSlide{Body: textShapeXML(2, "Third", 2400, "336699")},
	)
	doc := readDeck(t, d)
	require.Equal(t, 3, doc.SlideCount())

	opts := fastOptions()
	opts.Concurrency = 3
	slides, err := testRenderer().RenderPresentation(context.Background(), doc, opts)
	require.NoError(t, err)
	require.Len(t, slides, 3)
	for i, s := range slides {
		require.NotNil(t, s, "slide %d", i+1)
		assert.Equal(t, i, s.Index)
		assert.Equal(t, 480, s.Width)
		assert.Equal(t, 270, s.Height)
		assert.Equal(t, "image/jpeg", s.MIME)
		assert.NotEmpty(t, s.Data)
	}
	assert.Empty(t, slides[1].Elements)
	assert.NotEmpty(t, slides[1].Warnings)
	assert.Len(t, slides[2].Elements, 1)
}

func TestRenderIsIdempotent(t *testing.T) {
	doc := readDeck(t, helloChartDeck())
	r := testRenderer()
	opts := fastOptions()
	opts.Quality = QualityMedium

	first, err := r.RenderPresentation(context.Background(), doc, opts)
	require.NoError(t, err)
	second, err := r.RenderPresentation(context.Background(), doc, opts)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.True(t, bytes.Equal(first[0].Data, second[0].Data))
	assert.Equal(t, first[0].Elements, second[0].Elements)
}

func TestRenderCancelled(t *testing.T) {
	doc := readDeck(t, helloChartDeck())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slides, err := testRenderer().RenderPresentation(ctx, doc, fastOptions())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, slides)
}

func TestRenderRejectsBadInput(t *testing.T) {
	r := testRenderer()
	opts := DefaultRenderOptions()
	opts.Quality = "extreme"

	_, err := r.RenderPresentation(context.Background(), &Document{}, opts)
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = r.RenderPresentation(context.Background(), nil, DefaultRenderOptions())
	require.Error(t, err)
	assert.Equal(t, CodeRender, CodeOf(err))

	_, err = r.RenderSlide(context.Background(), nil, DefaultRenderOptions())
	require.Error(t, err)
}

func TestRenderSizeOptions(t *testing.T) {
	slide := newSlide("slide-1", 0, 1920, 1080)
	tests := []struct {
		name string
		opts func(*RenderOptions)
		w, h int
	}{
		{"scale", func(o *RenderOptions) { o.Scale = 0.5 }, 960, 540},
		{"width only", func(o *RenderOptions) { o.Scale, o.Width = 0, 640 }, 640, 360},
		{"height only", func(o *RenderOptions) { o.Scale, o.Height = 0, 540 }, 960, 540},
		{"box keeps aspect", func(o *RenderOptions) { o.Scale, o.Width, o.Height = 0, 800, 800 }, 800, 450},
		{"box stretches", func(o *RenderOptions) {
			o.Scale, o.Width, o.Height, o.PreserveAspectRatio = 0, 800, 800, false
		}, 800, 800},
		{"scale wins", func(o *RenderOptions) { o.Scale, o.Width = 0.25, 1000 }, 480, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultRenderOptions()
			opts.Quality = QualityLow
			tt.opts(&opts)
			rs, err := testRenderer().RenderSlide(context.Background(), slide, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.w, rs.Width)
			assert.Equal(t, tt.h, rs.Height)
			assert.Equal(t, tt.w, rs.Image.Bounds().Dx())
			assert.Equal(t, tt.h, rs.Image.Bounds().Dy())
		})
	}
}

func TestRenderGroupCycleBecomesPlaceholder(t *testing.T) {
	g := &GroupElement{ElementBase: newElementBase("g1")}
	g.Width, g.Height = 100, 100
	g.Children = []Element{g}
	slide := newSlide("slide-1", 0, 400, 300)
	slide.Elements = []Element{g}

	_, err := testRenderer().RenderSlide(context.Background(), slide, fastOptions())
	require.Error(t, err)

	slides, err := testRenderer().RenderPresentation(context.Background(), &Document{Slides: []*Slide{slide}}, DefaultRenderOptions())
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "slide-1", slides[0].ID)
	assert.Equal(t, 400, slides[0].Width)
	assert.Empty(t, slides[0].Elements)
	require.NotEmpty(t, slides[0].Warnings)
	assert.Contains(t, slides[0].Warnings[len(slides[0].Warnings)-1], "could not be rendered")
}

func TestRenderHiddenElement(t *testing.T) {
	shape := &ShapeElement{ElementBase: newElementBase("s1"), Shape: ShapeRectangle,
		Fill: &Fill{Type: FillSolid, Color: NewColor("#ff0000")}}
	shape.Width, shape.Height = 100, 100
	shape.Visible = false
	slide := newSlide("slide-1", 0, 200, 200)
	slide.Elements = []Element{shape}

	rs, err := testRenderer().RenderSlide(context.Background(), slide, DefaultRenderOptions())
	require.NoError(t, err)
	require.Len(t, rs.Elements, 1)
	assert.False(t, rs.Elements[0].Rendered)
	assert.Empty(t, rs.Elements[0].Warning)
	assert.Empty(t, rs.Warnings)
	assert.Equal(t, color.NRGBAModel.Convert(rs.Image.At(50, 50)), color.NRGBAModel.Convert(color.White))
}

func TestRenderShapePaintsFill(t *testing.T) {
	shape := &ShapeElement{ElementBase: newElementBase("s1"), Shape: ShapeRectangle,
		Fill: &Fill{Type: FillSolid, Color: NewColor("#ff0000")}}
	shape.X, shape.Y, shape.Width, shape.Height = 50, 50, 100, 100
	slide := newSlide("slide-1", 0, 200, 200)
	slide.Elements = []Element{shape}

	rs, err := testRenderer().RenderSlide(context.Background(), slide, DefaultRenderOptions())
	require.NoError(t, err)
	require.Len(t, rs.Elements, 1)
	assert.True(t, rs.Elements[0].Rendered)

	r, g, b, _ := rs.Image.At(100, 100).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
	r, g, b, _ = rs.Image.At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestByZIndexIsStable(t *testing.T) {
	a, b, c := NewTextElement("a", ""), NewTextElement("b", ""), NewTextElement("c", "")
	a.ZIndex, b.ZIndex, c.ZIndex = 2, 1, 1
	got := byZIndex([]Element{a, b, c})
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.Base().ID
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

// rectShapeXML is a filled rectangle at the given EMU box.
func rectShapeXML(id, x, y, w, h int, fill string) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Rect %d"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>`+
		`<p:spPr>%s<a:prstGeom prst="rect"/><a:solidFill><a:srgbClr val="%s"/></a:solidFill></p:spPr></p:sp>`,
		id, id, xfrmXML(x, y, w, h), fill)
}

func TestRenderOversizedElement(t *testing.T) {
	d := testDeck{Width: 9144000, Height: 5143500, Slides: []testSlide{{
		Body: rectShapeXML(2, 0, 0, 914400000, 914400000, "FF0000"),
	}}}
	doc := readDeck(t, d)
	require.Len(t, doc.Slides[0].Elements, 1)
	assert.Greater(t, doc.Slides[0].Elements[0].Base().Width, float64(maxSurfaceSide))

	rs, err := testRenderer().RenderSlide(context.Background(), doc.Slides[0], DefaultRenderOptions())
	require.NoError(t, err)
	assert.Equal(t, 960, rs.Width)
	require.Len(t, rs.Elements, 1)
	el := rs.Elements[0]
	assert.True(t, el.Rendered)
	assert.Equal(t, FallbackRasterized, el.FallbackType)
	assert.Equal(t, "Shape was rasterized as a static image", el.Warning)

	opts := DefaultRenderOptions()
	opts.EnableFallbacks = false
	rs, err = testRenderer().RenderSlide(context.Background(), doc.Slides[0], opts)
	require.NoError(t, err)
	require.Len(t, rs.Elements, 1)
	assert.False(t, rs.Elements[0].Rendered)
	assert.Equal(t, "Shape is too large to render", rs.Elements[0].Warning)
	assert.Contains(t, rs.Warnings, "Shape is too large to render")
}

func TestRenderOversizedSlide(t *testing.T) {
	d := testDeck{Width: 914400000, Height: 514350000, Slides: []testSlide{{
		Body: textShapeXML(2, "Huge", 1800, "000000"),
	}}}
	doc := readDeck(t, d)
	assert.InDelta(t, 96000, doc.Slides[0].Width, 1)

	rs, err := testRenderer().RenderSlide(context.Background(), doc.Slides[0], fastOptions())
	require.NoError(t, err)
	assert.LessOrEqual(t, rs.Width, maxSurfaceSide)
	assert.LessOrEqual(t, rs.Height, maxSurfaceSide)
	assert.LessOrEqual(t, rs.Width*rs.Height, maxSurfacePixels)
	assert.InDelta(t, 96000.0/54000, float64(rs.Width)/float64(rs.Height), 0.01)
	assert.Contains(t, strings.Join(rs.Warnings, "\n"), "downscaled")
}

func TestFitSurface(t *testing.T) {
	tests := []struct {
		name         string
		w, h, sx, sy float64
		shrunk       bool
	}{
		{"fits", 1920, 1080, 1, 1, false},
		{"side too long", 20000, 100, 1, 1, true},
		{"too many pixels", 8000, 8000, 1, 1, true},
		{"scaled up", 1920, 1080, 10, 10, true},
		{"empty", 0, 0, 1, 1, false},
		{"nan", math.NaN(), 100, 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sx, sy, shrunk := fitSurface(tt.w, tt.h, tt.sx, tt.sy)
			assert.Equal(t, tt.shrunk, shrunk)
			if !shrunk {
				return
			}
			w, h := math.Ceil(tt.w*sx), math.Ceil(tt.h*sy)
			assert.True(t, surfaceFits(w, h), "%vx%v", w, h)
			assert.InDelta(t, tt.sx/tt.sy, sx/sy, 1e-9)
		})
	}
	assert.False(t, surfaceFits(math.Inf(1), 1))
	assert.Equal(t, 1, pixelSize(-5))
	assert.Equal(t, 1<<30, pixelSize(1e300))
}

// inkBox bounds the pixels of img within area that are darker than mid gray.
func inkBox(img image.Image, area image.Rectangle) image.Rectangle {
	var box image.Rectangle
	b := img.Bounds().Intersect(area)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return box
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func renderOne(t *testing.T, w, h float64, bg *Background, elements ...Element) *RenderedSlide {
	t.Helper()
	slide := newSlide("slide-1", 0, w, h)
	slide.Background = bg
	slide.Elements = elements
	rs, err := testRenderer().RenderSlide(context.Background(), slide, DefaultRenderOptions())
	require.NoError(t, err)
	return rs
}

func TestRenderBackgroundModes(t *testing.T) {
	src := &ImageSource{Data: testPNG(t, 20, 10)}
	red, blue, white := color.NRGBA{255, 0, 0, 255}, color.NRGBA{0, 0, 255, 255}, color.NRGBA{255, 255, 255, 255}
	tests := []struct {
		fit    BackgroundFit
		probes map[image.Point]color.NRGBA
	}{
		{FitFill, map[image.Point]color.NRGBA{{50, 10}: red, {150, 190}: blue}},
		{FitContain, map[image.Point]color.NRGBA{{50, 10}: white, {50, 100}: red, {150, 100}: blue, {150, 190}: white}},
		{FitStretch, map[image.Point]color.NRGBA{{50, 10}: red, {150, 190}: blue}},
		{FitTile, map[image.Point]color.NRGBA{{5, 5}: red, {15, 5}: blue, {25, 15}: red, {35, 15}: blue, {185, 195}: red}},
	}
	for _, tt := range tests {
		t.Run(string(tt.fit), func(t *testing.T) {
			rs := renderOne(t, 200, 200, &Background{Type: BackgroundImage, Image: src, Fit: tt.fit})
			for pt, want := range tt.probes {
				assert.Equal(t, want, nrgbaAt(rs.Image, pt.X, pt.Y), "%v", pt)
			}
		})
	}

	rs := renderOne(t, 200, 100, &Background{Type: BackgroundGradient, Gradient: &Gradient{
		Type:  GradientLinear,
		Stops: []GradientStop{{Offset: 0, Color: NewColor("#ff0000")}, {Offset: 1, Color: NewColor("#0000ff")}},
	}})
	left, mid, right := nrgbaAt(rs.Image, 1, 50), nrgbaAt(rs.Image, 100, 50), nrgbaAt(rs.Image, 198, 50)
	assert.Greater(t, left.R, uint8(240))
	assert.Less(t, left.B, uint8(15))
	assert.Greater(t, right.B, uint8(240))
	assert.Less(t, right.R, uint8(15))
	assert.InDelta(t, 128, int(mid.R), 12)
	assert.InDelta(t, 128, int(mid.B), 12)
}

func redRect(id string, x, y, w, h float64) *ShapeElement {
	s := &ShapeElement{ElementBase: newElementBase(id), Shape: ShapeRectangle,
		Fill: &Fill{Type: FillSolid, Color: NewColor("#ff0000")}}
	s.X, s.Y, s.Width, s.Height = x, y, w, h
	return s
}

func TestRenderRotatesAboutCenter(t *testing.T) {
	bar := redRect("bar", 50, 90, 100, 20)
	rs := renderOne(t, 200, 200, nil, bar)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, nrgbaAt(rs.Image, 60, 100))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 100, 60))

	bar.Rotation = 90
	rs = renderOne(t, 200, 200, nil, bar)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 60, 100))
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, nrgbaAt(rs.Image, 100, 60))
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, nrgbaAt(rs.Image, 100, 140))
	assert.InDelta(t, 90, rs.Elements[0].Rotation, 1e-9)
}

func TestRenderOpacity(t *testing.T) {
	half := redRect("half", 0, 0, 100, 100)
	half.Opacity = 0.5

	inner := redRect("inner", 100, 0, 100, 100)
	group := &GroupElement{ElementBase: newElementBase("g"), Children: []Element{inner}}
	group.X, group.Width, group.Height = 100, 100, 100
	group.Opacity = 0.5

	rs := renderOne(t, 200, 100, nil, half, group)
	for _, x := range []int{50, 150} {
		c := nrgbaAt(rs.Image, x, 50)
		assert.InDelta(t, 255, int(c.R), 1, "x=%d", x)
		assert.InDelta(t, 128, int(c.G), 2, "x=%d", x)
		assert.InDelta(t, 128, int(c.B), 2, "x=%d", x)
	}
	require.Len(t, rs.Elements, 3)
	assert.Equal(t, []string{"half", "g", "inner"}, []string{rs.Elements[0].ID, rs.Elements[1].ID, rs.Elements[2].ID})
}

func TestRenderTextAlignment(t *testing.T) {
	text := func(h HAlign, v VAlign) *TextElement {
		el := NewTextElement("t", "Hi")
		el.Width, el.Height = 400, 200
		el.FontSize = 40
		el.Insets = Insets{}
		el.Align, el.VerticalAlign = h, v
		return el
	}
	tests := []struct {
		name  string
		h     HAlign
		v     VAlign
		check func(t *testing.T, box image.Rectangle)
	}{
		{"left top", AlignLeft, AlignTop, func(t *testing.T, box image.Rectangle) {
			assert.Less(t, box.Min.X, 20)
			assert.Less(t, box.Min.Y, 50)
		}},
		{"center middle", AlignCenter, AlignMiddle, func(t *testing.T, box image.Rectangle) {
			assert.InDelta(t, 200, (box.Min.X+box.Max.X)/2, 10)
			assert.InDelta(t, 100, (box.Min.Y+box.Max.Y)/2, 20)
		}},
		{"right bottom", AlignRight, AlignBottom, func(t *testing.T, box image.Rectangle) {
			assert.Greater(t, box.Max.X, 380)
			assert.Greater(t, box.Max.Y, 150)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := renderOne(t, 400, 200, nil, text(tt.h, tt.v))
			box := inkBox(rs.Image, rs.Image.Bounds())
			require.False(t, box.Empty())
			tt.check(t, box)
		})
	}
}

func TestRenderTextJustifyAndSpacing(t *testing.T) {
	para := func(align HAlign, spacing float64) image.Rectangle {
		el := NewTextElement("t", "aaa bbb ccc ddd eee fff")
		el.Width, el.Height = 200, 200
		el.FontSize = 30
		el.Insets = Insets{}
		el.Align = align
		el.LetterSpacing = spacing
		rs := renderOne(t, 200, 200, nil, el)
		// First line only.
		return inkBox(rs.Image, image.Rect(0, 0, 200, 36))
	}

	left, justified := para(AlignLeft, 0), para(AlignJustify, 0)
	assert.Equal(t, left.Min.X, justified.Min.X)
	assert.Greater(t, justified.Max.X, left.Max.X+10)
	assert.GreaterOrEqual(t, justified.Max.X, 190)

	spaced := func(spacing float64) int {
		el := NewTextElement("t", "abc")
		el.Width, el.Height = 400, 100
		el.FontSize = 30
		el.Insets = Insets{}
		el.LetterSpacing = spacing
		img := renderOne(t, 400, 100, nil, el).Image
		return inkBox(img, img.Bounds()).Dx()
	}
	assert.GreaterOrEqual(t, spaced(10), spaced(0)+18)
}

func TestRenderImageCropAndMask(t *testing.T) {
	d := testDeck{Width: 9144000, Height: 5143500, Slides: []testSlide{{
		Body: picXML(2, `r:embed="rId2"`, `<a:srcRect l="50000"/>`, "triangle", 1905000, 952500, 2857500, 2857500),
		Rels: map[string]string{"rId2": "image|../media/image1.png"},
	}}, Parts: map[string]string{"ppt/media/image1.png": string(testPNG(t, 40, 40))}}
	doc := readDeck(t, d)
	require.Len(t, doc.Slides[0].Elements, 1)
	im, ok := doc.Slides[0].Elements[0].(*ImageElement)
	require.True(t, ok)
	require.NotNil(t, im.Crop)
	require.NotNil(t, im.Mask)

	opts := DefaultRenderOptions()
	opts.Scale = 0.5
	rs, err := testRenderer().RenderSlide(context.Background(), doc.Slides[0], opts)
	require.NoError(t, err)
	require.Len(t, rs.Elements, 1)
	assert.True(t, rs.Elements[0].Rendered)

	// The picture covers (100,50)-(250,200); the triangle apex is at the top center.
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, nrgbaAt(rs.Image, 175, 190))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, nrgbaAt(rs.Image, 120, 195))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 110, 60))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 240, 60))
}

func TestRenderRefusesLinkedImages(t *testing.T) {
	file := filepath.Join(t.TempDir(), "secret.png")
	require.NoError(t, os.WriteFile(file, testPNG(t, 40, 40), 0o600))
	d := testDeck{Width: 9144000, Height: 5143500, Slides: []testSlide{{
		Body: picXML(2, `r:link="rId2"`, "", "", 0, 0, 2857500, 2857500),
		Rels: map[string]string{"rId2": "image|" + file + "|External"},
	}}}
	doc := readDeck(t, d)
	require.Len(t, doc.Slides[0].Elements, 1)
	im := doc.Slides[0].Elements[0].(*ImageElement)
	assert.True(t, im.Source.External)
	assert.Equal(t, file, im.Source.Ref)
	assert.Empty(t, im.Source.Data)

	rs, err := testRenderer().RenderSlide(context.Background(), doc.Slides[0], DefaultRenderOptions())
	require.NoError(t, err)
	require.Len(t, rs.Elements, 1)
	assert.False(t, rs.Elements[0].Rendered)
	assert.Equal(t, "Linked image was not loaded: "+file, rs.Elements[0].Warning)
	assert.Contains(t, rs.Warnings, rs.Elements[0].Warning)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 150, 150))
}

func TestRenderGroupSnapshot(t *testing.T) {
	child := redRect("child", 60, 60, 40, 40)
	group := &GroupElement{ElementBase: newElementBase("g"), Children: []Element{child}}
	group.X, group.Y, group.Width, group.Height = 50, 50, 100, 100
	group.Animated = true

	rs := renderOne(t, 200, 200, nil, group)
	require.NotEmpty(t, rs.Elements)
	assert.Equal(t, FallbackRasterized, rs.Elements[0].FallbackType)
	assert.Equal(t, "Animation was flattened to a static frame", rs.Elements[0].Warning)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, nrgbaAt(rs.Image, 80, 80))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, nrgbaAt(rs.Image, 120, 120))
}
