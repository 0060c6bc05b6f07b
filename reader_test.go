package slidepreview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDeck(t *testing.T, d testDeck) *Document {
	t.Helper()
	doc, err := NewReader(nil).ReadBytes(context.Background(), d.build(t))
	require.NoError(t, err)
	return doc
}

func TestReaderTextAndChart(t *testing.T) {
	doc := readDeck(t, helloChartDeck())
	assert.Equal(t, "Quarterly", doc.Title)
	assert.Equal(t, "Tester", doc.Author)
	require.Equal(t, 1, doc.SlideCount())

	s := doc.Slides[0]
	assert.Equal(t, "slide-1", s.ID)
	assert.InDelta(t, 1920, s.Width, 1e-6)
	assert.InDelta(t, 1080, s.Height, 1e-6)
	require.Len(t, s.Elements, 2)

	text, ok := s.Elements[0].(*TextElement)
	require.True(t, ok, "first element is %T", s.Elements[0])
	assert.Equal(t, "Hello", text.Content)
	assert.InDelta(t, 24, text.FontSize, 1e-6)
	assert.Equal(t, NewColor("#000000"), text.Color)
	assert.InDelta(t, 96, text.X, 1e-6)
	assert.InDelta(t, 384, text.Width, 1e-6)
	assert.Equal(t, 0, text.ZIndex)

	chart, ok := s.Elements[1].(*ChartElement)
	require.True(t, ok, "second element is %T", s.Elements[1])
	assert.Equal(t, "column", chart.ChartType)
	assert.Equal(t, "Revenue", chart.Title)
	assert.Equal(t, []string{"Q1", "Q2"}, chart.Categories)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "Sales", chart.Series[0].Name)
	assert.Equal(t, []float64{3, 5}, chart.Series[0].Values)
	assert.Equal(t, 1, chart.ZIndex)

	require.Len(t, doc.Fonts, 1)
	assert.Equal(t, "Calibri", doc.Fonts[0].Family)
}

func TestReaderDefaultSlideSize(t *testing.T) {
	doc := readDeck(t, testDeck{Slides: []testSlide{{}}})
	require.Len(t, doc.Slides, 1)
	s := doc.Slides[0]
	assert.Equal(t, 1920.0, s.Width)
	assert.Equal(t, 1080.0, s.Height)
	assert.InDelta(t, 16.0/9.0, s.AspectRatio, 1e-9)
	assert.Equal(t, "Untitled Presentation", doc.Title)
	assert.Equal(t, "Unknown", doc.Author)
}

func TestReaderKeepsSlideCountWithBrokenSlides(t *testing.T) {
	doc := readDeck(t, testDeck{
		Width:  12192000,
		Height: 6858000,
		Slides: []testSlide{
			{Body: textShapeXML(2, "first", 1800, "000000")},
			{Raw: `<p:sld ` + testNS + `><p:cSld></p:sld>`},
			{Body: textShapeXML(2, "third", 1800, "000000")},
			{Body: textShapeXML(2, "orphan", 1800, "000000")},
		},
		SkipRel: 4,
	})
	require.Len(t, doc.Slides, 4)
	for i, s := range doc.Slides {
		assert.Equal(t, i, s.Index)
		assert.InDelta(t, 1280, s.Width, 1e-6)
	}
	assert.False(t, doc.Slides[0].Placeholder)
	assert.True(t, doc.Slides[1].Placeholder)
	assert.Empty(t, doc.Slides[1].Elements)
	assert.Contains(t, doc.Slides[1].Warnings[0], "could not be decoded")
	assert.False(t, doc.Slides[2].Placeholder)
	assert.True(t, doc.Slides[3].Placeholder)
}

func TestReaderGroupTransform(t *testing.T) {
	group := `<p:grpSp><p:nvGrpSpPr><p:cNvPr id="4" name="Group"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="914400" y="914400"/><a:ext cx="1828800" cy="914400"/>` +
		`<a:chOff x="0" y="0"/><a:chExt cx="914400" cy="457200"/></a:xfrm></p:grpSpPr>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="5" name="Dot"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>` +
		`<p:spPr>` + xfrmXML(457200, 0, 457200, 457200) + `<a:prstGeom prst="ellipse"/>` +
		`<a:solidFill><a:srgbClr val="FF0000"/></a:solidFill></p:spPr></p:sp></p:grpSp>`
	doc := readDeck(t, testDeck{Slides: []testSlide{{Body: group}}})

	require.Len(t, doc.Slides[0].Elements, 1)
	g, ok := doc.Slides[0].Elements[0].(*GroupElement)
	require.True(t, ok)
	assert.InDelta(t, 96, g.X, 1e-6)
	assert.InDelta(t, 192, g.Width, 1e-6)
	require.Len(t, g.Children, 1)

	dot, ok := g.Children[0].(*ShapeElement)
	require.True(t, ok)
	assert.Equal(t, ShapeEllipse, dot.Shape)
	assert.Equal(t, g.ID, dot.ParentID)
	assert.InDelta(t, 192, dot.X, 1e-6)
	assert.InDelta(t, 96, dot.Y, 1e-6)
	assert.InDelta(t, 96, dot.Width, 1e-6)
	assert.InDelta(t, 96, dot.Height, 1e-6)
	assert.Equal(t, NewColor("#FF0000"), dot.Fill.Color)
}

func TestReaderHiddenAndEffects(t *testing.T) {
	hidden := `<p:sp><p:nvSpPr><p:cNvPr id="2" name="Hidden" hidden="1"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>` +
		`<p:spPr>` + xfrmXML(0, 0, 914400, 914400) + `<a:prstGeom prst="rect"/><a:solidFill><a:srgbClr val="00FF00"/></a:solidFill>` +
		`<a:effectLst><a:outerShdw blurRad="40000"/></a:effectLst></p:spPr></p:sp>`
	doc := readDeck(t, testDeck{Slides: []testSlide{{Body: hidden}}})
	require.Len(t, doc.Slides[0].Elements, 1)
	b := doc.Slides[0].Elements[0].Base()
	assert.False(t, b.Visible)
	assert.Equal(t, []string{"outerShdw"}, b.Effects)
}

func TestReaderUnsupportedFrameWarns(t *testing.T) {
	frame := `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="2" name="Ink"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>` +
		`<p:xfrm><a:off x="0" y="0"/><a:ext cx="10" cy="10"/></p:xfrm>` +
		`<a:graphic><a:graphicData uri="urn:example:ink"/></a:graphic></p:graphicFrame>`
	doc := readDeck(t, testDeck{Slides: []testSlide{{Body: frame + textShapeXML(3, "kept", 1200, "333333")}}})
	s := doc.Slides[0]
	require.Len(t, s.Elements, 1)
	assert.Equal(t, KindText, s.Elements[0].Kind())
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], `"Ink"`)
}

func TestReaderRejectsNonPackages(t *testing.T) {
	r := NewReader(nil)
	_, err := r.ReadBytes(context.Background(), []byte("definitely not a zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPackageUnreadable))

	_, err = r.ReadBytes(context.Background(), nil)
	assert.Equal(t, CodePackageUnreadable, CodeOf(err))

	_, err = r.Read(context.Background(), filepath.Join(t.TempDir(), "missing.pptx"))
	assert.Equal(t, CodePackageUnreadable, CodeOf(err))
}

func TestReaderReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	require.NoError(t, os.WriteFile(path, helloChartDeck().build(t), 0o644))
	doc, err := NewReader(nil).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.SlideCount())
}

func TestReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReader(nil).ReadBytes(ctx, helloChartDeck().build(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolvePartName(t *testing.T) {
	assert.Equal(t, "ppt/charts/chart1.xml", resolvePartName("ppt/slides/slide1.xml", "../charts/chart1.xml"))
	assert.Equal(t, "ppt/media/a.png", resolvePartName("ppt/slides/slide1.xml", "/ppt/media/a.png"))
	assert.True(t, relIDLess("rId2", "rId10"))
}
