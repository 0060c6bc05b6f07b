package slidepreview

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
		`xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"`
	testRelNS   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	testPkgRels = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// testSlide is one slide of a generated deck. Body is the spTree content;
// Rels are extra relationships as id -> "type|target", with a trailing
// "|External" for linked targets; Raw replaces the whole slide part when set.
type testSlide struct {
	Body string
	Rels map[string]string
	Raw  string
}

// testDeck describes an in-memory package. Width and Height are in EMU; zero
// omits p:sldSz.
type testDeck struct {
	Width, Height int
	Title         string
	Slides        []testSlide
	Parts         map[string]string
	// SkipRel drops the presentation relationship of the slide at that
	// index, plus one.
	SkipRel int
}

func (d testDeck) build(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	put := func(name, content string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	put("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`)
	if d.Title != "" {
		put("docProps/core.xml", `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">`+
			`<dc:title>`+d.Title+`</dc:title><dc:creator>Tester</dc:creator></cp:coreProperties>`)
	}

	var ids, rels strings.Builder
	for i := range d.Slides {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
		if d.SkipRel == i+1 {
			continue
		}
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s/slide" Target="slides/slide%d.xml"/>`, i+2, testRelNS, i+1)
	}
	size := ""
	if d.Width > 0 {
		size = fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, d.Width, d.Height)
	}
	put("ppt/presentation.xml", `<p:presentation `+testNS+`><p:sldIdLst>`+ids.String()+`</p:sldIdLst>`+size+`</p:presentation>`)
	put("ppt/_rels/presentation.xml.rels", `<Relationships xmlns="`+testPkgRels+`">`+rels.String()+`</Relationships>`)

	for i, s := range d.Slides {
		name := fmt.Sprintf("ppt/slides/slide%d.xml", i+1)
		if s.Raw != "" {
			put(name, s.Raw)
		} else {
			put(name, `<p:sld `+testNS+`><p:cSld><p:spTree>`+s.Body+`</p:spTree></p:cSld></p:sld>`)
		}
		if len(s.Rels) > 0 {
			var b strings.Builder
			for id, v := range s.Rels {
				typ, target, _ := strings.Cut(v, "|")
				target, mode, _ := strings.Cut(target, "|")
				if mode != "" {
					mode = ` TargetMode="` + mode + `"`
				}
				fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s/%s" Target="%s"%s/>`, id, testRelNS, typ, target, mode)
			}
			put(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), `<Relationships xmlns="`+testPkgRels+`">`+b.String()+`</Relationships>`)
		}
	}
	for name, content := range d.Parts {
		put(name, content)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// xfrmXML positions a shape in EMU.
func xfrmXML(x, y, w, h int) string {
	return fmt.Sprintf(`<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, x, y, w, h)
}

// textShapeXML is a text box whose single run uses size in 1/100 pt.
func textShapeXML(id int, text string, size int, color string) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Text %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`+
		`<p:spPr>%s<a:prstGeom prst="rect"/></p:spPr>`+
		`<p:txBody><a:bodyPr/><a:p><a:r><a:rPr sz="%d"><a:solidFill><a:srgbClr val="%s"/></a:solidFill></a:rPr><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`,
		id, id, xfrmXML(914400, 914400, 3657600, 914400), size, color, text)
}

// chartFrameXML references chart relationship rId.
func chartFrameXML(id int, rID string) string {
	return fmt.Sprintf(`<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Chart %d"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`+
		`<p:xfrm><a:off x="914400" y="2743200"/><a:ext cx="4572000" cy="2743200"/></p:xfrm>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:chart r:id="%s"/></a:graphicData></a:graphic></p:graphicFrame>`,
		id, id, rID)
}

const testChartXML = `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<c:chart><c:title><c:tx><c:rich><a:p><a:r><a:t>Revenue</a:t></a:r></a:p></c:rich></c:tx></c:title>` +
	`<c:plotArea><c:barChart><c:barDir val="col"/><c:ser>` +
	`<c:tx><c:strRef><c:strCache><c:ptCount val="1"/><c:pt idx="0"><c:v>Sales</c:v></c:pt></c:strCache></c:strRef></c:tx>` +
	`<c:cat><c:strRef><c:strCache><c:ptCount val="2"/><c:pt idx="0"><c:v>Q1</c:v></c:pt><c:pt idx="1"><c:v>Q2</c:v></c:pt></c:strCache></c:strRef></c:cat>` +
	`<c:val><c:numRef><c:numCache><c:ptCount val="2"/><c:pt idx="0"><c:v>3</c:v></c:pt><c:pt idx="1"><c:v>5</c:v></c:pt></c:numCache></c:numRef></c:val>` +
	`</c:ser></c:barChart></c:plotArea></c:chart></c:chartSpace>`

// helloChartDeck is a 1920x1080 slide with a text box and a column chart.
func helloChartDeck() testDeck {
	return testDeck{
		Width:  18288000,
		Height: 10287000,
		Title:  "Quarterly",
		Slides: []testSlide{{
			Body: textShapeXML(2, "Hello", 1800, "000000") + chartFrameXML(3, "rId2"),
			Rels: map[string]string{"rId2": "chart|../charts/chart1.xml"},
		}},
		Parts: map[string]string{"ppt/charts/chart1.xml": testChartXML},
	}
}

// picXML is a picture at the given EMU box. blip holds the relationship
// attribute, e.g. r:embed="rId2"; srcRect and prst are optional.
func picXML(id int, blip, srcRect, prst string, x, y, w, h int) string {
	if prst == "" {
		prst = "rect"
	}
	return fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`+
		`<p:blipFill><a:blip %s/>%s<a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
		`<p:spPr>%s<a:prstGeom prst="%s"/></p:spPr></p:pic>`,
		id, id, blip, srcRect, xfrmXML(x, y, w, h), prst)
}
