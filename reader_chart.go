package slidepreview

import (
	"fmt"
	"strconv"
	"strings"
)

func (sp *slideParser) chart(nv nonVisual, xf xfrm, tx *groupTransform, ref *xmlNode) ([]Element, error) {
	el := &ChartElement{ElementBase: sp.base(nv, xf, tx, nil), ChartType: "unknown"}
	rel, ok := sp.slide.rels[ref.attrNS(nsRelationships, "id")]
	if !ok || rel.External {
		sp.warn("Chart %q has no data part", nv.name)
		return []Element{el}, nil
	}
	if err := sp.readChart(el, rel.Target); err != nil {
		sp.warn("Chart %q data unreadable: %v", nv.name, err)
	}
	return []Element{el}, nil
}

// readChart fills el from the cached values of a chart part. Combination
// charts take their type from the first plot and their series from all.
func (sp *slideParser) readChart(el *ChartElement, part string) error {
	data, err := sp.pkg.read(part)
	if err != nil {
		return err
	}
	root, err := parseXMLTree(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", part, err)
	}
	chart := root.child("chart")
	if title := chart.child("title"); title != nil {
		el.Title = joinText(title.findAll("t"))
	}
	first := true
	for _, plot := range chart.child("plotArea").kids() {
		if !strings.HasSuffix(plot.Name.Local, "Chart") {
			continue
		}
		if first {
			el.ChartType = chartType(plot)
			first = false
		}
		for _, ser := range plot.childrenNamed("ser") {
			s := ChartSeries{Name: joinText(ser.child("tx").findAll("v"))}
			vals := ser.child("val")
			if vals == nil {
				vals = ser.child("yVal")
			}
			for _, v := range cachePoints(vals) {
				f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
				s.Values = append(s.Values, f)
			}
			if f, ok := parseFill(ser.child("spPr"), sp.theme, nil); ok && f.Type != FillNone {
				c := f.Flatten().Color
				s.Color = &c
			}
			if len(el.Categories) == 0 {
				cat := ser.child("cat")
				if cat == nil {
					cat = ser.child("xVal")
				}
				el.Categories = cachePoints(cat)
			}
			if s.Name == "" {
				s.Name = fmt.Sprintf("Series %d", len(el.Series)+1)
			}
			el.Series = append(el.Series, s)
		}
	}
	return nil
}

// chartType names a plot element: barChart with barDir=col is a column
// chart, 3D variants share the 2D name.
func chartType(plot *xmlNode) string {
	t := strings.TrimSuffix(plot.Name.Local, "Chart")
	t = strings.TrimSuffix(t, "3D")
	if t == "bar" && plot.child("barDir").attr("val") != "bar" {
		return "column"
	}
	return t
}

// cachePoints returns the cached string or numeric points of a data
// reference, indexed by c:pt idx.
func cachePoints(ref *xmlNode) []string {
	cache := ref.find("strCache")
	if cache == nil {
		cache = ref.find("numCache")
	}
	if cache == nil {
		cache = ref.find("strLit")
	}
	if cache == nil {
		cache = ref.find("numLit")
	}
	if cache == nil {
		return nil
	}
	pts := cache.childrenNamed("pt")
	n := int(cache.child("ptCount").attrFloat("val", float64(len(pts))))
	if n > len(pts)*4+64 {
		n = len(pts)
	}
	out := make([]string, n)
	for i, pt := range pts {
		idx := int(pt.attrFloat("idx", float64(i)))
		if idx < 0 || idx >= n {
			continue
		}
		out[idx] = pt.childText("v")
	}
	return out
}

func joinText(nodes []*xmlNode) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.Text)
	}
	return strings.TrimSpace(b.String())
}

// diagram decodes a SmartArt frame. Its pre-drawn shapes are kept as
// children local to the frame so the fallback can snapshot them.
func (sp *slideParser) diagram(nv nonVisual, xf xfrm, tx *groupTransform, relIDs *xmlNode) ([]Element, error) {
	el := &ShapeElement{ElementBase: sp.base(nv, xf, tx, nil), Shape: ShapeSmartArt}
	drawing, err := sp.diagramDrawing(relIDs)
	if err != nil {
		sp.warn("SmartArt %q has no drawing: %v", nv.name, err)
		return []Element{el}, nil
	}
	sub := &slideParser{
		r:       sp.r,
		pkg:     sp.pkg,
		theme:   sp.theme,
		slideID: el.ID,
		slide:   drawing,
		ids:     make(map[string]int),
	}
	// Drawing coordinates start at the frame origin and span its extent.
	local := &groupTransform{
		frame: xfrm{w: PixelsToEMU(el.Width), h: PixelsToEMU(el.Height)},
		chW:   xf.w,
		chH:   xf.h,
	}
	el.Diagram = sub.walk(drawing.root.find("spTree"), el.ID, local, nil)
	sp.warnings = append(sp.warnings, sub.warnings...)
	return []Element{el}, nil
}

// diagramDrawing finds the drawing part of a diagram, either through the
// data part's dataModelExt or through the slide relationships.
func (sp *slideParser) diagramDrawing(relIDs *xmlNode) (*partTree, error) {
	if rel, ok := sp.slide.rels[relIDs.attrNS(nsRelationships, "dm")]; ok && !rel.External {
		if dm, err := loadPart(sp.pkg, rel.Target); err == nil {
			if ext := dm.root.find("dataModelExt"); ext != nil {
				if d, ok := sp.slide.rels[ext.attr("relId")]; ok {
					return loadPart(sp.pkg, d.Target)
				}
			}
		}
	}
	if rel, ok := relOfType(sp.slide.rels, relTypeDiagramDrawing); ok {
		return loadPart(sp.pkg, rel.Target)
	}
	return nil, fmt.Errorf("no diagram drawing part")
}

// defaultTableStyle approximates "Medium Style 2 - Accent 1", the default
// style applied to inserted tables.
type defaultTableStyle struct {
	header, band1, band2 Color
	border               Color
}

func (sp *slideParser) tableStyle() defaultTableStyle {
	accent := sp.theme.color("accent1")
	return defaultTableStyle{
		header: accent,
		band1:  accent.tint(0.4),
		band2:  accent.tint(0.2),
		border: ColorWhite,
	}
}

func (sp *slideParser) table(nv nonVisual, xf xfrm, tx *groupTransform, tbl *xmlNode) ([]Element, error) {
	if tbl == nil {
		return nil, fmt.Errorf("table frame has no table")
	}
	el := &TableElement{ElementBase: sp.base(nv, xf, tx, nil)}
	sx, sy := 1.0, 1.0
	if w := EMUToPixels(xf.w); w > 0 {
		sx = el.Width / w
	}
	if h := EMUToPixels(xf.h); h > 0 {
		sy = el.Height / h
	}
	for _, gc := range tbl.child("tblGrid").childrenNamed("gridCol") {
		el.Columns = append(el.Columns, EMUToPixels(gc.attrFloat("w", 0))*sx)
	}

	pr := tbl.child("tblPr")
	styled := pr.child("tableStyleId") != nil
	style := sp.tableStyle()
	firstRow, bandRow := pr.attrBool("firstRow"), pr.attrBool("bandRow")
	for ri, tr := range tbl.childrenNamed("tr") {
		row := TableRow{Height: EMUToPixels(tr.attrFloat("h", 0)) * sy}
		for _, tc := range tr.childrenNamed("tc") {
			cell := sp.tableCell(tc)
			if styled && cell.Fill == nil {
				switch {
				case firstRow && ri == 0:
					cell.Fill = SolidFill(style.header)
					if !cell.explicitColor {
						cell.Color = ColorWhite
					}
					cell.Bold = true
				case bandRow:
					band := ri
					if firstRow {
						band--
					}
					if band%2 == 0 {
						cell.Fill = SolidFill(style.band1)
					} else {
						cell.Fill = SolidFill(style.band2)
					}
				}
			}
			row.Cells = append(row.Cells, cell.TableCell)
		}
		el.Rows = append(el.Rows, row)
	}
	if first := tbl.find("tcPr"); first != nil {
		for _, tag := range []string{"lnB", "lnT", "lnL", "lnR"} {
			if s := parseStroke(first.child(tag), sp.theme, nil); s != nil {
				el.Border = s
				break
			}
		}
	}
	if el.Border == nil && styled {
		el.Border = &Stroke{Width: 1, Color: style.border, Style: StrokeSolid}
	}
	return []Element{el}, nil
}

// parsedCell is a table cell with decode-time bookkeeping.
type parsedCell struct {
	TableCell
	explicitColor bool
}

func (sp *slideParser) tableCell(tc *xmlNode) parsedCell {
	c := parsedCell{TableCell: TableCell{
		GridSpan:   int(tc.attrFloat("gridSpan", 1)),
		RowSpan:    int(tc.attrFloat("rowSpan", 1)),
		Merged:     tc.attrBool("hMerge") || tc.attrBool("vMerge"),
		Align:      AlignLeft,
		Color:      sp.theme.color("tx1"),
		FontSize:   PointsToPixels(defaultFontSizePt),
		FontFamily: sp.theme.minorFont,
	}}
	body := tc.child("txBody")
	if body != nil {
		c.Text = paragraphsText(body)
	}
	rPrs := []*xmlNode{body.find("rPr"), body.find("endParaRPr")}
	if n := firstWithAttr(rPrs, "sz"); n != nil {
		c.FontSize = hundredthPointsToPixels(n.attrFloat("sz", defaultFontSizePt*100))
	}
	if n := firstWithAttr(rPrs, "b"); n != nil {
		c.Bold = n.attrBool("b")
	}
	for _, n := range rPrs {
		if tf := n.child("latin").attr("typeface"); tf != "" {
			c.FontFamily = sp.theme.font(tf)
			break
		}
	}
	for _, n := range rPrs {
		if col, ok := parseColorChoice(n.child("solidFill"), sp.theme); ok {
			c.Color, c.explicitColor = col, true
			break
		}
	}
	if p := body.find("pPr"); p != nil {
		c.Align = alignFromPreset(p.attr("algn"))
	}
	if f, ok := parseFill(tc.child("tcPr"), sp.theme, nil); ok {
		c.Fill = f
	}
	return c
}
