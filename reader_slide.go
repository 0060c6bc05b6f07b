package slidepreview

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"golang.org/x/text/unicode/norm"
)

// partTree is a parsed package part together with its relationships.
type partTree struct {
	part string
	root *xmlNode
	rels map[string]xmlRel

	placeholders map[string]*xmlNode
}

func loadPart(pkg *opcPackage, part string) (*partTree, error) {
	data, err := pkg.read(part)
	if err != nil {
		return nil, err
	}
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", part, err)
	}
	rels, err := pkg.rels(part)
	if err != nil {
		return nil, err
	}
	return &partTree{part: part, root: root, rels: rels}, nil
}

// placeholder returns the shape of t matching a slide placeholder, first by
// index and then by type.
func (t *partTree) placeholder(typ, idx string) *xmlNode {
	if t == nil {
		return nil
	}
	if t.placeholders == nil {
		t.placeholders = make(map[string]*xmlNode)
		t.indexPlaceholders(t.root.path("cSld", "spTree"))
	}
	if idx != "" {
		if n, ok := t.placeholders["idx:"+idx]; ok {
			return n
		}
	}
	return t.placeholders["type:"+placeholderType(typ)]
}

func (t *partTree) indexPlaceholders(tree *xmlNode) {
	for _, c := range tree.kids() {
		if c.Name.Local == "grpSp" {
			t.indexPlaceholders(c)
			continue
		}
		ph := c.path("nvSpPr", "nvPr", "ph")
		if ph == nil {
			continue
		}
		keys := []string{"type:" + placeholderType(ph.attr("type"))}
		if idx := ph.attr("idx"); idx != "" {
			keys = append(keys, "idx:"+idx)
		}
		for _, k := range keys {
			if _, dup := t.placeholders[k]; !dup {
				t.placeholders[k] = c
			}
		}
	}
}

func placeholderType(t string) string {
	switch t {
	case "", "obj":
		return "body"
	case "ctrTitle":
		return "title"
	}
	return t
}

// xfrm is a shape transform in EMU; rot is in degrees.
type xfrm struct {
	x, y, w, h   float64
	rot          float64
	flipH, flipV bool
}

// parseXfrm reads an a:xfrm or p:xfrm. A missing node yields the default
// unit box at the origin and false.
func parseXfrm(n *xmlNode) (xfrm, bool) {
	x := xfrm{w: PixelsToEMU(defaultElementSize), h: PixelsToEMU(defaultElementSize)}
	if n == nil {
		return x, false
	}
	if off := n.child("off"); off != nil {
		x.x, x.y = off.attrFloat("x", 0), off.attrFloat("y", 0)
	}
	if ext := n.child("ext"); ext != nil {
		x.w, x.h = ext.attrFloat("cx", x.w), ext.attrFloat("cy", x.h)
	}
	x.rot = AngleToDegrees(n.attrFloat("rot", 0))
	x.flipH, x.flipV = n.attrBool("flipH"), n.attrBool("flipV")
	return x, true
}

// groupTransform maps a group's child coordinate space onto its parent's.
type groupTransform struct {
	parent *groupTransform
	frame  xfrm
	// child offset and extent (a:chOff, a:chExt)
	chX, chY, chW, chH float64
}

func newGroupTransform(parent *groupTransform, frame xfrm, n *xmlNode) *groupTransform {
	return &groupTransform{
		parent: parent,
		frame:  frame,
		chX:    n.child("chOff").attrFloat("x", 0),
		chY:    n.child("chOff").attrFloat("y", 0),
		chW:    n.child("chExt").attrFloat("cx", frame.w),
		chH:    n.child("chExt").attrFloat("cy", frame.h),
	}
}

// apply maps x through every enclosing group up to slide space.
func (t *groupTransform) apply(x xfrm) xfrm {
	for g := t; g != nil; g = g.parent {
		f := g.frame
		sx, sy := 1.0, 1.0
		if g.chW > 0 {
			sx = f.w / g.chW
		}
		if g.chH > 0 {
			sy = f.h / g.chH
		}
		x.x = f.x + (x.x-g.chX)*sx
		x.y = f.y + (x.y-g.chY)*sy
		x.w *= sx
		x.h *= sy
		if f.flipH {
			x.x = 2*f.x + f.w - x.x - x.w
			x.flipH = !x.flipH
			x.rot = -x.rot
		}
		if f.flipV {
			x.y = 2*f.y + f.h - x.y - x.h
			x.flipV = !x.flipV
			x.rot = -x.rot
		}
		if f.rot != 0 {
			gcx, gcy := f.x+f.w/2, f.y+f.h/2
			dx, dy := x.x+x.w/2-gcx, x.y+x.h/2-gcy
			sin, cos := math.Sincos(f.rot * math.Pi / 180)
			x.x = gcx + dx*cos - dy*sin - x.w/2
			x.y = gcy + dx*sin + dy*cos - x.h/2
			x.rot += f.rot
		}
	}
	return x
}

// nonVisual holds the nv*Pr properties shared by every shape variant.
type nonVisual struct {
	id     string
	name   string
	hidden bool
	locked bool
	ph     *xmlNode
}

func parseNonVisual(n *xmlNode) nonVisual {
	var nv *xmlNode
	for _, c := range n.Children {
		if strings.HasPrefix(c.Name.Local, "nv") {
			nv = c
			break
		}
	}
	if nv == nil {
		return nonVisual{}
	}
	c := nv.child("cNvPr")
	out := nonVisual{
		id:     c.attr("id"),
		name:   c.attr("name"),
		hidden: c.attrBool("hidden"),
		ph:     nv.path("nvPr", "ph"),
	}
	for _, pr := range nv.Children {
		if pr.Name.Local == "cNvPr" || !strings.HasPrefix(pr.Name.Local, "cNv") {
			continue
		}
		for _, l := range pr.Children {
			if strings.HasSuffix(l.Name.Local, "Locks") && (l.attrBool("noMove") || l.attrBool("noSelect")) {
				out.locked = true
			}
		}
	}
	return out
}

// slideParser walks one slide part and its layout and master.
type slideParser struct {
	r        *Reader
	pkg      *opcPackage
	theme    *theme
	slideID  string
	slide    *partTree
	layout   *partTree
	master   *partTree
	animated map[string]bool
	ids      map[string]int
	z        int
	warnings []string
}

func newSlideParser(r *Reader, pkg *opcPackage, th *theme, id, part string) (*slideParser, error) {
	slide, err := loadPart(pkg, part)
	if err != nil {
		return nil, err
	}
	if slide.root.Name.Local != "sld" {
		return nil, fmt.Errorf("unexpected root element %s", slide.root.Name.Local)
	}
	sp := &slideParser{
		r:        r,
		pkg:      pkg,
		theme:    th,
		slideID:  id,
		slide:    slide,
		animated: animatedShapes(slide.root),
		ids:      make(map[string]int),
	}
	if rel, ok := relOfType(slide.rels, relTypeSlideLayout); ok {
		if sp.layout, err = loadPart(pkg, rel.Target); err != nil {
			r.logger.Warn("slide layout unreadable", "slide", id, "part", rel.Target, "err", err)
		} else if rel, ok := relOfType(sp.layout.rels, relTypeSlideMaster); ok {
			if sp.master, err = loadPart(pkg, rel.Target); err != nil {
				r.logger.Warn("slide master unreadable", "slide", id, "part", rel.Target, "err", err)
			}
		}
	}
	return sp, nil
}

// animatedShapes collects the shape ids targeted by the slide timing tree.
func animatedShapes(root *xmlNode) map[string]bool {
	out := make(map[string]bool)
	timing := root.child("timing")
	for _, t := range timing.findAll("spTgt") {
		if id := t.attr("spid"); id != "" {
			out[id] = true
		}
	}
	for _, b := range timing.findAll("bldP") {
		if id := b.attr("spid"); id != "" {
			out[id] = true
		}
	}
	return out
}

func (sp *slideParser) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	sp.warnings = append(sp.warnings, msg)
	sp.r.logger.Warn("element recovered", "slide", sp.slideID, "detail", msg)
}

// background returns the first background declared by the slide, its
// layout or its master.
func (sp *slideParser) background() *Background {
	for _, t := range []*partTree{sp.slide, sp.layout, sp.master} {
		if t == nil {
			continue
		}
		if bg := t.root.path("cSld", "bg"); bg != nil {
			if b := sp.parseBackground(bg, t); b != nil {
				return b
			}
		}
	}
	return nil
}

func (sp *slideParser) parseBackground(bg *xmlNode, t *partTree) *Background {
	if pr := bg.child("bgPr"); pr != nil {
		if bf := pr.child("blipFill"); bf != nil {
			src, ok := sp.blipSource(bf.child("blip"), t)
			if !ok {
				return nil
			}
			fit := FitStretch
			if bf.child("tile") != nil {
				fit = FitTile
			}
			return &Background{Type: BackgroundImage, Image: &src, Fit: fit}
		}
		f, ok := parseFill(pr, sp.theme, nil)
		if !ok {
			return nil
		}
		switch f.Type {
		case FillSolid:
			return &Background{Type: BackgroundSolid, Color: f.Color}
		case FillGradient:
			return &Background{Type: BackgroundGradient, Color: f.Gradient.FirstColor(), Gradient: f.Gradient}
		}
		return nil
	}
	if ref := bg.child("bgRef"); ref != nil {
		if c, ok := parseColorChoice(ref, sp.theme); ok {
			return &Background{Type: BackgroundSolid, Color: c}
		}
	}
	return nil
}

// blipSource resolves an a:blip against the relationships of t. Bytes of
// internal targets are read eagerly; external links keep their URL.
func (sp *slideParser) blipSource(blip *xmlNode, t *partTree) (ImageSource, bool) {
	id := blip.attrNS(nsRelationships, "embed")
	if id == "" {
		id = blip.attrNS(nsRelationships, "link")
	}
	rel, ok := t.rels[id]
	if !ok {
		return ImageSource{}, false
	}
	if rel.External {
		return ImageSource{Ref: rel.Target, External: true}, true
	}
	src := ImageSource{Ref: rel.Target}
	data, err := sp.pkg.read(rel.Target)
	if err != nil {
		sp.warn("Image %s unreadable: %v", rel.Target, err)
		return src, true
	}
	src.Data = data
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		src.MIME = kind.MIME.Value
	}
	return src, true
}

func (sp *slideParser) elements() []Element {
	return sp.walk(sp.slide.root.path("cSld", "spTree"), "", nil, nil)
}

// walk decodes the shapes under tree in document order.
func (sp *slideParser) walk(tree *xmlNode, parentID string, tx *groupTransform, grpFill *Fill) []Element {
	var out []Element
	for _, n := range tree.kids() {
		switch n.Name.Local {
		case "sp", "cxnSp", "pic", "graphicFrame", "grpSp":
			out = append(out, sp.element(n, parentID, tx, grpFill)...)
		case "AlternateContent":
			branch := n.child("Fallback")
			if branch == nil {
				branch = n.child("Choice")
			}
			out = append(out, sp.walk(branch, parentID, tx, grpFill)...)
		}
	}
	return out
}

// element decodes one shape. A failure drops the shape with a warning and
// never aborts the slide.
func (sp *slideParser) element(n *xmlNode, parentID string, tx *groupTransform, grpFill *Fill) (els []Element) {
	name := n.find("cNvPr").attr("name")
	defer func() {
		if rec := recover(); rec != nil {
			sp.warn("Element %q skipped: %v", name, rec)
			els = nil
		}
	}()
	var err error
	switch n.Name.Local {
	case "sp", "cxnSp":
		els, err = sp.shape(n, tx, grpFill)
	case "pic":
		els, err = sp.picture(n, tx)
	case "graphicFrame":
		els, err = sp.graphicFrame(n, tx)
	case "grpSp":
		els, err = sp.group(n, tx, grpFill)
	}
	if err != nil {
		sp.warn("Element %q skipped: %v", name, err)
		return nil
	}
	for _, e := range els {
		e.Base().ParentID = parentID
	}
	return els
}

// elementID derives a slide-unique id from the cNvPr id. Shapes without one
// get a name-based UUID that is stable across decodes.
func (sp *slideParser) elementID(raw string) string {
	id := sp.slideID + "-" + raw
	if raw == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(sp.slide.part+"#"+strconv.Itoa(sp.z))).String()
	}
	sp.ids[id]++
	if n := sp.ids[id]; n > 1 {
		return fmt.Sprintf("%s-%d", id, n)
	}
	return id
}

func (sp *slideParser) nextZ() int {
	z := sp.z
	sp.z++
	return z
}

// base fills the common fields from the non-visual properties and the
// transform mapped into slide space.
func (sp *slideParser) base(nv nonVisual, xf xfrm, tx *groupTransform, spPr *xmlNode) ElementBase {
	xf = tx.apply(xf)
	b := newElementBase(sp.elementID(nv.id))
	b.Name = nv.name
	b.X, b.Y = EMUToPixels(xf.x), EMUToPixels(xf.y)
	b.Width, b.Height = EMUToPixels(xf.w), EMUToPixels(xf.h)
	b.Rotation = NormalizeDegrees(xf.rot)
	b.FlipH, b.FlipV = xf.flipH, xf.flipV
	b.ZIndex = sp.nextZ()
	b.Visible = !nv.hidden
	b.Locked = nv.locked
	b.Effects = parseEffects(spPr)
	b.Animated = nv.id != "" && sp.animated[nv.id]
	return b
}

// inherited returns the layout and master shapes a placeholder inherits from.
func (sp *slideParser) inherited(ph *xmlNode) []*xmlNode {
	if ph == nil {
		return nil
	}
	typ, idx := ph.attr("type"), ph.attr("idx")
	var out []*xmlNode
	if m := sp.layout.placeholder(typ, idx); m != nil {
		out = append(out, m)
		if t := m.path("nvSpPr", "nvPr", "ph").attr("type"); t != "" {
			typ = t
		}
	}
	if m := sp.master.placeholder(typ, ""); m != nil {
		out = append(out, m)
	}
	return out
}

// geometry returns node's transform, falling back to the inherited
// placeholders and then to the default unit box.
func geometry(node *xmlNode, inherited []*xmlNode) xfrm {
	if x, ok := parseXfrm(node); ok {
		return x
	}
	for _, ph := range inherited {
		if x, ok := parseXfrm(ph.path("spPr", "xfrm")); ok {
			return x
		}
	}
	x, _ := parseXfrm(nil)
	return x
}

func (sp *slideParser) shape(n *xmlNode, tx *groupTransform, grpFill *Fill) ([]Element, error) {
	nv := parseNonVisual(n)
	spPr := n.child("spPr")
	inherited := sp.inherited(nv.ph)
	xf := geometry(spPr.child("xfrm"), inherited)
	style := n.child("style")

	if bf := spPr.child("blipFill"); bf != nil {
		return sp.imageElement(nv, xf, tx, spPr, bf)
	}

	connector := n.Name.Local == "cxnSp"
	base := sp.base(nv, xf, tx, spPr)
	kind, path := shapeGeometry(spPr, connector, base.Width, base.Height)
	var fill *Fill
	if !connector {
		fill = sp.shapeFill(spPr, style, grpFill, inherited)
	}
	stroke := parseStroke(spPr.child("ln"), sp.theme, styleRefColor(style, "lnRef", sp.theme))
	if stroke == nil {
		for _, ph := range inherited {
			if s := parseStroke(ph.path("spPr", "ln"), sp.theme, nil); s != nil {
				stroke = s
				break
			}
		}
	}

	text := &TextElement{ElementBase: base}
	if !sp.textBody(text, n.child("txBody"), nv, inherited, style) {
		return []Element{&ShapeElement{ElementBase: base, Shape: kind, Path: path, Fill: fill, Stroke: stroke}}, nil
	}
	if kind == ShapeRectangle && path == "" {
		text.Fill, text.Stroke = fill, stroke
		return []Element{text}, nil
	}
	// Non-rectangular shapes with text become the shape plus a text box
	// over it.
	shape := &ShapeElement{ElementBase: base, Shape: kind, Path: path, Fill: fill, Stroke: stroke}
	text.ElementBase.ID = base.ID + "-text"
	text.ElementBase.ZIndex = sp.nextZ()
	text.ElementBase.Effects = nil
	return []Element{shape, text}, nil
}

func (sp *slideParser) shapeFill(spPr, style *xmlNode, grpFill *Fill, inherited []*xmlNode) *Fill {
	if f, ok := parseFill(spPr, sp.theme, grpFill); ok {
		return f
	}
	for _, ph := range inherited {
		if f, ok := parseFill(ph.child("spPr"), sp.theme, grpFill); ok {
			return f
		}
	}
	if c := styleRefColor(style, "fillRef", sp.theme); c != nil {
		return SolidFill(*c)
	}
	return nil
}

// styleRefColor returns the color of a p:style reference such as lnRef.
// An idx of 0 means no style.
func styleRefColor(style *xmlNode, ref string, th *theme) *Color {
	r := style.child(ref)
	if r == nil || r.attr("idx") == "0" {
		return nil
	}
	c, ok := parseColorChoice(r, th)
	if !ok {
		return nil
	}
	return &c
}

// shapeGeometry returns the shape kind and, for custom geometry, the SVG
// path scaled to the w x h pixel box.
func shapeGeometry(spPr *xmlNode, connector bool, w, h float64) (ShapeKind, string) {
	if cg := spPr.child("custGeom"); cg != nil {
		if p := customGeometryPath(cg, w, h); len(p) > 0 {
			return ShapeCustom, p.String()
		}
		return ShapeRectangle, ""
	}
	prst := spPr.child("prstGeom").attr("prst")
	if prst == "" && connector {
		return ShapeConnector, ""
	}
	return ShapeKindFromPreset(prst), ""
}

// arcSegmentDegrees is the sweep covered by one line segment when arcs are
// flattened.
const arcSegmentDegrees = 10

// customGeometryPath converts a:custGeom path lists into a pixel path.
// Arcs are flattened into line segments.
func customGeometryPath(cg *xmlNode, w, h float64) Path {
	var out Path
	for _, pn := range cg.child("pathLst").childrenNamed("path") {
		pw, ph := pn.attrFloat("w", 0), pn.attrFloat("h", 0)
		// Paths without their own coordinate size are in EMU.
		sx, sy := EMUToPixels(1), EMUToPixels(1)
		if pw > 0 {
			sx = w / pw
		}
		if ph > 0 {
			sy = h / ph
		}
		pt := func(n *xmlNode) Point {
			return Point{X: n.attrFloat("x", 0) * sx, Y: n.attrFloat("y", 0) * sy}
		}
		var cur Point
		for _, c := range pn.Children {
			pts := c.childrenNamed("pt")
			switch c.Name.Local {
			case "moveTo":
				if len(pts) == 1 {
					cur = pt(pts[0])
					out = append(out, PathCommand{Op: OpMoveTo, Points: []Point{cur}})
				}
			case "lnTo":
				if len(pts) == 1 {
					cur = pt(pts[0])
					out = append(out, PathCommand{Op: OpLineTo, Points: []Point{cur}})
				}
			case "quadBezTo":
				if len(pts) == 2 {
					cur = pt(pts[1])
					out = append(out, PathCommand{Op: OpQuadTo, Points: []Point{pt(pts[0]), cur}})
				}
			case "cubicBezTo":
				if len(pts) == 3 {
					cur = pt(pts[2])
					out = append(out, PathCommand{Op: OpCubicTo, Points: []Point{pt(pts[0]), pt(pts[1]), cur}})
				}
			case "arcTo":
				if len(out) == 0 {
					out = append(out, PathCommand{Op: OpMoveTo, Points: []Point{cur}})
				}
				rx, ry := c.attrFloat("wR", 0)*sx, c.attrFloat("hR", 0)*sy
				st := AngleToDegrees(c.attrFloat("stAng", 0)) * math.Pi / 180
				sw := AngleToDegrees(c.attrFloat("swAng", 0)) * math.Pi / 180
				cx, cy := cur.X-rx*math.Cos(st), cur.Y-ry*math.Sin(st)
				steps := max(1, int(math.Ceil(math.Abs(sw)*180/math.Pi/arcSegmentDegrees)))
				for i := 1; i <= steps; i++ {
					a := st + sw*float64(i)/float64(steps)
					cur = Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)}
					out = append(out, PathCommand{Op: OpLineTo, Points: []Point{cur}})
				}
			case "close":
				out = append(out, PathCommand{Op: OpClose})
			}
		}
	}
	return out
}

// textBody fills el from a p:txBody. It reports false when the body holds
// no visible text.
func (sp *slideParser) textBody(el *TextElement, body *xmlNode, nv nonVisual, inherited []*xmlNode, style *xmlNode) bool {
	if body == nil {
		return false
	}
	content := paragraphsText(body)
	if strings.TrimSpace(content) == "" {
		return false
	}
	defaults := NewTextElement(el.ID, content)
	base := el.ElementBase
	*el = *defaults
	el.ElementBase = base

	var lstStyles []*xmlNode
	lstStyles = append(lstStyles, body.child("lstStyle"))
	for _, ph := range inherited {
		lstStyles = append(lstStyles, ph.path("txBody", "lstStyle"))
	}
	master := sp.masterTextStyle(nv.ph)

	rPrs := []*xmlNode{body.find("rPr"), body.find("endParaRPr")}
	pPrs := []*xmlNode{body.path("p", "pPr")}
	for _, l := range lstStyles {
		rPrs = append(rPrs, l.path("lvl1pPr", "defRPr"))
		pPrs = append(pPrs, l.child("lvl1pPr"))
	}
	rPrs = append(rPrs, master.child("defRPr"))
	pPrs = append(pPrs, master)
	bodyPrs := []*xmlNode{body.child("bodyPr")}
	for _, ph := range inherited {
		bodyPrs = append(bodyPrs, ph.path("txBody", "bodyPr"))
	}

	scale := 1.0
	if fit := body.path("bodyPr", "normAutofit"); fit != nil {
		scale = fit.attrFloat("fontScale", percentUnit) / percentUnit
	}
	if n := firstWithAttr(rPrs, "sz"); n != nil {
		el.FontSize = hundredthPointsToPixels(n.attrFloat("sz", defaultFontSizePt*100)) * scale
	} else {
		el.FontSize *= scale
	}
	if n := firstWithAttr(rPrs, "b"); n != nil && n.attrBool("b") {
		el.FontWeight = WeightBold
	}
	if n := firstWithAttr(rPrs, "i"); n != nil && n.attrBool("i") {
		el.FontStyle = StyleItalic
	}
	if n := firstWithAttr(rPrs, "u"); n != nil {
		el.Underline = n.attr("u") != "none"
	}
	if n := firstWithAttr(rPrs, "spc"); n != nil {
		el.LetterSpacing = hundredthPointsToPixels(n.attrFloat("spc", 0))
	}
	el.FontFamily = sp.typeface(rPrs, nv.ph)
	el.Color = sp.textColor(rPrs, style)

	if n := firstWithAttr(pPrs, "algn"); n != nil {
		el.Align = alignFromPreset(n.attr("algn"))
	}
	for _, p := range pPrs {
		if pct := p.path("lnSpc", "spcPct"); pct != nil {
			el.LineHeight = 1.2 * pct.attrFloat("val", percentUnit) / percentUnit
			break
		}
	}
	if n := firstWithAttr(bodyPrs, "anchor"); n != nil {
		switch n.attr("anchor") {
		case "ctr":
			el.VerticalAlign = AlignMiddle
		case "b":
			el.VerticalAlign = AlignBottom
		}
	}
	el.Insets = Insets{
		Left:   insetOf(bodyPrs, "lIns", defaultTextInsets.Left),
		Top:    insetOf(bodyPrs, "tIns", defaultTextInsets.Top),
		Right:  insetOf(bodyPrs, "rIns", defaultTextInsets.Right),
		Bottom: insetOf(bodyPrs, "bIns", defaultTextInsets.Bottom),
	}
	return true
}

// paragraphsText joins the runs of each paragraph and the paragraphs with
// newlines. Bullet characters and auto numbers are kept as text prefixes.
func paragraphsText(body *xmlNode) string {
	var (
		paras []string
		num   int
	)
	for _, p := range body.childrenNamed("p") {
		var b strings.Builder
		for _, c := range p.Children {
			switch c.Name.Local {
			case "r", "fld":
				b.WriteString(c.childText("t"))
			case "br":
				b.WriteByte('\n')
			}
		}
		line := b.String()
		if pPr := p.child("pPr"); pPr != nil && strings.TrimSpace(line) != "" {
			if bu := pPr.child("buChar"); bu != nil {
				line = bu.attr("char") + " " + line
			} else if pPr.child("buAutoNum") != nil {
				num++
				line = strconv.Itoa(num) + ". " + line
			}
		}
		paras = append(paras, line)
	}
	return norm.NFC.String(strings.Join(paras, "\n"))
}

func firstWithAttr(nodes []*xmlNode, attr string) *xmlNode {
	for _, n := range nodes {
		if n.hasAttr(attr) {
			return n
		}
	}
	return nil
}

func insetOf(bodyPrs []*xmlNode, attr string, def float64) float64 {
	if n := firstWithAttr(bodyPrs, attr); n != nil {
		return EMUToPixels(n.attrFloat(attr, 0))
	}
	return def
}

func alignFromPreset(v string) HAlign {
	switch v {
	case "ctr":
		return AlignCenter
	case "r":
		return AlignRight
	case "just", "dist":
		return AlignJustify
	}
	return AlignLeft
}

// masterTextStyle returns the master's lvl1pPr for the placeholder's text
// style, or nil for free text boxes.
func (sp *slideParser) masterTextStyle(ph *xmlNode) *xmlNode {
	if ph == nil || sp.master == nil {
		return nil
	}
	styles := sp.master.root.child("txStyles")
	switch placeholderType(ph.attr("type")) {
	case "title":
		return styles.path("titleStyle", "lvl1pPr")
	case "body", "subTitle":
		return styles.path("bodyStyle", "lvl1pPr")
	}
	return styles.path("otherStyle", "lvl1pPr")
}

func (sp *slideParser) typeface(rPrs []*xmlNode, ph *xmlNode) string {
	for _, n := range rPrs {
		for _, tag := range []string{"latin", "ea", "cs"} {
			if tf := n.child(tag).attr("typeface"); tf != "" {
				return sp.theme.font(tf)
			}
		}
	}
	if ph != nil && placeholderType(ph.attr("type")) == "title" {
		return sp.theme.majorFont
	}
	return sp.theme.minorFont
}

func (sp *slideParser) textColor(rPrs []*xmlNode, style *xmlNode) Color {
	for _, n := range rPrs {
		if f := n.child("solidFill"); f != nil {
			if c, ok := parseColorChoice(f, sp.theme); ok {
				return c
			}
		}
	}
	if c := styleRefColor(style, "fontRef", sp.theme); c != nil {
		return *c
	}
	return sp.theme.color("tx1")
}

func (sp *slideParser) picture(n *xmlNode, tx *groupTransform) ([]Element, error) {
	nv := parseNonVisual(n)
	spPr := n.child("spPr")
	xf := geometry(spPr.child("xfrm"), sp.inherited(nv.ph))
	return sp.imageElement(nv, xf, tx, spPr, n.child("blipFill"))
}

func (sp *slideParser) imageElement(nv nonVisual, xf xfrm, tx *groupTransform, spPr, blipFill *xmlNode) ([]Element, error) {
	blip := blipFill.child("blip")
	if blip == nil {
		return nil, fmt.Errorf("picture has no image reference")
	}
	src, ok := sp.blipSource(blip, sp.slide)
	if !ok {
		return nil, fmt.Errorf("image relationship %q not found", blip.attrNS(nsRelationships, "embed"))
	}
	el := &ImageElement{ElementBase: sp.base(nv, xf, tx, spPr), Source: src}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Data)); err == nil {
		el.OriginalWidth, el.OriginalHeight = cfg.Width, cfg.Height
		el.AspectRatio = aspect(cfg.Width, cfg.Height)
	} else if el.Height > 0 {
		el.AspectRatio = el.Width / el.Height
	}
	el.Crop = parseSrcRect(blipFill.child("srcRect"))
	el.Filters = parseBlipFilters(blip)
	el.Stroke = parseStroke(spPr.child("ln"), sp.theme, nil)
	el.Mask = geometryMask(spPr, el.Width, el.Height)
	return []Element{el}, nil
}

// parseSrcRect converts a:srcRect insets into fractional crop bounds.
func parseSrcRect(n *xmlNode) *CropRect {
	if n == nil {
		return nil
	}
	l, t := n.attrFloat("l", 0)/percentUnit, n.attrFloat("t", 0)/percentUnit
	r, b := n.attrFloat("r", 0)/percentUnit, n.attrFloat("b", 0)/percentUnit
	if l == 0 && t == 0 && r == 0 && b == 0 {
		return nil
	}
	c := &CropRect{Left: clamp01(l), Top: clamp01(t), Right: clamp01(1 - r), Bottom: clamp01(1 - b)}
	if c.Right <= c.Left || c.Bottom <= c.Top {
		return nil
	}
	return c
}

func parseBlipFilters(blip *xmlNode) *Filters {
	var f Filters
	for _, c := range blip.Children {
		switch c.Name.Local {
		case "alphaModFix":
			f.Opacity = Factor(clamp01(c.attrFloat("amt", percentUnit) / percentUnit))
		case "lum":
			f.Brightness = c.attrFloat("bright", 0) / percentUnit * 255
			f.Contrast = c.attrFloat("contrast", 0) / percentUnit * 255
		case "grayscl":
			f.Saturation = Factor(0)
		case "blur":
			f.Blur = EMUToPixels(c.attrFloat("rad", 0))
		}
	}
	if f.neutral() {
		return nil
	}
	return &f
}

// geometryMask turns a non-rectangular picture geometry into a clip mask
// in the element's pixel space.
func geometryMask(spPr *xmlNode, w, h float64) *Mask {
	if cg := spPr.child("custGeom"); cg != nil {
		if p := customGeometryPath(cg, w, h); len(p) > 0 {
			return &Mask{Type: MaskPath, Path: p.String()}
		}
		return nil
	}
	prst := spPr.child("prstGeom").attr("prst")
	kind := ShapeKindFromPreset(prst)
	switch kind {
	case ShapeRectangle, ShapeConnector, ShapeLine:
		return nil
	case ShapeEllipse:
		if w == h {
			return &Mask{Type: MaskCircle}
		}
	}
	v, err := RenderShape(kind, ShapeOptions{Width: w, Height: h})
	if err != nil {
		return nil
	}
	return &Mask{Type: MaskPath, Path: v.Path.String()}
}

func (sp *slideParser) graphicFrame(n *xmlNode, tx *groupTransform) ([]Element, error) {
	nv := parseNonVisual(n)
	xf := geometry(n.child("xfrm"), sp.inherited(nv.ph))
	data := n.path("graphic", "graphicData")
	uri := data.attr("uri")
	switch {
	case strings.HasSuffix(uri, "/table"):
		return sp.table(nv, xf, tx, data.child("tbl"))
	case strings.HasSuffix(uri, "/chart"):
		return sp.chart(nv, xf, tx, data.child("chart"))
	case strings.HasSuffix(uri, "/diagram"):
		return sp.diagram(nv, xf, tx, data.child("relIds"))
	}
	// Embedded objects carry a preview picture.
	if pic := data.find("pic"); pic != nil && pic.child("blipFill") != nil {
		return sp.imageElement(nv, xf, tx, pic.child("spPr"), pic.child("blipFill"))
	}
	return nil, fmt.Errorf("unsupported graphic frame %q", uri)
}

func (sp *slideParser) group(n *xmlNode, tx *groupTransform, grpFill *Fill) ([]Element, error) {
	nv := parseNonVisual(n)
	pr := n.child("grpSpPr")
	node := pr.child("xfrm")
	xf, _ := parseXfrm(node)
	g := &GroupElement{ElementBase: sp.base(nv, xf, tx, pr)}
	fill, ok := parseFill(pr, sp.theme, grpFill)
	if !ok {
		fill = grpFill
	}
	g.Children = sp.walk(n, g.ID, newGroupTransform(tx, xf, node), fill)
	return []Element{g}, nil
}
