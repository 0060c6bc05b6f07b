package slidepreview

import (
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// theme carries the color scheme and the major/minor latin fonts.
type theme struct {
	colors    map[string]Color
	majorFont string
	minorFont string
}

// defaultTheme mirrors the stock Office theme.
func defaultTheme() *theme {
	return &theme{
		colors: map[string]Color{
			"dk1":      NewColor("000000"),
			"lt1":      NewColor("FFFFFF"),
			"dk2":      NewColor("44546A"),
			"lt2":      NewColor("E7E6E6"),
			"accent1":  NewColor("4472C4"),
			"accent2":  NewColor("ED7D31"),
			"accent3":  NewColor("A5A5A5"),
			"accent4":  NewColor("FFC000"),
			"accent5":  NewColor("5B9BD5"),
			"accent6":  NewColor("70AD47"),
			"hlink":    NewColor("0563C1"),
			"folHlink": NewColor("954F72"),
		},
		majorFont: "Calibri Light",
		minorFont: defaultFontFamily,
	}
}

// schemeAliases maps the mapped names used in shapes onto scheme slots.
var schemeAliases = map[string]string{
	"tx1": "dk1",
	"bg1": "lt1",
	"tx2": "dk2",
	"bg2": "lt2",
}

func (t *theme) color(name string) Color {
	if alias, ok := schemeAliases[name]; ok {
		name = alias
	}
	if c, ok := t.colors[name]; ok {
		return c
	}
	return ColorBlack
}

// font resolves +mj-lt / +mn-lt style references.
func (t *theme) font(typeface string) string {
	switch {
	case strings.HasPrefix(typeface, "+mj"):
		return t.majorFont
	case strings.HasPrefix(typeface, "+mn"):
		return t.minorFont
	}
	return typeface
}

// readTheme loads the presentation theme, falling back to the first
// master's theme and then to the stock theme.
func (r *Reader) readTheme(pkg *opcPackage, presRels map[string]xmlRel) *theme {
	th := defaultTheme()
	rel, ok := relOfType(presRels, relTypeTheme)
	if !ok {
		master, found := relOfType(presRels, relTypeSlideMaster)
		if !found {
			return th
		}
		masterRels, err := pkg.rels(master.Target)
		if err != nil {
			return th
		}
		if rel, ok = relOfType(masterRels, relTypeTheme); !ok {
			return th
		}
	}
	data, err := pkg.read(rel.Target)
	if err != nil {
		r.logger.Warn("theme unreadable", "part", rel.Target, "err", err)
		return th
	}
	root, err := parseXMLTree(data)
	if err != nil {
		r.logger.Warn("theme malformed", "part", rel.Target, "err", err)
		return th
	}
	elems := root.child("themeElements")
	if scheme := elems.child("clrScheme"); scheme != nil {
		for _, slot := range scheme.Children {
			if c, ok := parseColorChoice(slot, th); ok {
				th.colors[slot.Name.Local] = c
			}
		}
	}
	if fs := elems.child("fontScheme"); fs != nil {
		if v := fs.path("majorFont", "latin").attr("typeface"); v != "" {
			th.majorFont = v
		}
		if v := fs.path("minorFont", "latin").attr("typeface"); v != "" {
			th.minorFont = v
		}
	}
	return th
}

// presetColors covers the a:prstClr names seen in practice.
var presetColors = map[string]string{
	"black":     "000000",
	"white":     "FFFFFF",
	"red":       "FF0000",
	"green":     "008000",
	"blue":      "0000FF",
	"yellow":    "FFFF00",
	"gray":      "808080",
	"grey":      "808080",
	"orange":    "FFA500",
	"purple":    "800080",
	"cyan":      "00FFFF",
	"magenta":   "FF00FF",
	"ltGray":    "D3D3D3",
	"dkGray":    "A9A9A9",
	"navy":      "000080",
	"darkBlue":  "00008B",
	"darkRed":   "8B0000",
	"darkGreen": "006400",
}

// parseColorChoice reads the first color element under n and applies its
// transforms.
func parseColorChoice(n *xmlNode, th *theme) (Color, bool) {
	if n == nil {
		return Color{}, false
	}
	for _, c := range n.Children {
		var (
			base Color
			ok   = true
		)
		switch c.Name.Local {
		case "srgbClr":
			v, err := ParseColor(c.attr("val"))
			base, ok = v, err == nil
		case "schemeClr":
			base = th.color(c.attr("val"))
		case "sysClr":
			v := c.attr("lastClr")
			if v == "" {
				if c.attr("val") == "window" {
					v = "FFFFFF"
				} else {
					v = "000000"
				}
			}
			base = NewColor(v)
		case "prstClr":
			hex, found := presetColors[c.attr("val")]
			base, ok = NewColor(hex), found
		case "scrgbClr":
			base = fromColorful(colorful.LinearRgb(
				c.attrFloat("r", 0)/percentUnit,
				c.attrFloat("g", 0)/percentUnit,
				c.attrFloat("b", 0)/percentUnit,
			), 255)
		case "hslClr":
			base = fromColorful(colorful.Hsl(
				c.attrFloat("hue", 0)/angleUnitsPerDegree,
				c.attrFloat("sat", 0)/percentUnit,
				c.attrFloat("lum", 0)/percentUnit,
			), 255)
		default:
			continue
		}
		if !ok {
			return Color{}, false
		}
		return applyColorTransforms(base, c), true
	}
	return Color{}, false
}

// applyColorTransforms applies alpha, lumMod/lumOff, tint and shade.
func applyColorTransforms(c Color, n *xmlNode) Color {
	mod, off, lum := 1.0, 0.0, false
	for _, t := range n.Children {
		v := t.attrFloat("val", percentUnit) / percentUnit
		switch t.Name.Local {
		case "alpha":
			c = c.WithAlpha(v)
		case "lumMod":
			mod, lum = v, true
		case "lumOff":
			off, lum = t.attrFloat("val", 0)/percentUnit, true
		case "tint":
			c = c.tint(v)
		case "shade":
			c = c.shade(v)
		}
	}
	if lum {
		c = c.lumMod(mod, off)
	}
	return c
}

// parseFill reads the fill choice among the children of n (an a:spPr,
// a:tcPr or p:bgPr). It reports false when n names no fill.
func parseFill(n *xmlNode, th *theme, group *Fill) (*Fill, bool) {
	if n == nil {
		return nil, false
	}
	for _, c := range n.Children {
		switch c.Name.Local {
		case "noFill":
			return &Fill{Type: FillNone}, true
		case "solidFill":
			if col, ok := parseColorChoice(c, th); ok {
				return SolidFill(col), true
			}
			return &Fill{Type: FillNone}, true
		case "gradFill":
			if g := parseGradient(c, th); g != nil {
				return &Fill{Type: FillGradient, Gradient: g}, true
			}
		case "pattFill":
			if col, ok := parseColorChoice(c.child("fgClr"), th); ok {
				return SolidFill(col), true
			}
		case "grpFill":
			if group != nil {
				return group, true
			}
			return &Fill{Type: FillNone}, true
		}
	}
	return nil, false
}

// parseGradient reads an a:gradFill. Stops are sorted by offset.
func parseGradient(n *xmlNode, th *theme) *Gradient {
	g := &Gradient{Type: GradientLinear}
	for _, gs := range n.child("gsLst").childrenNamed("gs") {
		col, ok := parseColorChoice(gs, th)
		if !ok {
			continue
		}
		g.Stops = append(g.Stops, GradientStop{Offset: clamp01(gs.attrFloat("pos", 0) / percentUnit), Color: col})
	}
	if len(g.Stops) == 0 {
		return nil
	}
	sort.SliceStable(g.Stops, func(i, j int) bool { return g.Stops[i].Offset < g.Stops[j].Offset })
	if lin := n.child("lin"); lin != nil {
		g.Angle = AngleToDegrees(lin.attrFloat("ang", 0))
	} else if n.child("path") != nil {
		g.Type = GradientRadial
	}
	return g
}

// defaultLineWidthEMU is the outline width used when a:ln omits w.
const defaultLineWidthEMU = 12700

// parseStroke reads an a:ln. styleColor is the p:style lnRef color, used
// when the line names a width but no paint.
func parseStroke(ln *xmlNode, th *theme, styleColor *Color) *Stroke {
	if ln == nil {
		if styleColor == nil {
			return nil
		}
		return &Stroke{Width: EMUToPixels(defaultLineWidthEMU), Color: *styleColor, Style: StrokeSolid}
	}
	s := &Stroke{
		Width: EMUToPixels(ln.attrFloat("w", defaultLineWidthEMU)),
		Style: strokeStyleFromPreset(ln.child("prstDash").attr("val")),
	}
	switch {
	case ln.child("noFill") != nil:
		return nil
	case ln.child("solidFill") != nil:
		col, ok := parseColorChoice(ln.child("solidFill"), th)
		if !ok {
			return nil
		}
		s.Color = col
	case ln.child("gradFill") != nil:
		g := parseGradient(ln.child("gradFill"), th)
		if g == nil {
			return nil
		}
		s.Color = g.FirstColor()
	case styleColor != nil:
		s.Color = *styleColor
	default:
		return nil
	}
	return s
}

// effectTags are the spPr children that count as advanced effects.
var effectTags = map[string]bool{
	"outerShdw":  true,
	"innerShdw":  true,
	"prstShdw":   true,
	"glow":       true,
	"softEdge":   true,
	"reflection": true,
	"blur":       true,
}

// parseEffects lists the advanced effects applied through spPr.
func parseEffects(spPr *xmlNode) []string {
	if spPr == nil {
		return nil
	}
	var out []string
	for _, c := range spPr.child("effectLst").kids() {
		if effectTags[c.Name.Local] {
			out = append(out, c.Name.Local)
		}
	}
	if spPr.child("effectDag") != nil {
		out = append(out, "effectDag")
	}
	if s := spPr.child("scene3d"); s != nil && !flatCamera(s) {
		out = append(out, "scene3d")
	}
	if s := spPr.child("sp3d"); s != nil && len(s.Children)+len(s.Attrs) > 0 {
		out = append(out, "sp3d")
	}
	return out
}

// flatCamera reports whether scene3d only declares the default
// orthographic front camera, which changes nothing.
func flatCamera(scene *xmlNode) bool {
	cam := scene.child("camera")
	return cam != nil && cam.attr("prst") == "orthographicFront" && len(cam.Children) == 0
}
