package slidepreview

import (
	"fmt"
	"math"
	"strings"

	"github.com/fogleman/gg"
)

// ShapeKind is a vector shape the Shape Renderer can synthesize.
type ShapeKind string

const (
	ShapeRectangle     ShapeKind = "rectangle"
	ShapeRoundRect     ShapeKind = "roundRect"
	ShapeCircle        ShapeKind = "circle"
	ShapeEllipse       ShapeKind = "ellipse"
	ShapeTriangle      ShapeKind = "triangle"
	ShapeRightTriangle ShapeKind = "rightTriangle"
	ShapeDiamond       ShapeKind = "diamond"
	ShapeParallelogram ShapeKind = "parallelogram"
	ShapePentagon      ShapeKind = "pentagon"
	ShapeHexagon       ShapeKind = "hexagon"
	ShapeOctagon       ShapeKind = "octagon"
	ShapeLine          ShapeKind = "line"
	ShapeConnector     ShapeKind = "connector"
	ShapeArrow         ShapeKind = "arrow"
	ShapeArrowLeft     ShapeKind = "leftArrow"
	ShapeArrowUp       ShapeKind = "upArrow"
	ShapeArrowDown     ShapeKind = "downArrow"
	ShapeStar          ShapeKind = "star"
	ShapeStar4         ShapeKind = "star4"
	ShapeStar6         ShapeKind = "star6"
	ShapeStar8         ShapeKind = "star8"
	ShapeHeart         ShapeKind = "heart"
	ShapeCloud         ShapeKind = "cloud"
	ShapeCustom        ShapeKind = "custom"
	ShapeSmartArt      ShapeKind = "smartart"
)

// presetKinds maps a:prstGeom names onto shape kinds.
var presetKinds = map[string]ShapeKind{
	"rect":                      ShapeRectangle,
	"flowChartProcess":          ShapeRectangle,
	"roundRect":                 ShapeRoundRect,
	"flowChartAlternateProcess": ShapeRoundRect,
	"ellipse":                   ShapeEllipse,
	"flowChartConnector":        ShapeEllipse,
	"triangle":                  ShapeTriangle,
	"rtTriangle":                ShapeRightTriangle,
	"diamond":                   ShapeDiamond,
	"flowChartDecision":         ShapeDiamond,
	"parallelogram":             ShapeParallelogram,
	"pentagon":                  ShapePentagon,
	"hexagon":                   ShapeHexagon,
	"octagon":                   ShapeOctagon,
	"line":                      ShapeConnector,
	"straightConnector1":        ShapeConnector,
	"bentConnector3":            ShapeConnector,
	"rightArrow":                ShapeArrow,
	"arrow":                     ShapeArrow,
	"leftArrow":                 ShapeArrowLeft,
	"upArrow":                   ShapeArrowUp,
	"downArrow":                 ShapeArrowDown,
	"star4":                     ShapeStar4,
	"star5":                     ShapeStar,
	"star6":                     ShapeStar6,
	"star8":                     ShapeStar8,
	"heart":                     ShapeHeart,
	"cloud":                     ShapeCloud,
	"cloudCallout":              ShapeCloud,
}

// ShapeKindFromPreset maps a preset geometry name to a kind. Unknown names
// become rectangles.
func ShapeKindFromPreset(prst string) ShapeKind {
	if k, ok := presetKinds[prst]; ok {
		return k
	}
	return ShapeRectangle
}

// ShapeOptions sizes and styles a shape. Path is only used by ShapeCustom.
type ShapeOptions struct {
	Width  float64
	Height float64
	Fill   *Fill
	Stroke *Stroke
	Path   string
}

// VectorShape is a synthesized shape in local coordinates (0,0)-(Width,Height).
type VectorShape struct {
	Kind   ShapeKind
	Width  float64
	Height float64
	Path   Path
	// Open paths are stroked only.
	Open   bool
	Fill   *Fill
	Stroke *Stroke
}

// RenderShape synthesizes the vector geometry for kind sized exactly to
// the requested box.
func RenderShape(kind ShapeKind, opts ShapeOptions) (*VectorShape, error) {
	w, h := opts.Width, opts.Height
	if w < 0 || h < 0 || math.IsNaN(w) || math.IsNaN(h) {
		return nil, errorf(CodeInvalidOptions, "render shape", "invalid size %gx%g", w, h)
	}
	v := &VectorShape{Kind: kind, Width: w, Height: h, Fill: opts.Fill, Stroke: opts.Stroke}
	switch kind {
	case ShapeCustom:
		p, err := ParsePath(opts.Path)
		if err != nil {
			return nil, newError(CodeInvalidOptions, "render shape", "bad custom path", err)
		}
		v.Path = p
		v.Open = !pathClosed(p)
	case ShapeRoundRect:
		v.Path = roundRectPath(w, h, min(w, h)*0.1667)
	case ShapeCircle:
		r := min(w, h) / 2
		v.Path = ellipsePath(w/2, h/2, r, r)
	case ShapeEllipse:
		v.Path = ellipsePath(w/2, h/2, w/2, h/2)
	case ShapeTriangle:
		v.Path = polygonPath([]Point{{w / 2, 0}, {0, h}, {w, h}})
	case ShapeRightTriangle:
		v.Path = polygonPath([]Point{{0, 0}, {0, h}, {w, h}})
	case ShapeDiamond:
		v.Path = polygonPath([]Point{{w / 2, 0}, {w, h / 2}, {w / 2, h}, {0, h / 2}})
	case ShapeParallelogram:
		off := min(w, h) * 0.25
		v.Path = polygonPath([]Point{{off, 0}, {w, 0}, {w - off, h}, {0, h}})
	case ShapePentagon:
		v.Path = regularPolygonPath(5, w, h)
	case ShapeHexagon:
		off := min(w, h) * 0.25
		v.Path = polygonPath([]Point{{off, 0}, {w - off, 0}, {w, h / 2}, {w - off, h}, {off, h}, {0, h / 2}})
	case ShapeOctagon:
		off := min(w, h) * 0.2929
		v.Path = polygonPath([]Point{{off, 0}, {w - off, 0}, {w, off}, {w, h - off}, {w - off, h}, {off, h}, {0, h - off}, {0, off}})
	case ShapeLine:
		v.Path = Path{{Op: OpMoveTo, Points: []Point{{0, h / 2}}}, {Op: OpLineTo, Points: []Point{{w, h / 2}}}}
		v.Open = true
	case ShapeConnector:
		v.Path = Path{{Op: OpMoveTo, Points: []Point{{0, 0}}}, {Op: OpLineTo, Points: []Point{{w, h}}}}
		v.Open = true
	case ShapeArrow, ShapeArrowLeft, ShapeArrowUp, ShapeArrowDown:
		v.Path = arrowPath(kind, w, h)
	case ShapeStar:
		v.Path = starPath(5, w, h)
	case ShapeStar4:
		v.Path = starPath(4, w, h)
	case ShapeStar6:
		v.Path = starPath(6, w, h)
	case ShapeStar8:
		v.Path = starPath(8, w, h)
	case ShapeHeart:
		v.Path = heartPath(w, h)
	case ShapeCloud:
		v.Path = cloudPath(w, h)
	default:
		// rectangle, smartart frames and anything unrecognised
		v.Kind = ShapeRectangle
		if kind == ShapeSmartArt {
			v.Kind = ShapeSmartArt
		}
		v.Path = polygonPath([]Point{{0, 0}, {w, 0}, {w, h}, {0, h}})
	}
	return v, nil
}

func pathClosed(p Path) bool {
	return len(p) > 0 && p[len(p)-1].Op == OpClose
}

// kappa is the control point distance for approximating a quarter ellipse.
const kappa = 0.5522847498

func ellipsePath(cx, cy, rx, ry float64) Path {
	kx, ky := rx*kappa, ry*kappa
	return Path{
		{Op: OpMoveTo, Points: []Point{{cx + rx, cy}}},
		{Op: OpCubicTo, Points: []Point{{cx + rx, cy + ky}, {cx + kx, cy + ry}, {cx, cy + ry}}},
		{Op: OpCubicTo, Points: []Point{{cx - kx, cy + ry}, {cx - rx, cy + ky}, {cx - rx, cy}}},
		{Op: OpCubicTo, Points: []Point{{cx - rx, cy - ky}, {cx - kx, cy - ry}, {cx, cy - ry}}},
		{Op: OpCubicTo, Points: []Point{{cx + kx, cy - ry}, {cx + rx, cy - ky}, {cx + rx, cy}}},
		{Op: OpClose},
	}
}

func roundRectPath(w, h, r float64) Path {
	k := r * kappa
	return Path{
		{Op: OpMoveTo, Points: []Point{{r, 0}}},
		{Op: OpLineTo, Points: []Point{{w - r, 0}}},
		{Op: OpCubicTo, Points: []Point{{w - r + k, 0}, {w, r - k}, {w, r}}},
		{Op: OpLineTo, Points: []Point{{w, h - r}}},
		{Op: OpCubicTo, Points: []Point{{w, h - r + k}, {w - r + k, h}, {w - r, h}}},
		{Op: OpLineTo, Points: []Point{{r, h}}},
		{Op: OpCubicTo, Points: []Point{{r - k, h}, {0, h - r + k}, {0, h - r}}},
		{Op: OpLineTo, Points: []Point{{0, r}}},
		{Op: OpCubicTo, Points: []Point{{0, r - k}, {r - k, 0}, {r, 0}}},
		{Op: OpClose},
	}
}

func regularPolygonPath(n int, w, h float64) Path {
	pts := make([]Point, n)
	for i := range pts {
		a := float64(i)*2*math.Pi/float64(n) - math.Pi/2
		pts[i] = Point{w/2 + w/2*math.Cos(a), h/2 + h/2*math.Sin(a)}
	}
	return polygonPath(pts)
}

// starPath alternates outer and inner vertices. The outer radius is half
// the shorter side and the inner radius 0.4 of it.
func starPath(n int, w, h float64) Path {
	outer := min(w, h) / 2
	inner := outer * 0.4
	pts := make([]Point, 2*n)
	for i := range pts {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := float64(i)*math.Pi/float64(n) - math.Pi/2
		pts[i] = Point{w/2 + r*math.Cos(a), h/2 + r*math.Sin(a)}
	}
	return polygonPath(pts)
}

// arrowPath builds a block arrow with a shaft half the box thickness and a
// head half the shorter side long, pointing in the kind's direction.
func arrowPath(kind ShapeKind, w, h float64) Path {
	vertical := kind == ShapeArrowUp || kind == ShapeArrowDown
	length, thick := w, h
	if vertical {
		length, thick = h, w
	}
	head := min(w, h) * 0.5
	shaft := thick * 0.5
	mid := thick / 2
	pts := []Point{
		{0, mid - shaft/2},
		{length - head, mid - shaft/2},
		{length - head, 0},
		{length, mid},
		{length - head, thick},
		{length - head, mid + shaft/2},
		{0, mid + shaft/2},
	}
	for i, p := range pts {
		switch kind {
		case ShapeArrowLeft:
			pts[i] = Point{length - p.X, p.Y}
		case ShapeArrowDown:
			pts[i] = Point{p.Y, p.X}
		case ShapeArrowUp:
			pts[i] = Point{p.Y, length - p.X}
		}
	}
	return polygonPath(pts)
}

func heartPath(w, h float64) Path {
	return Path{
		{Op: OpMoveTo, Points: []Point{{w / 2, h * 0.25}}},
		{Op: OpCubicTo, Points: []Point{{w / 2, 0}, {0, 0}, {0, h * 0.3}}},
		{Op: OpCubicTo, Points: []Point{{0, h * 0.6}, {w / 2, h * 0.75}, {w / 2, h}}},
		{Op: OpCubicTo, Points: []Point{{w / 2, h * 0.75}, {w, h * 0.6}, {w, h * 0.3}}},
		{Op: OpCubicTo, Points: []Point{{w, 0}, {w / 2, 0}, {w / 2, h * 0.25}}},
		{Op: OpClose},
	}
}

// cloudPath overlaps five ellipses; the nonzero fill rule merges them.
func cloudPath(w, h float64) Path {
	lobes := []struct{ cx, cy, rx, ry float64 }{
		{0.25, 0.6, 0.22, 0.3},
		{0.42, 0.35, 0.22, 0.3},
		{0.62, 0.32, 0.2, 0.28},
		{0.78, 0.55, 0.2, 0.3},
		{0.5, 0.7, 0.3, 0.28},
	}
	var p Path
	for _, l := range lobes {
		p = append(p, ellipsePath(l.cx*w, l.cy*h, l.rx*w, l.ry*h)...)
	}
	return p
}

// Draw rasterizes the shape onto dc with its origin at (x, y).
func (v *VectorShape) Draw(dc *gg.Context, x, y float64) {
	if !v.Open && v.Fill.IsVisible() {
		dc.NewSubPath()
		v.Path.Append(dc, x, y)
		applyFill(dc, v.Fill, x, y, v.Width, v.Height)
		dc.Fill()
	}
	if v.Stroke.IsVisible() {
		dc.NewSubPath()
		v.Path.Append(dc, x, y)
		dc.SetColor(v.Stroke.Color)
		dc.SetLineWidth(v.Stroke.Width)
		dc.SetDash(v.Stroke.DashPattern()...)
		dc.Stroke()
		dc.SetDash()
	}
	dc.ClearPath()
}

// applyFill sets dc's fill paint for a box at (x, y, w, h).
func applyFill(dc *gg.Context, f *Fill, x, y, w, h float64) {
	if f.Type == FillGradient && f.Gradient != nil && len(f.Gradient.Stops) > 0 {
		dc.SetFillStyle(gradientPattern(f.Gradient, x, y, w, h))
		return
	}
	dc.SetColor(f.Color)
}

// gradientPattern builds a gg gradient covering the box.
func gradientPattern(g *Gradient, x, y, w, h float64) gg.Gradient {
	cx, cy := x+w/2, y+h/2
	var grad gg.Gradient
	if g.Type == GradientRadial {
		grad = gg.NewRadialGradient(cx, cy, 0, cx, cy, math.Hypot(w, h)/2)
	} else {
		x0, y0, x1, y1 := linearEndpoints(g.Angle, w, h)
		grad = gg.NewLinearGradient(x+x0, y+y0, x+x1, y+y1)
	}
	for _, s := range g.Stops {
		grad.AddColorStop(s.Offset, s.Color)
	}
	return grad
}

// linearEndpoints returns the gradient line through the box center at
// angle degrees, long enough that the stops span the box corners.
func linearEndpoints(angle, w, h float64) (x0, y0, x1, y1 float64) {
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	half := (math.Abs(w*cos) + math.Abs(h*sin)) / 2
	return w/2 - cos*half, h/2 - sin*half, w/2 + cos*half, h/2 + sin*half
}

// SVG returns a self-contained SVG document for the shape.
func (v *VectorShape) SVG() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		fmtNum(v.Width), fmtNum(v.Height), fmtNum(v.Width), fmtNum(v.Height))
	fill := "none"
	if !v.Open && v.Fill.IsVisible() {
		if v.Fill.Type == FillGradient && v.Fill.Gradient != nil {
			b.WriteString("<defs>")
			writeSVGGradient(&b, "fill", v.Fill.Gradient, v.Width, v.Height)
			b.WriteString("</defs>")
			fill = "url(#fill)"
		} else {
			fill = svgPaint(v.Fill.Color)
		}
	}
	fmt.Fprintf(&b, `<path d="%s" fill="%s"`, v.Path.String(), fill)
	if !v.Open && v.Fill.IsVisible() && v.Fill.Type == FillSolid && v.Fill.Color.A < 255 {
		fmt.Fprintf(&b, ` fill-opacity="%s"`, fmtNum(float64(v.Fill.Color.A)/255))
	}
	if v.Stroke.IsVisible() {
		fmt.Fprintf(&b, ` stroke="%s" stroke-width="%s"`, svgPaint(v.Stroke.Color), fmtNum(v.Stroke.Width))
		if v.Stroke.Color.A < 255 {
			fmt.Fprintf(&b, ` stroke-opacity="%s"`, fmtNum(float64(v.Stroke.Color.A)/255))
		}
		if dash := v.Stroke.DashPattern(); len(dash) > 0 {
			parts := make([]string, len(dash))
			for i, d := range dash {
				parts[i] = fmtNum(d)
			}
			fmt.Fprintf(&b, ` stroke-dasharray="%s"`, strings.Join(parts, " "))
		}
	}
	b.WriteString("/></svg>")
	return b.String()
}

func svgPaint(c Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func writeSVGGradient(b *strings.Builder, id string, g *Gradient, w, h float64) {
	if g.Type == GradientRadial {
		fmt.Fprintf(b, `<radialGradient id="%s">`, id)
	} else {
		x0, y0, x1, y1 := linearEndpoints(g.Angle, w, h)
		fmt.Fprintf(b, `<linearGradient id="%s" gradientUnits="userSpaceOnUse" x1="%s" y1="%s" x2="%s" y2="%s">`,
			id, fmtNum(x0), fmtNum(y0), fmtNum(x1), fmtNum(y1))
	}
	for _, s := range g.Stops {
		fmt.Fprintf(b, `<stop offset="%s" stop-color="%s"`, fmtNum(s.Offset), svgPaint(s.Color))
		if s.Color.A < 255 {
			fmt.Fprintf(b, ` stop-opacity="%s"`, fmtNum(float64(s.Color.A)/255))
		}
		b.WriteString("/>")
	}
	if g.Type == GradientRadial {
		b.WriteString("</radialGradient>")
	} else {
		b.WriteString("</linearGradient>")
	}
}
