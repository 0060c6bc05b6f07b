package slidepreview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// FallbackType is the degradation applied to an element.
type FallbackType string

const (
	FallbackRasterized  FallbackType = "rasterized"
	FallbackPlaceholder FallbackType = "placeholder"
	FallbackSimplified  FallbackType = "simplified"
	FallbackNone        FallbackType = "none"
)

// Feature classifies why an element is routed to the fallback path.
type Feature string

const (
	FeatureNone           Feature = ""
	FeatureSmartArt       Feature = "smartart"
	FeatureChart          Feature = "chart"
	FeatureAnimation      Feature = "animation"
	FeatureComplexShape   Feature = "complex_shape"
	FeatureAdvancedEffect Feature = "advanced_effect"
)

// maxPathCommands is the custom path size above which a shape counts as complex.
const maxPathCommands = 2000

// ClassifyElement returns the unsupported feature e carries, or FeatureNone.
func ClassifyElement(e Element) Feature {
	b := e.Base()
	switch el := e.(type) {
	case *ChartElement:
		return FeatureChart
	case *ShapeElement:
		if el.Shape == ShapeSmartArt {
			return FeatureSmartArt
		}
	}
	switch {
	case b.Animated:
		return FeatureAnimation
	case len(b.Effects) > 0:
		return FeatureAdvancedEffect
	}
	if s, ok := e.(*ShapeElement); ok && s.Path != "" && complexPath(s.Path) {
		return FeatureComplexShape
	}
	return FeatureNone
}

// complexPath reports whether d is too large to draw or uses commands the
// path parser does not support, such as elliptical arcs.
func complexPath(d string) bool {
	p, err := ParsePath(d)
	return err != nil || len(p) > maxPathCommands
}

// FallbackRequest describes an element the renderer could not, or should
// not, draw natively.
type FallbackRequest struct {
	Element Element
	// Width and Height are the target size in output pixels.
	Width, Height int
	Feature       Feature
	// Cause is the native rendering error, if any.
	Cause error
	// Snapshot paints the element's static appearance into a surface of
	// the given size. It may be nil.
	Snapshot func(ctx context.Context, width, height int) (image.Image, error)
}

// FallbackResult is the outcome of a fallback. Type is always set.
type FallbackResult struct {
	Type FallbackType
	// Image is set for rasterized and placeholder results.
	Image image.Image
	// Simplified is set for simplified results; the caller draws it
	// in place of the original.
	Simplified Element
	Warning    string
}

// FallbackRenderer degrades unsupported or failing elements.
type FallbackRenderer struct {
	opts   FallbackOptions
	logger *log.Logger
}

// NewFallbackRenderer returns a fallback renderer configured by opts.
func NewFallbackRenderer(opts FallbackOptions, logger *log.Logger) *FallbackRenderer {
	if logger == nil {
		logger = discardLogger()
	}
	return &FallbackRenderer{opts: opts, logger: logger}
}

// Handle selects the first strategy that succeeds: rasterize (when
// enabled), simplify, placeholder, and finally none. It never panics.
func (f *FallbackRenderer) Handle(ctx context.Context, req FallbackRequest) (res FallbackResult) {
	label := fallbackLabel(req)
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Warn("fallback panicked", "element", req.Element.Base().ID, "panic", rec)
			res = FallbackResult{Type: FallbackNone, Warning: label + " could not be rendered"}
		}
	}()

	if f.opts.EnableRasterization {
		img, err := f.Rasterize(ctx, req)
		if err == nil {
			return FallbackResult{Type: FallbackRasterized, Image: img, Warning: rasterWarning(req.Feature, label)}
		}
		f.logger.Debug("rasterization failed", "element", req.Element.Base().ID, "err", err)
	}
	if s, warning := Simplify(req.Element, req.Feature); s != nil {
		return FallbackResult{Type: FallbackSimplified, Simplified: s, Warning: warning}
	}
	if img, err := f.Placeholder(req.Width, req.Height, req.Feature, label); err == nil {
		return FallbackResult{Type: FallbackPlaceholder, Image: img, Warning: label + " was replaced with placeholder"}
	}
	return FallbackResult{Type: FallbackNone, Warning: label + " could not be rendered"}
}

func rasterWarning(feature Feature, label string) string {
	switch feature {
	case FeatureSmartArt:
		return "SmartArt was rasterized as a static image"
	case FeatureChart:
		return "Chart was rasterized as a static image"
	case FeatureAnimation:
		return "Animation was flattened to a static frame"
	case FeatureAdvancedEffect:
		return "Advanced effects were removed"
	}
	return label + " was rasterized as a static image"
}

// fallbackLabel names the element for warnings and placeholder captions.
func fallbackLabel(req FallbackRequest) string {
	switch req.Feature {
	case FeatureSmartArt:
		return "SmartArt"
	case FeatureChart:
		return "Chart"
	case FeatureAnimation:
		return "Animation"
	case FeatureComplexShape:
		return "Complex shape"
	case FeatureAdvancedEffect:
		return "Advanced effect"
	}
	kind := string(req.Element.Kind())
	return strings.ToUpper(kind[:1]) + kind[1:]
}

// rasterSize caps w x h so that its longest side is at most limit.
func rasterSize(w, h, limit int) (int, int) {
	w, h = max(w, 1), max(h, 1)
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	s := float64(limit) / float64(max(w, h))
	return max(1, int(float64(w)*s)), max(1, int(float64(h)*s))
}

// Rasterize snapshots the element's closest static representation. Charts
// are drawn from their cached series; everything else goes through the
// request's Snapshot function.
func (f *FallbackRenderer) Rasterize(ctx context.Context, req FallbackRequest) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := rasterSize(req.Width, req.Height, f.opts.MaxRasterizationSize)
	if c, ok := req.Element.(*ChartElement); ok {
		return drawChartSnapshot(c, w, h)
	}
	if req.Cause != nil {
		return nil, fmt.Errorf("element failed to render: %w", req.Cause)
	}
	if req.Snapshot == nil {
		return nil, errors.New("no static representation")
	}
	return req.Snapshot(ctx, w, h)
}

// Simplify returns a structurally simpler copy of e that the renderer can
// draw natively, with a warning describing the loss. It returns nil when no
// simplification applies.
func Simplify(e Element, feature Feature) (Element, string) {
	switch feature {
	case FeatureAdvancedEffect:
		c := CloneElement(e)
		c.Base().Effects = nil
		return c, "Advanced effects were removed"
	case FeatureAnimation:
		c := CloneElement(e)
		c.Base().Animated = false
		return c, "Animation was flattened to a static frame"
	case FeatureComplexShape:
		s, ok := e.(*ShapeElement)
		if !ok {
			return nil, ""
		}
		c := CloneElement(s).(*ShapeElement)
		c.Shape, c.Path = ShapeRectangle, ""
		c.Fill = c.Fill.Flatten()
		return c, "Complex shape was simplified"
	case FeatureSmartArt:
		s, ok := e.(*ShapeElement)
		if !ok || len(s.Diagram) == 0 {
			return nil, ""
		}
		g := &GroupElement{ElementBase: s.ElementBase}
		g.Effects = nil
		for _, child := range s.Diagram {
			g.Children = append(g.Children, translateElement(child, s.X, s.Y))
		}
		return g, "SmartArt was simplified to its shapes"
	case FeatureNone:
		// Drop the decorations most likely to have failed.
		switch el := e.(type) {
		case *ShapeElement:
			if (el.Fill != nil && el.Fill.Type == FillGradient) || len(el.Effects) > 0 {
				c := CloneElement(el).(*ShapeElement)
				c.Fill, c.Effects = c.Fill.Flatten(), nil
				return c, "Shape was simplified"
			}
		case *TextElement:
			if el.Fill != nil && el.Fill.Type == FillGradient {
				c := CloneElement(el).(*TextElement)
				c.Fill = c.Fill.Flatten()
				return c, "Text was simplified"
			}
		}
	}
	return nil, ""
}

// translateElement returns a copy of e moved by (dx, dy), descending
// into groups.
func translateElement(e Element, dx, dy float64) Element {
	c := CloneElement(e)
	b := c.Base()
	b.X += dx
	b.Y += dy
	if g, ok := c.(*GroupElement); ok {
		for i, child := range g.Children {
			g.Children[i] = translateElement(child, dx, dy)
		}
	}
	return c
}

// Placeholder colors.
var (
	placeholderBackground = NewColor("#f8f9fa")
	placeholderBorder     = NewColor("#dee2e6")
	placeholderIcon       = NewColor("#adb5bd")
	placeholderCaption    = NewColor("#6c757d")
)

const (
	placeholderBorderWidth = 2
	placeholderCaptionSize = 14
)

// Placeholder draws a labeled placeholder image: background, border, a
// feature icon and a caption.
func (f *FallbackRenderer) Placeholder(width, height int, feature Feature, label string) (image.Image, error) {
	w, h := rasterSize(width, height, f.opts.MaxRasterizationSize)
	dc := gg.NewContext(w, h)
	fw, fh := float64(w), float64(h)

	dc.SetColor(placeholderBackground)
	dc.Clear()
	dc.SetColor(placeholderBorder)
	dc.SetLineWidth(placeholderBorderWidth)
	dc.DrawRectangle(1, 1, fw-2, fh-2)
	dc.Stroke()

	icon := min(fw, fh) * 0.3
	cx, cy := fw/2, fh/2-placeholderCaptionSize/2
	dc.SetColor(placeholderIcon)
	drawPlaceholderIcon(dc, feature, cx, cy, icon)

	face, err := genericFace(placeholderCaptionSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	dc.SetFontFace(face)
	dc.SetColor(placeholderCaption)
	dc.DrawStringAnchored(label, cx, cy+icon/2+placeholderCaptionSize, 0.5, 0.5)
	return dc.Image(), nil
}

func genericFace(size float64) (font.Face, error) {
	return opentype.NewFace(genericFont(400, StyleNormal), &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
}

// drawPlaceholderIcon draws a size x size glyph for feature centered at (cx, cy).
func drawPlaceholderIcon(dc *gg.Context, feature Feature, cx, cy, size float64) {
	x0, y0 := cx-size/2, cy-size/2
	switch feature {
	case FeatureChart:
		bw := size / 5
		for i, frac := range []float64{0.5, 0.8, 0.35} {
			bh := size * frac
			dc.DrawRectangle(x0+float64(i)*bw*1.8, y0+size-bh, bw, bh)
		}
		dc.Fill()
	case FeatureSmartArt:
		bs := size / 3
		dc.DrawRectangle(cx-bs/2, y0, bs, bs)
		dc.DrawRectangle(x0, y0+size-bs, bs, bs)
		dc.DrawRectangle(x0+size-bs, y0+size-bs, bs, bs)
		dc.Fill()
		dc.SetLineWidth(max(1, size/30))
		dc.DrawLine(cx, y0+bs, x0+bs/2, y0+size-bs)
		dc.DrawLine(cx, y0+bs, x0+size-bs/2, y0+size-bs)
		dc.Stroke()
	case FeatureAnimation:
		dc.MoveTo(x0+size*0.2, y0)
		dc.LineTo(x0+size*0.9, cy)
		dc.LineTo(x0+size*0.2, y0+size)
		dc.ClosePath()
		dc.Fill()
	case FeatureComplexShape:
		dc.MoveTo(x0, y0+size)
		dc.LineTo(x0+size*0.3, y0+size*0.35)
		dc.LineTo(x0+size*0.6, y0+size)
		dc.ClosePath()
		dc.Fill()
		dc.SetLineWidth(max(1, size/20))
		dc.DrawCircle(x0+size*0.68, y0+size*0.32, size*0.3)
		dc.Stroke()
	default:
		dc.SetLineWidth(max(1, size/20))
		dc.DrawRectangle(x0, y0, size, size)
		dc.DrawLine(x0, y0, x0+size, y0+size)
		dc.DrawLine(x0+size, y0, x0, y0+size)
		dc.Stroke()
	}
}

// seriesPalette colors series that carry no explicit color.
var seriesPalette = []Color{
	NewColor("4472C4"), NewColor("ED7D31"), NewColor("A5A5A5"),
	NewColor("FFC000"), NewColor("5B9BD5"), NewColor("70AD47"),
}

func seriesColor(s ChartSeries, i int) Color {
	if s.Color != nil {
		return *s.Color
	}
	return seriesPalette[i%len(seriesPalette)]
}

// drawChartSnapshot draws a static chart from the cached series: bars for
// bar and column charts, wedges for pie and doughnut charts and polylines
// for everything else.
func drawChartSnapshot(c *ChartElement, w, h int) (image.Image, error) {
	if len(c.Series) == 0 {
		return nil, errors.New("chart has no cached data")
	}
	dc := gg.NewContext(w, h)
	fw, fh := float64(w), float64(h)
	top := fh * 0.05
	if c.Title != "" && fh >= 60 {
		face, err := genericFace(max(10, fh*0.06))
		if err == nil {
			dc.SetFontFace(face)
			dc.SetColor(placeholderCaption)
			dc.DrawStringAnchored(c.Title, fw/2, fh*0.06, 0.5, 0.5)
			face.Close()
			top = fh * 0.14
		}
	}
	left, right, bottom := fw*0.08, fw*0.95, fh*0.92
	pw, ph := right-left, bottom-top

	switch c.ChartType {
	case "pie", "doughnut", "ofPie":
		drawPie(dc, c, left+pw/2, top+ph/2, min(pw, ph)/2, c.ChartType == "doughnut")
		return dc.Image(), nil
	}

	lo, hi := 0.0, 0.0
	n := 0
	for _, s := range c.Series {
		n = max(n, len(s.Values))
		for _, v := range s.Values {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if n == 0 || hi == lo {
		hi = lo + 1
	}
	y := func(v float64) float64 { return bottom - (v-lo)/(hi-lo)*ph }

	dc.SetColor(placeholderBorder)
	dc.SetLineWidth(1)
	dc.DrawLine(left, y(0), right, y(0))
	dc.Stroke()

	switch c.ChartType {
	case "bar", "column":
		group := pw / float64(max(n, 1))
		bw := group * 0.8 / float64(len(c.Series))
		horizontal := c.ChartType == "bar"
		for si, s := range c.Series {
			dc.SetColor(seriesColor(s, si))
			for i, v := range s.Values {
				if horizontal {
					// Categories run top to bottom, values left to right.
					band := ph / float64(max(n, 1))
					bh := band * 0.8 / float64(len(c.Series))
					x0 := left + (0-lo)/(hi-lo)*pw
					x1 := left + (v-lo)/(hi-lo)*pw
					dc.DrawRectangle(math.Min(x0, x1), top+float64(i)*band+band*0.1+float64(si)*bh, math.Abs(x1-x0), bh)
					continue
				}
				x := left + float64(i)*group + group*0.1 + float64(si)*bw
				dc.DrawRectangle(x, math.Min(y(v), y(0)), bw, math.Abs(y(v)-y(0)))
			}
			dc.Fill()
		}
	default:
		step := pw / float64(max(n-1, 1))
		dc.SetLineWidth(max(1.5, fh/150))
		for si, s := range c.Series {
			dc.SetColor(seriesColor(s, si))
			for i, v := range s.Values {
				px := left + float64(i)*step
				if i == 0 {
					dc.MoveTo(px, y(v))
				} else {
					dc.LineTo(px, y(v))
				}
			}
			dc.Stroke()
		}
	}
	return dc.Image(), nil
}

func drawPie(dc *gg.Context, c *ChartElement, cx, cy, r float64, hole bool) {
	values := c.Series[0].Values
	total := 0.0
	for _, v := range values {
		total += math.Max(v, 0)
	}
	if total == 0 {
		return
	}
	angle := -math.Pi / 2
	for i, v := range values {
		if v <= 0 {
			continue
		}
		sweep := v / total * 2 * math.Pi
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, r, angle, angle+sweep)
		dc.ClosePath()
		dc.SetColor(seriesPalette[i%len(seriesPalette)])
		dc.Fill()
		angle += sweep
	}
	if hole {
		dc.SetColor(ColorWhite)
		dc.DrawCircle(cx, cy, r*0.5)
		dc.Fill()
	}
}
