package slidepreview

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"
)

// Renderer paints decoded slides. It is safe for concurrent use; every
// slide gets its own drawing surface.
type Renderer struct {
	fonts  *FontManager
	images *ImageProcessor
	logger *log.Logger
}

// NewRenderer returns a renderer. A nil font manager resolves system fonts
// into a private registry, and a nil image processor uses the default loader.
func NewRenderer(fonts *FontManager, images *ImageProcessor, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = discardLogger()
	}
	if fonts == nil {
		fonts = NewFontManager(NewFontRegistry(logger, NewSystemFontSource()), logger)
	}
	if images == nil {
		images = NewImageProcessor(nil, logger)
	}
	return &Renderer{fonts: fonts, images: images, logger: logger}
}

// RenderPresentation loads the document fonts and renders every slide. The
// result always has one entry per slide: a slide that fails is replaced by
// a placeholder. Only invalid options and cancellation are returned as errors.
func (r *Renderer) RenderPresentation(ctx context.Context, doc *Document, opts RenderOptions) ([]*RenderedSlide, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errorf(CodeRender, "render presentation", "nil document")
	}
	loaded := r.fonts.LoadAllFonts(ctx, doc.Fonts)
	defer r.fonts.ReleaseFonts(loaded)
	if len(loaded) < len(doc.Fonts) {
		r.logger.Debug("some fonts fell back to generic faces", "loaded", len(loaded), "total", len(doc.Fonts))
	}

	out := make([]*RenderedSlide, len(doc.Slides))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Concurrency))
	for i, slide := range doc.Slides {
		g.Go(func() error {
			rs, err := r.RenderSlide(gctx, slide, opts)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				r.logger.Warn("slide render failed", "slide", i+1, "err", err)
				rs = r.placeholderSlide(slide, i, opts, err)
			}
			out[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderSlide paints one slide: background first, then elements in
// ascending stacking order. Element failures become warnings; an error is
// only returned when the slide as a whole cannot be produced.
func (r *Renderer) RenderSlide(ctx context.Context, slide *Slide, opts RenderOptions) (rs *RenderedSlide, err error) {
	if slide == nil {
		return nil, errorf(CodeRender, "render slide", "nil slide")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkGroups(slide.Elements); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			rs, err = nil, recoverError("render slide "+slide.ID, rec)
		}
	}()

	sx, sy := opts.scaleFor(slide.Width, slide.Height)
	sx, sy, shrunk := fitSurface(slide.Width, slide.Height, sx, sy)
	w := max(1, int(math.Round(slide.Width*sx)))
	h := max(1, int(math.Round(slide.Height*sy)))
	fopts := opts.Fallback
	fopts.MaxRasterizationSize = opts.maxRasterSize()
	s := &slideRender{
		r:        r,
		opts:     opts,
		slideID:  slide.ID,
		dc:       gg.NewContext(w, h),
		w:        w,
		h:        h,
		sx:       sx,
		sy:       sy,
		fallback: NewFallbackRenderer(fopts, r.logger),
		faces:    make(map[faceKey]font.Face),
		logger:   LoggerFromContext(ctx, r.logger).With("slide", slide.ID),
	}
	defer s.closeFaces()
	s.warnings = append(s.warnings, slide.Warnings...)
	if shrunk {
		s.logger.Warn("slide downscaled to the surface budget", "width", w, "height", h)
		s.warn(fmt.Sprintf("Slide was downscaled to %dx%d to fit the surface budget", w, h))
	}

	s.background(ctx, slide.Background)
	for _, e := range byZIndex(slide.Elements) {
		if err := ctx.Err(); err != nil {
			// The partially painted surface is dropped with s.
			return nil, err
		}
		s.element(ctx, e, 1)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rs = &RenderedSlide{
		ID:          slide.ID,
		Index:       slide.Index,
		Width:       w,
		Height:      h,
		AspectRatio: float64(w) / float64(h),
		Image:       s.dc.Image(),
		Elements:    s.out,
		Warnings:    s.warnings,
	}
	if rs.Elements == nil {
		rs.Elements = []RenderedElement{}
	}
	if err := encodeSlide(rs, opts.Quality); err != nil {
		return nil, err
	}
	return rs, nil
}

// Every surface the renderer allocates stays within these bounds.
const (
	maxSurfaceSide   = 8192
	maxSurfacePixels = 1 << 25
)

// surfaceFits reports whether a w x h surface is within the budget. It is
// false for NaN sizes.
func surfaceFits(w, h float64) bool {
	return w <= maxSurfaceSide && h <= maxSurfaceSide && w*h <= maxSurfacePixels
}

// pixelSize converts a scaled length to a positive pixel count.
func pixelSize(v float64) int {
	return max(1, int(math.Ceil(min(v, 1<<30))))
}

// fitSurface shrinks the scale (sx, sy) until a width x height slide fits
// the surface budget, and reports whether it had to.
func fitSurface(width, height, sx, sy float64) (float64, float64, bool) {
	w, h := width*sx, height*sy
	if surfaceFits(w, h) || !(w > 0 && h > 0) {
		return sx, sy, false
	}
	k := 1.0
	if w*h > maxSurfacePixels {
		k = math.Sqrt(maxSurfacePixels / (w * h))
	}
	if long := max(w, h) * k; long > maxSurfaceSide {
		k *= maxSurfaceSide / long
	}
	// Rounding must not push the result back over the budget.
	k *= 0.999
	return sx * k, sy * k, true
}

// slidePlaceholderBackground fills a slide that could not be rendered.
var slidePlaceholderBackground = NewColor("#f5f5f5")

func (r *Renderer) placeholderSlide(slide *Slide, index int, opts RenderOptions, cause error) *RenderedSlide {
	id, width, height := fmt.Sprintf("slide-%d", index+1), float64(DefaultSlideWidth), float64(DefaultSlideHeight)
	var warnings []string
	if slide != nil {
		id = slide.ID
		if slide.Width > 0 && slide.Height > 0 {
			width, height = slide.Width, slide.Height
		}
		warnings = append(warnings, slide.Warnings...)
	}
	sx, sy := opts.scaleFor(width, height)
	sx, sy, _ = fitSurface(width, height, sx, sy)
	w, h := max(1, int(math.Round(width*sx))), max(1, int(math.Round(height*sy)))

	dc := gg.NewContext(w, h)
	dc.SetColor(slidePlaceholderBackground)
	dc.Clear()
	if face, err := genericFace(max(placeholderCaptionSize, float64(h)*0.03)); err == nil {
		dc.SetFontFace(face)
		dc.SetColor(placeholderCaption)
		dc.DrawStringAnchored("Slide could not be rendered", float64(w)/2, float64(h)/2, 0.5, 0.5)
		face.Close()
	}
	rs := &RenderedSlide{
		ID:          id,
		Index:       index,
		Width:       w,
		Height:      h,
		AspectRatio: float64(w) / float64(h),
		Image:       dc.Image(),
		Elements:    []RenderedElement{},
		Warnings:    append(warnings, fmt.Sprintf("Slide %s could not be rendered: %v", id, cause)),
	}
	if err := encodeSlide(rs, opts.Quality); err != nil {
		r.logger.Error("placeholder slide encode failed", "slide", id, "err", err)
	}
	return rs
}

func encodeSlide(rs *RenderedSlide, q Quality) error {
	format := q.Format()
	data, err := encodeImage(rs.Image, format, q.JPEGQuality(), q.pngCompression())
	if err != nil {
		return newError(CodeRender, "encode slide", rs.ID, err)
	}
	rs.Data, rs.MIME = data, format.MIME()
	return nil
}

// byZIndex returns elements in ascending stacking order. Equal indices
// keep document order.
func byZIndex(elements []Element) []Element {
	out := slices.Clone(elements)
	slices.SortStableFunc(out, func(a, b Element) int {
		return cmp.Compare(a.Base().ZIndex, b.Base().ZIndex)
	})
	return out
}

type faceKey struct {
	font FontKey
	size float64
}

// slideRender is the state of one RenderSlide call.
type slideRender struct {
	r        *Renderer
	opts     RenderOptions
	slideID  string
	dc       *gg.Context
	w, h     int
	sx, sy   float64
	fallback *FallbackRenderer
	faces    map[faceKey]font.Face
	logger   *log.Logger

	out      []RenderedElement
	warnings []string
}

func (s *slideRender) warn(msg string) {
	s.warnings = append(s.warnings, msg)
}

// face returns a cached face for the font at size pixels.
func (s *slideRender) face(info FontInfo, size float64) font.Face {
	key := faceKey{font: info.Key(), size: math.Round(size*100) / 100}
	if f, ok := s.faces[key]; ok {
		return f
	}
	f, exact := s.r.fonts.Registry().NewFace(info, key.size)
	if !exact {
		s.logger.Debug("using substitute face", "family", info.Family, "weight", info.Weight)
	}
	s.faces[key] = f
	return f
}

func (s *slideRender) closeFaces() {
	for _, f := range s.faces {
		f.Close()
	}
}

func (s *slideRender) background(ctx context.Context, bg *Background) {
	base := s.opts.BackgroundColor
	if base.A == 0 {
		base = ColorWhite
	}
	s.dc.SetColor(base)
	s.dc.Clear()
	if bg == nil {
		return
	}
	fw, fh := float64(s.w), float64(s.h)
	switch bg.Type {
	case BackgroundSolid:
		s.dc.SetColor(bg.Color)
		s.dc.DrawRectangle(0, 0, fw, fh)
		s.dc.Fill()
	case BackgroundGradient:
		if bg.Gradient == nil || len(bg.Gradient.Stops) == 0 {
			return
		}
		s.dc.SetFillStyle(gradientPattern(bg.Gradient, 0, 0, fw, fh))
		s.dc.DrawRectangle(0, 0, fw, fh)
		s.dc.Fill()
	case BackgroundImage:
		if err := s.backgroundImage(ctx, bg); err != nil {
			s.logger.Warn("background image failed", "err", err)
			s.warn(fmt.Sprintf("Background image could not be loaded: %v", err))
		}
	}
}

func (s *slideRender) backgroundImage(ctx context.Context, bg *Background) error {
	if bg.Image == nil {
		return errors.New("no image source")
	}
	filter := s.opts.Quality.Filter()
	p, err := s.r.images.ProcessImage(ctx, *bg.Image, ProcessOptions{Format: FormatRaw, Filter: &filter})
	if err != nil {
		return err
	}
	switch bg.Fit {
	case FitContain:
		k := min(float64(s.w)/float64(p.Width), float64(s.h)/float64(p.Height))
		fw := max(1, int(math.Round(float64(p.Width)*k)))
		fh := max(1, int(math.Round(float64(p.Height)*k)))
		s.dc.DrawImageAnchored(imaging.Resize(p.Image, fw, fh, filter), s.w/2, s.h/2, 0.5, 0.5)
	case FitStretch:
		s.dc.DrawImage(imaging.Resize(p.Image, s.w, s.h, filter), 0, 0)
	case FitTile:
		tw := max(1, int(math.Round(float64(p.Width)*s.sx)))
		th := max(1, int(math.Round(float64(p.Height)*s.sy)))
		tile := imaging.Resize(p.Image, tw, th, filter)
		for y := 0; y < s.h; y += th {
			for x := 0; x < s.w; x += tw {
				s.dc.DrawImage(tile, x, y)
			}
		}
	default:
		s.dc.DrawImage(imaging.Fill(p.Image, s.w, s.h, imaging.Center, filter), 0, 0)
	}
	return nil
}

// element paints e, or its fallback, and records the outcome. Group
// children are recorded after their group.
func (s *slideRender) element(ctx context.Context, e Element, opacity float64) {
	b := e.Base()
	idx := len(s.out)
	s.out = append(s.out, RenderedElement{})
	re := RenderedElement{
		ID:       b.ID,
		Type:     e.Kind(),
		X:        b.X * s.sx,
		Y:        b.Y * s.sy,
		Width:    b.Width * s.sx,
		Height:   b.Height * s.sy,
		Rotation: b.Rotation,
		ZIndex:   b.ZIndex,
	}
	defer func() { s.out[idx] = re }()

	if !b.Visible {
		return
	}
	// Animated groups, or groups with effects, are flattened as a whole.
	feature := ClassifyElement(e)
	if g, ok := e.(*GroupElement); ok && (feature == FeatureNone || !s.opts.EnableFallbacks) {
		re.Rendered = true
		for _, c := range byZIndex(g.Children) {
			s.element(ctx, c, opacity*b.Opacity)
		}
		return
	}

	if im, ok := e.(*ImageElement); ok {
		if err := s.r.images.checkSource(im.Source); err != nil {
			s.logger.Warn("linked image refused", "element", b.ID, "ref", im.Source.Ref, "err", err)
			re.Warning = "Linked image was not loaded: " + im.Source.Ref
			s.warn(re.Warning)
			return
		}
	}

	if feature != FeatureNone {
		if s.opts.EnableFallbacks {
			s.applyFallback(ctx, e, feature, nil, opacity, &re)
			return
		}
		if feature == FeatureChart {
			re.Warning = "Chart is not supported"
			s.warn(re.Warning)
			return
		}
	}

	if !s.layerFits(e, s.sx, s.sy) {
		s.logger.Warn("element exceeds the surface budget", "element", b.ID, "width", re.Width, "height", re.Height)
		if s.opts.EnableFallbacks {
			s.applyFallback(ctx, e, FeatureNone, nil, opacity, &re)
			return
		}
		re.Warning = fallbackLabel(FallbackRequest{Element: e}) + " is too large to render"
		s.warn(re.Warning)
		return
	}

	err := s.paint(ctx, s.dc, e, 0, 0, s.sx, s.sy, opacity)
	if err == nil {
		re.Rendered = true
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("element render failed", "element", b.ID, "err", err)
	if !s.opts.EnableFallbacks {
		re.Warning = fmt.Sprintf("%s could not be rendered: %v", fallbackLabel(FallbackRequest{Element: e}), err)
		s.warn(re.Warning)
		return
	}
	s.applyFallback(ctx, e, FeatureNone, err, opacity, &re)
}

// applyFallback runs the fallback chain for e and paints its result.
func (s *slideRender) applyFallback(ctx context.Context, e Element, feature Feature, cause error, opacity float64, re *RenderedElement) {
	b := e.Base()
	req := FallbackRequest{
		Element: e,
		Width:   pixelSize(b.Width * s.sx),
		Height:  pixelSize(b.Height * s.sy),
		Feature: feature,
		Cause:   cause,
		Snapshot: func(ctx context.Context, w, h int) (image.Image, error) {
			return s.snapshot(ctx, e, w, h)
		},
	}
	res := s.fallback.Handle(ctx, req)
	re.FallbackType, re.Warning = res.Type, res.Warning

	switch res.Type {
	case FallbackRasterized, FallbackPlaceholder:
		s.composite(s.dc, res.Image, e, 0, 0, s.sx, s.sy, 0, opacity*b.Opacity)
		re.FallbackImage = s.fallbackURI(res.Image)
		re.Rendered = true
	case FallbackSimplified:
		re.Rendered = true
		if err := s.paint(ctx, s.dc, res.Simplified, 0, 0, s.sx, s.sy, opacity); err != nil {
			label := fallbackLabel(req)
			img, perr := s.fallback.Placeholder(req.Width, req.Height, feature, label)
			if perr != nil {
				re.Rendered, re.FallbackType = false, FallbackNone
				re.Warning = label + " could not be rendered"
				break
			}
			s.composite(s.dc, img, e, 0, 0, s.sx, s.sy, 0, opacity*b.Opacity)
			re.FallbackType = FallbackPlaceholder
			re.FallbackImage = s.fallbackURI(img)
			re.Warning = label + " was replaced with placeholder"
		}
	}
	if re.Warning != "" {
		s.warn(re.Warning)
	}
}

func (s *slideRender) fallbackURI(img image.Image) string {
	data, err := encodeImage(img, FormatPNG, 0, png.DefaultCompression)
	if err != nil {
		s.logger.Debug("fallback image encode failed", "err", err)
		return ""
	}
	return dataURI(FormatPNG.MIME(), data)
}

// snapshot paints e unrotated into a w x h surface.
func (s *slideRender) snapshot(ctx context.Context, e Element, w, h int) (image.Image, error) {
	b := e.Base()
	kx, ky := 1.0, 1.0
	if b.Width > 0 {
		kx = float64(w) / b.Width
	}
	if b.Height > 0 {
		ky = float64(h) / b.Height
	}
	if sh, ok := e.(*ShapeElement); ok && sh.Shape == ShapeSmartArt {
		if len(sh.Diagram) == 0 {
			return nil, errors.New("SmartArt has no drawing")
		}
		dc := gg.NewContext(w, h)
		if err := s.paintAll(ctx, dc, sh.Diagram, 0, 0, kx, ky, 1); err != nil {
			return nil, err
		}
		return dc.Image(), nil
	}
	img, _, err := s.layer(ctx, e, kx, ky, 0)
	return img, err
}

// paint draws e natively onto dst, placing it relative to the origin
// (ox, oy) in source pixels, scaled by (sx, sy). Panics are returned as
// errors.
func (s *slideRender) paint(ctx context.Context, dst *gg.Context, e Element, ox, oy, sx, sy, opacity float64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = recoverError("paint "+e.Base().ID, rec)
		}
	}()
	b := e.Base()
	if !b.Visible {
		return nil
	}
	if g, ok := e.(*GroupElement); ok {
		return s.paintAll(ctx, dst, g.Children, ox, oy, sx, sy, opacity*b.Opacity)
	}
	img, pad, err := s.layer(ctx, e, sx, sy, layerPadding(e, sx, sy))
	if err != nil {
		return err
	}
	s.composite(dst, img, e, ox, oy, sx, sy, pad, opacity*b.Opacity)

	// SmartArt drawn without fallbacks shows its frame and its parts.
	if sh, ok := e.(*ShapeElement); ok && sh.Shape == ShapeSmartArt {
		return s.paintAll(ctx, dst, sh.Diagram, ox-b.X, oy-b.Y, sx, sy, opacity*b.Opacity)
	}
	return nil
}

// paintAll paints elements in z order.
func (s *slideRender) paintAll(ctx context.Context, dst *gg.Context, elements []Element, ox, oy, sx, sy, opacity float64) error {
	for _, c := range byZIndex(elements) {
		if err := s.paint(ctx, dst, c, ox, oy, sx, sy, opacity); err != nil {
			return err
		}
	}
	return nil
}

// layerFits reports whether e, painted at scale (sx, sy), fits one layer.
// Groups are checked per child.
func (s *slideRender) layerFits(e Element, sx, sy float64) bool {
	if _, ok := e.(*GroupElement); ok {
		return true
	}
	b := e.Base()
	pad := layerPadding(e, sx, sy)
	return surfaceFits(math.Ceil(b.Width*sx+2*pad), math.Ceil(b.Height*sy+2*pad))
}

// layerPadding leaves room for outlines centered on the box edge.
func layerPadding(e Element, sx, sy float64) float64 {
	var st *Stroke
	switch el := e.(type) {
	case *ShapeElement:
		st = el.Stroke
	case *TextElement:
		st = el.Stroke
	case *ImageElement:
		st = el.Stroke
	case *TableElement:
		st = el.Border
	}
	pad := 2.0
	if st.IsVisible() {
		pad += math.Ceil(st.Width * max(sx, sy))
	}
	return pad
}

// layer paints e into an offscreen surface the size of its scaled box
// plus pad on every side.
func (s *slideRender) layer(ctx context.Context, e Element, sx, sy, pad float64) (image.Image, float64, error) {
	b := e.Base()
	w, h := b.Width*sx, b.Height*sy
	if !surfaceFits(math.Ceil(w+2*pad), math.Ceil(h+2*pad)) {
		return nil, 0, errorf(CodeRender, "layer", "element %s surface %.0fx%.0f exceeds the budget", b.ID, w, h)
	}
	lw := max(1, int(math.Ceil(w+2*pad)))
	lh := max(1, int(math.Ceil(h+2*pad)))
	dc := gg.NewContext(lw, lh)
	dc.Translate(pad, pad)
	p := &painter{s: s, ctx: ctx, dc: dc, w: w, h: h, sx: sx, sy: sy}
	if err := VisitElement[error](e, p); err != nil {
		return nil, 0, err
	}
	return dc.Image(), pad, nil
}

// composite draws a layer of e onto dst about the element center,
// applying rotation, flips and opacity. Layers whose content size differs
// from the scaled box, such as capped fallback snapshots, are stretched.
func (s *slideRender) composite(dst *gg.Context, img image.Image, e Element, ox, oy, sx, sy, pad, opacity float64) {
	if img == nil || opacity <= 0 {
		return
	}
	b := e.Base()
	w, h := b.Width*sx, b.Height*sy
	cx, cy := (b.X-ox+b.Width/2)*sx, (b.Y-oy+b.Height/2)*sy

	kx, ky := 1.0, 1.0
	if iw := float64(img.Bounds().Dx()) - 2*pad; iw > 0 && w > 0 && math.Abs(iw-w) > 1 {
		kx = w / iw
	}
	if ih := float64(img.Bounds().Dy()) - 2*pad; ih > 0 && h > 0 && math.Abs(ih-h) > 1 {
		ky = h / ih
	}
	rotation := b.Rotation
	flipH, flipV := b.FlipH, b.FlipV
	if _, ok := e.(*TextElement); ok {
		// Text is never mirrored; a vertical flip turns it upside down.
		if flipV {
			rotation += 180
		}
		flipH, flipV = false, false
	}
	if flipH {
		kx = -kx
	}
	if flipV {
		ky = -ky
	}

	dst.Push()
	defer dst.Pop()
	dst.Translate(cx, cy)
	if rotation != 0 {
		dst.Rotate(gg.Radians(rotation))
	}
	if kx != 1 || ky != 1 {
		dst.Scale(kx, ky)
	}
	dst.DrawImageAnchored(withOpacity(img, opacity), 0, 0, 0.5, 0.5)
}

// withOpacity returns img with its alpha scaled by a.
func withOpacity(img image.Image, a float64) image.Image {
	if a >= 1 {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(a) * 255))})
	draw.DrawMask(out, b, img, b.Min, mask, image.Point{}, draw.Src)
	return out
}

// painter draws one element in local coordinates (0,0)-(w,h).
type painter struct {
	s      *slideRender
	ctx    context.Context
	dc     *gg.Context
	w, h   float64
	sx, sy float64
}

func (p *painter) Text(el *TextElement) error {
	p.s.drawTextBox(p.dc, el, 0, 0, p.w, p.h, p.sx, p.sy)
	return nil
}

func (p *painter) Image(el *ImageElement) error {
	filter := p.s.opts.Quality.Filter()
	mask, err := scaleMask(el.Mask, p.sx, p.sy)
	if err != nil {
		return err
	}
	img, err := p.s.r.images.ProcessImage(p.ctx, el.Source, ProcessOptions{
		Width:   max(1, int(math.Round(p.w))),
		Height:  max(1, int(math.Round(p.h))),
		Crop:    el.Crop,
		Mask:    mask,
		Filters: el.Filters,
		Format:  FormatRaw,
		Filter:  &filter,
	})
	if err != nil {
		return err
	}
	p.dc.DrawImage(img.Image, 0, 0)
	if st := scaleStroke(el.Stroke, p.sx, p.sy); st.IsVisible() {
		strokeRect(p.dc, st, 0, 0, p.w, p.h)
	}
	return nil
}

func (p *painter) Shape(el *ShapeElement) error {
	path := el.Path
	if el.Shape == ShapeCustom && (p.sx != 1 || p.sy != 1) {
		parsed, err := ParsePath(path)
		if err != nil {
			return newError(CodeRender, "shape", el.ID, err)
		}
		path = parsed.Scale(p.sx, p.sy).String()
	}
	v, err := RenderShape(el.Shape, ShapeOptions{
		Width:  p.w,
		Height: p.h,
		Fill:   el.Fill,
		Stroke: scaleStroke(el.Stroke, p.sx, p.sy),
		Path:   path,
	})
	if err != nil {
		return err
	}
	v.Draw(p.dc, 0, 0)
	return nil
}

func (p *painter) Table(el *TableElement) error {
	p.s.drawTable(p.dc, el, p.w, p.h, p.sx, p.sy)
	return nil
}

func (p *painter) Chart(el *ChartElement) error {
	return errorf(CodeRender, "chart", "charts are only drawn as snapshots")
}

// Group paints the children into the group's own layer, as used by
// fallback snapshots.
func (p *painter) Group(el *GroupElement) error {
	return p.s.paintAll(p.ctx, p.dc, el.Children, el.X, el.Y, p.sx, p.sy, 1)
}

// scaleStroke returns s with its width in output pixels.
func scaleStroke(s *Stroke, sx, sy float64) *Stroke {
	if s == nil || (sx == 1 && sy == 1) {
		return s
	}
	c := *s
	c.Width *= (sx + sy) / 2
	return &c
}

// scaleMask maps mask geometry from element pixels to output pixels.
func scaleMask(m *Mask, sx, sy float64) (*Mask, error) {
	if m == nil || (sx == 1 && sy == 1) {
		return m, nil
	}
	c := *m
	c.X, c.Y, c.Width, c.Height = m.X*sx, m.Y*sy, m.Width*sx, m.Height*sy
	if len(m.Points) > 0 {
		c.Points = make([]Point, len(m.Points))
		for i, pt := range m.Points {
			c.Points[i] = Point{X: pt.X * sx, Y: pt.Y * sy}
		}
	}
	if m.Type == MaskPath {
		p, err := ParsePath(m.Path)
		if err != nil {
			return nil, newError(CodeInvalidOptions, "mask", "bad path", err)
		}
		c.Path = p.Scale(sx, sy).String()
	}
	return &c, nil
}

func strokeRect(dc *gg.Context, st *Stroke, x, y, w, h float64) {
	dc.DrawRectangle(x, y, w, h)
	dc.SetColor(st.Color)
	dc.SetLineWidth(st.Width)
	dc.SetDash(st.DashPattern()...)
	dc.Stroke()
	dc.SetDash()
}
