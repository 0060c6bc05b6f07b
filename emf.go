package slidepreview

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// Enhanced metafile record types understood by decodeEMF.
const (
	emrHeader            = 0x01
	emrEOF               = 0x0E
	emrSetWindowExtEx    = 0x09
	emrSetWindowOrgEx    = 0x0A
	emrSetViewportExtEx  = 0x0B
	emrSetViewportOrgEx  = 0x0C
	emrMoveToEx          = 0x1B
	emrSelectObject      = 0x25
	emrCreatePen         = 0x26
	emrCreateBrush       = 0x27
	emrDeleteObject      = 0x28
	emrEllipse           = 0x2A
	emrRectangle         = 0x2B
	emrLineTo            = 0x36
	emrBeginPath         = 0x3A
	emrCloseFigure       = 0x3C
	emrFillPath          = 0x3D
	emrStrokeAndFillPath = 0x3E
	emrStrokePath        = 0x3F
	emrAbortPath         = 0x40
	emrSelectClipPath    = 0x43
	emrPolyBezier16      = 0x55
	emrPolygon16         = 0x56
	emrPolyline16        = 0x57
	emrPolyBezierTo16    = 0x58
	emrPolylineTo16      = 0x59
	emrPolyPolygon16     = 0x5B
)

// Stock object handles have the high bit set.
const (
	stockWhiteBrush = 0x80000000
	stockBlackBrush = 0x80000004
	stockNullBrush  = 0x80000005
	stockWhitePen   = 0x80000006
	stockBlackPen   = 0x80000007
	stockNullPen    = 0x80000008
)

const (
	emfSignature = 0x464D4520 // " EMF"
	penNull      = 5
	brushNull    = 1
	// emfMinSide is the shortest side small metafiles are upscaled to.
	emfMinSide = 300
)

var errNoDrawing = errors.New("metafile contains no supported drawing records")

// isEMF reports whether data starts with an enhanced metafile header.
func isEMF(data []byte) bool {
	return len(data) >= 88 &&
		binary.LittleEndian.Uint32(data[0:4]) == emrHeader &&
		binary.LittleEndian.Uint32(data[40:44]) == emfSignature
}

type emfObject struct {
	pen   bool
	style uint32
	width float64
	color color.NRGBA
}

// emfDecoder replays the vector subset of a metafile onto a gg surface.
// Text, bitmaps and clipping records are ignored.
type emfDecoder struct {
	data []byte
	dc   *gg.Context

	scale, offX, offY  float64
	surfW, surfH       float64
	winOrg, winExt     Point
	vpOrg, vpExt       Point
	objects            map[uint32]emfObject
	brush, pen         emfObject
	nullBrush, nullPen bool

	path      Path
	lastPath  Path
	cur       Point
	drew      bool
	clipFills map[int]bool
}

// decodeEMF rasterizes an enhanced metafile. The output keeps the
// metafile's device bounds, upscaled so its short side is at least
// emfMinSide and capped at maxSide on the long side.
func decodeEMF(data []byte, maxSide int) (image.Image, error) {
	if !isEMF(data) {
		return nil, errors.New("not an enhanced metafile")
	}
	le := binary.LittleEndian
	l, t := int32(le.Uint32(data[8:12])), int32(le.Uint32(data[12:16]))
	r, b := int32(le.Uint32(data[16:20])), int32(le.Uint32(data[20:24]))
	devW, devH := float64(r-l), float64(b-t)
	if devW <= 0 || devH <= 0 {
		return nil, errors.New("metafile has empty bounds")
	}

	scale := 1.0
	if devW < emfMinSide || devH < emfMinSide {
		scale = min(emfMinSide/devW, emfMinSide/devH)
	}
	if maxSide > 0 {
		if long := max(devW, devH) * scale; long > float64(maxSide) {
			scale *= float64(maxSide) / long
		}
	}
	w := max(1, int(math.Ceil(devW*scale))+2)
	h := max(1, int(math.Ceil(devH*scale))+2)

	d := &emfDecoder{
		data:      data,
		dc:        gg.NewContext(w, h),
		scale:     scale,
		surfW:     float64(w),
		surfH:     float64(h),
		offX:      -float64(l)*scale + 1,
		offY:      -float64(t)*scale + 1,
		winExt:    Point{1, 1},
		vpExt:     Point{1, 1},
		objects:   make(map[uint32]emfObject),
		nullPen:   true,
		clipFills: make(map[int]bool),
	}
	d.dc.SetFillRule(gg.FillRuleEvenOdd)
	d.dc.SetLineCap(gg.LineCapRound)
	d.dc.SetLineJoin(gg.LineJoinRound)

	d.scanClipFills()
	d.each(d.record)
	if !d.drew {
		return nil, errNoDrawing
	}
	return d.dc.Image(), nil
}

// each calls fn for every well-formed record up to EMR_EOF.
func (d *emfDecoder) each(fn func(pos int, typ uint32, rec []byte)) {
	le := binary.LittleEndian
	for pos := 0; pos+8 <= len(d.data); {
		typ := le.Uint32(d.data[pos:])
		size := int(le.Uint32(d.data[pos+4:]))
		if size < 8 || pos+size > len(d.data) {
			return
		}
		fn(pos, typ, d.data[pos:pos+size])
		if typ == emrEOF {
			return
		}
		pos += size
	}
}

// scanClipFills marks FILLPATH records directly followed by CLOSEFIGURE and
// ABORTPATH. Such fills only establish a clip region.
func (d *emfDecoder) scanClipFills() {
	type seen struct {
		pos int
		typ uint32
	}
	var window [3]seen
	d.each(func(pos int, typ uint32, _ []byte) {
		window[0], window[1], window[2] = window[1], window[2], seen{pos, typ}
		if window[0].typ == emrFillPath && window[1].typ == emrCloseFigure && window[2].typ == emrAbortPath {
			d.clipFills[window[0].pos] = true
		}
	})
}

func (d *emfDecoder) point(lx, ly float64) Point {
	var x, y float64
	if d.winExt.X != 0 {
		x = (lx - d.winOrg.X) * d.vpExt.X / d.winExt.X
	}
	if d.winExt.Y != 0 {
		y = (ly - d.winOrg.Y) * d.vpExt.Y / d.winExt.Y
	}
	return Point{
		clampCoord((x+d.vpOrg.X)*d.scale+d.offX, d.surfW),
		clampCoord((y+d.vpOrg.Y)*d.scale+d.offY, d.surfH),
	}
}

// clampCoord keeps v within one surface length of [0, size]. Curves are
// flattened in proportion to their length, so far-off points would cost
// memory without adding visible pixels.
func clampCoord(v, size float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, -size), 2*size)
}

func i32At(rec []byte, off int) float64 {
	return float64(int32(binary.LittleEndian.Uint32(rec[off:])))
}

func i16At(rec []byte, off int) float64 {
	return float64(int16(binary.LittleEndian.Uint16(rec[off:])))
}

// points16 reads count 16-bit points starting at off.
func (d *emfDecoder) points16(rec []byte, off, count int) []Point {
	if count <= 0 || off+count*4 > len(rec) {
		return nil
	}
	pts := make([]Point, count)
	for i := range pts {
		pts[i] = d.point(i16At(rec, off+i*4), i16At(rec, off+i*4+2))
	}
	return pts
}

// polyPoints reads the point array of a 16-bit poly record.
func (d *emfDecoder) polyPoints(rec []byte) []Point {
	if len(rec) < 28 {
		return nil
	}
	return d.points16(rec, 28, int(binary.LittleEndian.Uint32(rec[24:])))
}

func (d *emfDecoder) moveTo(p Point) {
	d.path = append(d.path, PathCommand{Op: OpMoveTo, Points: []Point{p}})
	d.cur = p
}

func (d *emfDecoder) lineTo(p Point) {
	if len(d.path) == 0 {
		d.moveTo(d.cur)
	}
	d.path = append(d.path, PathCommand{Op: OpLineTo, Points: []Point{p}})
	d.cur = p
}

// beziers appends cubic segments from the current point.
func (d *emfDecoder) beziers(pts []Point) {
	if len(d.path) == 0 {
		d.moveTo(d.cur)
	}
	for i := 0; i+2 < len(pts); i += 3 {
		d.path = append(d.path, PathCommand{Op: OpCubicTo, Points: []Point{pts[i], pts[i+1], pts[i+2]}})
		d.cur = pts[i+2]
	}
}

func (d *emfDecoder) record(pos int, typ uint32, rec []byte) {
	le := binary.LittleEndian
	switch typ {
	case emrSetWindowExtEx, emrSetWindowOrgEx, emrSetViewportExtEx, emrSetViewportOrgEx:
		if len(rec) < 16 {
			return
		}
		p := Point{i32At(rec, 8), i32At(rec, 12)}
		switch typ {
		case emrSetWindowExtEx:
			d.winExt = p
		case emrSetWindowOrgEx:
			d.winOrg = p
		case emrSetViewportExtEx:
			d.vpExt = p
		default:
			d.vpOrg = p
		}
	case emrCreatePen:
		if len(rec) >= 28 {
			d.objects[le.Uint32(rec[8:])] = emfObject{
				pen:   true,
				style: le.Uint32(rec[12:]) & 0x0F,
				width: i32At(rec, 16),
				color: color.NRGBA{rec[24], rec[25], rec[26], 255},
			}
		}
	case emrCreateBrush:
		if len(rec) >= 20 {
			d.objects[le.Uint32(rec[8:])] = emfObject{
				style: le.Uint32(rec[12:]),
				color: color.NRGBA{rec[16], rec[17], rec[18], 255},
			}
		}
	case emrDeleteObject:
		if len(rec) >= 12 {
			delete(d.objects, le.Uint32(rec[8:]))
		}
	case emrSelectObject:
		if len(rec) >= 12 {
			d.selectObject(le.Uint32(rec[8:]))
		}
	case emrMoveToEx:
		if len(rec) >= 16 {
			d.moveTo(d.point(i32At(rec, 8), i32At(rec, 12)))
		}
	case emrLineTo:
		if len(rec) >= 16 {
			d.lineTo(d.point(i32At(rec, 8), i32At(rec, 12)))
		}
	case emrBeginPath, emrAbortPath, emrSelectClipPath:
		d.path = d.path[:0]
	case emrCloseFigure:
		if len(d.path) > 0 {
			d.path = append(d.path, PathCommand{Op: OpClose})
		}
	case emrFillPath:
		if !d.clipFills[pos] {
			d.fill(d.path)
		}
		d.lastPath = append(d.lastPath[:0], d.path...)
		d.path = d.path[:0]
	case emrStrokeAndFillPath:
		p := d.path
		if len(p) < 2 {
			p = d.lastPath
		}
		d.fill(p)
		d.stroke(p)
		d.path, d.lastPath = d.path[:0], nil
	case emrStrokePath:
		d.stroke(d.path)
		d.path = d.path[:0]
	case emrPolygon16:
		if pts := d.polyPoints(rec); len(pts) > 2 {
			p := polygonPath(pts)
			d.fill(p)
			d.stroke(p)
		}
	case emrPolyPolygon16:
		d.polyPolygon(rec)
	case emrPolyline16:
		if pts := d.polyPoints(rec); len(pts) > 1 {
			p := polygonPath(pts)
			d.stroke(p[:len(p)-1])
		}
	case emrPolylineTo16:
		for _, p := range d.polyPoints(rec) {
			d.lineTo(p)
		}
	case emrPolyBezierTo16:
		d.beziers(d.polyPoints(rec))
	case emrPolyBezier16:
		if pts := d.polyPoints(rec); len(pts) >= 4 {
			d.moveTo(pts[0])
			d.beziers(pts[1:])
		}
	case emrEllipse, emrRectangle:
		if len(rec) < 24 {
			return
		}
		a, b := d.point(i32At(rec, 8), i32At(rec, 12)), d.point(i32At(rec, 16), i32At(rec, 20))
		if a.X == b.X || a.Y == b.Y {
			return
		}
		var p Path
		if typ == emrEllipse {
			p = ellipsePath((a.X+b.X)/2, (a.Y+b.Y)/2, math.Abs(b.X-a.X)/2, math.Abs(b.Y-a.Y)/2)
		} else {
			p = polygonPath([]Point{a, {b.X, a.Y}, b, {a.X, b.Y}})
		}
		d.fill(p)
		d.stroke(p)
	}
}

// polyPolygon draws several polygons as one even-odd filled shape.
func (d *emfDecoder) polyPolygon(rec []byte) {
	if len(rec) < 32 {
		return
	}
	le := binary.LittleEndian
	n := int(le.Uint32(rec[24:]))
	total := int(le.Uint32(rec[28:]))
	countsOff := 32
	ptsOff := countsOff + n*4
	if n <= 0 || ptsOff > len(rec) {
		return
	}
	all := d.points16(rec, ptsOff, total)
	var p Path
	for i := range n {
		c := int(le.Uint32(rec[countsOff+i*4:]))
		if c > len(all) {
			return
		}
		p = append(p, polygonPath(all[:c])...)
		all = all[c:]
	}
	d.fill(p)
	d.stroke(p)
}

func (d *emfDecoder) selectObject(h uint32) {
	switch h {
	case stockWhiteBrush:
		d.brush, d.nullBrush = emfObject{color: color.NRGBA{255, 255, 255, 255}}, false
	case stockBlackBrush:
		d.brush, d.nullBrush = emfObject{color: color.NRGBA{0, 0, 0, 255}}, false
	case stockNullBrush:
		d.nullBrush = true
	case stockWhitePen:
		d.pen, d.nullPen = emfObject{pen: true, color: color.NRGBA{255, 255, 255, 255}}, false
	case stockBlackPen:
		d.pen, d.nullPen = emfObject{pen: true, color: color.NRGBA{0, 0, 0, 255}}, false
	case stockNullPen:
		d.nullPen = true
	default:
		o, ok := d.objects[h]
		if !ok {
			return
		}
		if o.pen {
			d.pen, d.nullPen = o, o.style == penNull
		} else {
			d.brush, d.nullBrush = o, o.style == brushNull
		}
	}
}

func (d *emfDecoder) fill(p Path) {
	if d.nullBrush || len(p) < 2 {
		return
	}
	p.Append(d.dc, 0, 0)
	d.dc.SetColor(d.brush.color)
	d.dc.Fill()
	d.drew = true
}

func (d *emfDecoder) stroke(p Path) {
	if d.nullPen || len(p) < 2 {
		return
	}
	p.Append(d.dc, 0, 0)
	d.dc.SetColor(d.pen.color)
	d.dc.SetLineWidth(min(max(1, d.pen.width*d.scale), max(d.surfW, d.surfH)))
	d.dc.Stroke()
	d.drew = true
}
