package slidepreview

import (
	"image"
	"image/draw"

	"github.com/fogleman/gg"
)

// MaskType is the clipping geometry of an image mask.
type MaskType string

const (
	MaskRectangle MaskType = "rectangle"
	MaskCircle    MaskType = "circle"
	MaskPolygon   MaskType = "polygon"
	MaskPath      MaskType = "path"
)

// Mask clips an image. Geometry is in pixels of the processed image.
// A rectangle with zero Width or Height covers the whole image.
type Mask struct {
	Type   MaskType `json:"type"`
	X      float64  `json:"x,omitempty"`
	Y      float64  `json:"y,omitempty"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`
	Points []Point  `json:"points,omitempty"`
	Path   string   `json:"path,omitempty"`
}

// coverage rasterizes the mask geometry into an alpha mask of size w x h.
func (m *Mask) coverage(w, h int) (*image.Alpha, error) {
	dc := gg.NewContext(w, h)
	dc.SetRGBA(0, 0, 0, 1)
	fw, fh := float64(w), float64(h)
	switch m.Type {
	case MaskRectangle:
		if m.Width > 0 && m.Height > 0 {
			dc.DrawRectangle(m.X, m.Y, m.Width, m.Height)
		} else {
			dc.DrawRectangle(0, 0, fw, fh)
		}
	case MaskCircle:
		dc.DrawCircle(fw/2, fh/2, min(fw, fh)/2)
	case MaskPolygon:
		if len(m.Points) < 3 {
			return nil, errorf(CodeInvalidOptions, "mask", "polygon needs at least 3 points, got %d", len(m.Points))
		}
		polygonPath(m.Points).Append(dc, 0, 0)
	case MaskPath:
		p, err := ParsePath(m.Path)
		if err != nil {
			return nil, newError(CodeInvalidOptions, "mask", "bad path", err)
		}
		p.Append(dc, 0, 0)
	default:
		return nil, errorf(CodeInvalidOptions, "mask", "unknown mask type %q", m.Type)
	}
	dc.Fill()
	return dc.AsMask(), nil
}

// applyMask returns img with everything outside the mask made transparent.
func applyMask(img image.Image, m *Mask) (*image.NRGBA, error) {
	b := img.Bounds()
	alpha, err := m.coverage(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.DrawMask(out, out.Bounds(), img, b.Min, alpha, image.Point{}, draw.Src)
	return out, nil
}
