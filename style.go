package slidepreview

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a non-premultiplied RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Predefined colors.
var (
	ColorBlack       = Color{0, 0, 0, 255}
	ColorWhite       = Color{255, 255, 255, 255}
	ColorTransparent = Color{}
)

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". The leading "#" is optional.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	alpha := uint8(255)
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	case 8:
		a, ok := parseHexByte(h[6:])
		if !ok {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		alpha = a
		h = h[:6]
	default:
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	c, err := colorful.Hex("#" + strings.ToLower(h))
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}

// NewColor parses s and falls back to black on malformed input.
func NewColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		return ColorBlack
	}
	return c
}

func parseHexByte(s string) (uint8, bool) {
	if len(s) != 2 {
		return 0, false
	}
	var v uint8
	for i := 0; i < 2; i++ {
		c := s[i]
		var d uint8
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

// Hex formats the color as "#rrggbb", or "#rrggbbaa" when not opaque.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) String() string { return c.Hex() }

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// MarshalText encodes the color as hex for JSON, YAML and TOML.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText parses a hex color.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// WithAlpha returns c with its alpha multiplied by f (0-1).
func (c Color) WithAlpha(f float64) Color {
	c.A = uint8(math.Round(float64(c.A) * clamp01(f)))
	return c
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(cf colorful.Color, alpha uint8) Color {
	r, g, b := cf.Clamped().RGB255()
	return Color{R: r, G: g, B: b, A: alpha}
}

// lumMod scales HSL lightness by f and then adds off.
func (c Color) lumMod(f, off float64) Color {
	h, s, l := c.colorful().Hsl()
	l = clamp01(l*f + off)
	return fromColorful(colorful.Hsl(h, s, l), c.A)
}

// tint moves the color towards white; f=1 keeps it unchanged.
func (c Color) tint(f float64) Color {
	return fromColorful(colorful.Color{R: 1, G: 1, B: 1}.BlendRgb(c.colorful(), clamp01(f)), c.A)
}

// shade moves the color towards black; f=1 keeps it unchanged.
func (c Color) shade(f float64) Color {
	return fromColorful(colorful.Color{}.BlendRgb(c.colorful(), clamp01(f)), c.A)
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// FillType is the kind of paint a Fill carries.
type FillType string

const (
	FillNone     FillType = "none"
	FillSolid    FillType = "solid"
	FillGradient FillType = "gradient"
)

// GradientType selects linear or radial interpolation.
type GradientType string

const (
	GradientLinear GradientType = "linear"
	GradientRadial GradientType = "radial"
)

// GradientStop is one color stop; Offset is in [0, 1].
type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  Color   `json:"color"`
}

// Gradient describes a multi-stop gradient. Angle is in degrees, measured
// clockwise from the positive x axis.
type Gradient struct {
	Type  GradientType   `json:"type"`
	Angle float64        `json:"angle,omitempty"`
	Stops []GradientStop `json:"stops"`
}

// FirstColor returns the first stop color, or transparent for an empty gradient.
func (g *Gradient) FirstColor() Color {
	if g == nil || len(g.Stops) == 0 {
		return ColorTransparent
	}
	return g.Stops[0].Color
}

// Fill is a solid color or gradient paint.
type Fill struct {
	Type     FillType  `json:"type"`
	Color    Color     `json:"color,omitempty"`
	Gradient *Gradient `json:"gradient,omitempty"`
}

// SolidFill returns a solid fill of c.
func SolidFill(c Color) *Fill {
	return &Fill{Type: FillSolid, Color: c}
}

// IsVisible reports whether the fill paints anything.
func (f *Fill) IsVisible() bool {
	if f == nil {
		return false
	}
	switch f.Type {
	case FillSolid:
		return f.Color.A > 0
	case FillGradient:
		return f.Gradient != nil && len(f.Gradient.Stops) > 0
	}
	return false
}

// Flatten collapses a gradient to its first stop color.
func (f *Fill) Flatten() *Fill {
	if f == nil || f.Type != FillGradient {
		return f
	}
	return SolidFill(f.Gradient.FirstColor())
}

// StrokeStyle is the dash style of an outline.
type StrokeStyle string

const (
	StrokeSolid  StrokeStyle = "solid"
	StrokeDashed StrokeStyle = "dashed"
	StrokeDotted StrokeStyle = "dotted"
)

// Stroke describes an outline. Width is in pixels.
type Stroke struct {
	Width float64     `json:"width"`
	Color Color       `json:"color"`
	Style StrokeStyle `json:"style"`
}

// IsVisible reports whether the stroke paints anything.
func (s *Stroke) IsVisible() bool {
	return s != nil && s.Width > 0 && s.Color.A > 0
}

// DashPattern returns the on/off lengths for the stroke style, or nil for solid.
func (s *Stroke) DashPattern() []float64 {
	if s == nil {
		return nil
	}
	switch s.Style {
	case StrokeDashed:
		return []float64{s.Width * 3, s.Width}
	case StrokeDotted:
		return []float64{s.Width, s.Width}
	}
	return nil
}

// strokeStyleFromPreset maps a:prstDash values onto the three supported styles.
func strokeStyleFromPreset(v string) StrokeStyle {
	switch v {
	case "", "solid":
		return StrokeSolid
	case "dot", "sysDot":
		return StrokeDotted
	default:
		return StrokeDashed
	}
}
