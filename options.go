package slidepreview

import (
	"fmt"
	"image/png"

	"github.com/BurntSushi/toml"
	"github.com/disintegration/imaging"
)

// Quality selects output encoding and resampling quality.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// Factor returns the 0-1 encoding quality of q.
func (q Quality) Factor() float64 {
	switch q {
	case QualityLow:
		return 0.6
	case QualityMedium:
		return 0.8
	case QualityUltra:
		return 1
	default:
		return 0.9
	}
}

// Format returns the slide output encoding for q.
func (q Quality) Format() ImageFormat {
	switch q {
	case QualityLow, QualityMedium:
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// JPEGQuality returns the JPEG quality (1-100) for q.
func (q Quality) JPEGQuality() int {
	return int(q.Factor() * 100)
}

func (q Quality) pngCompression() png.CompressionLevel {
	if q == QualityUltra {
		return png.BestCompression
	}
	return png.DefaultCompression
}

// Filter returns the resampling filter used when scaling images.
func (q Quality) Filter() imaging.ResampleFilter {
	switch q {
	case QualityLow:
		return imaging.NearestNeighbor
	case QualityMedium:
		return imaging.Linear
	case QualityUltra:
		return imaging.Lanczos
	default:
		return imaging.CatmullRom
	}
}

// FallbackOptions controls the Fallback Renderer.
type FallbackOptions struct {
	EnableRasterization bool `toml:"enable_rasterization" json:"enableRasterization" yaml:"enableRasterization"`
	// MaxRasterizationSize caps the longest side of any fallback snapshot.
	MaxRasterizationSize int `toml:"max_rasterization_size" json:"maxRasterizationSize" yaml:"maxRasterizationSize"`
}

// RenderOptions configures rendering.
type RenderOptions struct {
	// Width and Height are the target reference size in pixels. Zero means
	// the slide's own size.
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`
	// Scale multiplies all slide and element geometry. When zero it is
	// derived from Width/Height.
	Scale               float64         `toml:"scale" json:"scale" yaml:"scale"`
	Quality             Quality         `toml:"quality" json:"quality" yaml:"quality"`
	EnableFallbacks     bool            `toml:"enable_fallbacks" json:"enableFallbacks" yaml:"enableFallbacks"`
	PreserveAspectRatio bool            `toml:"preserve_aspect_ratio" json:"preserveAspectRatio" yaml:"preserveAspectRatio"`
	Fallback            FallbackOptions `toml:"fallback" json:"fallbackOptions" yaml:"fallbackOptions"`
	// Concurrency is the number of slides rendered in parallel.
	Concurrency int `toml:"concurrency" json:"concurrency" yaml:"concurrency"`
	// BackgroundColor paints slides that have no background.
	BackgroundColor Color `toml:"background_color" json:"backgroundColor" yaml:"backgroundColor"`
}

// DefaultRenderOptions returns the default options.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Scale:               1,
		Quality:             QualityHigh,
		EnableFallbacks:     true,
		PreserveAspectRatio: true,
		Fallback: FallbackOptions{
			EnableRasterization:  true,
			MaxRasterizationSize: 2048,
		},
		Concurrency:     1,
		BackgroundColor: ColorWhite,
	}
}

// LoadRenderOptions reads a TOML file on top of DefaultRenderOptions.
func LoadRenderOptions(path string) (RenderOptions, error) {
	opts := DefaultRenderOptions()
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return opts, fmt.Errorf("failed to read render options %s: %w", path, err)
	}
	return opts, opts.Validate()
}

// Validate checks option ranges.
func (o RenderOptions) Validate() error {
	if o.Width < 0 || o.Height < 0 {
		return errorf(CodeInvalidOptions, "options", "negative target size %dx%d", o.Width, o.Height)
	}
	if o.Scale < 0 {
		return errorf(CodeInvalidOptions, "options", "negative scale %g", o.Scale)
	}
	switch o.Quality {
	case "", QualityLow, QualityMedium, QualityHigh, QualityUltra:
	default:
		return errorf(CodeInvalidOptions, "options", "unknown quality %q", o.Quality)
	}
	if o.Fallback.MaxRasterizationSize < 0 {
		return errorf(CodeInvalidOptions, "options", "negative max rasterization size %d", o.Fallback.MaxRasterizationSize)
	}
	return nil
}

// scaleFor returns the x/y scale factors for a slide of the given size.
func (o RenderOptions) scaleFor(width, height float64) (sx, sy float64) {
	if o.Scale > 0 {
		return o.Scale, o.Scale
	}
	switch {
	case o.Width > 0 && o.Height > 0:
		sx, sy = float64(o.Width)/width, float64(o.Height)/height
		if o.PreserveAspectRatio {
			s := min(sx, sy)
			return s, s
		}
		return sx, sy
	case o.Width > 0:
		s := float64(o.Width) / width
		return s, s
	case o.Height > 0:
		s := float64(o.Height) / height
		return s, s
	}
	return 1, 1
}

// maxRasterLimit caps MaxRasterizationSize so snapshots stay within the
// renderer's surface budget.
const maxRasterLimit = 4096

func (o RenderOptions) maxRasterSize() int {
	if o.Fallback.MaxRasterizationSize <= 0 {
		return 2048
	}
	return min(o.Fallback.MaxRasterizationSize, maxRasterLimit)
}
