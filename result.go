package slidepreview

import "image"

// RenderedElement reports how one element was painted. Geometry is in
// output pixels.
type RenderedElement struct {
	ID       string      `json:"id" yaml:"id"`
	Type     ElementKind `json:"type" yaml:"type"`
	X        float64     `json:"x" yaml:"x"`
	Y        float64     `json:"y" yaml:"y"`
	Width    float64     `json:"width" yaml:"width"`
	Height   float64     `json:"height" yaml:"height"`
	Rotation float64     `json:"rotation" yaml:"rotation"`
	ZIndex   int         `json:"zIndex" yaml:"zIndex"`
	Rendered bool        `json:"rendered" yaml:"rendered"`

	FallbackType FallbackType `json:"fallbackType,omitempty" yaml:"fallbackType,omitempty"`
	// FallbackImage is a data URI of the rasterized or placeholder image.
	FallbackImage string `json:"fallbackImage,omitempty" yaml:"-"`
	Warning       string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// RenderedSlide is the output for one slide.
type RenderedSlide struct {
	ID          string  `json:"id" yaml:"id"`
	Index       int     `json:"index" yaml:"index"`
	Width       int     `json:"width" yaml:"width"`
	Height      int     `json:"height" yaml:"height"`
	AspectRatio float64 `json:"aspectRatio" yaml:"aspectRatio"`

	// Image is the raster surface; Data is its encoding in MIME format.
	Image image.Image `json:"-" yaml:"-"`
	Data  []byte      `json:"-" yaml:"-"`
	MIME  string      `json:"mime" yaml:"mime"`
	// DataURL is only filled by EmbedDataURI.
	DataURL string `json:"dataUrl,omitempty" yaml:"-"`

	Elements []RenderedElement `json:"elements" yaml:"elements"`
	Warnings []string          `json:"warnings" yaml:"warnings"`
}

// DataURI returns the encoded slide as a data URI.
func (s *RenderedSlide) DataURI() string {
	return dataURI(s.MIME, s.Data)
}

// EmbedDataURI fills DataURL so the slide serializes self-contained.
func (s *RenderedSlide) EmbedDataURI() {
	s.DataURL = s.DataURI()
}
