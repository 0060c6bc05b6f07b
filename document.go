package slidepreview

import "time"

// Default slide geometry used when a package omits p:sldSz.
const (
	DefaultSlideWidth  = 1920
	DefaultSlideHeight = 1080
)

// Document is the decoded presentation. It is built once per decode and is
// not modified afterwards, except for FontInfo.Loaded.
type Document struct {
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Created     time.Time   `json:"created"`
	Modified    time.Time   `json:"modified"`
	Application string      `json:"application,omitempty"`
	Company     string      `json:"company,omitempty"`
	Slides      []*Slide    `json:"slides"`
	Fonts       []*FontInfo `json:"fonts"`
}

// SlideCount returns the number of slides.
func (d *Document) SlideCount() int {
	return len(d.Slides)
}

// Slide is one decoded slide. Width and Height are in pixels.
type Slide struct {
	ID          string      `json:"id"`
	Index       int         `json:"index"`
	Part        string      `json:"part,omitempty"`
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	AspectRatio float64     `json:"aspectRatio"`
	Background  *Background `json:"background,omitempty"`
	Elements    []Element   `json:"elements"`
	// Warnings carries recoveries made while decoding this slide.
	Warnings []string `json:"warnings,omitempty"`
	// Placeholder is set when the slide could not be decoded at all.
	Placeholder bool `json:"placeholder,omitempty"`
}

// newSlide returns an empty slide of the given pixel size; a non-positive
// size falls back to the default 1920x1080.
func newSlide(id string, index int, width, height float64) *Slide {
	if width <= 0 || height <= 0 {
		width, height = DefaultSlideWidth, DefaultSlideHeight
	}
	return &Slide{
		ID:          id,
		Index:       index,
		Width:       width,
		Height:      height,
		AspectRatio: width / height,
	}
}

// BackgroundType is the kind of slide background.
type BackgroundType string

const (
	BackgroundSolid    BackgroundType = "solid"
	BackgroundGradient BackgroundType = "gradient"
	BackgroundImage    BackgroundType = "image"
)

// BackgroundFit is how an image background fills the slide.
type BackgroundFit string

const (
	FitFill    BackgroundFit = "fill"    // cover, cropping overflow
	FitContain BackgroundFit = "fit"     // letterbox
	FitStretch BackgroundFit = "stretch" // ignore aspect ratio
	FitTile    BackgroundFit = "tile"
)

// Background is a slide background.
type Background struct {
	Type     BackgroundType `json:"type"`
	Color    Color          `json:"color,omitempty"`
	Gradient *Gradient      `json:"gradient,omitempty"`
	Image    *ImageSource   `json:"image,omitempty"`
	Fit      BackgroundFit  `json:"fit,omitempty"`
}
