package slidepreview

import "math"

// ElementKind names an Element variant.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindImage ElementKind = "image"
	KindShape ElementKind = "shape"
	KindTable ElementKind = "table"
	KindChart ElementKind = "chart"
	KindGroup ElementKind = "group"
)

// Element is one of *TextElement, *ImageElement, *ShapeElement,
// *TableElement, *ChartElement or *GroupElement. The set is closed.
type Element interface {
	Base() *ElementBase
	Kind() ElementKind
	element()
}

// ElementBase holds the fields every element variant carries.
// Geometry is in pixels; Rotation is in degrees normalised to [0, 360).
type ElementBase struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	FlipH    bool    `json:"flipH,omitempty"`
	FlipV    bool    `json:"flipV,omitempty"`
	ZIndex   int     `json:"zIndex"`
	Opacity  float64 `json:"opacity"`
	Visible  bool    `json:"visible"`
	Locked   bool    `json:"locked,omitempty"`
	ParentID string  `json:"parentId,omitempty"`

	// Effects lists advanced effects the renderer does not reproduce
	// (outer shadow, glow, reflection, 3D, ...), by their package tag name.
	Effects []string `json:"effects,omitempty"`
	// Animated is set when the slide timing tree targets this element.
	Animated bool `json:"animated,omitempty"`
}

func (b *ElementBase) Base() *ElementBase { return b }
func (b *ElementBase) element()           {}

// Center returns the center point of the element box.
func (b *ElementBase) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Bounds returns the axis-aligned bounding box of the element after rotation.
func (b *ElementBase) Bounds() (x0, y0, x1, y1 float64) {
	if b.Rotation == 0 || b.Rotation == 180 {
		return b.X, b.Y, b.X + b.Width, b.Y + b.Height
	}
	cx, cy := b.Center()
	rad := b.Rotation * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	hw := (b.Width*cos + b.Height*sin) / 2
	hh := (b.Width*sin + b.Height*cos) / 2
	return cx - hw, cy - hh, cx + hw, cy + hh
}

// newElementBase returns a visible, opaque base with the default unit box.
func newElementBase(id string) ElementBase {
	return ElementBase{
		ID:      id,
		Width:   defaultElementSize,
		Height:  defaultElementSize,
		Opacity: 1,
		Visible: true,
	}
}

// defaultElementSize is the edge length used when the source gives no extent.
const defaultElementSize = 100

// HAlign is horizontal text alignment.
type HAlign string

const (
	AlignLeft    HAlign = "left"
	AlignCenter  HAlign = "center"
	AlignRight   HAlign = "right"
	AlignJustify HAlign = "justify"
)

// VAlign is vertical text alignment inside the element box.
type VAlign string

const (
	AlignTop    VAlign = "top"
	AlignMiddle VAlign = "middle"
	AlignBottom VAlign = "bottom"
)

// Insets is padding inside a text box, in pixels.
type Insets struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// defaultTextInsets are the package defaults (0.1in horizontal, 0.05in vertical).
var defaultTextInsets = Insets{Left: 9.6, Top: 4.8, Right: 9.6, Bottom: 4.8}

// TextElement is a text box. FontSize and LetterSpacing are in pixels.
type TextElement struct {
	ElementBase
	Content       string     `json:"content"`
	FontFamily    string     `json:"fontFamily"`
	FontWeight    FontWeight `json:"fontWeight"`
	FontStyle     FontStyle  `json:"fontStyle"`
	FontSize      float64    `json:"fontSize"`
	Color         Color      `json:"color"`
	Align         HAlign     `json:"textAlign"`
	VerticalAlign VAlign     `json:"verticalAlign"`
	LineHeight    float64    `json:"lineHeight"`
	LetterSpacing float64    `json:"letterSpacing"`
	Underline     bool       `json:"underline,omitempty"`
	Insets        Insets     `json:"insets"`
	Fill          *Fill      `json:"fill,omitempty"`
	Stroke        *Stroke    `json:"stroke,omitempty"`
}

func (*TextElement) Kind() ElementKind { return KindText }

// NewTextElement returns a text element with default typography.
func NewTextElement(id, content string) *TextElement {
	return &TextElement{
		ElementBase:   newElementBase(id),
		Content:       content,
		FontFamily:    defaultFontFamily,
		FontWeight:    WeightNormal,
		FontStyle:     StyleNormal,
		FontSize:      PointsToPixels(defaultFontSizePt),
		Color:         ColorBlack,
		Align:         AlignLeft,
		VerticalAlign: AlignTop,
		LineHeight:    1.2,
		Insets:        defaultTextInsets,
	}
}

// CropRect holds fractional crop bounds of the source image, each in [0, 1].
type CropRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// ImageElement is a picture.
type ImageElement struct {
	ElementBase
	Source         ImageSource `json:"source"`
	OriginalWidth  int         `json:"originalWidth"`
	OriginalHeight int         `json:"originalHeight"`
	AspectRatio    float64     `json:"aspectRatio"`
	Crop           *CropRect   `json:"crop,omitempty"`
	Mask           *Mask       `json:"mask,omitempty"`
	Filters        *Filters    `json:"filters,omitempty"`
	Stroke         *Stroke     `json:"stroke,omitempty"`
}

func (*ImageElement) Kind() ElementKind { return KindImage }

// ShapeElement is a vector shape. Path, when set, is SVG path data in the
// element's local pixel space and overrides Shape.
type ShapeElement struct {
	ElementBase
	Shape  ShapeKind `json:"shapeType"`
	Path   string    `json:"path,omitempty"`
	Fill   *Fill     `json:"fill,omitempty"`
	Stroke *Stroke   `json:"stroke,omitempty"`
	// Diagram holds the pre-drawn parts of a SmartArt graphic, in
	// coordinates local to the element box.
	Diagram []Element `json:"-"`
}

func (*ShapeElement) Kind() ElementKind { return KindShape }

// TableCell is one grid cell. Merged cells are covered by a spanning neighbour.
type TableCell struct {
	Text       string  `json:"text"`
	Fill       *Fill   `json:"fill,omitempty"`
	Color      Color   `json:"color"`
	FontSize   float64 `json:"fontSize"`
	FontFamily string  `json:"fontFamily"`
	Bold       bool    `json:"bold,omitempty"`
	Align      HAlign  `json:"textAlign"`
	GridSpan   int     `json:"gridSpan,omitempty"`
	RowSpan    int     `json:"rowSpan,omitempty"`
	Merged     bool    `json:"merged,omitempty"`
}

// TableRow is a row of cells with its height in pixels.
type TableRow struct {
	Height float64     `json:"height"`
	Cells  []TableCell `json:"cells"`
}

// TableElement is a grid of text cells.
type TableElement struct {
	ElementBase
	Columns []float64  `json:"columns"`
	Rows    []TableRow `json:"rows"`
	Border  *Stroke    `json:"border,omitempty"`
}

func (*TableElement) Kind() ElementKind { return KindTable }

// ChartSeries is one data series taken from the chart's cached values.
type ChartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Color  *Color    `json:"color,omitempty"`
}

// ChartElement is a chart. Charts are not reproduced natively; the cached
// data feeds the static snapshot used in their place.
type ChartElement struct {
	ElementBase
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Series     []ChartSeries `json:"series,omitempty"`
}

func (*ChartElement) Kind() ElementKind { return KindChart }

// GroupElement owns its children for layout. Children are stored with
// absolute slide geometry.
type GroupElement struct {
	ElementBase
	Children []Element `json:"children"`
}

func (*GroupElement) Kind() ElementKind { return KindGroup }

// ElementVisitor handles each element variant. Adding a variant extends
// this interface, so every consumer fails to compile until it handles it.
type ElementVisitor[T any] interface {
	Text(*TextElement) T
	Image(*ImageElement) T
	Shape(*ShapeElement) T
	Table(*TableElement) T
	Chart(*ChartElement) T
	Group(*GroupElement) T
}

// VisitElement dispatches e to the matching visitor method.
func VisitElement[T any](e Element, v ElementVisitor[T]) T {
	switch el := e.(type) {
	case *TextElement:
		return v.Text(el)
	case *ImageElement:
		return v.Image(el)
	case *ShapeElement:
		return v.Shape(el)
	case *TableElement:
		return v.Table(el)
	case *ChartElement:
		return v.Chart(el)
	case *GroupElement:
		return v.Group(el)
	}
	panic("slidepreview: unknown element type")
}

// WalkElements calls fn for every element in depth-first document order,
// descending into groups. Returning false from fn skips a group's children.
func WalkElements(elements []Element, fn func(Element) bool) {
	for _, e := range elements {
		if !fn(e) {
			continue
		}
		if g, ok := e.(*GroupElement); ok {
			WalkElements(g.Children, fn)
		}
	}
}

// CloneElement returns a shallow copy of e whose base, fill and stroke can be
// modified without touching the original.
func CloneElement(e Element) Element {
	switch el := e.(type) {
	case *TextElement:
		c := *el
		c.Effects = append([]string(nil), el.Effects...)
		return &c
	case *ImageElement:
		c := *el
		c.Effects = append([]string(nil), el.Effects...)
		return &c
	case *ShapeElement:
		c := *el
		c.Effects = append([]string(nil), el.Effects...)
		return &c
	case *TableElement:
		c := *el
		return &c
	case *ChartElement:
		c := *el
		return &c
	case *GroupElement:
		c := *el
		c.Children = append([]Element(nil), el.Children...)
		return &c
	}
	return e
}
