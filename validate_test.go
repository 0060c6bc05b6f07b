package slidepreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentValidate(t *testing.T) {
	valid := func() *Document {
		s := newSlide("slide-1", 0, 1920, 1080)
		s.Elements = []Element{NewTextElement("t1", "Hello")}
		return &Document{Slides: []*Slide{s}}
	}

	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
	}{
		{"valid", func(*Document) {}, ""},
		{"no slides", func(d *Document) { d.Slides = nil }, "document has no slides"},
		{"nil slide", func(d *Document) { d.Slides = append(d.Slides, nil) }, "slide 2: slide is nil"},
		{"duplicate id", func(d *Document) { d.Slides = append(d.Slides, newSlide("slide-1", 1, 10, 10)) }, "duplicate slide id slide-1"},
		{"bad size", func(d *Document) { d.Slides[0].Width = 0 }, "must be positive"},
		{"opacity", func(d *Document) { d.Slides[0].Elements[0].Base().Opacity = 2 }, "opacity 2 outside [0, 1]"},
		{"rotation", func(d *Document) { d.Slides[0].Elements[0].Base().Rotation = 360 }, "rotation 360 not normalized"},
		{"negative size", func(d *Document) { d.Slides[0].Elements[0].Base().Width = -1 }, "negative size"},
		{"image without source", func(d *Document) {
			d.Slides[0].Elements = append(d.Slides[0].Elements, &ImageElement{ElementBase: newElementBase("i1")})
		}, "image has no source"},
		{"bad crop", func(d *Document) {
			d.Slides[0].Elements = append(d.Slides[0].Elements, &ImageElement{
				ElementBase: newElementBase("i1"),
				Source:      ImageSource{Ref: "a.png"},
				Crop:        &CropRect{Left: 0.5, Right: 0.5, Bottom: 1},
			})
		}, "empty crop"},
		{"empty table", func(d *Document) {
			d.Slides[0].Elements = append(d.Slides[0].Elements, &TableElement{ElementBase: newElementBase("tb")})
		}, "table has no rows"},
		{"group cycle", func(d *Document) {
			g := &GroupElement{ElementBase: newElementBase("g1")}
			g.Children = []Element{g}
			d.Slides[0].Elements = append(d.Slides[0].Elements, g)
		}, "group g1 contains itself"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := d.Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckGroupsAllowsSharedSiblings(t *testing.T) {
	leaf := &GroupElement{ElementBase: newElementBase("leaf")}
	a := &GroupElement{ElementBase: newElementBase("a"), Children: []Element{leaf}}
	b := &GroupElement{ElementBase: newElementBase("b"), Children: []Element{leaf}}
	assert.NoError(t, checkGroups([]Element{a, b}))
}
