package slidepreview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", ColorBlack, false},
		{"ffffff", ColorWhite, false},
		{"#f00", Color{255, 0, 0, 255}, false},
		{"#11223380", Color{0x11, 0x22, 0x33, 0x80}, false},
		{" #ABCDEF ", Color{0xab, 0xcd, 0xef, 255}, false},
		{"#12345", Color{}, true},
		{"#gggggg", Color{}, true},
		{"", Color{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewColorFallsBackToBlack(t *testing.T) {
	assert.Equal(t, ColorBlack, NewColor("not a color"))
}

func TestColorHexAndText(t *testing.T) {
	c := Color{0x12, 0xab, 0x00, 255}
	assert.Equal(t, "#12ab00", c.Hex())

	b, err := json.Marshal(struct {
		C Color `json:"c"`
	}{c})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"#12ab00"}`, string(b))

	var back Color
	require.NoError(t, back.UnmarshalText([]byte("#12ab00")))
	assert.Equal(t, c, back)
}

func TestColorWithAlpha(t *testing.T) {
	c := ColorBlack.WithAlpha(0.5)
	assert.InDelta(t, 127, int(c.A), 1)
	assert.Equal(t, uint8(0), ColorBlack.WithAlpha(-1).A)
}

func TestFillVisibilityAndFlatten(t *testing.T) {
	var nilFill *Fill
	assert.False(t, nilFill.IsVisible())
	assert.False(t, SolidFill(ColorTransparent).IsVisible())
	assert.True(t, SolidFill(ColorBlack).IsVisible())

	g := &Fill{Type: FillGradient, Gradient: &Gradient{
		Type: GradientLinear,
		Stops: []GradientStop{
			{Offset: 0, Color: NewColor("#ff0000")},
			{Offset: 1, Color: NewColor("#0000ff")},
		},
	}}
	assert.True(t, g.IsVisible())
	flat := g.Flatten()
	assert.Equal(t, FillSolid, flat.Type)
	assert.Equal(t, NewColor("#ff0000"), flat.Color)

	solid := SolidFill(ColorWhite)
	assert.Same(t, solid, solid.Flatten())
}

func TestStrokeDashPattern(t *testing.T) {
	assert.Nil(t, (&Stroke{Width: 2, Style: StrokeSolid}).DashPattern())
	assert.Equal(t, []float64{6, 2}, (&Stroke{Width: 2, Style: StrokeDashed}).DashPattern())
	assert.Equal(t, []float64{2, 2}, (&Stroke{Width: 2, Style: StrokeDotted}).DashPattern())
	assert.False(t, (&Stroke{Width: 0, Color: ColorBlack}).IsVisible())
}
