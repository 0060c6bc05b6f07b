package slidepreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEMUToPixels(t *testing.T) {
	tests := []struct {
		emu  float64
		want float64
	}{
		{0, 0},
		{914400, 96},
		{12192000, 1280},
		{6858000, 720},
		{-914400, -96},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, EMUToPixels(tt.emu), 1e-9, "emu=%v", tt.emu)
	}
}

func TestPixelsToEMURoundTrip(t *testing.T) {
	for _, px := range []float64{0, 1, 96, 1920, 123.5} {
		assert.InDelta(t, px, EMUToPixels(PixelsToEMU(px)), 1e-9)
	}
}

func TestUnitConversions(t *testing.T) {
	assert.InDelta(t, 16, PointsToPixels(12), 1e-9)
	assert.InDelta(t, 96, InchesToPixels(1), 1e-9)
	assert.InDelta(t, 96, CentimetersToPixels(2.54), 1e-9)
	assert.InDelta(t, 24, hundredthPointsToPixels(1800), 1e-9)
	assert.InDelta(t, 1, EMUToPoint(12700), 1e-9)
	assert.InDelta(t, 1, EMUToCentimeter(360000), 1e-9)
	assert.InDelta(t, 1, EMUToMillimeter(36000), 1e-9)
}

func TestAngles(t *testing.T) {
	assert.InDelta(t, 90, AngleToDegrees(5400000), 1e-9)

	tests := []struct{ in, want float64 }{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
		{359.5, 359.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeDegrees(tt.in), 1e-9, "deg=%v", tt.in)
	}
}
