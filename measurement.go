package slidepreview

import "math"

// EMU (English Metric Units) conversion helpers.
// 1 inch = 914400 EMU, 1 point = 12700 EMU, 1 cm = 360000 EMU.
// Device pixels are measured at a fixed 96 px per inch.

const (
	emuPerInch       = 914400
	emuPerPoint      = 12700
	emuPerCentimeter = 360000
	emuPerMillimeter = 36000

	// PixelsPerInch is the reference density of every pixel value in the model.
	PixelsPerInch = 96
	pointsPerInch = 72
	cmPerInch     = 2.54

	// angleUnitsPerDegree is the fixed-point rotation unit (60000ths of a degree).
	angleUnitsPerDegree = 60000

	// percentUnit is the 1/1000th-percent unit used by crop rectangles,
	// gradient stop positions and colour modifiers.
	percentUnit = 100000
)

// EMUToPixels converts EMU to device pixels.
func EMUToPixels(v float64) float64 {
	return v / emuPerInch * PixelsPerInch
}

// PixelsToEMU converts device pixels back to EMU.
func PixelsToEMU(px float64) float64 {
	return px / PixelsPerInch * emuPerInch
}

// PointsToPixels converts typographic points to device pixels.
func PointsToPixels(pt float64) float64 {
	return pt / pointsPerInch * PixelsPerInch
}

// CentimetersToPixels converts centimeters to device pixels.
func CentimetersToPixels(cm float64) float64 {
	return cm / cmPerInch * PixelsPerInch
}

// InchesToPixels converts inches to device pixels.
func InchesToPixels(in float64) float64 {
	return in * PixelsPerInch
}

// AngleToDegrees converts a 60000ths-of-a-degree rotation to degrees.
func AngleToDegrees(v float64) float64 {
	return v / angleUnitsPerDegree
}

// NormalizeDegrees folds a rotation into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// EMUToPoint converts EMU to points.
func EMUToPoint(emu int64) float64 {
	return float64(emu) / emuPerPoint
}

// EMUToCentimeter converts EMU to centimeters.
func EMUToCentimeter(emu int64) float64 {
	return float64(emu) / emuPerCentimeter
}

// EMUToMillimeter converts EMU to millimeters.
func EMUToMillimeter(emu int64) float64 {
	return float64(emu) / emuPerMillimeter
}

// hundredthPointsToPixels converts the 1/100 pt font size unit to pixels.
func hundredthPointsToPixels(v float64) float64 {
	return PointsToPixels(v / 100)
}
