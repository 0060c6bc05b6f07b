package slidepreview

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emfBuilder assembles a metafile from little-endian records.
type emfBuilder struct {
	records [][]byte
}

func (b *emfBuilder) add(typ uint32, params ...uint32) *emfBuilder {
	rec := binary.LittleEndian.AppendUint32(nil, typ)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(8+4*len(params)))
	for _, p := range params {
		rec = binary.LittleEndian.AppendUint32(rec, p)
	}
	b.records = append(b.records, rec)
	return b
}

// bytes prefixes a header with device bounds (0,0)-(r,b) and appends EOF.
func (b *emfBuilder) bytes(r, bottom uint32) []byte {
	header := make([]uint32, 20)
	header[2], header[3] = r, bottom
	header[8] = emfSignature
	h := &emfBuilder{}
	h.add(emrHeader, header...)
	out := h.records[0]
	for _, rec := range b.records {
		out = append(out, rec...)
	}
	eof := &emfBuilder{}
	eof.add(emrEOF, 0, 0, 0)
	return append(out, eof.records[0]...)
}

const redRef = 0x000000FF // COLORREF is 0x00BBGGRR

func TestDecodeEMFRectangle(t *testing.T) {
	data := (&emfBuilder{}).
		add(emrCreateBrush, 1, 0, redRef, 0).
		add(emrSelectObject, 1).
		add(emrSelectObject, stockNullPen).
		add(emrRectangle, 10, 10, 90, 40).
		bytes(99, 49)
	require.True(t, isEMF(data))

	img, err := decodeEMF(data, 0)
	require.NoError(t, err)
	assert.InDelta(t, 302, img.Bounds().Dx(), 1)
	assert.InDelta(t, 151, img.Bounds().Dy(), 1)

	r, g, b, a := img.At(152, 77).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
	_, _, _, a = img.At(3, 3).RGBA()
	assert.Zero(t, a)
}

func TestDecodeEMFCapsSize(t *testing.T) {
	data := (&emfBuilder{}).
		add(emrSelectObject, stockBlackBrush).
		add(emrEllipse, 0, 0, 4000, 2000).
		bytes(4000, 2000)
	img, err := decodeEMF(data, 1000)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 1002)
	assert.InDelta(t, 502, img.Bounds().Dy(), 1)
}

func TestDecodeEMFSkipsClipFills(t *testing.T) {
	data := (&emfBuilder{}).
		add(emrSelectObject, stockBlackBrush).
		add(emrBeginPath).
		add(emrMoveToEx, 0, 0).
		add(emrLineTo, 50, 0).
		add(emrLineTo, 50, 50).
		add(emrFillPath, 0, 0, 0, 0).
		add(emrCloseFigure).
		add(emrAbortPath).
		bytes(50, 50)
	_, err := decodeEMF(data, 0)
	require.ErrorIs(t, err, errNoDrawing)
}

func TestDecodeEMFRejectsOtherData(t *testing.T) {
	_, err := decodeEMF([]byte("GIF89a"), 0)
	require.Error(t, err)
	assert.False(t, isEMF(testPNG(t, 4, 4)))

	empty := (&emfBuilder{}).bytes(0, 0)
	_, err = decodeEMF(empty, 0)
	require.Error(t, err)
}

func TestProcessImageDecodesMetafiles(t *testing.T) {
	data := (&emfBuilder{}).
		add(emrSelectObject, stockBlackBrush).
		add(emrRectangle, 0, 0, 300, 300).
		bytes(300, 300)
	p := NewImageProcessor(nil, nil)

	meta, err := p.Metadata(context.Background(), ImageSource{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "emf", meta.Format)
	assert.Equal(t, 302, meta.Width)

	out, err := p.ProcessImage(context.Background(), ImageSource{Data: data}, ProcessOptions{Width: 100, Format: FormatRaw})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
}

func TestDecodeEMFClampsFarCoordinates(t *testing.T) {
	const far = 2_000_000_000
	data := (&emfBuilder{}).
		add(emrCreatePen, 2, 0, far, 0, redRef).
		add(emrSelectObject, 2).
		add(emrSelectObject, stockBlackBrush).
		add(emrEllipse, 0, 0, far, far).
		add(emrPolyline16, 0, 0, 0, 0, 2, 0x7fff_0000, 0x0000_7fff).
		bytes(99, 49)

	img, err := decodeEMF(data, 0)
	require.NoError(t, err)
	assert.InDelta(t, 302, img.Bounds().Dx(), 1)
	assert.InDelta(t, 151, img.Bounds().Dy(), 1)
	_, _, _, a := img.At(100, 50).RGBA()
	assert.Equal(t, uint32(0xffff), a)

	assert.Equal(t, 302.0, clampCoord(1e12, 151))
	assert.Equal(t, -151.0, clampCoord(-1e12, 151))
	assert.Zero(t, clampCoord(math.NaN(), 151))
}

func TestDecodeEMFSkipsDegenerateShapes(t *testing.T) {
	data := (&emfBuilder{}).
		add(emrSelectObject, stockBlackBrush).
		add(emrRectangle, 10, 10, 10, 40).
		add(emrEllipse, 5, 20, 60, 20).
		bytes(99, 49)
	_, err := decodeEMF(data, 0)
	require.ErrorIs(t, err, errNoDrawing)
}
