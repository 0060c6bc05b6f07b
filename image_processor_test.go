package slidepreview

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPNG encodes a w x h image whose left half is red and right half blue.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{255, 0, 0, 255}
			if x >= w/2 {
				c = color.NRGBA{0, 0, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessImageResizePreservesAspect(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	src := ImageSource{Data: testPNG(t, 200, 100)}

	tests := []struct {
		name         string
		opts         ProcessOptions
		wantW, wantH int
	}{
		{"source size", ProcessOptions{}, 200, 100},
		{"width only", ProcessOptions{Width: 50}, 50, 25},
		{"height only", ProcessOptions{Height: 50}, 100, 50},
		{"both", ProcessOptions{Width: 30, Height: 30}, 30, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.ProcessImage(context.Background(), src, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, res.Width)
			assert.Equal(t, tt.wantH, res.Height)
			assert.Equal(t, "image/png", res.MIME)
			assert.Equal(t, 200, res.Original.Width)
			assert.InDelta(t, 2.0, res.Original.AspectRatio, 1e-9)
		})
	}
}

func TestProcessImageCropThenResize(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	res, err := p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 200, 100)}, ProcessOptions{
		Crop:   &CropRect{Left: 0.5, Top: 0, Right: 1, Bottom: 1},
		Width:  40,
		Format: FormatRaw,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 40, res.Height)
	assert.InDelta(t, 1.0, res.AspectRatio, 1e-9)
	assert.Empty(t, res.Data)
	assert.Empty(t, res.DataURI())

	// only the blue half survives
	c := res.Image.NRGBAAt(20, 20)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.B)
}

func TestProcessImageInvalidCrop(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	for _, c := range []CropRect{
		{Left: 0.6, Right: 0.4, Top: 0, Bottom: 1},
		{Left: -0.1, Right: 1, Top: 0, Bottom: 1},
		{Left: 0, Right: 1, Top: 0.5, Bottom: 0.5},
	} {
		_, err := p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 10, 10)}, ProcessOptions{Crop: &c})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidOptions))
	}
}

func TestProcessImageMaskAndFilters(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	res, err := p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 100, 100)}, ProcessOptions{
		Mask:    &Mask{Type: MaskCircle},
		Filters: &Filters{Opacity: Factor(0.5)},
		Format:  FormatRaw,
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), res.Image.NRGBAAt(1, 1).A)
	assert.InDelta(t, 128, int(res.Image.NRGBAAt(50, 50).A), 1)
}

func TestApplyFiltersBrightness(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{100, 100, 100, 255})
	out := applyFilters(img, Filters{Brightness: 50})
	assert.Equal(t, color.NRGBA{150, 150, 150, 255}, out.NRGBAAt(0, 0))

	gray := applyFilters(func() image.Image {
		m := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		m.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
		return m
	}(), Filters{Saturation: Factor(0)}).NRGBAAt(0, 0)
	assert.Equal(t, gray.R, gray.G)
	assert.Equal(t, gray.G, gray.B)
}

func TestProcessImageJPEG(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	res, err := p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 20, 20)}, ProcessOptions{Format: FormatJPEG, Quality: 80})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.MIME)
	assert.Equal(t, []byte{0xff, 0xd8}, res.Data[:2])
	assert.Contains(t, res.DataURI(), "data:image/jpeg;base64,")
}

func TestImageSources(t *testing.T) {
	data := testPNG(t, 8, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pic.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(file, data, 0o644))

	p := NewImageProcessor(nil, nil)
	for _, ref := range []string{dataURI("image/png", data), srv.URL + "/pic.png", file} {
		meta, err := p.Metadata(context.Background(), ImageSource{Ref: ref})
		require.NoError(t, err, ref)
		assert.Equal(t, 8, meta.Width)
		assert.Equal(t, 4, meta.Height)
		assert.Equal(t, "image/png", meta.MIME)
	}

	_, err := p.Metadata(context.Background(), ImageSource{Ref: srv.URL + "/missing.png"})
	require.Error(t, err)
	assert.Equal(t, CodeImageUnreachable, CodeOf(err))
}

func TestProcessImageUndecodable(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	_, err := p.ProcessImage(context.Background(), ImageSource{Data: []byte("not an image")}, ProcessOptions{})
	require.Error(t, err)
	assert.Equal(t, CodeImageDecode, CodeOf(err))
}

func TestCompressNeverUpscales(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	out, err := p.Compress(context.Background(), ImageSource{Data: testPNG(t, 100, 50)}, 400, 400, 0.7)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)

	out, err = p.Compress(context.Background(), ImageSource{Data: testPNG(t, 100, 50)}, 50, 0, 0.7)
	require.NoError(t, err)
	cfg, _, err = image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestParseDataURI(t *testing.T) {
	mime, data, err := parseDataURI("data:text/plain,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, "hello world", string(data))

	_, _, err = parseDataURI("data:image/png;base64")
	assert.Error(t, err)
}

// bombPNG is a valid 1x1 PNG whose header claims w x h pixels.
func bombPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := testPNG(t, 1, 1)
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestProcessImagePixelLimits(t *testing.T) {
	p := NewImageProcessor(nil, nil)
	_, err := p.ProcessImage(context.Background(), ImageSource{Data: bombPNG(t, 20000, 20000)}, ProcessOptions{})
	require.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "pixel limit")

	_, err = p.Compress(context.Background(), ImageSource{Data: bombPNG(t, 100000, 1000)}, 100, 100, 0.8)
	require.ErrorIs(t, err, ErrImageDecode)

	_, err = p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 10, 10)}, ProcessOptions{Width: 100000, Height: 100000})
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestFiltersZeroValueIsNeutral(t *testing.T) {
	assert.True(t, Filters{}.neutral())
	assert.True(t, Filters{Saturation: Factor(1), Opacity: Factor(1)}.neutral())
	assert.False(t, Filters{Opacity: Factor(0)}.neutral())

	p := NewImageProcessor(nil, nil)
	res, err := p.ProcessImage(context.Background(), ImageSource{Data: testPNG(t, 4, 4)}, ProcessOptions{
		Filters: &Filters{Brightness: 20},
		Format:  FormatRaw,
	})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 20, 20, 255}, res.Image.NRGBAAt(0, 0))
}

func TestRestrictedSourceLoader(t *testing.T) {
	data := testPNG(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	file := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(file, data, 0o644))

	l := RestrictedSourceLoader{AllowedHosts: []string{"127.0.0.1"}}
	got, err := l.Load(context.Background(), srv.URL+"/pic.png")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	_, err = l.Load(context.Background(), dataURI("image/png", data))
	require.NoError(t, err)

	for _, ref := range []string{file, "file://" + file, "http://example.com/pic.png"} {
		_, err := l.Load(context.Background(), ref)
		require.ErrorIs(t, err, errLinkRefused, ref)
	}
	_, err = RestrictedSourceLoader{}.Load(context.Background(), srv.URL+"/pic.png")
	require.ErrorIs(t, err, errLinkRefused)
}

func TestProcessImageExternalLinks(t *testing.T) {
	data := testPNG(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	file := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(file, data, 0o644))

	p := NewImageProcessor(nil, nil)
	for _, ref := range []string{file, srv.URL + "/pic.png"} {
		_, err := p.Metadata(context.Background(), ImageSource{Ref: ref, External: true})
		require.ErrorIs(t, err, ErrImageUnreachable, ref)
		require.ErrorIs(t, err, errLinkRefused, ref)
	}

	meta, err := p.AllowLinkHosts("127.0.0.1").Metadata(context.Background(), ImageSource{Ref: srv.URL + "/pic.png", External: true})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Width)
	_, err = p.Metadata(context.Background(), ImageSource{Ref: file, External: true})
	require.ErrorIs(t, err, errLinkRefused)
}
