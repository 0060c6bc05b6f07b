package slidepreview

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/blur"
	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageFormat is an output encoding.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	// FormatRaw skips re-encoding; only decoded pixels are returned.
	FormatRaw ImageFormat = "raw"
)

// MIME returns the media type of the format.
func (f ImageFormat) MIME() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// maxImageSourceSize bounds downloads and inline payloads.
const maxImageSourceSize = 50 << 20

// maxMetafileSide caps the long side of rasterized metafiles.
const maxMetafileSide = 2000

// maxDecodePixels bounds the pixel count of decoded sources and of
// ProcessImage targets.
const maxDecodePixels = 50_000_000

// ImageSource references image bytes. Data wins over Ref when both are set.
// Ref may be a package part name, a data: URI, an http(s) URL or a file path.
// External marks a Ref that a document links to instead of embedding; such
// refs are subject to the processor's link hosts.
type ImageSource struct {
	Ref      string `json:"ref,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Data     []byte `json:"-"`
	External bool   `json:"external,omitempty"`
}

// Filters are per-pixel adjustments; the zero value changes nothing.
// Brightness and Contrast range over -255..255. Saturation and Opacity are
// multipliers, and nil leaves the channel alone. Blur is a gaussian radius
// in pixels.
type Filters struct {
	Brightness float64  `json:"brightness,omitempty"`
	Contrast   float64  `json:"contrast,omitempty"`
	Saturation *float64 `json:"saturation,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty"`
	Blur       float64  `json:"blur,omitempty"`
}

// Factor returns a pointer to v, for the Saturation and Opacity fields.
func Factor(v float64) *float64 {
	return &v
}

func (f Filters) neutral() bool {
	return f.Brightness == 0 && f.Contrast == 0 && factorIs(f.Saturation, 1) && factorIs(f.Opacity, 1) && f.Blur == 0
}

func factorIs(p *float64, v float64) bool {
	return p == nil || *p == v
}

// ProcessOptions configures ProcessImage. A zero Width or Height is derived
// from the other (or the source) preserving aspect ratio.
type ProcessOptions struct {
	Width   int
	Height  int
	Crop    *CropRect
	Mask    *Mask
	Filters *Filters
	Format  ImageFormat
	// Quality is the JPEG quality (1-100); zero means 90.
	Quality int
	// Filter is the resampling filter; nil means Catmull-Rom.
	Filter *imaging.ResampleFilter
}

// ProcessedImage is the result of ProcessImage.
type ProcessedImage struct {
	Image       *image.NRGBA
	Data        []byte
	MIME        string
	Width       int
	Height      int
	AspectRatio float64
	Original    ImageMetadata
}

// DataURI returns the encoded image as a data URI, or "" for raw results.
func (p *ProcessedImage) DataURI() string {
	if len(p.Data) == 0 {
		return ""
	}
	return dataURI(p.MIME, p.Data)
}

// ImageMetadata describes a source image without decoding its pixels.
type ImageMetadata struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
	Format      string  `json:"format"`
	MIME        string  `json:"mime"`
	Size        int     `json:"size"`
}

// SourceLoader fetches the bytes behind an image reference.
type SourceLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// DefaultSourceLoader loads data: URIs, http(s) URLs and local files.
type DefaultSourceLoader struct {
	Client *http.Client
}

// Load implements SourceLoader.
func (l DefaultSourceLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		_, data, err := parseDataURI(ref)
		return data, err
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", ref, resp.StatusCode)
		}
		return readLimited(resp.Body, maxImageSourceSize)
	default:
		info, err := os.Stat(ref)
		if err != nil {
			return nil, err
		}
		if info.Size() > maxImageSourceSize {
			return nil, fmt.Errorf("image %s exceeds %d bytes", ref, maxImageSourceSize)
		}
		return os.ReadFile(ref)
	}
}

// RestrictedSourceLoader loads data: URIs and http(s) URLs on
// AllowedHosts. File paths and every other host are refused.
type RestrictedSourceLoader struct {
	Client       *http.Client
	AllowedHosts []string
}

// Load implements SourceLoader.
func (l RestrictedSourceLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := checkLink(ref, l.AllowedHosts); err != nil {
		return nil, err
	}
	return DefaultSourceLoader{Client: l.Client}.Load(ctx, ref)
}

var errLinkRefused = errors.New("link refused")

// checkLink allows data: URIs and http(s) URLs whose host is in hosts.
func checkLink(ref string, hosts []string) error {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return fmt.Errorf("%w: %v", errLinkRefused, err)
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range hosts {
			if strings.EqualFold(h, host) {
				return nil
			}
		}
		return fmt.Errorf("%w: host %q is not allowed", errLinkRefused, host)
	}
	return fmt.Errorf("%w: %q is not a web address", errLinkRefused, ref)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("payload exceeds %d bytes", limit)
	}
	return data, nil
}

// parseDataURI splits "data:<mime>[;base64],<payload>".
func parseDataURI(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("malformed data URI: %w", err)
		}
		return mime, data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data URI: %w", err)
	}
	return mime, []byte(text), nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ImageProcessor decodes and transforms images.
type ImageProcessor struct {
	loader    SourceLoader
	logger    *log.Logger
	linkHosts []string
}

// NewImageProcessor returns a processor. A nil loader uses DefaultSourceLoader
// and a nil logger discards output.
func NewImageProcessor(loader SourceLoader, logger *log.Logger) *ImageProcessor {
	if loader == nil {
		loader = DefaultSourceLoader{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &ImageProcessor{loader: loader, logger: logger}
}

// AllowLinkHosts sets the hosts that external document links may be
// fetched from. With none, only embedded and data: images load. It must be
// called before the processor is shared.
func (p *ImageProcessor) AllowLinkHosts(hosts ...string) *ImageProcessor {
	p.linkHosts = hosts
	return p
}

// checkSource reports whether src may be loaded.
func (p *ImageProcessor) checkSource(src ImageSource) error {
	if !src.External || len(src.Data) > 0 {
		return nil
	}
	if err := checkLink(src.Ref, p.linkHosts); err != nil {
		return newError(CodeImageUnreachable, "load image", src.Ref, err)
	}
	return nil
}

func (p *ImageProcessor) fetch(ctx context.Context, src ImageSource) ([]byte, error) {
	if len(src.Data) > 0 {
		return src.Data, nil
	}
	if err := p.checkSource(src); err != nil {
		return nil, err
	}
	data, err := p.loader.Load(ctx, src.Ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(CodeImageUnreachable, "load image", src.Ref, err)
	}
	return data, nil
}

func (p *ImageProcessor) decode(ctx context.Context, src ImageSource) (image.Image, []byte, error) {
	data, err := p.fetch(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := checkPixels(cfg.Width, cfg.Height); err != nil {
			return nil, nil, newError(CodeImageDecode, "decode image", src.Ref, err)
		}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil && isEMF(data) {
		img, err = decodeEMF(data, maxMetafileSide)
	}
	if err != nil {
		return nil, nil, newError(CodeImageDecode, "decode image", src.Ref, err)
	}
	return img, data, nil
}

// ProcessImage decodes src and applies crop, resize, mask and filters, in
// that order, then re-encodes the result.
func (p *ImageProcessor) ProcessImage(ctx context.Context, src ImageSource, opts ProcessOptions) (*ProcessedImage, error) {
	if opts.Crop != nil {
		if err := validateCrop(opts.Crop); err != nil {
			return nil, err
		}
	}
	img, data, err := p.decode(ctx, src)
	if err != nil {
		return nil, err
	}
	meta := metadataOf(img.Bounds().Dx(), img.Bounds().Dy(), data)

	if opts.Crop != nil {
		img = imaging.Crop(img, cropBounds(img.Bounds(), opts.Crop))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tw, th := targetSize(img.Bounds().Dx(), img.Bounds().Dy(), opts.Width, opts.Height)
	if err := checkPixels(tw, th); err != nil {
		return nil, newError(CodeInvalidOptions, "resize", src.Ref, err)
	}
	filter := imaging.CatmullRom
	if opts.Filter != nil {
		filter = *opts.Filter
	}
	var out *image.NRGBA
	if tw != img.Bounds().Dx() || th != img.Bounds().Dy() {
		out = imaging.Resize(img, tw, th, filter)
	} else {
		out = imaging.Clone(img)
	}

	if opts.Mask != nil {
		if out, err = applyMask(out, opts.Mask); err != nil {
			return nil, err
		}
	}
	if opts.Filters != nil && !opts.Filters.neutral() {
		out = applyFilters(out, *opts.Filters)
	}

	res := &ProcessedImage{
		Image:       out,
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		AspectRatio: aspect(out.Bounds().Dx(), out.Bounds().Dy()),
		Original:    meta,
	}
	if opts.Format == FormatRaw {
		return res, nil
	}
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	res.Data, err = encodeImage(out, format, opts.Quality, png.DefaultCompression)
	if err != nil {
		return nil, err
	}
	res.MIME = format.MIME()
	p.logger.Debug("processed image", "ref", src.Ref, "width", res.Width, "height", res.Height, "bytes", len(res.Data))
	return res, nil
}

// Metadata probes the size and format of src without decoding pixels.
// Metafiles have no header size in pixels and are rasterized instead.
func (p *ImageProcessor) Metadata(ctx context.Context, src ImageSource) (ImageMetadata, error) {
	data, err := p.fetch(ctx, src)
	if err != nil {
		return ImageMetadata{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil && isEMF(data) {
		var img image.Image
		if img, err = decodeEMF(data, maxMetafileSide); err == nil {
			cfg.Width, cfg.Height = img.Bounds().Dx(), img.Bounds().Dy()
		}
	}
	if err != nil {
		return ImageMetadata{}, newError(CodeImageDecode, "probe image", src.Ref, err)
	}
	return metadataOf(cfg.Width, cfg.Height, data), nil
}

// Compress fits src within maxWidth x maxHeight, never upscaling, and
// encodes it as JPEG. quality is in (0, 1]; a non-positive bound is ignored.
func (p *ImageProcessor) Compress(ctx context.Context, src ImageSource, maxWidth, maxHeight int, quality float64) ([]byte, error) {
	img, _, err := p.decode(ctx, src)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if maxWidth <= 0 {
		maxWidth = b.Dx()
	}
	if maxHeight <= 0 {
		maxHeight = b.Dy()
	}
	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	if quality <= 0 || quality > 1 {
		quality = 0.8
	}
	return encodeImage(fitted, FormatJPEG, int(math.Round(quality*100)), png.DefaultCompression)
}

func encodeImage(img image.Image, format ImageFormat, quality int, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == FormatJPEG {
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	} else {
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func metadataOf(w, h int, data []byte) ImageMetadata {
	meta := ImageMetadata{Width: w, Height: h, AspectRatio: aspect(w, h), Size: len(data)}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		meta.Format = kind.Extension
		meta.MIME = kind.MIME.Value
	} else if isEMF(data) {
		meta.Format, meta.MIME = "emf", "image/emf"
	}
	return meta
}

// checkPixels rejects sizes over maxDecodePixels.
func checkPixels(w, h int) error {
	if n := int64(w) * int64(h); n > maxDecodePixels {
		return fmt.Errorf("%dx%d exceeds the %d pixel limit", w, h, maxDecodePixels)
	}
	return nil
}

func aspect(w, h int) float64 {
	if h == 0 {
		return 0
	}
	return float64(w) / float64(h)
}

func validateCrop(c *CropRect) error {
	for _, v := range []float64{c.Left, c.Top, c.Right, c.Bottom} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return errorf(CodeInvalidOptions, "crop", "bound %g outside [0,1]", v)
		}
	}
	if c.Left >= c.Right || c.Top >= c.Bottom {
		return errorf(CodeInvalidOptions, "crop", "empty crop %+v", *c)
	}
	return nil
}

// cropBounds maps fractional crop bounds onto source pixels.
func cropBounds(b image.Rectangle, c *CropRect) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	r := image.Rect(
		b.Min.X+int(math.Round(c.Left*w)),
		b.Min.Y+int(math.Round(c.Top*h)),
		b.Min.X+int(math.Round(c.Right*w)),
		b.Min.Y+int(math.Round(c.Bottom*h)),
	)
	if r.Dx() < 1 {
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() < 1 {
		r.Max.Y = r.Min.Y + 1
	}
	return r
}

// targetSize resolves the output size, preserving the source aspect ratio
// when only one dimension is requested.
func targetSize(sw, sh, w, h int) (int, int) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0:
		return w, max(1, int(math.Round(float64(w)*float64(sh)/float64(sw))))
	case h > 0:
		return max(1, int(math.Round(float64(h)*float64(sw)/float64(sh)))), h
	}
	return sw, sh
}

// applyFilters blurs first, then applies brightness, contrast, saturation
// and opacity in one pass over the pixels.
func applyFilters(img image.Image, f Filters) *image.NRGBA {
	if f.Blur > 0 {
		img = blur.Gaussian(img, f.Blur)
	}
	c := math.Max(-255, math.Min(255, f.Contrast))
	factor := 259 * (c + 255) / (255 * (259 - c))
	return imaging.AdjustFunc(img, func(px color.NRGBA) color.NRGBA {
		r, g, b := float64(px.R), float64(px.G), float64(px.B)
		if f.Brightness != 0 {
			r, g, b = r+f.Brightness, g+f.Brightness, b+f.Brightness
		}
		if c != 0 {
			r = factor*(r-128) + 128
			g = factor*(g-128) + 128
			b = factor*(b-128) + 128
		}
		if !factorIs(f.Saturation, 1) {
			k := *f.Saturation
			gray := 0.299*r + 0.587*g + 0.114*b
			r = gray + k*(r-gray)
			g = gray + k*(g-gray)
			b = gray + k*(b-gray)
		}
		a := float64(px.A)
		if !factorIs(f.Opacity, 1) {
			a *= clamp01(*f.Opacity)
		}
		return color.NRGBA{R: clampByte(r), G: clampByte(g), B: clampByte(b), A: clampByte(a)}
	})
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
