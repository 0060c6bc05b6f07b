package slidepreview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// RemoteDecoder delegates package decoding to an external parsing
// service and walks the JSON tree it returns into a Document.
type RemoteDecoder struct {
	BaseURL  string
	Client   *http.Client
	Attempts int
	// Delay is the first retry backoff; it doubles per attempt.
	Delay time.Duration

	logger *log.Logger
}

// NewRemoteDecoder returns a decoder for the service at baseURL.
func NewRemoteDecoder(baseURL string, logger *log.Logger) *RemoteDecoder {
	if logger == nil {
		logger = discardLogger()
	}
	return &RemoteDecoder{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   &http.Client{Timeout: 2 * time.Minute},
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		logger:   logger,
	}
}

// Health reports whether the service answers its health endpoint.
func (d *RemoteDecoder) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/health", nil)
	if err != nil {
		return newError(CodeService, "health", "bad request", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return newError(CodeService, "health", "service unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorf(CodeService, "health", "status %d", resp.StatusCode)
	}
	return nil
}

// Decode uploads the package and converts the service response.
func (d *RemoteDecoder) Decode(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxZipTotalSize+1))
	if err != nil {
		return nil, newError(CodePackageUnreadable, "remote decode", "failed to read input", err)
	}
	if len(data) > maxZipTotalSize {
		return nil, errorf(CodePackageUnreadable, "remote decode", "file exceeds maximum allowed size (%d bytes)", maxZipTotalSize)
	}

	var tree map[string]any
	err = retry(ctx, d.Attempts, d.Delay, func() error {
		body, contentType, err := multipartBody(filename, data)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/api/parse-pptx", body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", userAgent)
		resp, err := d.Client.Do(req)
		if err != nil {
			d.logger.Debug("parse service request failed", "err", err)
			return &retryableError{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return &retryableError{fmt.Errorf("parse service returned status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			var e struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&e)
			if e.Error == "" {
				e.Error = http.StatusText(resp.StatusCode)
			}
			return fmt.Errorf("parse service rejected file: %s", e.Error)
		}
		tree = nil
		return json.NewDecoder(resp.Body).Decode(&tree)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(CodeService, "remote decode", filename, err)
	}
	if msg := str(tree, "error"); msg != "" {
		return nil, errorf(CodeService, "remote decode", "%s", msg)
	}
	return d.document(tree), nil
}

func multipartBody(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// document walks the service tree. Slide geometry is already in pixels.
func (d *RemoteDecoder) document(tree map[string]any) *Document {
	meta := obj(tree, "metadata")
	doc := &Document{
		Title:    str(tree, "title"),
		Author:   "Unknown",
		Created:  time.Now(),
		Modified: time.Now(),
	}
	if doc.Title == "" {
		doc.Title = "Untitled Presentation"
	}
	if author := strings.TrimSpace(str(meta, "author")); author != "" {
		doc.Author = author
	}
	if t, ok := parseW3CTime(str(meta, "createdAt")); ok {
		doc.Created, doc.Modified = t, t
	}
	width, height := num(meta, "slide_width", 0), num(meta, "slide_height", 0)

	for i, raw := range list(tree, "slides") {
		s, _ := raw.(map[string]any)
		id := str(s, "id")
		if id == "" {
			id = fmt.Sprintf("slide-%d", i+1)
		}
		slide := newSlide(id, i, width, height)
		if bg := str(s, "background"); bg != "" {
			if c, err := ParseColor(bg); err == nil {
				slide.Background = &Background{Type: BackgroundSolid, Color: c}
			}
		}
		z := 0
		slide.Elements = d.elements(list(s, "elements"), slide, "", &z)
		doc.Slides = append(doc.Slides, slide)
	}
	for _, s := range doc.Slides {
		doc.Fonts = mergeFonts(doc.Fonts, DetectFonts(s.Elements))
	}
	return doc
}

func (d *RemoteDecoder) elements(raw []any, slide *Slide, parentID string, z *int) []Element {
	var out []Element
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id := str(m, "id")
		if id == "" {
			id = fmt.Sprintf("%s-el-%d", slide.ID, *z)
		}
		base := newElementBase(id)
		base.Name = str(m, "name")
		base.X, base.Y = num(m, "x", 0), num(m, "y", 0)
		base.Width, base.Height = num(m, "width", defaultElementSize), num(m, "height", defaultElementSize)
		base.Rotation = NormalizeDegrees(num(m, "rotation", 0))
		base.Opacity = clamp01(num(m, "opacity", 1))
		base.ParentID = parentID
		base.ZIndex = *z
		*z++

		typ := str(m, "type")
		switch typ {
		case "text":
			el := NewTextElement(id, str(m, "content"))
			el.ElementBase = base
			el.FontSize = num(m, "fontSize", el.FontSize)
			if f := str(m, "fontFamily"); f != "" {
				el.FontFamily = f
			}
			if w := str(m, "fontWeight"); w != "" {
				el.FontWeight = FontWeight(w)
			}
			if c, err := ParseColor(str(m, "color")); err == nil {
				el.Color = c
			}
			if a := str(m, "textAlign"); a != "" {
				el.Align = HAlign(a)
			}
			out = append(out, el)
		case "image":
			src := str(m, "src")
			if src == "" {
				src = str(m, "imageUrl")
			}
			out = append(out, &ImageElement{ElementBase: base, Source: ImageSource{Ref: src}, AspectRatio: aspectOf(base)})
		case "shape":
			el := &ShapeElement{ElementBase: base, Shape: remoteShapeKind(str(m, "shapeType"))}
			if c, err := ParseColor(str(m, "fillColor")); err == nil {
				el.Fill = SolidFill(c)
			}
			if c, err := ParseColor(str(m, "strokeColor")); err == nil {
				el.Stroke = &Stroke{Width: num(m, "strokeWidth", 1), Color: c, Style: StrokeSolid}
			}
			out = append(out, el)
		case "chart":
			out = append(out, &ChartElement{ElementBase: base, ChartType: str(m, "chartType")})
		case "group":
			g := &GroupElement{ElementBase: base}
			g.Children = d.elements(list(m, "children"), slide, id, z)
			out = append(out, g)
		default:
			slide.Warnings = append(slide.Warnings, fmt.Sprintf("Element %d of type %q skipped", i, typ))
			d.logger.Warn("unknown element type", "slide", slide.ID, "type", typ)
		}
	}
	return out
}

func remoteShapeKind(v string) ShapeKind {
	if k, ok := presetKinds[v]; ok {
		return k
	}
	switch k := ShapeKind(v); k {
	case ShapeCircle, ShapeLine, ShapeStar, ShapeArrow, ShapeEllipse, ShapeTriangle:
		return k
	}
	return ShapeRectangle
}

func aspectOf(b ElementBase) float64 {
	if b.Height == 0 {
		return 0
	}
	return b.Width / b.Height
}

func obj(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func list(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	}
	return ""
}

func num(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return def
}
