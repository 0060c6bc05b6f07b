package slidepreview

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

const (
	defaultFontFamily = "Calibri"
	defaultFontSizePt = 18
)

// FontWeight is "normal", "bold" or a numeric CSS weight ("100".."900").
type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

// Numeric returns the CSS weight; normal is 400 and bold 700.
func (w FontWeight) Numeric() int {
	switch w {
	case "", WeightNormal:
		return 400
	case WeightBold:
		return 700
	}
	if n, err := strconv.Atoi(string(w)); err == nil && n > 0 {
		return n
	}
	return 400
}

// IsBold reports whether the weight renders as bold.
func (w FontWeight) IsBold() bool { return w.Numeric() >= 600 }

// FontStyle is "normal", "italic" or "oblique".
type FontStyle string

const (
	StyleNormal  FontStyle = "normal"
	StyleItalic  FontStyle = "italic"
	StyleOblique FontStyle = "oblique"
)

// IsItalic reports whether the style is slanted.
func (s FontStyle) IsItalic() bool { return s == StyleItalic || s == StyleOblique }

// FontInfo describes a font used by the document. Loaded is only set by
// FontManager after a successful load.
type FontInfo struct {
	Name     string     `json:"name"`
	Family   string     `json:"family"`
	Weight   FontWeight `json:"weight"`
	Style    FontStyle  `json:"style"`
	Locator  string     `json:"locator,omitempty"`
	Embedded bool       `json:"embedded"`
	Loaded   bool       `json:"loaded"`
	// Data holds embedded font bytes.
	Data []byte `json:"-"`
}

// Key returns the registry key of the font.
func (f FontInfo) Key() FontKey {
	style := f.Style
	if style == "" {
		style = StyleNormal
	}
	// Casers are stateful, so each call folds with its own.
	return FontKey{Family: cases.Fold().String(strings.TrimSpace(f.Family)), Weight: f.Weight.Numeric(), Style: style}
}

// weightKeywords maps name tokens to weights.
var weightKeywords = map[string]FontWeight{
	"thin":       "100",
	"hairline":   "100",
	"extralight": "200",
	"ultralight": "200",
	"light":      "300",
	"medium":     "500",
	"semibold":   "600",
	"demibold":   "600",
	"bold":       WeightBold,
	"extrabold":  "800",
	"ultrabold":  "800",
	"black":      "900",
	"heavy":      "900",
}

// ParseFontName splits a raw font name such as "Arial Bold Italic" into
// family, weight and style. Unrecognised names keep the whole string as the
// family with normal weight and style.
func ParseFontName(raw string) (family string, weight FontWeight, style FontStyle) {
	weight, style = WeightNormal, StyleNormal
	var rest []string
	for _, tok := range strings.Fields(raw) {
		lower := strings.ToLower(tok)
		if w, ok := weightKeywords[lower]; ok {
			weight = w
			continue
		}
		switch lower {
		case "italic":
			style = StyleItalic
			continue
		case "oblique":
			style = StyleOblique
			continue
		case "regular", "normal", "roman":
			continue
		}
		rest = append(rest, tok)
	}
	family = strings.Join(rest, " ")
	if family == "" {
		family = strings.TrimSpace(raw)
	}
	return family, weight, style
}

// DetectFonts returns the deduplicated fonts referenced by text elements
// and table cells, descending into groups. Order is first appearance.
func DetectFonts(elements []Element) []*FontInfo {
	var (
		out  []*FontInfo
		seen = make(map[FontKey]bool)
	)
	add := func(raw string, w FontWeight, s FontStyle) {
		if strings.TrimSpace(raw) == "" {
			return
		}
		family, weight, style := ParseFontName(raw)
		if weight == WeightNormal && w != "" {
			weight = w
		}
		if style == StyleNormal && s != "" {
			style = s
		}
		info := &FontInfo{Name: raw, Family: family, Weight: weight, Style: style}
		if seen[info.Key()] {
			return
		}
		seen[info.Key()] = true
		out = append(out, info)
	}
	WalkElements(elements, func(e Element) bool {
		switch el := e.(type) {
		case *TextElement:
			add(el.FontFamily, el.FontWeight, el.FontStyle)
		case *TableElement:
			for _, row := range el.Rows {
				for _, c := range row.Cells {
					w := WeightNormal
					if c.Bold {
						w = WeightBold
					}
					add(c.FontFamily, w, StyleNormal)
				}
			}
		}
		return true
	})
	return out
}

// mergeFonts appends the fonts of extra whose keys are not in base.
func mergeFonts(base, extra []*FontInfo) []*FontInfo {
	seen := make(map[FontKey]bool, len(base))
	for _, f := range base {
		seen[f.Key()] = true
	}
	for _, f := range extra {
		if !seen[f.Key()] {
			seen[f.Key()] = true
			base = append(base, f)
		}
	}
	return base
}

// FontSource resolves a font that is not embedded in the document.
type FontSource interface {
	ResolveFont(ctx context.Context, info FontInfo) (*opentype.Font, error)
}

// FontManager loads document fonts into a FontRegistry.
type FontManager struct {
	registry *FontRegistry
	logger   *log.Logger
}

// NewFontManager returns a manager over registry.
func NewFontManager(registry *FontRegistry, logger *log.Logger) *FontManager {
	if logger == nil {
		logger = discardLogger()
	}
	return &FontManager{registry: registry, logger: logger}
}

// Registry returns the registry fonts are loaded into.
func (m *FontManager) Registry() *FontRegistry { return m.registry }

// LoadFont loads info and marks it loaded. Loading an already loaded font
// succeeds without resolving it again.
func (m *FontManager) LoadFont(ctx context.Context, info *FontInfo) error {
	if err := m.registry.EnsureLoaded(ctx, *info); err != nil {
		m.logger.Warn("font not loaded", "font", info.Name, "err", err)
		return err
	}
	info.Loaded = true
	return nil
}

// LoadAllFonts loads each font independently and returns those that
// succeeded, in input order. Failures are logged, never returned.
func (m *FontManager) LoadAllFonts(ctx context.Context, fonts []*FontInfo) []*FontInfo {
	ok := make([]bool, len(fonts))
	seen := make(map[*FontInfo]bool, len(fonts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range fonts {
		if f == nil || seen[f] {
			continue
		}
		seen[f] = true
		g.Go(func() error {
			ok[i] = m.LoadFont(gctx, f) == nil
			return nil
		})
	}
	_ = g.Wait()
	var loaded []*FontInfo
	for i, f := range fonts {
		if ok[i] {
			loaded = append(loaded, f)
		}
	}
	return loaded
}

// ReleaseFonts drops the references taken by loading fonts.
func (m *FontManager) ReleaseFonts(fonts []*FontInfo) {
	for _, f := range fonts {
		m.registry.Release(f.Key())
	}
}

// maxFontScanDepth limits recursive directory traversal when scanning for fonts.
const maxFontScanDepth = 3

// maxFontFileSize limits the size of individual font files loaded into memory.
const maxFontFileSize = 20 << 20 // 20 MB

// SystemFontSource resolves fonts installed on the machine plus any extra
// directories. Files are indexed by their internal family and full names on
// first use.
type SystemFontSource struct {
	dirs  []string
	once  sync.Once
	fonts map[string]*opentype.Font // lowercase name -> parsed font
}

// NewSystemFontSource returns a source searching the OS font directories
// and extraDirs.
func NewSystemFontSource(extraDirs ...string) *SystemFontSource {
	return &SystemFontSource{dirs: extraDirs, fonts: make(map[string]*opentype.Font)}
}

// ResolveFont implements FontSource.
func (s *SystemFontSource) ResolveFont(ctx context.Context, info FontInfo) (*opentype.Font, error) {
	s.once.Do(s.scan)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f := s.find(strings.ToLower(info.Family), info.Weight.IsBold(), info.Style.IsItalic()); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("system: %s not installed", info.Family)
}

// find looks up a parsed font by name, trying style-specific variants first.
func (s *SystemFontSource) find(lower string, bold, italic bool) *opentype.Font {
	if bold && italic {
		for _, suffix := range []string{" bold italic", "bi", " bolditalic", "z"} {
			if f, ok := s.fonts[lower+suffix]; ok {
				return f
			}
		}
	}
	if bold {
		for _, suffix := range []string{" bold", "bd", "b"} {
			if f, ok := s.fonts[lower+suffix]; ok {
				return f
			}
		}
	}
	if italic {
		for _, suffix := range []string{" italic", "i", " it"} {
			if f, ok := s.fonts[lower+suffix]; ok {
				return f
			}
		}
	}
	if f, ok := s.fonts[lower]; ok {
		return f
	}
	if alias, ok := chineseFontAliases[lower]; ok && alias != lower {
		return s.find(alias, bold, italic)
	}
	return nil
}

func (s *SystemFontSource) scan() {
	for _, path := range findfont.List() {
		s.loadFile(path)
	}
	for _, dir := range s.dirs {
		s.scanDir(dir, 0)
	}
}

func (s *SystemFontSource) scanDir(dir string, depth int) {
	if depth > maxFontScanDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			s.scanDir(path, depth+1)
			continue
		}
		s.loadFile(path)
	}
}

func (s *SystemFontSource) loadFile(path string) {
	lower := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(lower)
	isCollection := ext == ".ttc" || ext == ".otc"
	if !isCollection && ext != ".ttf" && ext != ".otf" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxFontFileSize {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	baseName := strings.TrimSuffix(lower, ext)
	if !isCollection {
		f, err := opentype.Parse(data)
		if err != nil {
			return
		}
		s.register(baseName, f)
		return
	}
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return
	}
	for i := 0; i < coll.NumFonts(); i++ {
		f, err := coll.Font(i)
		if err != nil {
			continue
		}
		name := ""
		if i == 0 {
			name = baseName
		}
		s.register(name, f)
	}
}

// register indexes f by file base name and by its family and full names.
func (s *SystemFontSource) register(baseName string, f *opentype.Font) {
	if baseName != "" {
		if _, taken := s.fonts[baseName]; !taken {
			s.fonts[baseName] = f
		}
	}
	for _, id := range []sfnt.NameID{sfnt.NameIDFamily, sfnt.NameIDFull} {
		name, err := f.Name(nil, id)
		if err != nil || name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, taken := s.fonts[key]; !taken {
			s.fonts[key] = f
		}
	}
}

// chineseFontAliases maps Chinese font names to the English family names
// the fonts register under.
var chineseFontAliases = map[string]string{
	"宋体":      "simsun",
	"黑体":      "simhei",
	"微软雅黑":    "microsoft yahei",
	"微软雅黑 ui": "microsoft yahei ui",
	"楷体":      "kaiti",
	"仿宋":      "fangsong",
	"新宋体":     "nsimsun",
	"等线":      "dengxian",
	"华文细黑":    "stxihei",
	"华文黑体":    "stheiti",
	"华文楷体":    "stkaiti",
	"华文宋体":    "stsong",
	"隶书":      "lisu",
	"幼圆":      "youyuan",
}

// HTTPFontSource downloads fonts from a hosted font service. URLTemplate may
// contain {family}, {weight} (numeric) and {style} placeholders.
type HTTPFontSource struct {
	URLTemplate string
	Client      *http.Client
	// Attempts bounds retries of transient failures; zero means 3.
	Attempts int
}

// URL expands the template for info.
func (s *HTTPFontSource) URL(info FontInfo) string {
	style := string(info.Style)
	if style == "" {
		style = string(StyleNormal)
	}
	return strings.NewReplacer(
		"{family}", url.PathEscape(info.Family),
		"{weight}", strconv.Itoa(info.Weight.Numeric()),
		"{style}", style,
	).Replace(s.URLTemplate)
}

// ResolveFont implements FontSource.
func (s *HTTPFontSource) ResolveFont(ctx context.Context, info FontInfo) (*opentype.Font, error) {
	if s.URLTemplate == "" {
		return nil, fmt.Errorf("hosted: no URL template")
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := s.Attempts
	if attempts == 0 {
		attempts = 3
	}
	target := s.URL(info)
	var data []byte
	err := retry(ctx, attempts, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := client.Do(req)
		if err != nil {
			return &retryableError{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return &retryableError{fmt.Errorf("hosted: %s returned %d", target, resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hosted: %s returned %d", target, resp.StatusCode)
		}
		data, err = readLimited(resp.Body, maxFontFileSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	f, err := parseFontData(data)
	if err != nil {
		return nil, newError(CodeFontDecode, "hosted font", target, err)
	}
	return f, nil
}
