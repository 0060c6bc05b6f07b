package slidepreview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/singleflight"
)

// FontKey identifies a loaded font by family, numeric weight and style.
type FontKey struct {
	Family string
	Weight int
	Style  FontStyle
}

func (k FontKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Family, k.Weight, k.Style)
}

// FontRegistry holds the fonts loaded for rendering. It is safe for
// concurrent use; concurrent loads of one key share a single resolution.
// Each successful EnsureLoaded takes a reference on the key; fonts are only
// dropped by Prune once every reference has been released.
type FontRegistry struct {
	mu      sync.RWMutex
	fonts   map[FontKey]*opentype.Font
	refs    map[FontKey]int
	sources []FontSource
	group   singleflight.Group
	logger  *log.Logger
}

// NewFontRegistry returns a registry resolving fonts through sources, in
// order. Embedded font data is always tried first.
func NewFontRegistry(logger *log.Logger, sources ...FontSource) *FontRegistry {
	if logger == nil {
		logger = discardLogger()
	}
	return &FontRegistry{
		fonts:   make(map[FontKey]*opentype.Font),
		refs:    make(map[FontKey]int),
		sources: sources,
		logger:  logger,
	}
}

// IsLoaded reports whether key has been loaded.
func (r *FontRegistry) IsLoaded(key FontKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fonts[key]
	return ok
}

// Refs returns the number of references held on key.
func (r *FontRegistry) Refs(key FontKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[key]
}

// EnsureLoaded loads info's font unless its key is already registered and
// takes a reference on it. A second caller for a key that is still loading
// waits for the first instead of resolving it again.
func (r *FontRegistry) EnsureLoaded(ctx context.Context, info FontInfo) error {
	key := info.Key()
	if !r.IsLoaded(key) {
		_, err, _ := r.group.Do(key.String(), func() (any, error) {
			if r.IsLoaded(key) {
				return nil, nil
			}
			f, err := r.resolve(ctx, info)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.fonts[key] = f
			r.mu.Unlock()
			r.logger.Debug("font loaded", "font", key.String(), "embedded", info.Embedded)
			return nil, nil
		})
		if err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.refs[key]++
	r.mu.Unlock()
	return nil
}

// Release drops one reference on key.
func (r *FontRegistry) Release(key FontKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[key] > 0 {
		r.refs[key]--
	}
}

// Prune unloads fonts nobody references and returns how many were dropped.
func (r *FontRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.fonts {
		if r.refs[k] == 0 {
			delete(r.fonts, k)
			delete(r.refs, k)
			n++
		}
	}
	return n
}

// Register parses data and installs it under key without taking a reference.
func (r *FontRegistry) Register(key FontKey, data []byte) error {
	f, err := parseFontData(data)
	if err != nil {
		return newError(CodeFontDecode, "register font", key.String(), err)
	}
	r.mu.Lock()
	r.fonts[key] = f
	r.mu.Unlock()
	return nil
}

func (r *FontRegistry) resolve(ctx context.Context, info FontInfo) (*opentype.Font, error) {
	if info.Embedded && len(info.Data) > 0 {
		f, err := parseFontData(info.Data)
		if err != nil {
			return nil, newError(CodeFontDecode, "load font", info.Name, err)
		}
		return f, nil
	}
	var errs []string
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.ResolveFont(ctx, info)
		if err == nil {
			return f, nil
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return nil, errorf(CodeFontUnresolved, "load font", "%s: no font source configured", info.Family)
	}
	return nil, errorf(CodeFontUnresolved, "load font", "%s: %s", info.Family, strings.Join(errs, "; "))
}

// parseFontData parses a single font or the first font of a collection.
func parseFontData(data []byte) (*opentype.Font, error) {
	if f, err := opentype.Parse(data); err == nil {
		return f, nil
	}
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	return coll.Font(0)
}

// NewFace returns a face for info at size pixels. If the font was never
// loaded, the closest loaded weight of the family is used, then a generic
// family of the same weight and style. The boolean reports whether the
// requested font itself was used. Faces are not safe for concurrent use, so
// every caller gets its own.
func (r *FontRegistry) NewFace(info FontInfo, size float64) (font.Face, bool) {
	key := info.Key()
	r.mu.RLock()
	f, exact := r.fonts[key]
	r.mu.RUnlock()
	if !exact {
		f = r.nearest(key)
	}
	if f == nil {
		f = genericFont(key.Weight, key.Style)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		face, _ = opentype.NewFace(genericFont(key.Weight, key.Style), &opentype.FaceOptions{Size: size, DPI: 72})
		exact = false
	}
	return face, exact
}

// nearest returns the loaded font of the same family whose weight and
// style are closest to key, or nil.
func (r *FontRegistry) nearest(key FontKey) *opentype.Font {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best    *opentype.Font
		bestKey FontKey
		score   int
	)
	for k, f := range r.fonts {
		if k.Family != key.Family {
			continue
		}
		d := abs(k.Weight - key.Weight)
		if k.Style.IsItalic() != key.Style.IsItalic() {
			d += 1000
		}
		// Ties break on the lower weight, then on the style name, so the
		// choice does not depend on map iteration order.
		if best == nil || d < score || (d == score && keyBefore(k, bestKey)) {
			best, bestKey, score = f, k, d
		}
	}
	return best
}

func keyBefore(a, b FontKey) bool {
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return a.Style < b.Style
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var (
	genericOnce  sync.Once
	genericFonts [4]*opentype.Font
)

// genericFont returns the Go font matching weight and style.
func genericFont(weight int, style FontStyle) *opentype.Font {
	genericOnce.Do(func() {
		for i, data := range [][]byte{goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF} {
			f, err := opentype.Parse(data)
			if err != nil {
				panic(fmt.Sprintf("slidepreview: bundled font: %v", err))
			}
			genericFonts[i] = f
		}
	})
	i := 0
	if weight >= 600 {
		i |= 1
	}
	if style.IsItalic() {
		i |= 2
	}
	return genericFonts[i]
}
