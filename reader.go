package slidepreview

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// maxZipEntrySize is the maximum allowed size for a single file extracted from a ZIP.
// This prevents zip bomb attacks. 50 MB is generous for any legitimate PPTX part.
const maxZipEntrySize = 50 << 20 // 50 MB

// maxZipTotalSize is the cumulative limit for all extracted content from a single ZIP.
const maxZipTotalSize = 200 << 20 // 200 MB

// maxZipEntries is the maximum number of files allowed in a ZIP archive.
const maxZipEntries = 10000

// Relationship namespace used by r:id / r:embed attributes.
const nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// Relationship types the reader follows.
const (
	relTypeSlide          = "/slide"
	relTypeSlideLayout    = "/slideLayout"
	relTypeSlideMaster    = "/slideMaster"
	relTypeTheme          = "/theme"
	relTypeDiagramDrawing = "/diagramDrawing"
)

// Reader decodes .pptx packages into a Document.
type Reader struct {
	logger *log.Logger
	// Now supplies default timestamps when the package has none.
	Now func() time.Time
}

// NewReader returns a reader. A nil logger discards output.
func NewReader(logger *log.Logger) *Reader {
	if logger == nil {
		logger = discardLogger()
	}
	return &Reader{logger: logger, Now: time.Now}
}

// Read decodes the package at path.
func (r *Reader) Read(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to stat file", err)
	}
	return r.ReadFromReader(ctx, f, info.Size())
}

// ReadBytes decodes a package held in memory.
func (r *Reader) ReadBytes(ctx context.Context, data []byte) (*Document, error) {
	return r.ReadFromReader(ctx, bytes.NewReader(data), int64(len(data)))
}

// ReadFromReader decodes a package from an io.ReaderAt. Only a package that
// cannot be opened at all is an error; broken slides become placeholders.
func (r *Reader) ReadFromReader(ctx context.Context, ra io.ReaderAt, size int64) (*Document, error) {
	if size <= 0 {
		return nil, errorf(CodePackageUnreadable, "read", "invalid reader size: %d", size)
	}
	if size > int64(maxZipTotalSize) {
		return nil, errorf(CodePackageUnreadable, "read", "file size %d exceeds maximum allowed (%d bytes)", size, maxZipTotalSize)
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to open zip", err)
	}
	if len(zr.File) > maxZipEntries {
		return nil, errorf(CodePackageUnreadable, "read", "zip archive contains too many entries (%d > %d)", len(zr.File), maxZipEntries)
	}
	pkg := newPackage(zr)
	for _, required := range []string{"[Content_Types].xml", "ppt/presentation.xml"} {
		if !pkg.has(required) {
			return nil, errorf(CodePackageUnreadable, "read", "missing required part %s", required)
		}
	}

	presData, err := pkg.read("ppt/presentation.xml")
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to read presentation", err)
	}
	pres, err := parseXMLTree(presData)
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to parse presentation", err)
	}
	presRels, err := pkg.rels("ppt/presentation.xml")
	if err != nil {
		return nil, newError(CodePackageUnreadable, "read", "failed to read presentation relationships", err)
	}

	doc := r.readProperties(pkg)
	width, height := float64(DefaultSlideWidth), float64(DefaultSlideHeight)
	if sz := pres.child("sldSz"); sz != nil {
		cx, cy := sz.attrFloat("cx", 0), sz.attrFloat("cy", 0)
		if cx > 0 && cy > 0 {
			width, height = EMUToPixels(cx), EMUToPixels(cy)
		}
	}

	th := r.readTheme(pkg, presRels)
	var slideRels []string
	if lst := pres.child("sldIdLst"); lst != nil {
		for _, id := range lst.childrenNamed("sldId") {
			slideRels = append(slideRels, id.attrNS(nsRelationships, "id"))
		}
	}

	for i, relID := range slideRels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := fmt.Sprintf("slide-%d", i+1)
		rel, ok := presRels[relID]
		if !ok || !strings.HasSuffix(rel.Type, relTypeSlide) {
			r.logger.Warn("slide relationship missing", "slide", id, "rel", relID)
			doc.Slides = append(doc.Slides, placeholderSlide(id, i, width, height, fmt.Errorf("relationship %s not found", relID)))
			continue
		}
		slide, err := r.readSlide(pkg, th, id, i, rel.Target, width, height)
		if err != nil {
			r.logger.Warn("slide decode failed", "slide", id, "part", rel.Target, "err", err)
			slide = placeholderSlide(id, i, width, height, err)
			slide.Part = rel.Target
		}
		doc.Slides = append(doc.Slides, slide)
	}

	doc.Fonts = r.readEmbeddedFonts(pkg, pres, presRels)
	for _, s := range doc.Slides {
		doc.Fonts = mergeFonts(doc.Fonts, DetectFonts(s.Elements))
	}
	if err := doc.Validate(); err != nil {
		r.logger.Debug("document model has issues", "err", err)
	}
	r.logger.Debug("package decoded", "slides", len(doc.Slides), "fonts", len(doc.Fonts))
	return doc, nil
}

// placeholderSlide stands in for a slide that could not be decoded.
func placeholderSlide(id string, index int, width, height float64, cause error) *Slide {
	s := newSlide(id, index, width, height)
	s.Placeholder = true
	s.Warnings = []string{fmt.Sprintf("Slide %s could not be decoded: %v", id, cause)}
	return s
}

// readSlide decodes one slide part, converting panics into errors.
func (r *Reader) readSlide(pkg *opcPackage, th *theme, id string, index int, part string, width, height float64) (slide *Slide, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slide, err = nil, newError(CodeSlideDecode, "read slide", part, recoverError("read slide", rec))
		}
	}()
	sp, err := newSlideParser(r, pkg, th, id, part)
	if err != nil {
		return nil, newError(CodeSlideDecode, "read slide", part, err)
	}
	slide = newSlide(id, index, width, height)
	slide.Part = part
	slide.Background = sp.background()
	slide.Elements = sp.elements()
	slide.Warnings = sp.warnings
	return slide, nil
}

func (r *Reader) readProperties(pkg *opcPackage) *Document {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	doc := &Document{
		Title:    "Untitled Presentation",
		Author:   "Unknown",
		Created:  now(),
		Modified: now(),
	}
	if data, err := pkg.read("docProps/core.xml"); err == nil {
		if core, err := parseXMLTree(data); err == nil {
			if v := strings.TrimSpace(core.childText("title")); v != "" {
				doc.Title = v
			}
			if v := strings.TrimSpace(core.childText("creator")); v != "" {
				doc.Author = v
			}
			if t, ok := parseW3CTime(core.childText("created")); ok {
				doc.Created = t
			}
			if t, ok := parseW3CTime(core.childText("modified")); ok {
				doc.Modified = t
			}
		}
	}
	if data, err := pkg.read("docProps/app.xml"); err == nil {
		if app, err := parseXMLTree(data); err == nil {
			doc.Application = strings.TrimSpace(app.childText("Application"))
			doc.Company = strings.TrimSpace(app.childText("Company"))
		}
	}
	return doc
}

func parseW3CTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readEmbeddedFonts lists p:embeddedFontLst entries with their font bytes.
func (r *Reader) readEmbeddedFonts(pkg *opcPackage, pres *xmlNode, rels map[string]xmlRel) []*FontInfo {
	lst := pres.child("embeddedFontLst")
	if lst == nil {
		return nil
	}
	var fonts []*FontInfo
	for _, ef := range lst.childrenNamed("embeddedFont") {
		face := ef.child("font")
		if face == nil {
			continue
		}
		family := face.attr("typeface")
		variants := []struct {
			tag    string
			weight FontWeight
			style  FontStyle
		}{
			{"regular", WeightNormal, StyleNormal},
			{"bold", WeightBold, StyleNormal},
			{"italic", WeightNormal, StyleItalic},
			{"boldItalic", WeightBold, StyleItalic},
		}
		for _, v := range variants {
			n := ef.child(v.tag)
			if n == nil {
				continue
			}
			rel, ok := rels[n.attrNS(nsRelationships, "id")]
			if !ok {
				continue
			}
			data, err := pkg.read(rel.Target)
			if err != nil {
				r.logger.Warn("embedded font unreadable", "font", family, "part", rel.Target, "err", err)
				continue
			}
			fonts = append(fonts, &FontInfo{
				Name:     family,
				Family:   family,
				Weight:   v.weight,
				Style:    v.style,
				Locator:  rel.Target,
				Embedded: true,
				Data:     data,
			})
		}
	}
	return fonts
}

// --- Package access ---

// opcPackage indexes a zip archive and enforces extraction limits.
type opcPackage struct {
	files     map[string]*zip.File
	extracted int64
}

func newPackage(zr *zip.Reader) *opcPackage {
	m := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		m[f.Name] = f
	}
	return &opcPackage{files: m}
}

func (p *opcPackage) has(name string) bool {
	_, ok := p.files[name]
	return ok
}

func (p *opcPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found in zip: %s", name)
	}
	if f.UncompressedSize64 > maxZipEntrySize {
		return nil, fmt.Errorf("file %s exceeds maximum allowed size (%d bytes)", name, maxZipEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in zip: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, int64(maxZipEntrySize)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from zip: %w", name, err)
	}
	if int64(len(data)) > int64(maxZipEntrySize) {
		return nil, fmt.Errorf("file %s actual size exceeds maximum allowed size", name)
	}
	p.extracted += int64(len(data))
	if p.extracted > maxZipTotalSize {
		return nil, fmt.Errorf("extracted content exceeds %d bytes", maxZipTotalSize)
	}
	return data, nil
}

// xmlRel is a resolved relationship. Target is a package part name, or the
// raw URL for external targets.
type xmlRel struct {
	ID       string
	Type     string
	Target   string
	External bool
}

type xmlRelsForRead struct {
	XMLName       xml.Name `xml:"Relationships"`
	Relationships []struct {
		ID         string `xml:"Id,attr"`
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// rels reads the relationships of part. A missing rels file is not an error.
func (p *opcPackage) rels(part string) (map[string]xmlRel, error) {
	relsPath := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	out := make(map[string]xmlRel)
	if !p.has(relsPath) {
		return out, nil
	}
	data, err := p.read(relsPath)
	if err != nil {
		return nil, err
	}
	var rels xmlRelsForRead
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships %s: %w", relsPath, err)
	}
	for _, rel := range rels.Relationships {
		x := xmlRel{ID: rel.ID, Type: rel.Type, Target: rel.Target, External: rel.TargetMode == "External"}
		if !x.External {
			x.Target = resolvePartName(part, rel.Target)
		}
		out[rel.ID] = x
	}
	return out, nil
}

// relOfType returns the first relationship whose type ends with suffix.
// Ties are broken by relationship id so the choice is deterministic.
func relOfType(rels map[string]xmlRel, suffix string) (xmlRel, bool) {
	var (
		best  xmlRel
		found bool
	)
	for _, rel := range rels {
		if strings.HasSuffix(rel.Type, suffix) && (!found || relIDLess(rel.ID, best.ID)) {
			best, found = rel, true
		}
	}
	return best, found
}

// relIDLess orders "rId2" before "rId10".
func relIDLess(a, b string) bool {
	na, ea := strconv.Atoi(strings.TrimPrefix(a, "rId"))
	nb, eb := strconv.Atoi(strings.TrimPrefix(b, "rId"))
	if ea == nil && eb == nil {
		return na < nb
	}
	return a < b
}

// resolvePartName resolves a relationship target against the source part.
func resolvePartName(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// --- XML tree ---

// xmlNode is a parsed element. Names are matched by local name so the same
// walker serves p:, dsp: and a: trees.
type xmlNode struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*xmlNode
	Text     string
}

// parseXMLTree builds an element tree, keeping children in document order.
func parseXMLTree(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

func (n *xmlNode) child(local string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

func (n *xmlNode) childrenNamed(local string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for _, c := range n.Children {
		if c.Name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// path follows a chain of child names.
func (n *xmlNode) path(locals ...string) *xmlNode {
	for _, l := range locals {
		n = n.child(l)
		if n == nil {
			return nil
		}
	}
	return n
}

// find returns the first descendant named local, depth first.
func (n *xmlNode) find(local string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
		if f := c.find(local); f != nil {
			return f
		}
	}
	return nil
}

// findAll returns every descendant named local in document order.
func (n *xmlNode) findAll(local string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for _, c := range n.Children {
		if c.Name.Local == local {
			out = append(out, c)
		}
		out = append(out, c.findAll(local)...)
	}
	return out
}

// kids returns the children of n; nil-safe.
func (n *xmlNode) kids() []*xmlNode {
	if n == nil {
		return nil
	}
	return n.Children
}

func (n *xmlNode) childText(local string) string {
	if c := n.child(local); c != nil {
		return c.Text
	}
	return ""
}

// attr returns the value of an attribute without a namespace.
func (n *xmlNode) attr(local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) attrNS(space, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) hasAttr(local string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space == "" {
			return true
		}
	}
	return false
}

func (n *xmlNode) attrFloat(local string, def float64) float64 {
	v := n.attr(local)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func (n *xmlNode) attrBool(local string) bool {
	v := n.attr(local)
	return v == "1" || v == "true"
}
