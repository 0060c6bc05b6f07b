package slidepreview

import (
	"strings"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// textLine is one laid out line of words.
type textLine struct {
	words []string
	width float64
	// last marks the final line of a paragraph, which is never justified.
	last bool
}

// advance measures s with extra spacing after every rune.
func advance(face font.Face, s string, spacing float64) float64 {
	return float64(font.MeasureString(face, s))/64 + spacing*float64(utf8.RuneCountInString(s))
}

// layoutText splits content into paragraphs on "\n" and wraps each at
// maxWidth. Words wider than a line are broken between runes, which also
// wraps text written without spaces.
func layoutText(face font.Face, content string, maxWidth, spacing float64) []textLine {
	space := advance(face, " ", spacing)
	var lines []textLine
	for _, para := range strings.Split(content, "\n") {
		var cur textLine
		for _, word := range strings.Fields(para) {
			for _, part := range breakWord(face, word, maxWidth, spacing) {
				ww := advance(face, part, spacing)
				if len(cur.words) > 0 && maxWidth > 0 && cur.width+space+ww > maxWidth {
					lines = append(lines, cur)
					cur = textLine{}
				}
				if len(cur.words) > 0 {
					cur.width += space
				}
				cur.words = append(cur.words, part)
				cur.width += ww
			}
		}
		cur.last = true
		lines = append(lines, cur)
	}
	return lines
}

func breakWord(face font.Face, word string, maxWidth, spacing float64) []string {
	if maxWidth <= 0 || advance(face, word, spacing) <= maxWidth {
		return []string{word}
	}
	var (
		parts []string
		start int
		width float64
	)
	for i, r := range word {
		rw := advance(face, string(r), spacing)
		if width+rw > maxWidth && i > start {
			parts = append(parts, word[start:i])
			start, width = i, 0
		}
		width += rw
	}
	return append(parts, word[start:])
}

// drawTextBox paints el's box fill and outline, then its text laid out
// inside the insets of the box at (x, y, w, h).
func (s *slideRender) drawTextBox(dc *gg.Context, el *TextElement, x, y, w, h, sx, sy float64) {
	if el.Fill.IsVisible() {
		dc.DrawRectangle(x, y, w, h)
		applyFill(dc, el.Fill, x, y, w, h)
		dc.Fill()
	}
	if st := scaleStroke(el.Stroke, sx, sy); st.IsVisible() {
		strokeRect(dc, st, x, y, w, h)
	}
	if strings.TrimSpace(el.Content) == "" || el.FontSize <= 0 {
		return
	}

	size := el.FontSize * sy
	face := s.face(FontInfo{Family: el.FontFamily, Weight: el.FontWeight, Style: el.FontStyle}, size)
	spacing := el.LetterSpacing * sx
	left, right := x+el.Insets.Left*sx, x+w-el.Insets.Right*sx
	top, bottom := y+el.Insets.Top*sy, y+h-el.Insets.Bottom*sy

	lines := layoutText(face, el.Content, right-left, spacing)
	lineHeight := el.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1.2
	}
	lh := size * lineHeight
	total := lh * float64(len(lines))

	cur := top
	switch el.VerticalAlign {
	case AlignMiddle:
		cur = top + (bottom-top-total)/2
	case AlignBottom:
		cur = bottom - total
	}
	ascent := float64(face.Metrics().Ascent) / 64
	// Center the glyph box within the line's leading.
	lead := (lh - float64(face.Metrics().Height)/64) / 2

	dc.SetFontFace(face)
	dc.SetColor(el.Color)
	space := advance(face, " ", spacing)
	for _, line := range lines {
		baseline := cur + lead + ascent
		cur += lh
		if len(line.words) == 0 {
			continue
		}
		gap := space
		lx := left
		switch el.Align {
		case AlignCenter:
			lx = left + (right-left-line.width)/2
		case AlignRight:
			lx = right - line.width
		case AlignJustify:
			if !line.last && len(line.words) > 1 {
				gap += (right - left - line.width) / float64(len(line.words)-1)
			}
		}
		px := lx
		for i, word := range line.words {
			if i > 0 {
				px += gap
			}
			px = drawWord(dc, face, word, px, baseline, spacing)
		}
		if el.Underline {
			dc.SetLineWidth(max(1, size/15))
			dc.DrawLine(lx, baseline+size/10, px, baseline+size/10)
			dc.Stroke()
		}
	}
}

// drawWord draws word at (x, baseline) and returns the pen position after it.
func drawWord(dc *gg.Context, face font.Face, word string, x, baseline, spacing float64) float64 {
	if spacing == 0 {
		dc.DrawString(word, x, baseline)
		return x + advance(face, word, 0)
	}
	for _, r := range word {
		g := string(r)
		dc.DrawString(g, x, baseline)
		x += advance(face, g, spacing)
	}
	return x
}
