package slidepreview

import "github.com/fogleman/gg"

// drawTable paints a table into the box (0, 0, w, h). Columns and rows
// without an explicit size share the remaining space evenly.
func (s *slideRender) drawTable(dc *gg.Context, el *TableElement, w, h, sx, sy float64) {
	if len(el.Rows) == 0 {
		return
	}
	ncols := len(el.Columns)
	for _, row := range el.Rows {
		ncols = max(ncols, len(row.Cells))
	}
	cols := tableTracks(el.Columns, ncols, w, sx)
	heights := make([]float64, len(el.Rows))
	for i, row := range el.Rows {
		heights[i] = row.Height
	}
	rows := tableTracks(heights, len(el.Rows), h, sy)

	colX := offsets(cols)
	rowY := offsets(rows)
	border := scaleStroke(el.Border, sx, sy)

	for ri, row := range el.Rows {
		for ci, cell := range row.Cells {
			if cell.Merged || ci >= len(cols) {
				continue
			}
			cw := colX[min(ci+max(cell.GridSpan, 1), len(cols))] - colX[ci]
			ch := rowY[min(ri+max(cell.RowSpan, 1), len(rows))] - rowY[ri]
			x, y := colX[ci], rowY[ri]

			text := NewTextElement("", cell.Text)
			text.Fill = cell.Fill
			text.Color = cell.Color
			text.FontSize = cell.FontSize
			if cell.FontFamily != "" {
				text.FontFamily = cell.FontFamily
			}
			if cell.Bold {
				text.FontWeight = WeightBold
			}
			if cell.Align != "" {
				text.Align = cell.Align
			}
			s.drawTextBox(dc, text, x, y, cw, ch, sx, sy)
			if border.IsVisible() {
				strokeRect(dc, border, x, y, cw, ch)
			}
		}
	}
}

// tableTracks scales sizes to output pixels, pads them to n entries and
// gives unsized tracks an even share of what remains of total.
func tableTracks(sizes []float64, n int, total, scale float64) []float64 {
	out := make([]float64, n)
	used, unsized := 0.0, 0
	for i := range out {
		if i < len(sizes) && sizes[i] > 0 {
			out[i] = sizes[i] * scale
			used += out[i]
		} else {
			unsized++
		}
	}
	if unsized > 0 {
		share := max(total-used, 0) / float64(unsized)
		for i := range out {
			if out[i] == 0 {
				out[i] = share
			}
		}
	}
	return out
}

// offsets returns the running start positions of tracks plus the end.
func offsets(tracks []float64) []float64 {
	out := make([]float64, len(tracks)+1)
	for i, t := range tracks {
		out[i+1] = out[i] + t
	}
	return out
}
