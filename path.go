package slidepreview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// Point is a 2D point in pixels.
type Point struct {
	X, Y float64
}

// PathOp is an absolute path command.
type PathOp byte

const (
	OpMoveTo  PathOp = 'M'
	OpLineTo  PathOp = 'L'
	OpQuadTo  PathOp = 'Q'
	OpCubicTo PathOp = 'C'
	OpClose   PathOp = 'Z'
)

// PathCommand is one absolute command. Points holds 1 point for M/L,
// 2 for Q, 3 for C and none for Z.
type PathCommand struct {
	Op     PathOp
	Points []Point
}

// Path is a sequence of absolute commands.
type Path []PathCommand

// ParsePath parses SVG path data using the M, L, H, V, Q, C and Z commands
// (absolute and relative). Elliptical arcs are not accepted.
func ParsePath(d string) (Path, error) {
	toks, err := tokenizePath(d)
	if err != nil {
		return nil, err
	}
	var (
		p          Path
		cur, start Point
		cmd        byte
	)
	i := 0
	next := func() (float64, error) {
		if i >= len(toks) || toks[i].cmd != 0 {
			return 0, fmt.Errorf("path %q: missing number after %c", d, cmd)
		}
		v := toks[i].num
		i++
		return v, nil
	}
	pt := func(rel bool) (Point, error) {
		x, err := next()
		if err != nil {
			return Point{}, err
		}
		y, err := next()
		if err != nil {
			return Point{}, err
		}
		if rel {
			return Point{cur.X + x, cur.Y + y}, nil
		}
		return Point{x, y}, nil
	}
	for i < len(toks) {
		if toks[i].cmd != 0 {
			cmd = toks[i].cmd
			i++
		} else if cmd == 0 {
			return nil, fmt.Errorf("path %q: number before first command", d)
		}
		rel := cmd >= 'a' && cmd <= 'z'
		switch upper(cmd) {
		case 'M':
			q, err := pt(rel)
			if err != nil {
				return nil, err
			}
			p = append(p, PathCommand{Op: OpMoveTo, Points: []Point{q}})
			cur, start = q, q
			// Implicit commands after a moveto are linetos.
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L':
			q, err := pt(rel)
			if err != nil {
				return nil, err
			}
			p = append(p, PathCommand{Op: OpLineTo, Points: []Point{q}})
			cur = q
		case 'H':
			x, err := next()
			if err != nil {
				return nil, err
			}
			if rel {
				x += cur.X
			}
			cur = Point{x, cur.Y}
			p = append(p, PathCommand{Op: OpLineTo, Points: []Point{cur}})
		case 'V':
			y, err := next()
			if err != nil {
				return nil, err
			}
			if rel {
				y += cur.Y
			}
			cur = Point{cur.X, y}
			p = append(p, PathCommand{Op: OpLineTo, Points: []Point{cur}})
		case 'Q':
			c1, err := pt(rel)
			if err != nil {
				return nil, err
			}
			q, err := pt(rel)
			if err != nil {
				return nil, err
			}
			p = append(p, PathCommand{Op: OpQuadTo, Points: []Point{c1, q}})
			cur = q
		case 'C':
			c1, err := pt(rel)
			if err != nil {
				return nil, err
			}
			c2, err := pt(rel)
			if err != nil {
				return nil, err
			}
			q, err := pt(rel)
			if err != nil {
				return nil, err
			}
			p = append(p, PathCommand{Op: OpCubicTo, Points: []Point{c1, c2, q}})
			cur = q
		case 'Z':
			p = append(p, PathCommand{Op: OpClose})
			cur = start
			cmd = 0
		default:
			return nil, fmt.Errorf("path %q: unsupported command %c", d, cmd)
		}
	}
	return p, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

type pathToken struct {
	cmd byte
	num float64
}

func tokenizePath(d string) ([]pathToken, error) {
	var toks []pathToken
	for i := 0; i < len(d); {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.IndexByte("MmLlHhVvQqCcZzAaSsTt", c) >= 0:
			toks = append(toks, pathToken{cmd: c})
			i++
		default:
			j := i
			if d[j] == '-' || d[j] == '+' {
				j++
			}
			seenDot, seenExp := false, false
			for j < len(d) {
				ch := d[j]
				if ch >= '0' && ch <= '9' {
					j++
				} else if ch == '.' && !seenDot && !seenExp {
					seenDot = true
					j++
				} else if (ch == 'e' || ch == 'E') && !seenExp && j > i {
					seenExp = true
					j++
					if j < len(d) && (d[j] == '-' || d[j] == '+') {
						j++
					}
				} else {
					break
				}
			}
			if j == i {
				return nil, fmt.Errorf("path %q: unexpected %q at %d", d, c, i)
			}
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", d, err)
			}
			toks = append(toks, pathToken{num: v})
			i = j
		}
	}
	return toks, nil
}

// String formats the path as SVG path data.
func (p Path) String() string {
	var b strings.Builder
	for i, c := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte(c.Op))
		for _, q := range c.Points {
			fmt.Fprintf(&b, " %s %s", fmtNum(q.X), fmtNum(q.Y))
		}
	}
	return b.String()
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Bounds returns the bounding box of the path's points.
func (p Path) Bounds() (minX, minY, maxX, maxY float64) {
	first := true
	for _, c := range p {
		for _, q := range c.Points {
			if first {
				minX, minY, maxX, maxY = q.X, q.Y, q.X, q.Y
				first = false
				continue
			}
			minX, minY = min(minX, q.X), min(minY, q.Y)
			maxX, maxY = max(maxX, q.X), max(maxY, q.Y)
		}
	}
	return
}

// Append traces the path on dc, offset by (x, y).
func (p Path) Append(dc *gg.Context, x, y float64) {
	for _, c := range p {
		switch c.Op {
		case OpMoveTo:
			dc.MoveTo(x+c.Points[0].X, y+c.Points[0].Y)
		case OpLineTo:
			dc.LineTo(x+c.Points[0].X, y+c.Points[0].Y)
		case OpQuadTo:
			dc.QuadraticTo(x+c.Points[0].X, y+c.Points[0].Y, x+c.Points[1].X, y+c.Points[1].Y)
		case OpCubicTo:
			dc.CubicTo(x+c.Points[0].X, y+c.Points[0].Y, x+c.Points[1].X, y+c.Points[1].Y, x+c.Points[2].X, y+c.Points[2].Y)
		case OpClose:
			dc.ClosePath()
		}
	}
}

// polygonPath returns a closed path through pts.
func polygonPath(pts []Point) Path {
	if len(pts) == 0 {
		return nil
	}
	p := make(Path, 0, len(pts)+1)
	p = append(p, PathCommand{Op: OpMoveTo, Points: []Point{pts[0]}})
	for _, q := range pts[1:] {
		p = append(p, PathCommand{Op: OpLineTo, Points: []Point{q}})
	}
	return append(p, PathCommand{Op: OpClose})
}

// Scale returns a copy of p with every point scaled by (sx, sy).
func (p Path) Scale(sx, sy float64) Path {
	out := make(Path, len(p))
	for i, c := range p {
		pts := make([]Point, len(c.Points))
		for j, q := range c.Points {
			pts[j] = Point{X: q.X * sx, Y: q.Y * sy}
		}
		out[i] = PathCommand{Op: c.Op, Points: pts}
	}
	return out
}
