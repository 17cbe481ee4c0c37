package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/reflex/internal/model"
)

// Curve is a named latency series in milliseconds.
type Curve struct {
	Name   string
	Values []float64
}

const (
	defaultCurveHeight = 8
	minCurveWidth      = 10
	curveAxis          = " ┤ "
	colorReset         = "\x1b[0m"
)

var curveColors = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m", "\x1b[32m"}

// HistoryCurves splits stored results into visual, tactile and total series.
func HistoryCurves(results []model.ResultRecord) []Curve {
	visual := make([]float64, 0, len(results))
	tactile := make([]float64, 0, len(results))
	total := make([]float64, 0, len(results))
	for _, r := range results {
		visual = append(visual, float64(r.VisualMs))
		tactile = append(tactile, float64(r.TactileMs))
		total = append(total, float64(r.TotalMs))
	}
	return []Curve{
		{Name: "Visual", Values: visual},
		{Name: "Tactile", Values: tactile},
		{Name: "Total", Values: total},
	}
}

// PlotWidthFor returns the plot area left over once the axis labels for
// the given curves are drawn in totalWidth columns.
func PlotWidthFor(totalWidth int, curves []Curve) int {
	lo, hi := curveRange(curves)
	w := totalWidth - labelWidth(lo, hi) - runewidth.StringWidth(curveAxis)
	if w < minCurveWidth {
		return minCurveWidth
	}
	return w
}

// PlotCurves draws all curves against one shared millisecond axis using
// braille cells, two dots wide and four dots tall each.
func PlotCurves(w io.Writer, curves []Curve, width, height int, color bool) error {
	kept := curves[:0:0]
	for _, c := range curves {
		if len(c.Values) > 0 {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultCurveHeight
	}
	if width < minCurveWidth {
		width = minCurveWidth
	}

	lo, hi := curveRange(kept)
	dotRows := height * 4
	grids := make([][][]uint8, len(kept))
	for i, c := range kept {
		grid := make([][]uint8, height)
		for y := range grid {
			grid[y] = make([]uint8, width)
		}
		prevX, prevY := -1, -1
		for x, v := range resample(c.Values, width) {
			px, py := x*2, dotRow(v, lo, hi, dotRows)
			if prevX < 0 {
				setDot(grid, px, py)
			} else {
				line(prevX, prevY, px, py, func(dx, dy int) { setDot(grid, dx, dy) })
			}
			prevX, prevY = px, py
		}
		grids[i] = grid
	}

	labels := make([]string, height)
	labels[0] = fmt.Sprintf("%.0f", hi)
	labels[height-1] = fmt.Sprintf("%.0f", lo)
	if height > 2 {
		labels[height/2] = fmt.Sprintf("%.0f", (hi+lo)/2)
	}
	lw := labelWidth(lo, hi)

	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], lw))
		row.WriteString(curveAxis)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i, grid := range grids {
				if m := grid[y][x]; m != 0 {
					mask |= m
					if owner < 0 {
						owner = i
					}
				}
			}
			ch := rune(0x2800 + int(mask))
			if color && owner >= 0 {
				row.WriteString(curveColors[owner%len(curveColors)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}

	parts := make([]string, 0, len(kept))
	for i, c := range kept {
		label := "⣿ " + c.Name
		if color {
			label = curveColors[i%len(curveColors)] + label + colorReset
		}
		parts = append(parts, label)
	}
	_, err := fmt.Fprintf(w, "%s (ms)\n", strings.Join(parts, "  "))
	return err
}

func curveRange(curves []Curve) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		for _, v := range c.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi-lo < 1e-9 {
		return lo - 1, hi + 1
	}
	return lo, hi
}

func labelWidth(lo, hi float64) int {
	return max(len(fmt.Sprintf("%.0f", lo)), len(fmt.Sprintf("%.0f", hi)))
}

// resample stretches or squeezes values to n points: bucket means when
// there are more values than columns, linear interpolation otherwise.
func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	switch {
	case len(values) >= n:
		for i := range out {
			start := i * len(values) / n
			end := max((i+1)*len(values)/n, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case len(values) == 1 || n == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		last := len(values) - 1
		for i := range out {
			pos := float64(i) * float64(last) / float64(n-1)
			idx := int(pos)
			if idx >= last {
				out[i] = values[last]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func dotRow(v, lo, hi float64, rows int) int {
	row := int(math.Round((hi - v) / (hi - lo) * float64(rows-1)))
	return min(max(row, 0), rows-1)
}

func setDot(grid [][]uint8, x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(grid) || cx >= len(grid[cy]) {
		return
	}
	grid[cy][cx] |= brailleBit[x%2][y%4]
}

var brailleBit = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// line walks the integer points from (x0,y0) to (x1,y1) using Bresenham.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, sx := abs(x1-x0), 1
	if x0 > x1 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
