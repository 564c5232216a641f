// Package chart provides ASCII terminal chart rendering for daily weather
// columns. Two renderers are available:
//
//   - Bar: horizontal bar chart, one bar per day. Suited to a month or a
//     handful of weeks.
//   - Plot: multi-line ASCII chart with labeled axes and an optional
//     threshold line. Suited to longer ranges.
//
// Both renderers draw null values as gaps, never as zeros.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/model"
)

// Point is one labeled value on the x axis.
type Point struct {
	Label string
	Value model.Value
}

// Series extracts column field of t as chart points labeled by date,
// restricted to the days matching sel.
func Series(t *model.Table, field string, sel analyze.Selector) ([]Point, error) {
	get, err := t.Getter(field)
	if err != nil {
		return nil, err
	}
	var pts []Point
	for i := range t.Records {
		r := &t.Records[i]
		if !sel.Match(r.Date) {
			continue
		}
		pts = append(pts, Point{Label: r.Date, Value: get(r)})
	}
	return pts, nil
}

// ─── Bar ─────────────────────────────────────────────────────────────────────

// densityLimit is the bar count above which Bar suggests narrowing the range.
const densityLimit = 62

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the last MaxBars points. 0 means no limit.
	MaxBars int
}

// Bar renders a horizontal bar chart of pts to w, one bar per non-null point.
// When any value is negative the bars grow left and right of a zero line.
//
// Output example:
//
//	prcp_mm  2024-11-01 – 2024-11-03
//	2024-11-01   0.0  █
//	2024-11-02  12.2  ████████████████████
//	2024-11-03   3.1  █████
func Bar(w io.Writer, name string, pts []Point, opts BarOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}

	valid := nonNull(pts)
	if len(valid) == 0 {
		return fmt.Errorf("chart bar: no non-null values to render")
	}
	if opts.MaxBars > 0 && len(valid) > opts.MaxBars {
		valid = valid[len(valid)-opts.MaxBars:]
	}
	if len(valid) > densityLimit {
		fmt.Fprintf(w, "⚠  %d days; consider narrowing with --year/--month or using --kind plot\n\n", len(valid))
	}

	lo, hi := bounds(valid)
	labelW, numW := 0, 0
	for _, p := range valid {
		labelW = max(labelW, len([]rune(p.Label)))
		numW = max(numW, len(shortNum(p.Value.Float)))
	}
	// label, value and two double-space separators
	s := newBarScale(lo, hi, max(width-labelW-numW-4, 4))

	fmt.Fprintf(w, "%s  %s – %s\n", name, valid[0].Label, valid[len(valid)-1].Label)
	for _, p := range valid {
		fmt.Fprintf(w, "%-*s  %*s  %s\n", labelW, p.Label, numW, shortNum(p.Value.Float), s.render(p.Value.Float))
	}
	return nil
}

// barScale maps values onto a row of width cells.
type barScale struct {
	lo, span float64
	width    int
	// zero is the cell holding the zero line, or -1 when no value is negative.
	zero int
}

func newBarScale(lo, hi float64, width int) barScale {
	s := barScale{lo: lo, span: hi - lo, width: width, zero: -1}
	if s.span == 0 {
		s.span = 1
	}
	if lo < 0 {
		s.zero = min(int(math.Round(-lo/s.span*float64(width-1))), width-1)
	}
	return s
}

func (s barScale) render(v float64) string {
	if s.zero < 0 {
		n := int(math.Round((v - s.lo) / s.span * float64(s.width)))
		return strings.Repeat("█", min(max(n, 1), s.width))
	}

	cells := []rune(strings.Repeat(" ", s.width))
	cells[s.zero] = '│'
	n := int(math.Round(math.Abs(v) / s.span * float64(s.width-1)))
	if v >= 0 {
		for i := s.zero + 1; i <= s.zero+n && i < s.width; i++ {
			cells[i] = '█'
		}
	} else {
		for i := max(s.zero-n, 0); i < s.zero; i++ {
			cells[i] = '█'
		}
	}
	return strings.TrimRight(string(cells), " ")
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart, y labels included.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of rows in the chart body. If 0, defaults to 12.
	Height int
	// Title overrides the default title (the column name).
	Title string
	// Threshold, when valid, draws a dotted horizontal line at that value
	// in every cell the data line leaves empty.
	Threshold model.Value
}

// Plot renders a multi-line ASCII chart of pts to w. Null points leave gaps
// in the line.
func Plot(w io.Writer, name string, pts []Point, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = name
	}

	valid := nonNull(pts)
	if len(valid) < 2 {
		return fmt.Errorf("chart plot: need at least 2 non-null values (got %d)", len(valid))
	}

	lo, hi := bounds(valid)
	th, hasTh := opts.Threshold.Get()
	if hasTh {
		lo, hi = min(lo, th), max(hi, th)
	}
	s := scale{lo: lo, hi: hi, rows: height}

	ticks := s.ticks()
	labelW := 0
	for _, t := range ticks {
		labelW = max(labelW, len(shortNum(t)))
	}
	plotW := max(width-labelW-2, 10)

	c := newCanvas(height, plotW)
	c.trace(sampleCols(pts, plotW), s)
	if hasTh {
		c.fillBlank(s.row(th), '┄')
	}

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, pts[0].Label, pts[len(pts)-1].Label)
	for row := range c {
		label, axis := "", ' '
		if t, ok := s.tickAt(ticks, row); ok {
			label, axis = shortNum(t), '┤'
		}
		fmt.Fprintf(w, "%*s%c%s\n", labelW, label, axis, string(c[row]))
	}
	pad := strings.Repeat(" ", labelW)
	fmt.Fprintf(w, "%s└%s\n", pad, strings.Repeat("─", plotW))
	fmt.Fprintf(w, "%s %s\n", pad, xLabels(pts, plotW))
	return nil
}

// ─── Scale and canvas ─────────────────────────────────────────────────────────

// scale maps values onto body rows. Row 0 holds hi; row rows-1 holds lo.
type scale struct {
	lo, hi float64
	rows   int
}

func (s scale) pos(v float64) float64 {
	if s.hi == s.lo {
		return float64(s.rows) / 2
	}
	return (s.hi - v) / (s.hi - s.lo) * float64(s.rows-1)
}

func (s scale) row(v float64) int {
	return min(max(int(math.Round(s.pos(v))), 0), s.rows-1)
}

// ticks returns evenly spaced y axis values from lo to hi: four of them, or
// three on short charts.
func (s scale) ticks() []float64 {
	if s.hi == s.lo {
		return []float64{s.lo}
	}
	n := 4
	if s.rows <= 6 {
		n = 3
	}
	step := (s.hi - s.lo) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = s.lo + step*float64(i)
	}
	return out
}

// tickAt returns the tick that lands on row.
func (s scale) tickAt(ticks []float64, row int) (float64, bool) {
	for _, t := range ticks {
		if math.Abs(s.pos(t)-float64(row)) < 0.5 {
			return t, true
		}
	}
	return 0, false
}

const gap = -1

// canvas is the chart body, indexed [row][col].
type canvas [][]rune

func newCanvas(rows, cols int) canvas {
	c := make(canvas, rows)
	for r := range c {
		c[r] = []rune(strings.Repeat(" ", cols))
	}
	return c
}

// trace draws cols as a connected line. A step between columns turns a
// corner in the later column: the line arrives on the previous row, runs
// vertically, then leaves on its own row. NaN columns are gaps.
func (c canvas) trace(cols []float64, s scale) {
	rows := make([]int, len(cols))
	for i, v := range cols {
		rows[i] = gap
		if !math.IsNaN(v) {
			rows[i] = s.row(v)
		}
	}
	at := func(i int) int {
		if i < 0 || i >= len(rows) {
			return gap
		}
		return rows[i]
	}

	for i, r := range rows {
		if r == gap {
			continue
		}
		prev := at(i - 1)
		switch {
		case prev == gap && at(i+1) == gap:
			c[r][i] = '·'
		case prev == gap || prev == r:
			c[r][i] = '─'
		case prev < r: // falling
			c[prev][i] = '╮'
			for k := prev + 1; k < r; k++ {
				c[k][i] = '│'
			}
			c[r][i] = '╰'
		default: // rising
			c[prev][i] = '╯'
			for k := r + 1; k < prev; k++ {
				c[k][i] = '│'
			}
			c[r][i] = '╭'
		}
	}
}

// fillBlank sets every empty cell of row to ch.
func (c canvas) fillBlank(row int, ch rune) {
	if row < 0 || row >= len(c) {
		return
	}
	for i, cur := range c[row] {
		if cur == ' ' {
			c[row][i] = ch
		}
	}
}

// sampleCols reduces pts to exactly n columns. Each column holds the mean of
// its bucket, or NaN when the whole bucket is null. When there are fewer
// points than columns, points repeat across neighbouring columns.
func sampleCols(pts []Point, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	for col := range cols {
		lo := col * total / n
		hi := min(max((col+1)*total/n-1, lo), total-1)
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			if v, ok := pts[i].Value.Get(); ok {
				sum += v
				count++
			}
		}
		cols[col] = math.NaN()
		if count > 0 {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// xLabels places the first, middle and last point labels under the body.
// The middle label is dropped when it would crowd the ends.
func xLabels(pts []Point, width int) string {
	line := []rune(strings.Repeat(" ", width))
	put := func(at int, s string) {
		for i, ch := range []rune(s) {
			if j := at + i; j >= 0 && j < width {
				line[j] = ch
			}
		}
	}
	first, mid, last := pts[0].Label, pts[len(pts)/2].Label, pts[len(pts)-1].Label
	put(0, first)
	if width >= 3*len(mid)+4 {
		put(width/2-len(mid)/2, mid)
	}
	put(width-len(last), last)
	return string(line)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func nonNull(pts []Point) []Point {
	var out []Point
	for _, p := range pts {
		if p.Value.Valid {
			out = append(out, p)
		}
	}
	return out
}

// bounds returns the smallest and largest value of non-empty pts, all valid.
func bounds(pts []Point) (lo, hi float64) {
	lo, hi = pts[0].Value.Float, pts[0].Value.Float
	for _, p := range pts[1:] {
		lo, hi = min(lo, p.Value.Float), max(hi, p.Value.Float)
	}
	return lo, hi
}

// shortNum formats v for axis and bar labels with trailing zeros trimmed
// and at least one decimal place. Precision shrinks as magnitude grows.
func shortNum(v float64) string {
	a := math.Abs(v)
	switch {
	case math.IsNaN(v):
		return "."
	case a == 0:
		return "0"
	case a >= 1e3:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	prec := 3
	if a >= 100 {
		prec = 1
	} else if a >= 1 {
		prec = 2
	}
	s := strings.TrimRight(strconv.FormatFloat(v, 'f', prec, 64), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return 80
}
