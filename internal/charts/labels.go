package charts

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/text"
)

// PlaceLabels assigns each label a box near its anchor. Labels are placed
// greedily in input order; a box never leaves bounds, never overlaps an
// earlier box and never covers another anchor. ok[i] is false when no
// candidate position fits and the label should be dropped.
func PlaceLabels(anchors, sizes []vg.Point, bounds vg.Rectangle, gap vg.Length) (boxes []vg.Rectangle, ok []bool) {
	boxes = make([]vg.Rectangle, len(anchors))
	ok = make([]bool, len(anchors))
	var placed []vg.Rectangle
	for i, a := range anchors {
		for _, c := range candidates(a, sizes[i], gap) {
			if !inside(c, bounds) || overlapsAny(c, placed) || coversAnchor(c, anchors, i) {
				continue
			}
			boxes[i], ok[i] = c, true
			placed = append(placed, c)
			break
		}
	}
	return boxes, ok
}

// candidates lists label positions around a: right, left, then centered,
// on rings of growing distance.
func candidates(a, size vg.Point, gap vg.Length) []vg.Rectangle {
	var out []vg.Rectangle
	for _, d := range []vg.Length{gap, 3 * gap, 6 * gap} {
		for _, min := range []vg.Point{
			{X: a.X + d, Y: a.Y + d},
			{X: a.X + d, Y: a.Y - d - size.Y},
			{X: a.X - d - size.X, Y: a.Y + d},
			{X: a.X - d - size.X, Y: a.Y - d - size.Y},
			{X: a.X - size.X/2, Y: a.Y + d},
			{X: a.X - size.X/2, Y: a.Y - d - size.Y},
		} {
			out = append(out, vg.Rectangle{Min: min, Max: vg.Point{X: min.X + size.X, Y: min.Y + size.Y}})
		}
	}
	return out
}

func overlaps(a, b vg.Rectangle) bool {
	return a.Min.X < b.Max.X && b.Min.X < a.Max.X && a.Min.Y < b.Max.Y && b.Min.Y < a.Max.Y
}

func overlapsAny(r vg.Rectangle, placed []vg.Rectangle) bool {
	for _, p := range placed {
		if overlaps(r, p) {
			return true
		}
	}
	return false
}

func inside(r, bounds vg.Rectangle) bool {
	return r.Min.X >= bounds.Min.X && r.Min.Y >= bounds.Min.Y && r.Max.X <= bounds.Max.X && r.Max.Y <= bounds.Max.Y
}

func coversAnchor(r vg.Rectangle, anchors []vg.Point, self int) bool {
	for j, a := range anchors {
		if j == self {
			continue
		}
		if a.X > r.Min.X && a.X < r.Max.X && a.Y > r.Min.Y && a.Y < r.Max.Y {
			return true
		}
	}
	return false
}

// labelLayer draws text labels next to data points, placing them on the
// canvas with PlaceLabels and joining each to its point with a leader line.
type labelLayer struct {
	plotter.XYs
	Labels    []string
	TextStyle text.Style
	Leader    draw.LineStyle
	Gap       vg.Length
}

func newLabelLayer(xys plotter.XYs, labels []string) *labelLayer {
	sty := text.Style{
		Color:   colorThreshold,
		Font:    plot.DefaultFont,
		Handler: plot.DefaultTextHandler,
		XAlign:  draw.XLeft,
		YAlign:  draw.YBottom,
	}
	sty.Font.Size = vg.Points(7)
	return &labelLayer{
		XYs:       xys,
		Labels:    labels,
		TextStyle: sty,
		Leader:    draw.LineStyle{Color: colorNotSignificant, Width: vg.Points(0.4)},
		Gap:       vg.Points(2),
	}
}

// Plot implements plot.Plotter.
func (l *labelLayer) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	anchors := make([]vg.Point, len(l.XYs))
	sizes := make([]vg.Point, len(l.XYs))
	for i, xy := range l.XYs {
		anchors[i] = vg.Point{X: trX(xy.X), Y: trY(xy.Y)}
		sizes[i] = vg.Point{X: l.TextStyle.Width(l.Labels[i]), Y: l.TextStyle.Height(l.Labels[i])}
	}
	boxes, ok := PlaceLabels(anchors, sizes, c.Rectangle, l.Gap)
	for i := range boxes {
		if !ok[i] {
			continue
		}
		b := boxes[i]
		c.StrokeLine2(l.Leader, anchors[i].X, anchors[i].Y, nearestX(b, anchors[i].X), nearestY(b, anchors[i].Y))
		c.FillText(l.TextStyle, b.Min, l.Labels[i])
	}
}

func nearestX(b vg.Rectangle, x vg.Length) vg.Length {
	switch {
	case x < b.Min.X:
		return b.Min.X
	case x > b.Max.X:
		return b.Max.X
	}
	return x
}

func nearestY(b vg.Rectangle, y vg.Length) vg.Length {
	switch {
	case y < b.Min.Y:
		return b.Min.Y
	case y > b.Max.Y:
		return b.Max.Y
	}
	return y
}
