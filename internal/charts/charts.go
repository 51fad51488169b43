// Package charts builds the histogram, volcano, boxplot and bar charts
// with gonum/plot and saves them atomically.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/genusdiff/internal/utils"
)

// Default page size for single charts.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var (
	colorSignificant    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorNotSignificant = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	colorPositive       = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorNegative       = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorThreshold      = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
)

// ErrNoData is returned when a chart would have nothing to draw.
var ErrNoData = errors.New("nothing to plot")

// Formats lists the accepted output formats.
var Formats = []string{"png", "svg", "pdf"}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) bool {
	f = strings.ToLower(f)
	for _, x := range Formats {
		if x == f {
			return true
		}
	}
	return false
}

// Save renders p to path; the format follows the extension.
func Save(p *plot.Plot, w, h vg.Length, path string) error {
	wt, err := p.WriterTo(w, h, format(path))
	if err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return write(path, wt)
}

// SaveGrid draws a grid of plots on one page with aligned axes. Nil cells
// are left blank.
func SaveGrid(plots [][]*plot.Plot, w, h vg.Length, path string) error {
	if len(plots) == 0 || len(plots[0]) == 0 {
		return ErrNoData
	}
	c, err := draw.NewFormattedCanvas(w, h, format(path))
	if err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 2,
		PadY:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, draw.New(c))
	for i := range plots {
		for j := range plots[i] {
			if plots[i][j] != nil {
				plots[i][j].Draw(canvases[i][j])
			}
		}
	}
	return write(path, c)
}

func write(path string, wt io.WriterTo) error {
	return utils.SafeWriteFunc(path, func(out io.Writer) error {
		_, err := wt.WriteTo(out)
		return err
	})
}

func format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// finite drops NaN and infinite values.
func finite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func dashed(c color.Color) draw.LineStyle {
	return draw.LineStyle{
		Color:  c,
		Width:  vg.Points(1),
		Dashes: []vg.Length{vg.Points(4), vg.Points(3)},
	}
}
