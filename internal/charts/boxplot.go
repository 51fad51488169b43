package charts

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
)

// Facet holds one genus's relative abundances split by study group.
type Facet struct {
	Genus  string
	Groups []string
	Values [][]float64 // parallel to Groups
}

// Facets collects the abundances of each listed genus by group. Values that
// are not finite are left out.
func Facets(merged []abundance.MergedRecord, genera, groups []string) []Facet {
	gi := map[string]int{}
	for i, g := range groups {
		gi[g] = i
	}
	fi := map[string]int{}
	out := make([]Facet, len(genera))
	for i, g := range genera {
		fi[g] = i
		out[i] = Facet{Genus: g, Groups: groups, Values: make([][]float64, len(groups))}
	}
	for _, m := range merged {
		i, ok := fi[m.Genus]
		if !ok {
			continue
		}
		j, ok := gi[m.Group]
		if !ok {
			continue
		}
		v := m.RelativeAbundance
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i].Values[j] = append(out[i].Values[j], v)
	}
	return out
}

// FacetGrid builds one boxplot per facet, laid out cols wide. Each facet
// keeps its own y range.
func FacetGrid(facets []Facet, cols int) ([][]*plot.Plot, error) {
	if len(facets) == 0 {
		return nil, ErrNoData
	}
	if cols < 1 {
		cols = 1
	}
	if cols > len(facets) {
		cols = len(facets)
	}
	rows := (len(facets) + cols - 1) / cols
	grid := make([][]*plot.Plot, rows)
	for i := range grid {
		grid[i] = make([]*plot.Plot, cols)
	}
	for k, f := range facets {
		p, err := facetPlot(f)
		if err != nil {
			return nil, err
		}
		grid[k/cols][k%cols] = p
	}
	return grid, nil
}

func facetPlot(f Facet) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Genus
	p.Title.TextStyle.Font.Size = vg.Points(9)
	p.X.Tick.Label.Font.Size = vg.Points(7)
	p.Y.Tick.Label.Font.Size = vg.Points(7)
	p.Y.Label.Text = "Relative abundance"
	p.Y.Label.TextStyle.Font.Size = vg.Points(7)
	for j, vals := range f.Values {
		if len(vals) == 0 {
			continue
		}
		b, err := plotter.NewBoxPlot(vg.Points(14), float64(j), plotter.Values(vals))
		if err != nil {
			return nil, err
		}
		b.FillColor = colorNotSignificant
		b.GlyphStyle.Radius = vg.Points(1.2)
		p.Add(b)
	}
	if len(f.Groups) > 0 {
		p.NominalX(f.Groups...)
		p.X.Min = math.Min(p.X.Min, -0.5)
		p.X.Max = math.Max(p.X.Max, float64(len(f.Groups))-0.5)
	}
	return p, nil
}
