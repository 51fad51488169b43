package taxa

import (
	"regexp"
	"strings"
)

// SampleColumn is the header that identifies samples in count tables.
const SampleColumn = "Sample"

const genusMarker = "g__"

var genusRe = regexp.MustCompile(`g__([A-Za-z0-9_-]*)`)

// ExtractGenus returns the bare genus name for a taxonomy-annotated column
// header. Headers without a g__ rank (including "Sample") pass through.
func ExtractGenus(header string) string {
	if !strings.Contains(header, genusMarker) {
		return header
	}
	m := genusRe.FindStringSubmatch(header)
	if len(m) < 2 {
		return header
	}
	return m[1]
}

// Collision describes several source columns that map to the same genus.
type Collision struct {
	Genus   string
	Columns []int    // 0-based column indexes in the original header
	Sources []string // original header text, same order as Columns
}

// NormalizeHeader applies ExtractGenus to every header. Duplicate results are
// kept as-is and reported so callers can decide whether to merge them.
func NormalizeHeader(header []string) ([]string, []Collision) {
	out := make([]string, len(header))
	seen := map[string]int{}
	var cols []*Collision
	for i, h := range header {
		g := ExtractGenus(strings.TrimSpace(h))
		out[i] = g
		first, ok := seen[g]
		if !ok {
			seen[g] = i
			continue
		}
		var c *Collision
		for _, existing := range cols {
			if existing.Genus == g {
				c = existing
				break
			}
		}
		if c == nil {
			c = &Collision{Genus: g, Columns: []int{first}, Sources: []string{header[first]}}
			cols = append(cols, c)
		}
		c.Columns = append(c.Columns, i)
		c.Sources = append(c.Sources, h)
	}
	res := make([]Collision, len(cols))
	for i, c := range cols {
		res[i] = *c
	}
	return out, res
}
