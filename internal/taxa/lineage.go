package taxa

import "strings"

// Ranks lists the taxonomy prefixes in order, kingdom to species.
var Ranks = []string{"k", "p", "c", "o", "f", "g", "s"}

// Lineage holds the rank names parsed from a header like
// "k__Bacteria;p__Firmicutes;...;g__Dorea;s__sp.". Missing ranks are empty.
type Lineage struct {
	Kingdom, Phylum, Class, Order, Family, Genus, Species string
}

// ParseLineage splits a taxonomy string on ';' or '|' and assigns each
// "x__name" token to its rank. Unknown tokens are ignored.
func ParseLineage(header string) Lineage {
	var l Lineage
	fields := strings.FieldsFunc(header, func(r rune) bool { return r == ';' || r == '|' })
	for _, f := range fields {
		f = strings.TrimSpace(f)
		rank, name, ok := strings.Cut(f, "__")
		if !ok {
			continue
		}
		switch strings.ToLower(rank) {
		case "k", "d":
			l.Kingdom = name
		case "p":
			l.Phylum = name
		case "c":
			l.Class = name
		case "o":
			l.Order = name
		case "f":
			l.Family = name
		case "g":
			l.Genus = ExtractGenus("g__" + name)
		case "s":
			l.Species = name
		}
	}
	return l
}

// Values returns the rank names in Ranks order.
func (l Lineage) Values() []string {
	return []string{l.Kingdom, l.Phylum, l.Class, l.Order, l.Family, l.Genus, l.Species}
}

// Empty reports whether no rank was found.
func (l Lineage) Empty() bool {
	for _, v := range l.Values() {
		if v != "" {
			return false
		}
	}
	return true
}
