package abundance

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/genusdiff/internal/dataset"
)

// CleanCounts drops records with a missing sample, genus, or count.
func CleanCounts(recs []CountRecord) []CountRecord {
	out := make([]CountRecord, 0, len(recs))
	for _, r := range recs {
		if r.Missing || dataset.IsMissing(r.Sample) || dataset.IsMissing(r.Genus) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Metadata reduces a metadata table to its sample and group columns.
// Values are trimmed but missing markers are kept for CleanMetadata.
func Metadata(t *dataset.Table, sampleCol, groupCol string) ([]MetadataRecord, error) {
	sel, err := t.Select(sampleCol, groupCol)
	if err != nil {
		return nil, fmt.Errorf("reduce metadata: %w", err)
	}
	out := make([]MetadataRecord, len(sel.Rows))
	for i, row := range sel.Rows {
		out[i] = MetadataRecord{Sample: strings.TrimSpace(row[0]), Group: strings.TrimSpace(row[1])}
	}
	return out, nil
}

// CleanMetadata drops records with a missing sample or group.
func CleanMetadata(recs []MetadataRecord) []MetadataRecord {
	out := make([]MetadataRecord, 0, len(recs))
	for _, r := range recs {
		if dataset.IsMissing(r.Sample) || dataset.IsMissing(r.Group) {
			continue
		}
		out = append(out, r)
	}
	return out
}
