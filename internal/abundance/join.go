package abundance

// JoinStats describes what an inner join dropped.
type JoinStats struct {
	OrphanCountSamples    []string // samples with counts but no metadata
	OrphanMetadataSamples []string // samples with metadata but no counts
	ExcludedGroupRows     int      // joined rows outside the kept groups
}

// Join inner-joins abundances to metadata on Sample and keeps rows whose
// group is listed in groups (all groups when groups is empty). A sample that
// appears several times in the metadata yields one row per match.
func Join(ra []RelativeRecord, meta []MetadataRecord, groups []string) ([]MergedRecord, JoinStats) {
	var st JoinStats
	bySample := map[string][]string{}
	var metaOrder []string
	for _, m := range meta {
		if _, ok := bySample[m.Sample]; !ok {
			metaOrder = append(metaOrder, m.Sample)
		}
		bySample[m.Sample] = append(bySample[m.Sample], m.Group)
	}
	keep := map[string]bool{}
	for _, g := range groups {
		keep[g] = true
	}

	seen := map[string]bool{}
	orphan := map[string]bool{}
	out := make([]MergedRecord, 0, len(ra))
	for _, r := range ra {
		seen[r.Sample] = true
		gs, ok := bySample[r.Sample]
		if !ok {
			if !orphan[r.Sample] {
				orphan[r.Sample] = true
				st.OrphanCountSamples = append(st.OrphanCountSamples, r.Sample)
			}
			continue
		}
		for _, g := range gs {
			if len(keep) > 0 && !keep[g] {
				st.ExcludedGroupRows++
				continue
			}
			out = append(out, MergedRecord{RelativeRecord: r, Group: g})
		}
	}
	for _, s := range metaOrder {
		if !seen[s] {
			st.OrphanMetadataSamples = append(st.OrphanMetadataSamples, s)
		}
	}
	return out, st
}
